/*
Package meeting 定义多 Agent 会议的领域模型。

# 概述

一场会议由若干参会 Agent 围绕一个议题轮流发言。每次"回合"产生恰好一条
发言记录，按 SequenceNumber 在会议内严格有序、连续且不重复。

# 子包

  - store：会议、参会者与知识片段的持久化
  - ledger：只追加的发言账本，负责序号不变量
  - selector：下一位发言者的纯函数选择与循环检测
  - memory：Agent 记忆的召回与写入
  - search：可选的事实检索能力
  - pipeline：think → (search) → speak 两阶段生成
  - orchestrator：回合编排入口
  - events：实时事件广播
*/
package meeting
