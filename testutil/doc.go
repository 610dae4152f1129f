// Copyright 2026 Roundtable Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package testutil 提供 Roundtable 测试共享的辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup
  - 转录断言: AssertContiguousSequence 校验发言序号从 1 连续递增
  - 通道辅助: WaitForChannel 带超时读取事件订阅

# 子包

  - testutil/mocks: llm.Provider、记忆存储、检索客户端与事件接收端的模拟实现，
    支持响应序列、延迟与错误注入
  - testutil/fixtures: 已迁移的 SQLite 内存库，以及预置参与者的会议种子数据

# 使用示例

	db := fixtures.NewDB(t)
	m, _ := fixtures.SeedMeeting(t, db, meeting.StatusInProgress, fixtures.Participants)
	provider := mocks.NewMockProvider().WithResponse("hello")
*/
package testutil
