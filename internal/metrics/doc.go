/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、回合编排、
模型调用、检索、记忆、事件广播与数据库连接。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace 隔离。
Record 方法在 nil 接收者上为空操作，未启用指标时组件直接传 nil。

# 主要指标

  - turns_total{status} 与 turn_duration_seconds：回合结果与端到端耗时。
  - speaker_selections_total{reason} 与 loop_overrides_total：选择规则命中情况。
  - model_requests_total{provider,phase,status}、model_request_duration_seconds、
    model_tokens_used_total：think/speak 两阶段的模型调用。
  - search_requests_total、memory_writes_total、events_dropped_total：
    尽力而为子系统的健康状况。
  - ledger_append_duration_seconds：含锁等待的记录追加耗时。
*/
package metrics
