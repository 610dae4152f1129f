// Copyright (c) Roundtable Authors.
// Licensed under the MIT License.

/*
Package main 提供 Roundtable 服务端程序入口。

# 概述

cmd/roundtable 装配存储、模型 Provider、会议编排与事件推送，
对外提供会议回合 HTTP API、WebSocket 事件流与 Prometheus 指标。

# 核心类型

  - App        ：持有全部组件，负责构建路由与按序释放资源
  - Middleware ：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、RequestLogger、
    Metrics、CORS、JWTAuth（工作区 claim 必填）、TurnRateLimiter（按工作区）
  - 配置热重载：修改配置文件后调整日志级别
  - Metrics 服务器：独立端口暴露 /metrics
  - 优雅关闭：信号监听后停止 HTTP 服务，再关闭编排器、工作池、广播器、Redis 与数据库，最后刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
