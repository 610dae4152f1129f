// Copyright 2026 Roundtable Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供 OpenAI 兼容协议的公共适配层，openaicompat 子包依赖本包
完成请求/响应转换与错误映射。

# 核心函数

  - MapHTTPError：将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage：解析上游错误响应体
  - ConvertMessagesToOpenAI / ToLLMChatResponse：消息与响应格式转换
  - ChooseModel：按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
