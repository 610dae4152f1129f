// 版权所有 2024 Roundtable Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层。

# 概述

本包屏蔽不同模型服务商在接口、鉴权与错误语义上的差异，
对会议编排层暴露一致的请求与响应模型。

# 核心接口

  - [Provider]：文本生成后端，提供 Completion / HealthCheck / Name
  - [ProviderRegistry]：按名称解析调用方选择的 Provider

# 错误语义

Provider 失败时返回 [*Error]，[KindOf] 将其归为 RateLimited / Unauthorized /
Timeout / Other 四类。Error.Message 可能包含上游原文，只能写入日志。

# 子包

  - providers：OpenAI 兼容协议的通用类型与 HTTP 错误映射
  - providers/openaicompat：OpenAI 兼容 Provider 实现
  - tokenizer：Token 计数，用于提示词预算
*/
package llm
