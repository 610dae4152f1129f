/*
Package handlers 实现 Roundtable 的 HTTP 处理器。

  - MeetingHandler：回合、记录分页、人类发言、生命周期动作与 WebSocket 事件流
  - HealthHandler：/health、/ready、/version，可注册 PingCheck
  - WriteSuccess / WriteError：统一 JSON 响应，types.Error 按错误码映射状态，
    其它错误统一返回 INTERNAL_ERROR，原文只进日志

处理器只做协议适配，回合语义由 meeting/orchestrator 负责。
*/
package handlers
