// Package api 描述 Roundtable 的 HTTP 接口，处理器实现在 handlers 子包。
//
// # 路由
//
// 会议路由都挂在 /api/v1/workspaces/{workspace}/meetings/{meeting} 下：
//
//	POST .../turns        执行一个发言回合，body {"provider": "openai"}
//	GET  .../transcript   读取记录，?after=N&limit=M
//	POST .../utterances   追加人类发言
//	POST .../{action}     start / pause / resume / end / cancel
//	GET  .../events       WebSocket 实时事件流
//
// 运维端点：/health、/healthz、/ready、/version；指标在独立端口的 /metrics。
//
// # 鉴权
//
// 配置了 jwt.secret 时，请求需携带 Authorization: Bearer <token>，
// token 中的工作区声明必须与路径中的 {workspace} 一致。
//
// # 错误
//
// 失败响应为 {"success": false, "error": {"code": "...", "message": "..."}}，
// code 取自 types.ErrorCode，HTTP 状态按错误码映射（400/403/404/409/429/502/504/500）。
package api
