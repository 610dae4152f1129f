// Package types 定义跨包共享的基础类型：统一错误码与上下文键。
//
// 所有越过核心边界的错误都是 *Error，调用方通过 GetErrorCode 判断类别，
// 通过 HTTPStatusFor 映射到 HTTP 状态码。
package types
