// Package tlsutil 为出站 HTTP 客户端（模型 Provider、检索 API）提供统一的 TLS 与连接池设置。
package tlsutil
