// Package telemetry 初始化 OpenTelemetry SDK（OTLP gRPC 链路与指标导出）。
package telemetry
