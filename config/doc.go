// Package config 提供 Roundtable 的配置管理。
//
// 配置按 默认值 → YAML 文件 → ROUNDTABLE_ 前缀环境变量 的顺序叠加，
// 由 Config.Validate 统一校验。Reloader 轮询配置文件并在变更后通知订阅方。
package config
