/*
Package migration 管理会议库的 Schema 版本，基于 golang-migrate。

meetings、meeting_participants、utterances、agent_knowledge 与 agent_memories
五张表的 DDL 按方言（postgres / mysql / sqlite）内嵌在 migrations/ 下。
utterances 上的 (meeting_id, sequence_number) 唯一索引与 gorm 模型保持一致。

  - [DefaultMigrator]：Up / Down / Steps / Goto / Force / Status / Info
  - [CLI]：roundtable migrate 子命令的终端输出
  - [NewMigratorFromDatabaseConfig]：从应用配置创建迁移器

SQLite 连接由 glebarez/go-sqlite 纯 Go 驱动打开，与 gorm 侧共用同一个 "sqlite" 驱动注册，不依赖 CGO。
*/
package migration
