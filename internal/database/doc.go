/*
包 database 负责打开 GORM 数据库连接并管理连接池。

# 核心类型

  - Open / Dialector：按驱动名（postgres、mysql、sqlite）创建连接，
    sqlite 使用纯 Go 的 glebarez/sqlite。SQL 慢查询与错误日志写入 zap。
  - PoolManager：设置连接池参数，后台定时探活并把打开与空闲连接数上报到指标。
  - PoolConfig：最大打开、空闲连接数，连接生命周期与健康检查间隔。

就绪检查通过 PoolManager.Ping 实现。
*/
package database
