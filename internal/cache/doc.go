// 版权所有 2024 Roundtable Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存与分布式锁能力。

# 概述

本包封装 go-redis 客户端，为记忆召回缓存与多进程账本锁提供统一入口。
Manager 负责连接生命周期管理，包括初始化、健康检查与优雅关闭。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/Exists/Expire 等基础操作，
    GetJSON/SetJSON 便捷序列化方法，以及 TryLock/Unlock 锁原语。
  - Config：缓存配置，包含地址、密码、连接池大小、默认 TTL、
    键前缀与健康检查间隔等参数。

# 错误语义

缓存未命中返回 ErrCacheMiss，锁被占用返回 ErrLockHeld。
*/
package cache
