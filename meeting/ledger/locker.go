package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/roundtable/internal/cache"
)

// Locker 按会议串行化账本追加。
// Lock 阻塞直到获取锁或 ctx 结束；返回的 unlock 必须调用且只调用一次。
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// =============================================================================
// 🔒 进程内锁
// =============================================================================

// LocalLocker 进程内按 key 的互斥锁，支持 ctx 取消。
// 没有等待者的 key 会被回收。
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Lock 实现 Locker
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(key, slot)
		})
	}, nil
}

func (l *LocalLocker) release(key string, slot *lockSlot) {
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// size 当前持有或等待中的 key 数量
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// =============================================================================
// 🌐 Redis 锁（多进程部署）
// =============================================================================

// RedisLockerConfig Redis 锁配置
type RedisLockerConfig struct {
	// 锁自动过期时间，防止持有者崩溃后死锁
	TTL time.Duration
	// 获取失败后的重试间隔
	RetryInterval time.Duration
}

// DefaultRedisLockerConfig 默认配置
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		TTL:           10 * time.Second,
		RetryInterval: 20 * time.Millisecond,
	}
}

// RedisLocker 基于 SET NX PX 的跨进程锁
type RedisLocker struct {
	cache  *cache.Manager
	config RedisLockerConfig
	logger *zap.Logger
}

// NewRedisLocker 创建 Redis 锁
func NewRedisLocker(c *cache.Manager, config RedisLockerConfig, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultRedisLockerConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	return &RedisLocker{
		cache:  c,
		config: config,
		logger: logger.With(zap.String("component", "ledger_redis_locker")),
	}
}

// Lock 实现 Locker
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := "lock:" + key

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		err := l.cache.TryLock(ctx, lockKey, token, l.config.TTL)
		if err == nil {
			break
		}
		if !errors.Is(err, cache.ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 使用独立 ctx，调用方 ctx 可能已取消
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.cache.Unlock(ctx, lockKey, token); err != nil {
				l.logger.Warn("failed to release ledger lock",
					zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
