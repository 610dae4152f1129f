package memory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/roundtable/internal/cache"
)

// CachedStore 在 Redis 中缓存召回结果，写入时失效。
// Redis 不可用时直接回源，不影响正确性。
// inner 实现 ExpiryReporter 时，缓存有效期不超过最早过期条目的过期时间；
// 否则按配置的有效期缓存。
type CachedStore struct {
	inner  Store
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

type cachedRecall struct {
	Limit int      `json:"limit"`
	Items []string `json:"items"`
	// ValidUntil 为空表示只受 Redis TTL 约束
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// NewCachedStore 创建带缓存的记忆存储
func NewCachedStore(inner Store, c *cache.Manager, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "memory_cache")),
		now:    time.Now,
	}
}

func recallKey(agentID string) string {
	return "memory:recall:" + agentID
}

// Recall 实现 Store。缓存条目记录了当时的 limit，只有不小于本次 limit 时才命中。
func (s *CachedStore) Recall(ctx context.Context, agentID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	var cached cachedRecall
	err := s.cache.GetJSON(ctx, recallKey(agentID), &cached)
	switch {
	case err == nil:
		fresh := cached.ValidUntil == nil || s.now().Before(*cached.ValidUntil)
		if fresh && (cached.Limit >= limit || len(cached.Items) < cached.Limit) {
			if len(cached.Items) > limit {
				return cached.Items[:limit], nil
			}
			return cached.Items, nil
		}
	case !cache.IsCacheMiss(err):
		s.logger.Warn("recall cache read failed", zap.String("agent_id", agentID), zap.Error(err))
	}

	items, err := s.inner.Recall(ctx, agentID, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, agentID, cachedRecall{Limit: limit, Items: items})
	return items, nil
}

// store 写入缓存，有效期截断到最早过期条目。取不到过期信息时不缓存。
func (s *CachedStore) store(ctx context.Context, agentID string, entry cachedRecall) {
	ttl := s.ttl
	if r, ok := s.inner.(ExpiryReporter); ok {
		next, found, err := r.NextExpiry(ctx, agentID)
		if err != nil {
			s.logger.Warn("memory expiry lookup failed, skipping cache", zap.String("agent_id", agentID), zap.Error(err))
			return
		}
		if found {
			if d := next.Sub(s.now()); d < ttl {
				ttl = d
			}
			entry.ValidUntil = &next
		}
	}
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, recallKey(agentID), entry, ttl); err != nil {
		s.logger.Warn("recall cache write failed", zap.String("agent_id", agentID), zap.Error(err))
	}
}

// Remember 实现 Store
func (s *CachedStore) Remember(ctx context.Context, agentID, content string, opts RememberOptions) error {
	if err := s.inner.Remember(ctx, agentID, content, opts); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, recallKey(agentID)); err != nil {
		s.logger.Warn("recall cache invalidation failed", zap.String("agent_id", agentID), zap.Error(err))
	}
	return nil
}
