package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/meeting/store"
)

// GormStore 基于 agent_memories 表的持久化记忆
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewGormStore 创建持久化记忆存储
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "memory_store")),
		now:    time.Now,
	}
}

// Recall 实现 Store。命中条目的 last_accessed_at 会被刷新，刷新失败只记日志。
func (s *GormStore) Recall(ctx context.Context, agentID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := s.now()

	var recs []store.MemoryRecord
	err := s.db.WithContext(ctx).
		Where("agent_id = ? AND (expires_at IS NULL OR expires_at > ?)", agentID, now).
		Order("importance DESC, created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("recall memories: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(recs))
	out := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		out[i] = rec.Content
	}

	if err := s.db.WithContext(ctx).
		Model(&store.MemoryRecord{}).
		Where("id IN ?", ids).
		Update("last_accessed_at", now).Error; err != nil {
		s.logger.Warn("failed to touch recalled memories",
			zap.String("agent_id", agentID), zap.Error(err))
	}
	return out, nil
}

// Remember 实现 Store
func (s *GormStore) Remember(ctx context.Context, agentID, content string, opts RememberOptions) error {
	opts, err := normalize(agentID, content, opts)
	if err != nil {
		return err
	}
	now := s.now()
	rec := store.MemoryRecord{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Content:    content,
		Type:       string(opts.Type),
		Importance: opts.Importance,
		MeetingID:  opts.MeetingID,
		ExpiresAt:  expiresAt(now, opts.TTL),
		CreatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("remember: %w", err)
	}
	return nil
}

// NextExpiry 实现 ExpiryReporter
func (s *GormStore) NextExpiry(ctx context.Context, agentID string) (time.Time, bool, error) {
	var rec store.MemoryRecord
	res := s.db.WithContext(ctx).
		Where("agent_id = ? AND expires_at IS NOT NULL AND expires_at > ?", agentID, s.now()).
		Order("expires_at ASC").
		Limit(1).
		Find(&rec)
	if res.Error != nil {
		return time.Time{}, false, fmt.Errorf("next memory expiry: %w", res.Error)
	}
	if res.RowsAffected == 0 || rec.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return *rec.ExpiresAt, true, nil
}

// PurgeExpired 删除已过期条目，返回删除数量
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&store.MemoryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired memories: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("expired memories purged", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
