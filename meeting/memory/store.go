// Package memory 提供 Agent 记忆的召回与写入。
//
// 召回按重要度降序、创建时间降序取前 K 条，已过期条目不参与召回。
// 重要度与时间只是排序提示，淘汰策略由实现决定。
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/roundtable/meeting"
)

// Store Agent 记忆存储
type Store interface {
	// Recall 返回最重要的 limit 条记忆文本
	Recall(ctx context.Context, agentID string, limit int) ([]string, error)
	// Remember 写入一条记忆
	Remember(ctx context.Context, agentID, content string, opts RememberOptions) error
}

// ExpiryReporter 可报告某 Agent 最早将要过期的条目时间，供缓存层限定有效期。
// 没有会过期的条目时 ok 为 false。
type ExpiryReporter interface {
	NextExpiry(ctx context.Context, agentID string) (at time.Time, ok bool, err error)
}

// RememberOptions 写入参数
type RememberOptions struct {
	Importance float64
	MeetingID  string
	Type       meeting.MemoryType
	// TTL 为 0 表示不过期
	TTL time.Duration
}

// ErrEmptyContent 记忆内容为空
var ErrEmptyContent = errors.New("memory content is empty")

// normalize 校验并补全写入参数
func normalize(agentID, content string, opts RememberOptions) (RememberOptions, error) {
	if agentID == "" {
		return opts, fmt.Errorf("agent id is required")
	}
	if strings.TrimSpace(content) == "" {
		return opts, ErrEmptyContent
	}
	if opts.Type == "" {
		opts.Type = meeting.MemoryEpisodic
	}
	opts.Importance = clamp(opts.Importance)
	return opts, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func expiresAt(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}
