package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/roundtable/meeting"
)

// InMemoryStore 进程内记忆存储，用于开发与测试
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]meeting.MemoryEntry
	now     func() time.Time
}

// NewInMemoryStore 创建进程内记忆存储
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]meeting.MemoryEntry),
		now:     time.Now,
	}
}

// Recall 实现 Store
func (s *InMemoryStore) Recall(_ context.Context, agentID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entries := s.entries[agentID]
	idx := make([]int, 0, len(entries))
	for i, e := range entries {
		if !e.Expired(now) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := entries[idx[a]], entries[idx[b]]
		if ea.Importance != eb.Importance {
			return ea.Importance > eb.Importance
		}
		return ea.CreatedAt.After(eb.CreatedAt)
	})
	if len(idx) > limit {
		idx = idx[:limit]
	}

	out := make([]string, len(idx))
	for i, j := range idx {
		t := now
		entries[j].LastAccessedAt = &t
		out[i] = entries[j].Content
	}
	return out, nil
}

// Remember 实现 Store
func (s *InMemoryStore) Remember(_ context.Context, agentID, content string, opts RememberOptions) error {
	opts, err := normalize(agentID, content, opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[agentID] = append(s.entries[agentID], meeting.MemoryEntry{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Content:    content,
		Type:       opts.Type,
		Importance: opts.Importance,
		MeetingID:  opts.MeetingID,
		ExpiresAt:  expiresAt(now, opts.TTL),
		CreatedAt:  now,
	})
	return nil
}

// NextExpiry 实现 ExpiryReporter
func (s *InMemoryStore) NextExpiry(_ context.Context, agentID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var (
		next  time.Time
		found bool
	)
	for _, e := range s.entries[agentID] {
		if e.ExpiresAt == nil || e.Expired(now) {
			continue
		}
		if !found || e.ExpiresAt.Before(next) {
			next, found = *e.ExpiresAt, true
		}
	}
	return next, found, nil
}

// Entries 返回某 Agent 的全部条目副本
func (s *InMemoryStore) Entries(agentID string) []meeting.MemoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]meeting.MemoryEntry, len(s.entries[agentID]))
	copy(out, s.entries[agentID])
	return out
}
