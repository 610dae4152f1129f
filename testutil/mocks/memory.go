// =============================================================================
// 🧠 MockMemoryStore - 记忆存储模拟实现
// =============================================================================
// 用于测试的 memory.Store 模拟，记录写入并支持错误注入
//
// 使用方法:
//
//	mem := mocks.NewMockMemoryStore().WithRecall("agent-1", "earlier note")
//	mem.WithRememberError(errors.New("db down"))
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/roundtable/meeting/memory"
)

// RememberCall 一次写入记录
type RememberCall struct {
	AgentID string
	Content string
	Options memory.RememberOptions
}

// MockMemoryStore 是 memory.Store 的模拟实现
type MockMemoryStore struct {
	mu sync.RWMutex

	recall      map[string][]string
	remembered  []RememberCall
	recallErr   error
	rememberErr error
	recallCalls int

	// 写入时通知，便于等待异步写入
	notify chan RememberCall
}

// NewMockMemoryStore 创建新的 MockMemoryStore
func NewMockMemoryStore() *MockMemoryStore {
	return &MockMemoryStore{
		recall: make(map[string][]string),
		notify: make(chan RememberCall, 64),
	}
}

// WithRecall 预置召回结果
func (m *MockMemoryStore) WithRecall(agentID string, items ...string) *MockMemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recall[agentID] = items
	return m
}

// WithRecallError 设置召回错误
func (m *MockMemoryStore) WithRecallError(err error) *MockMemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recallErr = err
	return m
}

// WithRememberError 设置写入错误
func (m *MockMemoryStore) WithRememberError(err error) *MockMemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rememberErr = err
	return m
}

// Recall 实现 memory.Store
func (m *MockMemoryStore) Recall(_ context.Context, agentID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recallCalls++
	if m.recallErr != nil {
		return nil, m.recallErr
	}
	items := m.recall[agentID]
	if limit < len(items) {
		items = items[:limit]
	}
	return append([]string(nil), items...), nil
}

// Remember 实现 memory.Store。出错时同样记录并通知。
func (m *MockMemoryStore) Remember(_ context.Context, agentID, content string, opts memory.RememberOptions) error {
	call := RememberCall{AgentID: agentID, Content: content, Options: opts}
	m.mu.Lock()
	err := m.rememberErr
	if err == nil {
		m.remembered = append(m.remembered, call)
	}
	m.mu.Unlock()

	select {
	case m.notify <- call:
	default:
	}
	return err
}

// Remembered 返回成功写入的记录
func (m *MockMemoryStore) Remembered() []RememberCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RememberCall, len(m.remembered))
	copy(out, m.remembered)
	return out
}

// RecallCalls 召回次数
func (m *MockMemoryStore) RecallCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recallCalls
}

// Notify 每次 Remember 调用都会发送到该通道（满时丢弃）
func (m *MockMemoryStore) Notify() <-chan RememberCall {
	return m.notify
}
