package mocks

import (
	"context"
	"sync"
	"time"
)

// MockSearchClient 是 search.Client 的模拟实现
type MockSearchClient struct {
	mu      sync.Mutex
	result  string
	err     error
	delay   time.Duration
	queries []string
}

// NewMockSearchClient 创建返回固定结果的检索客户端
func NewMockSearchClient(result string) *MockSearchClient {
	return &MockSearchClient{result: result}
}

// WithError 设置返回错误
func (m *MockSearchClient) WithError(err error) *MockSearchClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置延迟，延迟期间尊重 ctx
func (m *MockSearchClient) WithDelay(d time.Duration) *MockSearchClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Search 实现 search.Client
func (m *MockSearchClient) Search(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	result, err, delay := m.result, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

// Queries 返回收到的查询
func (m *MockSearchClient) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
