package mocks

import (
	"sync"
	"time"

	"github.com/BaSui01/roundtable/meeting/events"
)

// RecordingSink 记录所有发布的事件
type RecordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

// NewRecordingSink 创建事件记录器
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Publish 实现 events.Sink
func (s *RecordingSink) Publish(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events 返回事件副本
func (s *RecordingSink) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// Types 按顺序返回事件类型
func (s *RecordingSink) Types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

// WaitFor 等待某类事件出现
func (s *RecordingSink) WaitFor(t events.Type, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, typ := range s.Types() {
			if typ == t {
				return true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
