package events

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/roundtable/internal/metrics"
)

// DefaultBufferSize 发送队列默认容量
const DefaultBufferSize = 256

// Subscription 某场会议的事件订阅
type Subscription struct {
	meetingID string
	ch        chan Event
	dropped   atomic.Int64
}

// C 返回事件通道。Broadcaster 关闭或取消订阅后通道会被关闭。
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped 因订阅者过慢而丢弃的事件数
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Broadcaster 基于有界队列的 Sink 实现
type Broadcaster struct {
	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed atomic.Bool

	dropped atomic.Int64
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewBroadcaster 创建并启动广播器
func NewBroadcaster(bufferSize int, collector *metrics.Collector, logger *zap.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broadcaster{
		queue:   make(chan Event, bufferSize),
		done:    make(chan struct{}),
		subs:    make(map[string]map[*Subscription]struct{}),
		metrics: collector,
		logger:  logger.With(zap.String("component", "broadcaster")),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Publish 实现 Sink：队列满或已关闭时丢弃
func (b *Broadcaster) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.queue <- e:
		b.metrics.RecordEventPublished(string(e.Type))
	default:
		b.dropped.Add(1)
		b.metrics.RecordEventDropped()
		b.logger.Debug("event dropped, queue full",
			zap.String("type", string(e.Type)),
			zap.String("meeting_id", e.MeetingID))
	}
}

// Subscribe 订阅某场会议的事件，buffer 为订阅者自己的缓冲
func (b *Broadcaster) Subscribe(meetingID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 32
	}
	sub := &Subscription{meetingID: meetingID, ch: make(chan Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		close(sub.ch)
		return sub
	}
	if b.subs[meetingID] == nil {
		b.subs[meetingID] = make(map[*Subscription]struct{})
	}
	b.subs[meetingID][sub] = struct{}{}
	return sub
}

// Unsubscribe 取消订阅并关闭通道，可重复调用
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.meetingID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.meetingID)
	}
	close(sub.ch)
}

// Subscribers 某场会议的当前订阅数
func (b *Broadcaster) Subscribers(meetingID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[meetingID])
}

// Dropped 因队列满丢弃的事件总数
func (b *Broadcaster) Dropped() int64 { return b.dropped.Load() }

// Close 停止投递协程并关闭所有订阅，队列中剩余事件会先投递完
func (b *Broadcaster) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	close(b.done)
	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, set := range b.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(b.subs, id)
	}
}

func (b *Broadcaster) run() {
	defer b.wg.Done()
	for {
		select {
		case e := <-b.queue:
			b.deliver(e)
		case <-b.done:
			for {
				select {
				case e := <-b.queue:
					b.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Broadcaster) deliver(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[e.MeetingID] {
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
}
