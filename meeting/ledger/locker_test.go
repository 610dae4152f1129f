package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/roundtable/internal/cache"
	"github.com/BaSui01/roundtable/testutil/fixtures"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "m1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.size())
}

func TestLocalLocker_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "m1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "m1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 不同 key 互不影响
	unlockOther, err := l.Lock(context.Background(), "m2")
	require.NoError(t, err)
	unlockOther()

	unlock()
	unlock()
	assert.Zero(t, l.size())
}

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewManager(cache.Config{Addr: mr.Addr(), KeyPrefix: "rt:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLocker_BlocksUntilReleased(t *testing.T) {
	c := newTestCache(t)
	l := NewRedisLocker(c, RedisLockerConfig{TTL: 5 * time.Second, RetryInterval: 5 * time.Millisecond}, zaptest.NewLogger(t))

	unlock, err := l.Lock(context.Background(), "m1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), "m1")
		if assert.NoError(t, err) {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestRedisLocker_ContextTimeout(t *testing.T) {
	c := newTestCache(t)
	l := NewRedisLocker(c, RedisLockerConfig{RetryInterval: 5 * time.Millisecond}, nil)

	unlock, err := l.Lock(context.Background(), "m1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "m1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLedger_WithRedisLocker(t *testing.T) {
	db := fixtures.NewDB(t)
	c := newTestCache(t)
	l := New(db, NewRedisLocker(c, RedisLockerConfig{RetryInterval: time.Millisecond}, nil), zaptest.NewLogger(t))
	meetingID := uuid.NewString()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Append(context.Background(), meetingID, agentSpeaker("Bob"), "via redis")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := l.After(context.Background(), meetingID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 8)
	for i, u := range all {
		assert.Equal(t, int64(i+1), u.SequenceNumber)
	}
}
