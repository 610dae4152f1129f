package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoroutinePool_SubmitRunsTasks(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 4, QueueSize: 64})

	var done atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error {
			done.Add(1)
			return nil
		}))
	}
	p.Close()

	assert.Equal(t, int32(50), done.Load())
	stats := p.Stats()
	assert.Equal(t, int64(50), stats.Submitted)
	assert.Equal(t, int64(50), stats.Completed)
	assert.LessOrEqual(t, stats.Workers, 4)
}

func TestGoroutinePool_BoundsConcurrency(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 32})
	defer p.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestGoroutinePool_ErrorAndPanicHandlers(t *testing.T) {
	var mu sync.Mutex
	var errs []error
	var panics []any
	p := NewGoroutinePool(GoroutinePoolConfig{
		MaxWorkers:   1,
		QueueSize:    4,
		ErrorHandler: func(err error) { mu.Lock(); errs = append(errs, err); mu.Unlock() },
		PanicHandler: func(r any) { mu.Lock(); panics = append(panics, r); mu.Unlock() },
	})

	boom := errors.New("boom")
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error { return boom }))
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error { panic("kaboom") }))
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, errs[1].Error(), "kaboom")
	assert.Equal(t, []any{"kaboom"}, panics)
	assert.Equal(t, int64(2), p.Stats().Failed)
}

func TestGoroutinePool_SubmitWait(t *testing.T) {
	p := NewGoroutinePool(DefaultGoroutinePoolConfig())
	defer p.Close()

	err := p.SubmitWait(context.Background(), func(ctx context.Context) error { return errors.New("visible") })
	assert.EqualError(t, err, "visible")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = p.SubmitWait(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGoroutinePool_FullAndClosed(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) error { return nil }))

	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, int64(1), p.Stats().Rejected)

	close(release)
	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Submit(context.Background(), func(ctx context.Context) error { return nil }), ErrPoolClosed)
	assert.ErrorIs(t, p.SubmitWait(context.Background(), func(ctx context.Context) error { return nil }), ErrPoolClosed)
	assert.Equal(t, int64(2), p.Stats().Completed)
}

func TestGoroutinePool_ConcurrentSubmitAndClose(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 4, QueueSize: 16})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = p.Submit(context.Background(), func(ctx context.Context) error { return nil })
			}
		}()
	}
	time.Sleep(time.Millisecond)
	assert.NotPanics(t, p.Close)
	wg.Wait()
}
