package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, IndexingPoolConfig().Validate())
	assert.NoError(t, BackgroundPoolConfig().Validate())
	assert.ErrorIs(t, (&Config{Capacity: 0}).Validate(), ErrInvalidPoolConfig)
	assert.ErrorIs(t, (&Config{Capacity: 1, MaxBlockingTasks: -1}).Validate(), ErrInvalidPoolConfig)

	_, err := NewPool("bad", IndexingPool, &Config{})
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestSubmitRunsTasks(t *testing.T) {
	p, err := NewPool("test", IndexingPool, &Config{Capacity: 3, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	var wg sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(20), count.Load())
	require.Eventually(t, func() bool { return p.Stats().Completed == 20 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(20), p.Stats().Submitted)
	assert.Equal(t, 3, p.Cap())
}

func TestSubmitNonblockingOverload(t *testing.T) {
	p, err := NewPool("tiny", BackgroundPool, &Config{Capacity: 1, ExpiryDuration: time.Second, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolOverload)
	assert.Equal(t, int64(1), p.Stats().Rejected)
	close(block)
}

func TestSubmitWithContextSkipsCancelled(t *testing.T) {
	p, err := NewPool("ctx", IndexingPool, &Config{Capacity: 1, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func(context.Context) {}), context.Canceled)

	done := make(chan struct{})
	require.NoError(t, p.SubmitWithContext(context.Background(), func(ctx context.Context) {
		assert.NoError(t, ctx.Err())
		close(done)
	}))
	<-done
}

func TestPanicIsRecovered(t *testing.T) {
	recovered := make(chan interface{}, 1)
	p, err := NewPool("panic", IndexingPool, &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
		PanicHandler:   func(v interface{}) { recovered <- v },
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	assert.Equal(t, "boom", <-recovered)
	assert.Equal(t, int64(1), p.Stats().Panics)

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	<-done
}

func TestReleaseRejectsNewTasks(t *testing.T) {
	p, err := NewPool("closing", IndexingPool, &Config{Capacity: 2, ExpiryDuration: time.Second})
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		ran.Store(true)
	}))
	require.NoError(t, p.ReleaseTimeout(time.Second))
	assert.True(t, ran.Load(), "graceful release waits for running tasks")

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
	assert.NoError(t, p.ReleaseTimeout(time.Second))
	p.Release()
}

func TestManager(t *testing.T) {
	m := NewManager()
	idx, err := m.Register(IndexingPool, &Config{Capacity: 2, ExpiryDuration: time.Second})
	require.NoError(t, err)
	_, err = m.Register(BackgroundPool, nil)
	require.NoError(t, err)

	_, err = m.Register(IndexingPool, nil)
	assert.ErrorIs(t, err, ErrPoolAlreadyExists)

	got, err := m.Get("indexing")
	require.NoError(t, err)
	assert.Same(t, idx, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrPoolNotFound)

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "background", stats[0].Name)
	assert.Equal(t, "indexing", stats[1].Name)

	require.NoError(t, m.ReleaseAllTimeout(time.Second))
	_, err = m.Register("late", nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
}
