package jobs

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

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job.Key] = true
		return nil
	}, Config{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{Key: key}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, Config{MaxRetries: 5, RetryBackoff: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Key: "flaky"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, time.Second, 5*time.Millisecond)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("exhaust", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		panic("boom")
	}, Config{MaxRetries: 1, RetryBackoff: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{Key: "bad"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, Config{})
	assert.ErrorIs(t, q.Enqueue(Job{Key: "early"}), ErrQueueStopped)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{Key: "late"}), ErrQueueStopped)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		if job.Key == "first" {
			close(started)
		}
		<-release
		return nil
	}, Config{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{Key: "first"}))
	<-started
	require.NoError(t, q.Enqueue(Job{Key: "second"}))
	assert.ErrorIs(t, q.Enqueue(Job{Key: "third"}), ErrQueueFull)
	assert.Equal(t, 1, q.Pending())
}
