package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("files", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("busy")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "delete"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueReportsExhaustedJobs(t *testing.T) {
	var mu sync.Mutex
	var exhausted []string
	done := make(chan struct{})
	q := NewQueue("files", func(ctx context.Context, job Job) error {
		return errors.New("disk gone")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: 5 * time.Millisecond,
		OnExhausted: func(job Job, err error) {
			mu.Lock()
			exhausted = append(exhausted, job.ID)
			mu.Unlock()
			close(done)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "delete"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exhaustion callback not invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"b"}, exhausted)
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	var processed int32
	q := NewQueue("files", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "c"}))
	}
	q.Stop()
	require.Equal(t, int32(5), atomic.LoadInt32(&processed))
	require.Error(t, q.Enqueue(Job{ID: "late"}))
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("files", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "x"}))
}

func TestQueueFailuresDuringStopDoNotRetry(t *testing.T) {
	var calls int32
	gate := make(chan struct{})
	q := NewQueue("files", func(ctx context.Context, job Job) error {
		<-gate
		atomic.AddInt32(&calls, 1)
		return errors.New("disk gone")
	}, QueueConfig{Workers: 1, BufferSize: 8, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "d"}))
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.stopped
	}, time.Second, time.Millisecond)
	close(gate)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	require.Equal(t, int32(4), atomic.LoadInt32(&calls))
}
