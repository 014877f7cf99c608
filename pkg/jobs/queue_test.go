package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	done := make(chan struct{}, 2)

	q := NewQueue(func(ctx context.Context, jobID string) error {
		mu.Lock()
		seen[jobID]++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, 2, 0, zap.NewNop())

	q.Start()
	defer q.Stop()

	assert.True(t, q.Enqueue("a"))
	assert.True(t, q.Enqueue("b"))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen["a"])
	assert.Equal(t, 1, seen["b"])
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	q := NewQueue(func(ctx context.Context, jobID string) error {
		mu.Lock()
		attempts++
		current := attempts
		mu.Unlock()
		if current < 2 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}, 1, 1, zap.NewNop())
	q.retryDelay = 10 * time.Millisecond

	q.Start()
	defer q.Stop()

	assert.True(t, q.Enqueue("flaky"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue(func(ctx context.Context, jobID string) error { return nil }, 1, 0, zap.NewNop())
	q.Start()
	q.Stop()

	assert.False(t, q.Enqueue("late"))
}
