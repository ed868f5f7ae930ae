package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid-go/pkg/logger"
)

func TestMemoryQueueDelivers(t *testing.T) {
	q := NewMemoryQueue(10, 2, logger.NewNop())
	defer q.Close()

	var mu sync.Mutex
	received := make(map[string]bool)
	done := make(chan struct{})

	require.NoError(t, q.Subscribe(func(ctx context.Context, job Job) error {
		mu.Lock()
		received[job.ExecutionID] = true
		if len(received) == 3 {
			close(done)
		}
		mu.Unlock()
		return nil
	}))

	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, q.Enqueue(ctx, Job{ExecutionID: id, WorkflowID: "wf"}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 3)
}

func TestMemoryQueueEnqueueAfterClose(t *testing.T) {
	q := NewMemoryQueue(1, 1, logger.NewNop())
	require.NoError(t, q.Close())

	err := q.Enqueue(context.Background(), Job{ExecutionID: "e1"})
	assert.Error(t, err)
}

func TestMemoryQueueDoubleSubscribe(t *testing.T) {
	q := NewMemoryQueue(1, 1, logger.NewNop())
	defer q.Close()

	handler := func(ctx context.Context, job Job) error { return nil }
	require.NoError(t, q.Subscribe(handler))
	assert.Error(t, q.Subscribe(handler))
}

func TestMemoryQueueCloseIdempotent(t *testing.T) {
	q := NewMemoryQueue(1, 1, logger.NewNop())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}
