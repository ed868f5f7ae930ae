package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/metrics"
)

// MemoryQueue is the channel-backed queue used in single-process deployments
// and tests. Jobs are delivered by a fixed pool of worker goroutines.
type MemoryQueue struct {
	jobs    chan Job
	workers int
	logger  logger.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewMemoryQueue(buffer, workers int, log logger.Logger) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1000
	}
	if workers <= 0 {
		workers = 4
	}
	return &MemoryQueue{
		jobs:    make(chan Job, buffer),
		workers: workers,
		logger:  log,
		stopCh:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		metrics.QueueDepth.Set(float64(len(q.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Subscribe(handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("queue already subscribed")
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i+1, handler)
	}
	return nil
}

func (q *MemoryQueue) worker(id int, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(q.jobs)))
			if err := handler(context.Background(), job); err != nil {
				q.logger.Error("job handling failed",
					"worker", id,
					"executionId", job.ExecutionID,
					"workflowId", job.WorkflowID,
					"error", err)
			}
		case <-q.stopCh:
			return
		}
	}
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
	return nil
}

// Depth reports the number of jobs waiting. Used by tests.
func (q *MemoryQueue) Depth() int {
	return len(q.jobs)
}
