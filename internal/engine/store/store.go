// Package store holds the engine's two cache key spaces: per-active-workflow
// entries (parsed graph and settings, no expiry) and per-execution entries
// (accumulated node outputs, TTL-bounded).
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
	"github.com/flowgrid-go/pkg/cache"
)

const (
	workflowNamespace  = "wf"
	executionNamespace = "exec"
	runningNamespace   = "running"
	heldNamespace      = "held"
)

// WorkflowStore keeps one entry per active workflow. Entries live until
// explicit deletion on termination.
type WorkflowStore struct {
	cache cache.Cache
	keys  *cache.KeyBuilder
}

func NewWorkflowStore(c cache.Cache) *WorkflowStore {
	return &WorkflowStore{cache: c, keys: cache.NewKeyBuilder(workflowNamespace)}
}

// Set upserts the active snapshot. Reactivation overwrites.
func (s *WorkflowStore) Set(ctx context.Context, active *workflow.ActiveWorkflow) error {
	if err := s.cache.Set(ctx, s.keys.Build(active.WorkflowID), active, 0); err != nil {
		return apperr.External("failed to cache workflow", "store.WorkflowStore.Set", err)
	}
	return nil
}

// Get loads the active snapshot. A miss means the workflow is not live.
func (s *WorkflowStore) Get(ctx context.Context, workflowID string) (*workflow.ActiveWorkflow, error) {
	var active workflow.ActiveWorkflow
	err := s.cache.Get(ctx, s.keys.Build(workflowID), &active)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, apperr.NotFound("workflow is not active", "store.WorkflowStore.Get")
		}
		return nil, apperr.External("failed to read workflow cache", "store.WorkflowStore.Get", err)
	}
	return &active, nil
}

// Delete removes the snapshot. Deleting an absent entry is a no-op.
func (s *WorkflowStore) Delete(ctx context.Context, workflowID string) error {
	if err := s.cache.Delete(ctx, s.keys.Build(workflowID)); err != nil {
		return apperr.External("failed to delete workflow cache", "store.WorkflowStore.Delete", err)
	}
	return nil
}

// ExecutionStore keeps one entry per execution id, TTL-bounded so stalled
// executions are eventually reclaimed.
type ExecutionStore struct {
	cache   cache.Cache
	keys    *cache.KeyBuilder
	running *cache.KeyBuilder
	held    *cache.KeyBuilder
	ttl     time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExecutionStore(c cache.Cache, ttl time.Duration) *ExecutionStore {
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &ExecutionStore{
		cache:   c,
		keys:    cache.NewKeyBuilder(executionNamespace),
		running: cache.NewKeyBuilder(runningNamespace),
		held:    cache.NewKeyBuilder(heldNamespace),
		ttl:     ttl,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Set seeds a fresh execution entry.
func (s *ExecutionStore) Set(ctx context.Context, state *workflow.ExecutionState) error {
	if err := s.cache.Set(ctx, s.keys.Build(state.ExecutionID), state, s.ttl); err != nil {
		return apperr.External("failed to cache execution", "store.ExecutionStore.Set", err)
	}
	return nil
}

// Get loads an execution entry. A miss usually means the TTL expired before
// the queue delivered the job.
func (s *ExecutionStore) Get(ctx context.Context, executionID string) (*workflow.ExecutionState, error) {
	var state workflow.ExecutionState
	err := s.cache.Get(ctx, s.keys.Build(executionID), &state)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, apperr.NotFound("execution not found", "store.ExecutionStore.Get")
		}
		return nil, apperr.External("failed to read execution cache", "store.ExecutionStore.Get", err)
	}
	return &state, nil
}

// Update merges responses into the entry's accumulated outputs. Sibling
// branches may append concurrently, so the merge is read-modify-write under a
// per-execution lock and never a blind overwrite.
func (s *ExecutionStore) Update(ctx context.Context, executionID string, responses map[string]workflow.NodeResponse) error {
	lock := s.lockFor(executionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.Get(ctx, executionID)
	if err != nil {
		return apperr.Push(err, "store.ExecutionStore.Update")
	}

	if state.Responses == nil {
		state.Responses = make(map[string]workflow.NodeResponse, len(responses))
	}
	for nodeID, resp := range responses {
		state.Responses[nodeID] = resp
	}

	if err := s.cache.Set(ctx, s.keys.Build(executionID), state, s.ttl); err != nil {
		return apperr.External("failed to update execution cache", "store.ExecutionStore.Update", err)
	}
	return nil
}

// Delete discards a finished execution entry.
func (s *ExecutionStore) Delete(ctx context.Context, executionID string) error {
	s.mu.Lock()
	delete(s.locks, executionID)
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, s.keys.Build(executionID)); err != nil {
		return apperr.External("failed to delete execution cache", "store.ExecutionStore.Delete", err)
	}
	return nil
}

// MarkRunning flags a workflow as mid-execution for exclusivity admission.
// The flag carries the execution TTL so a crashed worker cannot wedge the
// workflow forever.
func (s *ExecutionStore) MarkRunning(ctx context.Context, workflowID, executionID string) error {
	if err := s.cache.Set(ctx, s.running.Build(workflowID), executionID, s.ttl); err != nil {
		return apperr.External("failed to mark execution running", "store.ExecutionStore.MarkRunning", err)
	}
	return nil
}

// ClearRunning removes the mid-execution flag.
func (s *ExecutionStore) ClearRunning(ctx context.Context, workflowID string) error {
	if err := s.cache.Delete(ctx, s.running.Build(workflowID)); err != nil {
		return apperr.External("failed to clear running flag", "store.ExecutionStore.ClearRunning", err)
	}
	return nil
}

// IsRunning reports whether the workflow has an execution in flight.
func (s *ExecutionStore) IsRunning(ctx context.Context, workflowID string) (bool, error) {
	ok, err := s.cache.Exists(ctx, s.running.Build(workflowID))
	if err != nil {
		return false, apperr.External("failed to check running flag", "store.ExecutionStore.IsRunning", err)
	}
	return ok, nil
}

// MarkHeld indexes a suspended execution by workflow so a later firing of
// the same workflow resumes it instead of starting fresh. Shares the
// execution TTL: once the entry expires the pointer is useless anyway.
func (s *ExecutionStore) MarkHeld(ctx context.Context, workflowID, executionID string) error {
	if err := s.cache.Set(ctx, s.held.Build(workflowID), executionID, s.ttl); err != nil {
		return apperr.External("failed to mark execution held", "store.ExecutionStore.MarkHeld", err)
	}
	return nil
}

// HeldExecution returns the suspended execution id for a workflow, empty
// when there is none.
func (s *ExecutionStore) HeldExecution(ctx context.Context, workflowID string) (string, error) {
	var executionID string
	err := s.cache.Get(ctx, s.held.Build(workflowID), &executionID)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", nil
		}
		return "", apperr.External("failed to read held index", "store.ExecutionStore.HeldExecution", err)
	}
	return executionID, nil
}

// ClearHeld drops the suspended-execution pointer.
func (s *ExecutionStore) ClearHeld(ctx context.Context, workflowID string) error {
	if err := s.cache.Delete(ctx, s.held.Build(workflowID)); err != nil {
		return apperr.External("failed to clear held index", "store.ExecutionStore.ClearHeld", err)
	}
	return nil
}

func (s *ExecutionStore) lockFor(executionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[executionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[executionID] = lock
	}
	return lock
}
