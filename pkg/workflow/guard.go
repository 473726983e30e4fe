package workflow

import (
	"context"
	"sync"
)

// Guard keeps at most one graph walk in flight per execution id.
type Guard interface {
	// Acquire claims id and reports false when another walk already holds it.
	Acquire(ctx context.Context, executionID string) (bool, error)
	Release(ctx context.Context, executionID string) error
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, executionID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.inFlight[executionID]; held {
		return false, nil
	}

	g.inFlight[executionID] = struct{}{}

	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, executionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inFlight, executionID)

	return nil
}

// Held reports whether id is currently claimed.
func (g *MemoryGuard) Held(executionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, held := g.inFlight[executionID]

	return held
}
