package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/model"
)

var _ model.ReplayTracker = (*ReplayTracker)(nil)

// ReplayTracker keeps reuse counters in process. Counters never expire.
type ReplayTracker struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int64
}

func NewReplayTracker() *ReplayTracker {
	return &ReplayTracker{counts: make(map[uuid.UUID]int64)}
}

func (t *ReplayTracker) TrackReuse(_ context.Context, userID uuid.UUID, _ string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[userID]++
	return t.counts[userID], nil
}
