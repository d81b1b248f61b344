package snapshot

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/sanjio/sanjio/internal/session"
)

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	snap  *session.Snapshot
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*session.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	cp := clone(*m.snap)
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, snap session.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clone(snap)
	m.snap = &cp
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func clone(s session.Snapshot) session.Snapshot {
	out := session.Snapshot{
		Answers:      maps.Clone(s.Answers),
		Flagged:      slices.Clone(s.Flagged),
		CurrentIndex: s.CurrentIndex,
	}
	if s.ExamID != nil {
		id := *s.ExamID
		out.ExamID = &id
	}
	return out
}
