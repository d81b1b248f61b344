package session

import (
	"context"
)

// Snapshot is the durable part of a session. Questions are never part of it:
// they are always fetched again from the backend.
type Snapshot struct {
	ExamID       *string        `json:"examId"`
	Answers      map[string]int `json:"answers"`
	Flagged      []string       `json:"flagged"`
	CurrentIndex int            `json:"currentIndex"`
}

// EmptySnapshot is the snapshot of a store with no active exam.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Answers: map[string]int{},
		Flagged: []string{},
	}
}

// Persistence stores and restores a session snapshot.
//
// Load returns (nil, nil) when nothing has been stored yet.
type Persistence interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Normalize fills nil collections and drops values that cannot be answers.
func (s *Snapshot) Normalize() {
	if s.ExamID != nil && *s.ExamID == "" {
		s.ExamID = nil
	}
	if s.Answers == nil {
		s.Answers = map[string]int{}
	}
	for qid, opt := range s.Answers {
		if opt < 1 {
			delete(s.Answers, qid)
		}
	}
	if s.Flagged == nil {
		s.Flagged = []string{}
	}
	if s.CurrentIndex < 0 {
		s.CurrentIndex = 0
	}
}
