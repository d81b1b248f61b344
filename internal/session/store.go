package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
)

const defaultSaveTimeout = 2 * time.Second

// Listener receives a copy of the state after every change.
type Listener func(State)

type subscription struct {
	id int
	fn Listener
}

// Store holds the candidate's in-progress exam. All methods are safe for
// concurrent use. Every mutation except ToggleSidebar is written through to
// the Persistence before the method returns.
type Store struct {
	mu          sync.Mutex
	persistence Persistence
	log         zerolog.Logger
	saveTimeout time.Duration

	examID      string
	questions   []model.CandidateQuestion
	answers     map[string]int
	flagged     []string
	current     int
	sidebarOpen bool

	subs            []subscription
	nextSubID       int
	persistFailures int
}

// Option configures a Store.
type Option func(*Store)

// WithSaveTimeout bounds each write to the persistence backend.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.saveTimeout = d
		}
	}
}

// New creates an empty store. It does not read persisted state; call Hydrate.
func New(p Persistence, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		persistence: p,
		log:         log.With().Str("component", "ExamSessionStore").Logger(),
		saveTimeout: defaultSaveTimeout,
		answers:     map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the durable fields with the persisted snapshot, if any.
// Questions stay empty until the next Initialize.
func (s *Store) Hydrate(ctx context.Context) error {
	snap, err := s.persistence.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}
	snap.Normalize()

	s.apply(false, func() {
		s.examID = ""
		if snap.ExamID != nil {
			s.examID = *snap.ExamID
		}
		s.questions = nil
		s.answers = maps.Clone(snap.Answers)
		s.flagged = slices.Clone(snap.Flagged)
		s.current = snap.CurrentIndex
	})

	examID := "none"
	if snap.ExamID != nil {
		examID = *snap.ExamID
	}
	s.log.Debug().
		Str("exam_id", examID).
		Int("answers", len(snap.Answers)).
		Msg("Session hydrated from snapshot")
	return nil
}

// Initialize loads a paper. A different exam id wipes all prior progress;
// the same exam id keeps answers, flags and position for questions that are
// still on the paper.
//
// A same-exam reload is not a plain question swap: answers and flags for ids
// the paper no longer carries are dropped and the position is clamped onto
// the new paper, so every recorded id refers to a loaded question.
func (s *Store) Initialize(examID string, questions []model.CandidateQuestion) {
	s.apply(true, func() {
		qs := slices.Clone(questions)
		if s.examID != examID {
			if s.examID != "" {
				s.log.Info().
					Str("previous_exam_id", s.examID).
					Str("exam_id", examID).
					Msg("New exam detected, clearing previous progress")
			}
			s.examID = examID
			s.questions = qs
			s.answers = map[string]int{}
			s.flagged = nil
			s.current = 0
			s.sidebarOpen = false
			return
		}
		s.questions = qs
		s.pruneLocked()
	})
}

// pruneLocked drops progress for questions no longer on the paper. An empty
// paper is rejected upstream, so progress is kept as-is in that case.
func (s *Store) pruneLocked() {
	if len(s.questions) == 0 {
		return
	}
	ids := make(map[string]struct{}, len(s.questions))
	for _, q := range s.questions {
		ids[q.ID] = struct{}{}
	}
	for qid := range s.answers {
		if _, ok := ids[qid]; !ok {
			delete(s.answers, qid)
		}
	}
	s.flagged = slices.DeleteFunc(s.flagged, func(qid string) bool {
		_, ok := ids[qid]
		return !ok
	})
	if s.current >= len(s.questions) {
		s.current = len(s.questions) - 1
	}
	if s.current < 0 {
		s.current = 0
	}
}

// SetAnswer records option for a question. Selecting the recorded option
// again clears the answer.
func (s *Store) SetAnswer(questionID string, option int) {
	s.apply(true, func() {
		if prev, ok := s.answers[questionID]; ok && prev == option {
			delete(s.answers, questionID)
			return
		}
		s.answers[questionID] = option
	})
}

// ToggleFlag marks or unmarks a question for review.
func (s *Store) ToggleFlag(questionID string) {
	s.apply(true, func() {
		if i := slices.Index(s.flagged, questionID); i >= 0 {
			s.flagged = slices.Delete(s.flagged, i, i+1)
			return
		}
		s.flagged = append(s.flagged, questionID)
	})
}

// GoToQuestion moves the pointer without bounds checking. Callers pass an
// index taken from the paper.
func (s *Store) GoToQuestion(index int) {
	s.apply(true, func() {
		s.current = index
	})
}

// NextQuestion advances the pointer, stopping at the last question.
func (s *Store) NextQuestion() {
	s.apply(true, func() {
		if len(s.questions) == 0 {
			return
		}
		s.current = min(s.current+1, len(s.questions)-1)
	})
}

// PrevQuestion moves the pointer back, stopping at the first question.
func (s *Store) PrevQuestion() {
	s.apply(true, func() {
		s.current = max(s.current-1, 0)
	})
}

// ToggleSidebar flips the navigator visibility. It is not persisted.
func (s *Store) ToggleSidebar() {
	s.apply(false, func() {
		s.sidebarOpen = !s.sidebarOpen
	})
}

// Reset returns the store to its empty state and persists that.
func (s *Store) Reset() {
	s.apply(true, func() {
		s.examID = ""
		s.questions = nil
		s.answers = map[string]int{}
		s.flagged = nil
		s.current = 0
		s.sidebarOpen = false
	})
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Snapshot returns the durable part of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// PersistFailures counts saves that returned an error since New.
func (s *Store) PersistFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistFailures
}

// Subscribe registers fn to run after every change. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool {
			return sub.id == id
		})
	}
}

// apply runs fn under the lock, optionally persists, then notifies
// subscribers outside the lock.
func (s *Store) apply(persist bool, fn func()) {
	s.mu.Lock()
	fn()
	if persist {
		s.saveLocked()
	}
	st := s.stateLocked()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(st)
	}
}

// saveLocked writes the snapshot while holding the lock so saves land in
// mutation order. Failures never reach the caller.
func (s *Store) saveLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	if err := s.persistence.Save(ctx, s.snapshotLocked()); err != nil {
		s.persistFailures++
		s.log.Warn().Err(err).
			Str("exam_id", s.examIDForLog()).
			Msg("Failed to persist session snapshot")
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := EmptySnapshot()
	if s.examID != "" {
		id := s.examID
		snap.ExamID = &id
	}
	maps.Copy(snap.Answers, s.answers)
	snap.Flagged = append(snap.Flagged, s.flagged...)
	snap.CurrentIndex = s.current
	return snap
}

func (s *Store) stateLocked() State {
	return State{
		ExamID:       s.examID,
		Questions:    slices.Clone(s.questions),
		Answers:      maps.Clone(s.answers),
		Flagged:      slices.Clone(s.flagged),
		CurrentIndex: s.current,
		SidebarOpen:  s.sidebarOpen,
	}
}

func (s *Store) examIDForLog() string {
	if s.examID == "" {
		return "none"
	}
	return s.examID
}
