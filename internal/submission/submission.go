package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/session"
)

// Phase is the attempt lifecycle as seen by the client.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	PhaseSubmitting
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseInProgress:
		return "in_progress"
	case PhaseSubmitting:
		return "submitting"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Trigger says who asked for the submission.
type Trigger int

const (
	TriggerExplicit Trigger = iota
	TriggerExpiry
)

func (t Trigger) String() string {
	if t == TriggerExpiry {
		return "expiry"
	}
	return "explicit"
}

var (
	ErrInFlight      = errors.New("submission already in flight")
	ErrTimeUp        = errors.New("time is up")
	ErrNotInProgress = errors.New("no attempt in progress")
)

// Error is a failed finish call.
type Error struct {
	Trigger Trigger
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s submission failed: %v", e.Trigger, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the candidate may keep answering and try again.
func (e *Error) Retryable() bool { return e.Trigger == TriggerExplicit }

// Message is the candidate-facing explanation.
func (e *Error) Message() string {
	if e.Retryable() {
		return "Submitting failed. Your answers are still here, you may retry."
	}
	return "Time is up. Your exam has ended even though the final submission could not be confirmed."
}

// Finisher closes an attempt on the backend.
type Finisher interface {
	FinishAttempt(ctx context.Context, attemptID string, answers map[string]int) (*model.FinishAttemptResponse, error)
}

// Store is the part of the session store a submission needs.
type Store interface {
	State() session.State
	Reset()
}

// Submitter drives one attempt from in progress to finished. At most one
// finish call is outstanding at a time.
type Submitter struct {
	finisher  Finisher
	store     Store
	attemptID string
	log       zerolog.Logger

	mu            sync.Mutex
	phase         Phase
	expiryLatched bool
	result        *model.FinishAttemptResponse
}

func New(finisher Finisher, store Store, attemptID string, log zerolog.Logger) *Submitter {
	return &Submitter{
		finisher:  finisher,
		store:     store,
		attemptID: attemptID,
		log: log.With().
			Str("component", "Submitter").
			Str("attempt_id", attemptID).
			Logger(),
	}
}

// Begin marks the attempt as in progress. Calls after the first do nothing.
func (s *Submitter) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseNotStarted {
		s.phase = PhaseInProgress
	}
}

func (s *Submitter) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Inert reports whether the submit control must be disabled.
func (s *Submitter) Inert() bool {
	return s.Phase() != PhaseInProgress
}

// Result returns the backend acknowledgement after a successful submission.
func (s *Submitter) Result() *model.FinishAttemptResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Submit sends the current answers to the backend.
//
// An explicit submit while another is in flight returns ErrInFlight. An
// expiry during an in-flight submit is remembered: if that submit fails, it
// fails as time up. Submitting a finished attempt is a no-op.
func (s *Submitter) Submit(ctx context.Context, trigger Trigger) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseNotStarted:
		s.mu.Unlock()
		return ErrNotInProgress
	case PhaseFinished:
		s.mu.Unlock()
		return nil
	case PhaseSubmitting:
		if trigger == TriggerExpiry {
			s.expiryLatched = true
			s.log.Info().Msg("Deadline reached while submission in flight")
		}
		s.mu.Unlock()
		return ErrInFlight
	}
	s.phase = PhaseSubmitting
	s.mu.Unlock()

	answers := s.store.State().Answers
	if answers == nil {
		answers = map[string]int{}
	}

	s.log.Info().
		Str("trigger", trigger.String()).
		Int("answers", len(answers)).
		Msg("Submitting attempt")

	res, err := s.finisher.FinishAttempt(ctx, s.attemptID, answers)

	s.mu.Lock()
	if err == nil {
		s.phase = PhaseFinished
		s.result = res
		s.mu.Unlock()
		s.store.Reset()
		s.log.Info().Str("trigger", trigger.String()).Msg("Attempt finished")
		return nil
	}

	if trigger == TriggerExpiry || s.expiryLatched {
		s.phase = PhaseFinished
		s.mu.Unlock()
		s.store.Reset()
		s.log.Error().Err(err).Msg("Finish failed after deadline, leaving exam")
		return &Error{Trigger: TriggerExpiry, Err: fmt.Errorf("%w: %w", ErrTimeUp, err)}
	}

	s.phase = PhaseInProgress
	s.mu.Unlock()
	s.log.Warn().Err(err).Msg("Finish failed, candidate may retry")
	return &Error{Trigger: TriggerExplicit, Err: err}
}
