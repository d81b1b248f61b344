package optimistic

import (
	"errors"
	"sync"
)

// Status of an optimistic value.
type Status int

const (
	StatusConfirmed Status = iota
	StatusPending
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "confirmed"
	}
}

var ErrPending = errors.New("a change is already pending")

// State is a copy of a Value at one moment. Previous is only meaningful
// while pending; Err only when failed.
type State[T any] struct {
	Status   Status
	Value    T
	Previous T
	Err      error
}

// Value applies a change locally, then settles it with Confirm or Reject.
// Only one change may be pending at a time.
type Value[T any] struct {
	mu    sync.Mutex
	state State[T]
}

func New[T any](initial T) *Value[T] {
	return &Value[T]{state: State[T]{Status: StatusConfirmed, Value: initial}}
}

// Apply shows next immediately and remembers the value it replaced.
func (v *Value[T]) Apply(next T) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Status == StatusPending {
		return ErrPending
	}
	v.state = State[T]{
		Status:   StatusPending,
		Value:    next,
		Previous: v.state.Value,
	}
	return nil
}

// Confirm settles a pending change with the value the server reports.
func (v *Value[T]) Confirm(server T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = State[T]{Status: StatusConfirmed, Value: server}
}

// Reject rolls a pending change back to the previous value.
func (v *Value[T]) Reject(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Status != StatusPending {
		return
	}
	v.state = State[T]{
		Status: StatusFailed,
		Value:  v.state.Previous,
		Err:    err,
	}
}

func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Value
}

func (v *Value[T]) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Status == StatusPending
}

func (v *Value[T]) State() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}
