package model

import (
	"time"

	"github.com/google/uuid"
)

// ParticipationStatus enumerates attempt states.
type ParticipationStatus string

const (
	ParticipationNone       ParticipationStatus = "none"
	ParticipationInProgress ParticipationStatus = "in_progress"
	ParticipationFinished   ParticipationStatus = "finished"
)

// Participation represents one candidate's attempt at one exam.
type Participation struct {
	ID         uuid.UUID           `json:"id"`
	ExamID     uuid.UUID           `json:"exam_id"`
	UserID     uuid.UUID           `json:"user_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Status     ParticipationStatus `json:"status"`
	Answers    map[string]int      `json:"answers,omitempty"`
}

// AttemptRef identifies an attempt and its authoritative start time.
type AttemptRef struct {
	AttemptID string              `json:"attempt_id"`
	StartedAt time.Time           `json:"started_at"`
	Status    ParticipationStatus `json:"status"`
}

// AttemptPaper is the ordered question list of a running attempt.
type AttemptPaper struct {
	AttemptID string              `json:"attempt_id"`
	StartedAt time.Time           `json:"started_at"`
	Questions []CandidateQuestion `json:"questions"`
}

// FinishAttemptRequest carries the final answer map (question id → 1-based option).
type FinishAttemptRequest struct {
	Answers map[string]int `json:"answers" binding:"omitempty,dive,keys,uuid,endkeys,min=1"`
}

// FinishAttemptResponse acknowledges a finished attempt.
type FinishAttemptResponse struct {
	AttemptID       string              `json:"attempt_id"`
	Status          ParticipationStatus `json:"status"`
	FinishedAt      time.Time           `json:"finished_at"`
	AlreadyFinished bool                `json:"already_finished"`
}

// AutosaveJob is one queued answer change awaiting persistence. Option 0
// means the answer was cleared.
type AutosaveJob struct {
	ParticipationID string `json:"participation_id"`
	QuestionID      string `json:"q_id"`
	Option          int    `json:"option"`
}
