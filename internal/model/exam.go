package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the authoring states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusPublished ExamStatus = "published"
)

// Availability is the time-window state of an exam as seen by a candidate.
type Availability string

const (
	AvailabilityUpcoming Availability = "upcoming"
	AvailabilityActive   Availability = "active"
	AvailabilityExpired  Availability = "expired"
)

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	DurationMinutes *int       `json:"duration_minutes"` // nil means unlimited
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          ExamStatus `json:"status"`
	NegativeMarking bool       `json:"negative_marking"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// AvailabilityAt reports whether the exam window is upcoming, active or expired at now.
func (e *Exam) AvailabilityAt(now time.Time) Availability {
	if e.StartTime != nil && e.StartTime.After(now) {
		return AvailabilityUpcoming
	}
	if e.EndTime != nil && e.EndTime.Before(now) {
		return AvailabilityExpired
	}
	return AvailabilityActive
}

// ExamInfo is the candidate-facing exam metadata.
type ExamInfo struct {
	ID                  uuid.UUID           `json:"id"`
	Title               string              `json:"title"`
	Description         *string             `json:"description,omitempty"`
	DurationMinutes     *int                `json:"duration_minutes"`
	StartTime           *time.Time          `json:"start_time,omitempty"`
	EndTime             *time.Time          `json:"end_time,omitempty"`
	QuestionCount       int                 `json:"question_count"`
	HasNegativeMarking  bool                `json:"has_negative_marking"`
	Status              Availability        `json:"status"`
	ParticipationStatus ParticipationStatus `json:"participation_status"`
}

// Unlimited reports whether the exam has no time limit.
func (i *ExamInfo) Unlimited() bool {
	return i.DurationMinutes == nil || *i.DurationMinutes <= 0
}

// ExamSettings are the admin-tunable exam options.
type ExamSettings struct {
	DurationMinutes *int `json:"duration_minutes"`
	NegativeMarking bool `json:"negative_marking"`
}

// UpdateExamSettingsRequest is the payload for changing exam settings.
// Unlimited clears the duration; it wins over DurationMinutes.
type UpdateExamSettingsRequest struct {
	DurationMinutes *int  `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
	Unlimited       bool  `json:"unlimited"`
	NegativeMarking *bool `json:"negative_marking"`
}

// CreateExamRequest is the payload for creating a draft exam.
type CreateExamRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=100"`
	Description     *string    `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes *int       `json:"duration_minutes" binding:"omitempty,min=1,max=1440"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	NegativeMarking bool       `json:"negative_marking"`
}
