package model

import (
	"github.com/google/uuid"
)

// Option is a single answer choice. Its 1-based position in the option list is
// the value recorded as the candidate's answer.
type Option struct {
	Text string `json:"text" yaml:"text" binding:"required,max=1000"`
}

// Question represents a single exam question as stored.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionText  string    `json:"question_text"`
	Options       []Option  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Score         float64   `json:"score"`
	OrderIndex    int       `json:"order_index"`
}

// CandidateQuestion is a question without the correct answer, sent to candidates.
// It is immutable once loaded into a session.
type CandidateQuestion struct {
	ID         string   `json:"id"`
	Text       string   `json:"question_text"`
	Options    []Option `json:"options"`
	Score      float64  `json:"score"`
	OrderIndex int      `json:"order_index"`
}

// ForCandidate strips the answer key.
func (q *Question) ForCandidate() CandidateQuestion {
	return CandidateQuestion{
		ID:         q.ID.String(),
		Text:       q.QuestionText,
		Options:    q.Options,
		Score:      q.Score,
		OrderIndex: q.OrderIndex,
	}
}

// CreateQuestionRequest is the payload for adding a question to an exam.
// New questions go to the end of the paper.
type CreateQuestionRequest struct {
	QuestionText  string   `json:"question_text" binding:"required,min=3,max=5000"`
	Options       []Option `json:"options" binding:"required,min=2,max=10,dive"`
	CorrectOption int      `json:"correct_option" binding:"required,min=1"`
	Score         *float64 `json:"score" binding:"omitempty,gt=0"`
}

// UpdateQuestionRequest changes a question. Unset fields keep their value.
type UpdateQuestionRequest struct {
	QuestionText  *string  `json:"question_text" binding:"omitempty,min=3,max=5000"`
	Options       []Option `json:"options" binding:"omitempty,min=2,max=10,dive"`
	CorrectOption *int     `json:"correct_option" binding:"omitempty,min=1"`
	Score         *float64 `json:"score" binding:"omitempty,gt=0"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateQuestionRequest) Empty() bool {
	return r.QuestionText == nil && r.Options == nil && r.CorrectOption == nil && r.Score == nil
}

// ReorderQuestionsRequest lists every question id of an exam in the new order.
type ReorderQuestionsRequest struct {
	QuestionIDs []string `json:"question_ids" binding:"required,min=1,dive,uuid"`
}
