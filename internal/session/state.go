package session

import (
	"slices"

	"github.com/sanjio/sanjio/internal/model"
)

// State is a read-only copy of the store. Every derived view is computed from
// Answers and Flagged on each call.
type State struct {
	ExamID       string
	Questions    []model.CandidateQuestion
	Answers      map[string]int
	Flagged      []string
	CurrentIndex int
	SidebarOpen  bool
}

// Active reports whether an exam is loaded.
func (st State) Active() bool { return st.ExamID != "" }

func (st State) AnsweredCount() int { return len(st.Answers) }

func (st State) FlaggedCount() int { return len(st.Flagged) }

func (st State) UnansweredCount() int { return len(st.Questions) - len(st.Answers) }

func (st State) IsAnswered(questionID string) bool {
	_, ok := st.Answers[questionID]
	return ok
}

func (st State) IsFlagged(questionID string) bool {
	return slices.Contains(st.Flagged, questionID)
}

// AnswerFor returns the 1-based option recorded for a question.
func (st State) AnswerFor(questionID string) (int, bool) {
	opt, ok := st.Answers[questionID]
	return opt, ok
}

// Current returns the question under the pointer.
func (st State) Current() (model.CandidateQuestion, bool) {
	if st.CurrentIndex < 0 || st.CurrentIndex >= len(st.Questions) {
		return model.CandidateQuestion{}, false
	}
	return st.Questions[st.CurrentIndex], true
}

func (st State) IsFirst() bool { return st.CurrentIndex == 0 }

func (st State) IsLast() bool { return st.CurrentIndex == len(st.Questions)-1 }

// Progress is the answered share of the paper in [0, 1].
func (st State) Progress() float64 {
	if len(st.Questions) == 0 {
		return 0
	}
	return float64(len(st.Answers)) / float64(len(st.Questions))
}
