package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanjio/sanjio/internal/model"
)

// examFile is the YAML layout accepted by seed-exam.
type examFile struct {
	Title           string         `yaml:"title"`
	Description     string         `yaml:"description"`
	DurationMinutes int            `yaml:"duration_minutes"` // 0 or omitted means unlimited
	StartTime       *time.Time     `yaml:"start_time"`
	EndTime         *time.Time     `yaml:"end_time"`
	NegativeMarking bool           `yaml:"negative_marking"`
	Draft           bool           `yaml:"draft"`
	Questions       []questionFile `yaml:"questions"`
}

type questionFile struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
	Correct int      `yaml:"correct"`
	Score   float64  `yaml:"score"`
}

func parseExamFile(r io.Reader) (*examFile, error) {
	var f examFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode exam file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *examFile) validate() error {
	var errs []error
	if f.Title == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if f.DurationMinutes < 0 {
		errs = append(errs, errors.New("duration_minutes must not be negative"))
	}
	if f.StartTime != nil && f.EndTime != nil && !f.EndTime.After(*f.StartTime) {
		errs = append(errs, errors.New("end_time must be after start_time"))
	}
	if len(f.Questions) == 0 {
		errs = append(errs, errors.New("at least one question is required"))
	}
	for i, q := range f.Questions {
		if q.Text == "" {
			errs = append(errs, fmt.Errorf("question %d: text is required", i+1))
		}
		if len(q.Options) < 2 {
			errs = append(errs, fmt.Errorf("question %d: at least two options are required", i+1))
		}
		if q.Correct < 1 || q.Correct > len(q.Options) {
			errs = append(errs, fmt.Errorf("question %d: correct must be between 1 and %d", i+1, len(q.Options)))
		}
	}
	return errors.Join(errs...)
}

// exam converts the file header into a draft exam.
func (f *examFile) exam() *model.Exam {
	e := &model.Exam{
		Title:           f.Title,
		StartTime:       f.StartTime,
		EndTime:         f.EndTime,
		Status:          model.ExamStatusDraft,
		NegativeMarking: f.NegativeMarking,
	}
	if f.Description != "" {
		d := f.Description
		e.Description = &d
	}
	if f.DurationMinutes > 0 {
		d := f.DurationMinutes
		e.DurationMinutes = &d
	}
	return e
}

// questions converts the question list, keeping file order.
func (f *examFile) questions() []model.Question {
	out := make([]model.Question, len(f.Questions))
	for i, q := range f.Questions {
		opts := make([]model.Option, len(q.Options))
		for j, text := range q.Options {
			opts[j] = model.Option{Text: text}
		}
		score := q.Score
		if score == 0 {
			score = 1
		}
		out[i] = model.Question{
			QuestionText:  q.Text,
			Options:       opts,
			CorrectOption: q.Correct,
			Score:         score,
			OrderIndex:    i + 1,
		}
	}
	return out
}
