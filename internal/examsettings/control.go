package examsettings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/optimistic"
)

// Updater persists exam settings on the backend and returns what it stored.
type Updater interface {
	UpdateExamSettings(ctx context.Context, examID string, req model.UpdateExamSettingsRequest) (*model.ExamSettings, error)
}

// Control edits an exam's duration and negative marking optimistically: the
// new value is shown at once and rolled back if the backend refuses it.
type Control struct {
	examID string
	api    Updater
	value  *optimistic.Value[model.ExamSettings]
	log    zerolog.Logger
}

func New(examID string, initial model.ExamSettings, api Updater, log zerolog.Logger) *Control {
	return &Control{
		examID: examID,
		api:    api,
		value:  optimistic.New(initial),
		log: log.With().
			Str("component", "ExamSettingsControl").
			Str("exam_id", examID).
			Logger(),
	}
}

func (c *Control) State() optimistic.State[model.ExamSettings] {
	return c.value.State()
}

// SetNegativeMarking toggles negative marking.
func (c *Control) SetNegativeMarking(ctx context.Context, on bool) error {
	next := c.value.Get()
	next.NegativeMarking = on
	return c.Apply(ctx, next)
}

// SetDuration sets the time limit; minutes <= 0 removes it.
func (c *Control) SetDuration(ctx context.Context, minutes int) error {
	next := c.value.Get()
	if minutes <= 0 {
		next.DurationMinutes = nil
	} else {
		next.DurationMinutes = &minutes
	}
	return c.Apply(ctx, next)
}

// Apply shows next immediately and settles it against the backend.
func (c *Control) Apply(ctx context.Context, next model.ExamSettings) error {
	if err := c.value.Apply(next); err != nil {
		return err
	}

	negative := next.NegativeMarking
	req := model.UpdateExamSettingsRequest{
		DurationMinutes: next.DurationMinutes,
		Unlimited:       next.DurationMinutes == nil,
		NegativeMarking: &negative,
	}

	saved, err := c.api.UpdateExamSettings(ctx, c.examID, req)
	if err != nil {
		c.value.Reject(err)
		c.log.Warn().Err(err).Msg("Settings update rejected, rolled back")
		return fmt.Errorf("update exam settings: %w", err)
	}

	c.value.Confirm(*saved)
	c.log.Info().
		Bool("negative_marking", saved.NegativeMarking).
		Bool("unlimited", saved.DurationMinutes == nil).
		Msg("Settings updated")
	return nil
}
