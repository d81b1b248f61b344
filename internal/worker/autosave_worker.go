package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/model"
)

// AnswerWriter persists autosaved answers.
type AnswerWriter interface {
	Upsert(ctx context.Context, participationID, questionID uuid.UUID, option int) error
	Delete(ctx context.Context, participationID, questionID uuid.UUID) error
}

// errMalformedJob marks jobs that can never succeed. They are moved to the
// dead-letter list.
var errMalformedJob = errors.New("malformed autosave job")

// AutosaveWorker consumes persist_answers_queue and writes answers to PostgreSQL.
type AutosaveWorker struct {
	answers    AnswerWriter
	rdb        *redis.Client
	log        zerolog.Logger
	queue      string
	deadLetter string
	pollWait   time.Duration
	retryDelay time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(answers AnswerWriter, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		answers:    answers,
		rdb:        rdb,
		log:        log.With().Str("component", "autosave_worker").Logger(),
		queue:      config.WorkerKey.PersistAnswersQueue,
		deadLetter: config.WorkerKey.PersistAnswersDeadLetter,
		pollWait:   time.Second,
		retryDelay: 5 * time.Second,
	}
}

// Start runs the worker loop until ctx is done, then drains the queue. Call
// in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.WithoutCancel(ctx))
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or pollWait passes.
	result, err := w.rdb.BLPop(ctx, w.pollWait, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	err = w.handle(ctx, result[1])
	switch {
	case err == nil:
	case errors.Is(err, errMalformedJob):
		w.bury(context.WithoutCancel(ctx), result[1], err)
	default:
		w.log.Error().Err(err).Dur("retry_in", w.retryDelay).Msg("Persist error, requeueing")
		w.rdb.RPush(context.WithoutCancel(ctx), w.queue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *AutosaveWorker) handle(ctx context.Context, raw string) error {
	var job model.AutosaveJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("%w: %w", errMalformedJob, err)
	}
	participationID, err := uuid.Parse(job.ParticipationID)
	if err != nil {
		return fmt.Errorf("%w: participation_id: %w", errMalformedJob, err)
	}
	questionID, err := uuid.Parse(job.QuestionID)
	if err != nil {
		return fmt.Errorf("%w: q_id: %w", errMalformedJob, err)
	}
	if job.Option < 0 {
		return fmt.Errorf("%w: negative option %d", errMalformedJob, job.Option)
	}

	if job.Option == 0 {
		return w.answers.Delete(ctx, participationID, questionID)
	}
	return w.answers.Upsert(ctx, participationID, questionID, job.Option)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		if err := w.handle(ctx, raw); err != nil {
			if errors.Is(err, errMalformedJob) {
				w.bury(ctx, raw, err)
				continue
			}
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

// bury moves a job that can never be applied to the dead-letter list.
func (w *AutosaveWorker) bury(ctx context.Context, raw string, cause error) {
	w.log.Error().Err(cause).Str("job", raw).Msg("Moving job to dead-letter list")
	if err := w.rdb.RPush(ctx, w.deadLetter, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("Dead-letter push failed, job lost")
	}
}
