package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/model"
)

type participationStore interface {
	participationReader
	GetByID(ctx context.Context, id uuid.UUID) (*model.Participation, error)
	Create(ctx context.Context, p *model.Participation) error
	Finish(ctx context.Context, id, userID uuid.UUID, answers map[string]int) (time.Time, error)
}

type answerLister interface {
	ListByParticipation(ctx context.Context, participationID uuid.UUID) (map[string]int, error)
}

// AttemptService handles the attempt lifecycle: start, paper, autosave and finish.
type AttemptService struct {
	exams             *ExamService
	participationRepo participationStore
	answerRepo        answerLister
	rdb               *redis.Client
	log               zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	exams *ExamService,
	participationRepo participationStore,
	answerRepo answerLister,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		exams:             exams,
		participationRepo: participationRepo,
		answerRepo:        answerRepo,
		rdb:               rdb,
		log:               log.With().Str("component", "AttemptService").Logger(),
	}
}

func refOf(p *model.Participation) *model.AttemptRef {
	return &model.AttemptRef{
		AttemptID: p.ID.String(),
		StartedAt: p.StartedAt,
		Status:    p.Status,
	}
}

// Start opens an attempt for the user. Calling it again returns the existing
// attempt unchanged, whatever its status.
func (s *AttemptService) Start(ctx context.Context, examID, userID uuid.UUID) (*model.AttemptRef, error) {
	exam, err := s.exams.GetPublished(ctx, examID)
	if err != nil {
		return nil, err
	}

	existing, err := s.participationRepo.GetByExamAndUser(ctx, examID, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		s.cacheStart(ctx, existing)
		return refOf(existing), nil
	}

	switch exam.AvailabilityAt(s.exams.now()) {
	case model.AvailabilityUpcoming:
		return nil, ErrExamUpcoming
	case model.AvailabilityExpired:
		return nil, ErrExamExpired
	}

	count, err := s.exams.questionRepo.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		return nil, ErrNoQuestions
	}

	p := &model.Participation{ExamID: examID, UserID: userID}
	if err := s.participationRepo.Create(ctx, p); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
		// Concurrent start from another device.
		p, err = s.participationRepo.GetByExamAndUser(ctx, examID, userID)
		if err != nil {
			return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", err)
		}
	}

	s.cacheStart(ctx, p)
	s.log.Info().
		Str("exam_id", examID.String()).
		Str("user_id", userID.String()).
		Str("attempt_id", p.ID.String()).
		Msg("Attempt started")
	return refOf(p), nil
}

func (s *AttemptService) cacheStart(ctx context.Context, p *model.Participation) {
	key := config.CacheKey.ParticipationStartKey(p.ID.String())
	if err := s.rdb.Set(ctx, key, p.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", p.ID.String()).Msg("Failed to cache start time")
	}
}

// Paper returns the ordered questions of the user's running attempt.
func (s *AttemptService) Paper(ctx context.Context, examID, userID uuid.UUID) (*model.AttemptPaper, error) {
	p, err := s.participationRepo.GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotStarted
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if p.Status == model.ParticipationFinished {
		return nil, ErrAttemptFinished
	}

	questions, err := s.exams.Paper(ctx, examID)
	if err != nil {
		return nil, err
	}
	return &model.AttemptPaper{
		AttemptID: p.ID.String(),
		StartedAt: p.StartedAt,
		Questions: questions,
	}, nil
}

// VerifyInProgress returns the attempt when it belongs to userID and is still running.
func (s *AttemptService) VerifyInProgress(ctx context.Context, attemptID, userID uuid.UUID) (*model.Participation, error) {
	p, err := s.participationRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if p.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	if p.Status != model.ParticipationInProgress {
		return nil, ErrAttemptFinished
	}
	s.cacheStart(ctx, p)
	return p, nil
}

// autosaveGrace is how long past the time limit autosaves are still accepted.
const autosaveGrace = 30 * time.Second

// RecordAnswer stores one autosaved answer change in Redis and queues it for
// persistence. Option 0 clears the answer. The attempt's cached start time
// marks it as running; it is removed when the attempt finishes. Changes that
// arrive after the exam's time limit are rejected with ErrAttemptTimeUp.
func (s *AttemptService) RecordAnswer(ctx context.Context, p *model.Participation, questionID string, option int) error {
	attemptID := p.ID
	running, err := s.rdb.Exists(ctx, config.CacheKey.ParticipationStartKey(attemptID.String())).Result()
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if running == 0 {
		return ErrAttemptFinished
	}
	if err := s.withinTimeLimit(ctx, p); err != nil {
		return err
	}

	key := config.CacheKey.ParticipationAnswersKey(attemptID.String())

	if option == 0 {
		err = s.rdb.HDel(ctx, key, questionID).Err()
	} else {
		err = s.rdb.HSet(ctx, key, questionID, option).Err()
	}
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	payload, err := json.Marshal(model.AutosaveJob{
		ParticipationID: attemptID.String(),
		QuestionID:      questionID,
		Option:          option,
	})
	if err != nil {
		return fmt.Errorf("marshal autosave job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue autosave job: %w", err)
	}
	return nil
}

// withinTimeLimit returns ErrAttemptTimeUp once started_at plus the exam
// duration and autosaveGrace has passed. Unlimited exams never time out.
func (s *AttemptService) withinTimeLimit(ctx context.Context, p *model.Participation) error {
	cached, err := s.exams.cachedInfo(ctx, p.ExamID)
	if err != nil {
		return err
	}
	minutes := cached.Exam.DurationMinutes
	if minutes == nil {
		return nil
	}
	deadline := p.StartedAt.Add(time.Duration(*minutes)*time.Minute + autosaveGrace)
	if s.exams.now().After(deadline) {
		return ErrAttemptTimeUp
	}
	return nil
}

// Finish closes the attempt. When answers is nil the autosaved answers are
// used. Finishing an already finished attempt is acknowledged without
// changing the recorded answers.
func (s *AttemptService) Finish(ctx context.Context, attemptID, userID uuid.UUID, answers map[string]int) (*model.FinishAttemptResponse, error) {
	if answers == nil {
		autosaved, err := s.autosavedAnswers(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		answers = autosaved
	}

	finishedAt, err := s.participationRepo.Finish(ctx, attemptID, userID, answers)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("finish attempt: %w", err)
		}
		p, getErr := s.participationRepo.GetByID(ctx, attemptID)
		if getErr != nil {
			if errors.Is(getErr, pgx.ErrNoRows) {
				return nil, ErrAttemptNotFound
			}
			return nil, fmt.Errorf("get attempt: %w", getErr)
		}
		if p.UserID != userID || p.Status != model.ParticipationFinished {
			return nil, ErrAttemptNotFound
		}
		resp := &model.FinishAttemptResponse{
			AttemptID:       p.ID.String(),
			Status:          p.Status,
			AlreadyFinished: true,
		}
		if p.FinishedAt != nil {
			resp.FinishedAt = *p.FinishedAt
		}
		return resp, nil
	}

	if err := s.rdb.Del(ctx,
		config.CacheKey.ParticipationAnswersKey(attemptID.String()),
		config.CacheKey.ParticipationStartKey(attemptID.String()),
	).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to clear attempt cache")
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("answers", len(answers)).
		Msg("Attempt finished")

	return &model.FinishAttemptResponse{
		AttemptID:  attemptID.String(),
		Status:     model.ParticipationFinished,
		FinishedAt: finishedAt,
	}, nil
}

// autosavedAnswers reads the Redis hash, falling back to the persisted
// attempt_answers rows when the hash is empty.
func (s *AttemptService) autosavedAnswers(ctx context.Context, attemptID uuid.UUID) (map[string]int, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.ParticipationAnswersKey(attemptID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}
	if len(raw) == 0 {
		answers, err := s.answerRepo.ListByParticipation(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("list autosaved answers: %w", err)
		}
		return answers, nil
	}

	answers := make(map[string]int, len(raw))
	for qid, v := range raw {
		opt, err := strconv.Atoi(v)
		if err != nil || opt < 1 {
			s.log.Warn().Str("q_id", qid).Str("value", v).Msg("Skipping malformed autosaved answer")
			continue
		}
		answers[qid] = opt
	}
	return answers, nil
}
