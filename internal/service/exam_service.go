package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/model"
)

type examReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

type examWriter interface {
	examReader
	UpdateSettings(ctx context.Context, id uuid.UUID, durationMinutes *int, negativeMarking bool) (*model.Exam, error)
}

type questionReader interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
}

type participationReader interface {
	GetByExamAndUser(ctx context.Context, examID, userID uuid.UUID) (*model.Participation, error)
}

// cachedExam is the per-exam part of ExamInfo stored in Redis. Availability
// and participation status are computed per request.
type cachedExam struct {
	Exam          model.Exam `json:"exam"`
	QuestionCount int        `json:"question_count"`
}

// ExamService handles exam metadata, the cached paper and admin settings.
type ExamService struct {
	examRepo          examWriter
	questionRepo      questionReader
	participationRepo participationReader
	rdb               *redis.Client
	infoTTL           time.Duration
	now               func() time.Time
	log               zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo examWriter,
	questionRepo questionReader,
	participationRepo participationReader,
	rdb *redis.Client,
	infoTTL time.Duration,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:          examRepo,
		questionRepo:      questionRepo,
		participationRepo: participationRepo,
		rdb:               rdb,
		infoTTL:           infoTTL,
		now:               time.Now,
		log:               log.With().Str("component", "ExamService").Logger(),
	}
}

// GetPublished returns a published exam or ErrExamNotFound. Drafts are
// invisible to candidates.
func (s *ExamService) GetPublished(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished {
		return nil, ErrExamNotFound
	}
	return exam, nil
}

// Info returns the candidate-facing metadata of an exam, including the
// candidate's participation status.
func (s *ExamService) Info(ctx context.Context, examID, userID uuid.UUID) (*model.ExamInfo, error) {
	cached, err := s.cachedInfo(ctx, examID)
	if err != nil {
		return nil, err
	}

	participation := model.ParticipationNone
	p, err := s.participationRepo.GetByExamAndUser(ctx, examID, userID)
	switch {
	case err == nil:
		participation = p.Status
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get participation: %w", err)
	}

	e := cached.Exam
	return &model.ExamInfo{
		ID:                  e.ID,
		Title:               e.Title,
		Description:         e.Description,
		DurationMinutes:     e.DurationMinutes,
		StartTime:           e.StartTime,
		EndTime:             e.EndTime,
		QuestionCount:       cached.QuestionCount,
		HasNegativeMarking:  e.NegativeMarking,
		Status:              e.AvailabilityAt(s.now()),
		ParticipationStatus: participation,
	}, nil
}

func (s *ExamService) cachedInfo(ctx context.Context, examID uuid.UUID) (*cachedExam, error) {
	key := config.CacheKey.ExamInfoKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedExam
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Discarding malformed exam info cache entry")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Exam info cache read failed, falling back to database")
	}

	exam, err := s.GetPublished(ctx, examID)
	if err != nil {
		return nil, err
	}
	count, err := s.questionRepo.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	cached := &cachedExam{Exam: *exam, QuestionCount: count}
	if payload, err := json.Marshal(cached); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.infoTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache exam info")
		}
	}
	return cached, nil
}

// Paper returns the ordered candidate-facing questions, cached in Redis
// until the exam's info is invalidated.
func (s *ExamService) Paper(ctx context.Context, examID uuid.UUID) ([]model.CandidateQuestion, error) {
	key := config.CacheKey.ExamPaperKey(examID.String())
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var qs []model.CandidateQuestion
		if err := json.Unmarshal(data, &qs); err == nil {
			return qs, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Paper cache read failed, falling back to database")
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	paper := make([]model.CandidateQuestion, len(questions))
	for i := range questions {
		paper[i] = questions[i].ForCandidate()
	}

	if payload, err := json.Marshal(paper); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.infoTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache paper")
		}
	}

	s.log.Debug().
		Str("exam_id", examID.String()).
		Int("questions", len(paper)).
		Msg("Paper loaded")
	return paper, nil
}

// Settings returns the admin-tunable options of any exam, drafts included.
func (s *ExamService) Settings(ctx context.Context, examID uuid.UUID) (*model.ExamSettings, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return &model.ExamSettings{
		DurationMinutes: exam.DurationMinutes,
		NegativeMarking: exam.NegativeMarking,
	}, nil
}

// UpdateSettings changes the duration and negative marking of an exam and
// drops its cached info. Unset fields keep their current value.
func (s *ExamService) UpdateSettings(ctx context.Context, examID uuid.UUID, req model.UpdateExamSettingsRequest) (*model.ExamSettings, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	duration := exam.DurationMinutes
	switch {
	case req.Unlimited:
		duration = nil
	case req.DurationMinutes != nil:
		d := *req.DurationMinutes
		duration = &d
	}
	negative := exam.NegativeMarking
	if req.NegativeMarking != nil {
		negative = *req.NegativeMarking
	}

	updated, err := s.examRepo.UpdateSettings(ctx, examID, duration, negative)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	invalidateExamCache(ctx, s.rdb, s.log, examID)

	s.log.Info().
		Str("exam_id", examID.String()).
		Bool("unlimited", updated.DurationMinutes == nil).
		Bool("negative_marking", updated.NegativeMarking).
		Msg("Exam settings updated")

	return &model.ExamSettings{
		DurationMinutes: updated.DurationMinutes,
		NegativeMarking: updated.NegativeMarking,
	}, nil
}

// invalidateExamCache drops the cached info and paper of an exam so the next
// read sees the database.
func invalidateExamCache(ctx context.Context, rdb *redis.Client, log zerolog.Logger, examID uuid.UUID) {
	if err := rdb.Del(ctx,
		config.CacheKey.ExamInfoKey(examID.String()),
		config.CacheKey.ExamPaperKey(examID.String()),
	).Err(); err != nil {
		log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate exam cache")
	}
}
