package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
)

type examCreator interface {
	examReader
	Create(ctx context.Context, e *model.Exam) error
}

type questionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	GetByID(ctx context.Context, examID, id uuid.UUID) (*model.Question, error)
	Append(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) (*model.Question, error)
	Delete(ctx context.Context, examID, id uuid.UUID) error
	Reorder(ctx context.Context, examID uuid.UUID, ids []uuid.UUID) error
}

// QuestionService handles exam authoring: creating exams and editing their
// questions. Every change to a paper drops the exam's cached info and paper.
type QuestionService struct {
	examRepo     examCreator
	questionRepo questionStore
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(examRepo examCreator, questionRepo questionStore, rdb *redis.Client, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "QuestionService").Logger(),
	}
}

// CreateExam stores a new draft exam.
func (s *QuestionService) CreateExam(ctx context.Context, req model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          model.ExamStatusDraft,
		NegativeMarking: req.NegativeMarking,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Str("title", exam.Title).Msg("Exam created")
	return exam, nil
}

// List returns the questions of any exam, answer keys included.
func (s *QuestionService) List(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	if err := s.requireExam(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Create appends a question to the exam's paper.
func (s *QuestionService) Create(ctx context.Context, examID uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	if err := s.requireExam(ctx, examID); err != nil {
		return nil, err
	}
	if req.CorrectOption > len(req.Options) {
		return nil, ErrCorrectOption
	}

	q := &model.Question{
		ExamID:        examID,
		QuestionText:  req.QuestionText,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		Score:         1,
	}
	if req.Score != nil {
		q.Score = *req.Score
	}
	if err := s.questionRepo.Append(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	invalidateExamCache(ctx, s.rdb, s.log, examID)
	s.log.Info().
		Str("exam_id", examID.String()).
		Str("q_id", q.ID.String()).
		Int("order_index", q.OrderIndex).
		Msg("Question added")
	return q, nil
}

// Update changes a question. Unset fields keep their value; the answer key
// must still point at one of the resulting options.
func (s *QuestionService) Update(ctx context.Context, examID, questionID uuid.UUID, req model.UpdateQuestionRequest) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, examID, questionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}

	if req.QuestionText != nil {
		q.QuestionText = *req.QuestionText
	}
	if req.Options != nil {
		q.Options = req.Options
	}
	if req.CorrectOption != nil {
		q.CorrectOption = *req.CorrectOption
	}
	if req.Score != nil {
		q.Score = *req.Score
	}
	if q.CorrectOption > len(q.Options) {
		return nil, ErrCorrectOption
	}

	updated, err := s.questionRepo.Update(ctx, q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("update question: %w", err)
	}

	invalidateExamCache(ctx, s.rdb, s.log, examID)
	s.log.Info().Str("exam_id", examID.String()).Str("q_id", questionID.String()).Msg("Question updated")
	return updated, nil
}

// Delete removes a question from the exam's paper.
func (s *QuestionService) Delete(ctx context.Context, examID, questionID uuid.UUID) error {
	if err := s.questionRepo.Delete(ctx, examID, questionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("delete question: %w", err)
	}

	invalidateExamCache(ctx, s.rdb, s.log, examID)
	s.log.Info().Str("exam_id", examID.String()).Str("q_id", questionID.String()).Msg("Question deleted")
	return nil
}

// Reorder puts the exam's questions in the order of ids, which must name
// every question of the exam exactly once.
func (s *QuestionService) Reorder(ctx context.Context, examID uuid.UUID, ids []uuid.UUID) ([]model.Question, error) {
	current, err := s.List(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !samePaper(current, ids) {
		return nil, ErrQuestionOrder
	}

	if err := s.questionRepo.Reorder(ctx, examID, ids); err != nil {
		return nil, fmt.Errorf("reorder questions: %w", err)
	}
	invalidateExamCache(ctx, s.rdb, s.log, examID)
	s.log.Info().Str("exam_id", examID.String()).Int("questions", len(ids)).Msg("Questions reordered")

	return s.List(ctx, examID)
}

func (s *QuestionService) requireExam(ctx context.Context, examID uuid.UUID) error {
	if _, err := s.examRepo.GetByID(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return fmt.Errorf("get exam: %w", err)
	}
	return nil
}

// samePaper reports whether ids is a permutation of the questions' ids.
func samePaper(questions []model.Question, ids []uuid.UUID) bool {
	if len(questions) != len(ids) {
		return false
	}
	remaining := make(map[uuid.UUID]struct{}, len(questions))
	for _, q := range questions {
		remaining[q.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := remaining[id]; !ok {
			return false
		}
		delete(remaining, id)
	}
	return true
}
