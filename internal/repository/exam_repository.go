package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanjio/sanjio/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, description, duration_minutes, start_time, end_time,
	status, negative_marking, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.StartTime, &e.EndTime,
		&e.Status, &e.NegativeMarking, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam and fills its generated fields.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, duration_minutes, start_time, end_time, status, negative_marking)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.DurationMinutes, e.StartTime, e.EndTime, e.Status, e.NegativeMarking,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// UpdateSettings writes the duration (nil = unlimited) and negative marking flag.
// Returns pgx.ErrNoRows when the exam does not exist.
func (r *ExamRepository) UpdateSettings(ctx context.Context, id uuid.UUID, durationMinutes *int, negativeMarking bool) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET duration_minutes = $1, negative_marking = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+examColumns,
		durationMinutes, negativeMarking, id))
}

// SetStatus moves an exam between draft and published.
func (r *ExamRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}
