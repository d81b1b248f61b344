package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanjio/sanjio/internal/model"
)

// ParticipationRepository handles attempt data access.
type ParticipationRepository struct {
	pool *pgxpool.Pool
}

// NewParticipationRepository creates a new ParticipationRepository.
func NewParticipationRepository(pool *pgxpool.Pool) *ParticipationRepository {
	return &ParticipationRepository{pool: pool}
}

const participationColumns = `id, exam_id, user_id, started_at, finished_at, status, answers`

func scanParticipation(row interface{ Scan(...any) error }) (*model.Participation, error) {
	p := &model.Participation{}
	err := row.Scan(&p.ID, &p.ExamID, &p.UserID, &p.StartedAt, &p.FinishedAt, &p.Status, &p.Answers)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByExamAndUser retrieves the attempt of one user at one exam.
func (r *ParticipationRepository) GetByExamAndUser(ctx context.Context, examID, userID uuid.UUID) (*model.Participation, error) {
	return scanParticipation(r.pool.QueryRow(ctx,
		`SELECT `+participationColumns+`
		 FROM participations
		 WHERE exam_id = $1 AND user_id = $2`, examID, userID))
}

// GetByID retrieves an attempt by its UUID.
func (r *ParticipationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Participation, error) {
	return scanParticipation(r.pool.QueryRow(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE id = $1`, id))
}

// Create inserts a new in-progress attempt. When the user already has one for
// the exam nothing is inserted and pgx.ErrNoRows is returned.
func (r *ParticipationRepository) Create(ctx context.Context, p *model.Participation) error {
	p.Status = model.ParticipationInProgress
	return r.pool.QueryRow(ctx,
		`INSERT INTO participations (exam_id, user_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, user_id) DO NOTHING
		 RETURNING id, started_at`,
		p.ExamID, p.UserID, p.Status,
	).Scan(&p.ID, &p.StartedAt)
}

// Finish closes an in-progress attempt owned by userID and records the final
// answers. It returns pgx.ErrNoRows when no in-progress row matched.
func (r *ParticipationRepository) Finish(ctx context.Context, id, userID uuid.UUID, answers map[string]int) (time.Time, error) {
	var finishedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE participations
		 SET status = $1, finished_at = NOW(), answers = $2
		 WHERE id = $3 AND user_id = $4 AND status = $5
		 RETURNING finished_at`,
		model.ParticipationFinished, answers, id, userID, model.ParticipationInProgress,
	).Scan(&finishedAt)
	return finishedAt, err
}
