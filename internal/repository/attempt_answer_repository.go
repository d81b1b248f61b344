package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptAnswerRepository persists autosaved answers of running attempts.
type AttemptAnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptAnswerRepository creates a new AttemptAnswerRepository.
func NewAttemptAnswerRepository(pool *pgxpool.Pool) *AttemptAnswerRepository {
	return &AttemptAnswerRepository{pool: pool}
}

// Upsert records the selected option for a question.
func (r *AttemptAnswerRepository) Upsert(ctx context.Context, participationID, questionID uuid.UUID, option int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (participation_id, question_id, option_index, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (participation_id, question_id)
		 DO UPDATE SET option_index = EXCLUDED.option_index, updated_at = NOW()`,
		participationID, questionID, option)
	return err
}

// Delete removes the answer for a question.
func (r *AttemptAnswerRepository) Delete(ctx context.Context, participationID, questionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM attempt_answers WHERE participation_id = $1 AND question_id = $2`,
		participationID, questionID)
	return err
}

// ListByParticipation returns the autosaved answers keyed by question id.
func (r *AttemptAnswerRepository) ListByParticipation(ctx context.Context, participationID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, option_index FROM attempt_answers WHERE participation_id = $1`,
		participationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[string]int)
	for rows.Next() {
		var qid uuid.UUID
		var opt int
		if err := rows.Scan(&qid, &opt); err != nil {
			return nil, err
		}
		answers[qid.String()] = opt
	}
	return answers, rows.Err()
}
