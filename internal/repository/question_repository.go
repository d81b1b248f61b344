package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanjio/sanjio/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam returns the paper in display order. Ties on order_index fall
// back to id so the order is stable across requests.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, options, correct_option, score, order_index
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_index, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Question, error) {
		var q model.Question
		err := row.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Options, &q.CorrectOption, &q.Score, &q.OrderIndex)
		return q, err
	})
}

// CountByExam returns the number of questions on an exam.
func (r *QuestionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, question_text, options, correct_option, score, order_index)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		q.ExamID, q.QuestionText, q.Options, q.CorrectOption, q.Score, q.OrderIndex,
	).Scan(&q.ID)
}

const questionColumns = `id, exam_id, question_text, options, correct_option, score, order_index`

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	if err := row.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Options, &q.CorrectOption, &q.Score, &q.OrderIndex); err != nil {
		return nil, err
	}
	return q, nil
}

// GetByID returns a question of the given exam. Questions of other exams
// yield pgx.ErrNoRows.
func (r *QuestionRepository) GetByID(ctx context.Context, examID, id uuid.UUID) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1 AND exam_id = $2`, id, examID))
}

// Append inserts a question after the last one on its exam and fills its
// id and order_index.
func (r *QuestionRepository) Append(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, question_text, options, correct_option, score, order_index)
		 VALUES ($1, $2, $3, $4, $5,
		         (SELECT COALESCE(MAX(order_index), 0) + 1 FROM questions WHERE exam_id = $1))
		 RETURNING id, order_index`,
		q.ExamID, q.QuestionText, q.Options, q.CorrectOption, q.Score,
	).Scan(&q.ID, &q.OrderIndex)
}

// Update writes the text, options, answer key and score of a question.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx,
		`UPDATE questions
		 SET question_text = $1, options = $2, correct_option = $3, score = $4
		 WHERE id = $5 AND exam_id = $6
		 RETURNING `+questionColumns,
		q.QuestionText, q.Options, q.CorrectOption, q.Score, q.ID, q.ExamID))
}

// Delete removes a question. Returns pgx.ErrNoRows when the exam has no such question.
func (r *QuestionRepository) Delete(ctx context.Context, examID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND exam_id = $2`, id, examID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Reorder sets order_index to the 1-based position of each id in one transaction.
func (r *QuestionRepository) Reorder(ctx context.Context, examID uuid.UUID, ids []uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, id := range ids {
			batch.Queue(`UPDATE questions SET order_index = $1 WHERE id = $2 AND exam_id = $3`, i+1, id, examID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
