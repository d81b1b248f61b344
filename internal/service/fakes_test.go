package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sanjio/sanjio/internal/model"
)

// testRedis connects to SANJIO_TEST_REDIS_URL or skips. Keys written by the
// tests are derived from fresh UUIDs, so the database is never flushed.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("SANJIO_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SANJIO_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

type fakeProfiles struct {
	byEmail map[string]*model.Profile
}

func (f *fakeProfiles) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	if p, ok := f.byEmail[email]; ok {
		return p, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	for _, p := range f.byEmail {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeExamRepo struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
}

func (f *fakeExamRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamRepo) Create(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.New()
	cp := *e
	f.exams[e.ID] = &cp
	return nil
}

func (f *fakeExamRepo) UpdateSettings(_ context.Context, id uuid.UUID, duration *int, negative bool) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	e.DurationMinutes = duration
	e.NegativeMarking = negative
	cp := *e
	return &cp, nil
}

type fakeQuestionRepo struct {
	mu     sync.Mutex
	byExam map[uuid.UUID][]model.Question
}

func (f *fakeQuestionRepo) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Question(nil), f.byExam[examID]...), nil
}

func (f *fakeQuestionRepo) CountByExam(_ context.Context, examID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byExam[examID]), nil
}

func (f *fakeQuestionRepo) GetByID(_ context.Context, examID, id uuid.UUID) (*model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.byExam[examID] {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuestionRepo) Append(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	last := 0
	for _, existing := range f.byExam[q.ExamID] {
		last = max(last, existing.OrderIndex)
	}
	q.ID = uuid.New()
	q.OrderIndex = last + 1
	f.byExam[q.ExamID] = append(f.byExam[q.ExamID], *q)
	return nil
}

func (f *fakeQuestionRepo) Update(_ context.Context, q *model.Question) (*model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.byExam[q.ExamID] {
		if existing.ID == q.ID {
			f.byExam[q.ExamID][i] = *q
			cp := *q
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeQuestionRepo) Delete(_ context.Context, examID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	qs := f.byExam[examID]
	for i, q := range qs {
		if q.ID == id {
			f.byExam[examID] = append(qs[:i:i], qs[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

// Reorder mirrors the ORDER BY order_index of the real repository by keeping
// the slice sorted.
func (f *fakeQuestionRepo) Reorder(_ context.Context, examID uuid.UUID, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byID := make(map[uuid.UUID]model.Question, len(ids))
	for _, q := range f.byExam[examID] {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(ids))
	for i, id := range ids {
		q := byID[id]
		q.OrderIndex = i + 1
		ordered = append(ordered, q)
	}
	f.byExam[examID] = ordered
	return nil
}

type fakeParticipations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Participation
	now  time.Time
}

func newFakeParticipations(now time.Time) *fakeParticipations {
	return &fakeParticipations{byID: map[uuid.UUID]*model.Participation{}, now: now}
}

func (f *fakeParticipations) GetByExamAndUser(_ context.Context, examID, userID uuid.UUID) (*model.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.ExamID == examID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeParticipations) GetByID(_ context.Context, id uuid.UUID) (*model.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakeParticipations) Create(_ context.Context, p *model.Participation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ExamID == p.ExamID && existing.UserID == p.UserID {
			return pgx.ErrNoRows
		}
	}
	p.ID = uuid.New()
	p.StartedAt = f.now
	p.Status = model.ParticipationInProgress
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeParticipations) Finish(_ context.Context, id, userID uuid.UUID, answers map[string]int) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || p.UserID != userID || p.Status != model.ParticipationInProgress {
		return time.Time{}, pgx.ErrNoRows
	}
	finished := f.now
	p.Status = model.ParticipationFinished
	p.FinishedAt = &finished
	p.Answers = answers
	return finished, nil
}

func (f *fakeParticipations) put(p *model.Participation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.byID[p.ID] = &cp
}

type fakeAnswers struct {
	rows map[uuid.UUID]map[string]int
}

func (f *fakeAnswers) ListByParticipation(_ context.Context, id uuid.UUID) (map[string]int, error) {
	out := map[string]int{}
	for k, v := range f.rows[id] {
		out[k] = v
	}
	return out, nil
}
