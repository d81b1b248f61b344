package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/model"
)

var now0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	exams          *fakeExamRepo
	questions      *fakeQuestionRepo
	participations *fakeParticipations
	answers        *fakeAnswers
	examSvc        *ExamService
	attemptSvc     *AttemptService

	examID uuid.UUID
	userID uuid.UUID
}

func newFixture(rdb *redis.Client) *fixture {
	f := &fixture{
		exams:          &fakeExamRepo{exams: map[uuid.UUID]*model.Exam{}},
		questions:      &fakeQuestionRepo{byExam: map[uuid.UUID][]model.Question{}},
		participations: newFakeParticipations(now0),
		answers:        &fakeAnswers{rows: map[uuid.UUID]map[string]int{}},
		examID:         uuid.New(),
		userID:         uuid.New(),
	}
	duration := 30
	f.exams.exams[f.examID] = &model.Exam{
		ID:              f.examID,
		Title:           "Arithmetic",
		DurationMinutes: &duration,
		Status:          model.ExamStatusPublished,
	}
	f.questions.byExam[f.examID] = []model.Question{
		{ID: uuid.New(), ExamID: f.examID, QuestionText: "2 + 2", Options: []model.Option{{Text: "3"}, {Text: "4"}}, CorrectOption: 2, OrderIndex: 1},
		{ID: uuid.New(), ExamID: f.examID, QuestionText: "3 * 3", Options: []model.Option{{Text: "6"}, {Text: "9"}}, CorrectOption: 2, OrderIndex: 2},
	}

	f.examSvc = NewExamService(f.exams, f.questions, f.participations, rdb, time.Minute, zerolog.Nop())
	f.examSvc.now = func() time.Time { return now0 }
	f.attemptSvc = NewAttemptService(f.examSvc, f.participations, f.answers, rdb, zerolog.Nop())
	return f
}

func (f *fixture) exam() *model.Exam { return f.exams.exams[f.examID] }

func TestStartRejects(t *testing.T) {
	later := now0.Add(time.Hour)
	earlier := now0.Add(-time.Hour)

	cases := map[string]struct {
		mutate func(f *fixture)
		want   error
	}{
		"unknown exam": {func(f *fixture) { delete(f.exams.exams, f.examID) }, ErrExamNotFound},
		"draft":        {func(f *fixture) { f.exam().Status = model.ExamStatusDraft }, ErrExamNotFound},
		"upcoming":     {func(f *fixture) { f.exam().StartTime = &later }, ErrExamUpcoming},
		"expired":      {func(f *fixture) { f.exam().EndTime = &earlier }, ErrExamExpired},
		"no questions": {func(f *fixture) { delete(f.questions.byExam, f.examID) }, ErrNoQuestions},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(nil)
			tc.mutate(f)

			_, err := f.attemptSvc.Start(context.Background(), f.examID, f.userID)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPaperRequiresRunningAttempt(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	_, err := f.attemptSvc.Paper(ctx, f.examID, f.userID)
	assert.ErrorIs(t, err, ErrAttemptNotStarted)

	finished := now0
	f.participations.put(&model.Participation{
		ID: uuid.New(), ExamID: f.examID, UserID: f.userID,
		StartedAt: now0, FinishedAt: &finished, Status: model.ParticipationFinished,
	})
	_, err = f.attemptSvc.Paper(ctx, f.examID, f.userID)
	assert.ErrorIs(t, err, ErrAttemptFinished)
}

func TestVerifyInProgress(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	_, err := f.attemptSvc.VerifyInProgress(ctx, uuid.New(), f.userID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	attemptID := uuid.New()
	f.participations.put(&model.Participation{
		ID: attemptID, ExamID: f.examID, UserID: f.userID, StartedAt: now0, Status: model.ParticipationFinished,
	})
	_, err = f.attemptSvc.VerifyInProgress(ctx, attemptID, uuid.New())
	assert.ErrorIs(t, err, ErrAttemptNotFound, "foreign attempts look missing")

	_, err = f.attemptSvc.VerifyInProgress(ctx, attemptID, f.userID)
	assert.ErrorIs(t, err, ErrAttemptFinished)
}

func TestFinishTwiceIsAcknowledged(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	finished := now0.Add(-time.Minute)
	attemptID := uuid.New()
	f.participations.put(&model.Participation{
		ID: attemptID, ExamID: f.examID, UserID: f.userID,
		StartedAt: now0.Add(-time.Hour), FinishedAt: &finished,
		Status: model.ParticipationFinished, Answers: map[string]int{"a": 1},
	})

	resp, err := f.attemptSvc.Finish(ctx, attemptID, f.userID, map[string]int{"a": 2})
	require.NoError(t, err)
	assert.True(t, resp.AlreadyFinished)
	assert.Equal(t, finished, resp.FinishedAt)

	p, err := f.participations.GetByID(ctx, attemptID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, p.Answers, "recorded answers are kept")

	_, err = f.attemptSvc.Finish(ctx, attemptID, uuid.New(), map[string]int{})
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = f.attemptSvc.Finish(ctx, uuid.New(), f.userID, map[string]int{})
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAttemptLifecycle(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	f := newFixture(rdb)
	t.Cleanup(func() {
		rdb.Del(ctx,
			config.CacheKey.ExamInfoKey(f.examID.String()),
			config.CacheKey.ExamPaperKey(f.examID.String()))
	})

	ref, err := f.attemptSvc.Start(ctx, f.examID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationInProgress, ref.Status)
	assert.Equal(t, now0, ref.StartedAt)
	attemptID := uuid.MustParse(ref.AttemptID)

	again, err := f.attemptSvc.Start(ctx, f.examID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, ref.AttemptID, again.AttemptID, "start is idempotent")

	paper, err := f.attemptSvc.Paper(ctx, f.examID, f.userID)
	require.NoError(t, err)
	require.Len(t, paper.Questions, 2)
	assert.Equal(t, "2 + 2", paper.Questions[0].Text)

	q1 := paper.Questions[0].ID
	q2 := paper.Questions[1].ID
	jobs := []model.AutosaveJob{
		{ParticipationID: ref.AttemptID, QuestionID: q1, Option: 2},
		{ParticipationID: ref.AttemptID, QuestionID: q2, Option: 1},
		{ParticipationID: ref.AttemptID, QuestionID: q2, Option: 0},
	}
	t.Cleanup(func() {
		for _, job := range jobs {
			payload, _ := json.Marshal(job)
			rdb.LRem(ctx, config.WorkerKey.PersistAnswersQueue, 0, payload)
		}
	})
	running, err := f.participations.GetByID(ctx, attemptID)
	require.NoError(t, err)
	for _, job := range jobs {
		require.NoError(t, f.attemptSvc.RecordAnswer(ctx, running, job.QuestionID, job.Option))
	}

	resp, err := f.attemptSvc.Finish(ctx, attemptID, f.userID, nil)
	require.NoError(t, err)
	assert.False(t, resp.AlreadyFinished)

	p, err := f.participations.GetByID(ctx, attemptID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{q1: 2}, p.Answers)

	n, err := rdb.Exists(ctx,
		config.CacheKey.ParticipationAnswersKey(ref.AttemptID),
		config.CacheKey.ParticipationStartKey(ref.AttemptID)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	err = f.attemptSvc.RecordAnswer(ctx, running, q1, 1)
	assert.ErrorIs(t, err, ErrAttemptFinished)
}

func TestRecordAnswerAfterTimeLimit(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	f := newFixture(rdb)

	p := &model.Participation{
		ID: uuid.New(), ExamID: f.examID, UserID: f.userID,
		StartedAt: now0.Add(-30 * time.Minute), Status: model.ParticipationInProgress,
	}
	f.participations.put(p)
	t.Cleanup(func() {
		rdb.Del(ctx,
			config.CacheKey.ExamInfoKey(f.examID.String()),
			config.CacheKey.ParticipationStartKey(p.ID.String()),
			config.CacheKey.ParticipationAnswersKey(p.ID.String()))
	})
	_, err := f.attemptSvc.VerifyInProgress(ctx, p.ID, f.userID)
	require.NoError(t, err)

	qid := f.questions.byExam[f.examID][0].ID.String()
	job, _ := json.Marshal(model.AutosaveJob{ParticipationID: p.ID.String(), QuestionID: qid, Option: 2})
	t.Cleanup(func() { rdb.LRem(ctx, config.WorkerKey.PersistAnswersQueue, 0, job) })

	require.NoError(t, f.attemptSvc.RecordAnswer(ctx, p, qid, 2), "inside the grace period")

	f.examSvc.now = func() time.Time { return now0.Add(autosaveGrace + time.Second) }
	err = f.attemptSvc.RecordAnswer(ctx, p, qid, 1)
	assert.ErrorIs(t, err, ErrAttemptTimeUp)

	saved, err := rdb.HGet(ctx, config.CacheKey.ParticipationAnswersKey(p.ID.String()), qid).Result()
	require.NoError(t, err)
	assert.Equal(t, "2", saved, "late change is not stored")

	late, _ := json.Marshal(model.AutosaveJob{ParticipationID: p.ID.String(), QuestionID: qid, Option: 1})
	_, err = rdb.LPos(ctx, config.WorkerKey.PersistAnswersQueue, string(late), redis.LPosArgs{}).Result()
	assert.ErrorIs(t, err, redis.Nil, "late change is not queued")

	f.exam().DurationMinutes = nil
	rdb.Del(ctx, config.CacheKey.ExamInfoKey(f.examID.String()))
	assert.NoError(t, f.attemptSvc.RecordAnswer(ctx, p, qid, 2), "unlimited exams accept late changes")
}

func TestFinishFallsBackToPersistedAnswers(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	f := newFixture(rdb)

	attemptID := uuid.New()
	f.participations.put(&model.Participation{
		ID: attemptID, ExamID: f.examID, UserID: f.userID, StartedAt: now0, Status: model.ParticipationInProgress,
	})
	f.answers.rows[attemptID] = map[string]int{"q-persisted": 3}

	_, err := f.attemptSvc.Finish(ctx, attemptID, f.userID, nil)
	require.NoError(t, err)

	p, err := f.participations.GetByID(ctx, attemptID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"q-persisted": 3}, p.Answers)
}

func TestExamInfoAndSettings(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	f := newFixture(rdb)
	t.Cleanup(func() {
		rdb.Del(ctx,
			config.CacheKey.ExamInfoKey(f.examID.String()),
			config.CacheKey.ExamPaperKey(f.examID.String()))
	})

	info, err := f.examSvc.Info(ctx, f.examID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 2, info.QuestionCount)
	assert.Equal(t, model.AvailabilityActive, info.Status)
	assert.Equal(t, model.ParticipationNone, info.ParticipationStatus)
	require.NotNil(t, info.DurationMinutes)
	assert.Equal(t, 30, *info.DurationMinutes)

	on := true
	settings, err := f.examSvc.UpdateSettings(ctx, f.examID, model.UpdateExamSettingsRequest{Unlimited: true, NegativeMarking: &on})
	require.NoError(t, err)
	assert.Nil(t, settings.DurationMinutes)
	assert.True(t, settings.NegativeMarking)

	info, err = f.examSvc.Info(ctx, f.examID, f.userID)
	require.NoError(t, err)
	assert.True(t, info.Unlimited(), "cached info is dropped on update")
	assert.True(t, info.HasNegativeMarking)

	minutes := 45
	settings, err = f.examSvc.UpdateSettings(ctx, f.examID, model.UpdateExamSettingsRequest{DurationMinutes: &minutes})
	require.NoError(t, err)
	require.NotNil(t, settings.DurationMinutes)
	assert.Equal(t, 45, *settings.DurationMinutes)
	assert.True(t, settings.NegativeMarking, "unset fields keep their value")
}

func TestSettingsIncludesDrafts(t *testing.T) {
	f := newFixture(nil)
	f.exam().Status = model.ExamStatusDraft

	settings, err := f.examSvc.Settings(context.Background(), f.examID)
	require.NoError(t, err)
	require.NotNil(t, settings.DurationMinutes)
	assert.Equal(t, 30, *settings.DurationMinutes)

	_, err = f.examSvc.Settings(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrExamNotFound)
}
