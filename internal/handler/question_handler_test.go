package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/service"
)

type fakeQuestions struct {
	err       error
	created   *model.CreateQuestionRequest
	updated   *model.UpdateQuestionRequest
	deleted   []uuid.UUID
	reordered []uuid.UUID
	newExam   *model.CreateExamRequest
}

func (f *fakeQuestions) CreateExam(_ context.Context, req model.CreateExamRequest) (*model.Exam, error) {
	f.newExam = &req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Exam{ID: examID, Title: req.Title, Status: model.ExamStatusDraft}, nil
}

func (f *fakeQuestions) List(_ context.Context, id uuid.UUID) ([]model.Question, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.Question{{ID: questionID, ExamID: id, QuestionText: "2 + 2", CorrectOption: 2, OrderIndex: 1}}, nil
}

func (f *fakeQuestions) Create(_ context.Context, id uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	f.created = &req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Question{ID: questionID, ExamID: id, QuestionText: req.QuestionText, Options: req.Options, CorrectOption: req.CorrectOption, OrderIndex: 4}, nil
}

func (f *fakeQuestions) Update(_ context.Context, id, qid uuid.UUID, req model.UpdateQuestionRequest) (*model.Question, error) {
	f.updated = &req
	if f.err != nil {
		return nil, f.err
	}
	q := &model.Question{ID: qid, ExamID: id, QuestionText: "old"}
	if req.QuestionText != nil {
		q.QuestionText = *req.QuestionText
	}
	return q, nil
}

func (f *fakeQuestions) Delete(_ context.Context, _, qid uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, qid)
	return nil
}

func (f *fakeQuestions) Reorder(_ context.Context, id uuid.UUID, ids []uuid.UUID) ([]model.Question, error) {
	f.reordered = ids
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Question, len(ids))
	for i, qid := range ids {
		out[i] = model.Question{ID: qid, ExamID: id, OrderIndex: i + 1}
	}
	return out, nil
}

func newQuestionRouter(questions *fakeQuestions) *gin.Engine {
	h := NewQuestionHandler(questions, zerolog.Nop())

	r := gin.New()
	admin := r.Group("/api/v1/admin")
	admin.POST("/exams", h.CreateExam)
	admin.GET("/exams/:exam_id/questions", h.ListQuestions)
	admin.POST("/exams/:exam_id/questions", h.AddQuestion)
	admin.PUT("/exams/:exam_id/questions/order", h.ReorderQuestions)
	admin.PATCH("/exams/:exam_id/questions/:question_id", h.UpdateQuestion)
	admin.DELETE("/exams/:exam_id/questions/:question_id", h.DeleteQuestion)
	return r
}

func questionsURL(suffix string) string {
	return "/api/v1/admin/exams/" + examID.String() + "/questions" + suffix
}

func TestCreateExam(t *testing.T) {
	questions := &fakeQuestions{}
	r := newQuestionRouter(questions)

	w, env := do(t, r, http.MethodPost, "/api/v1/admin/exams", map[string]any{"title": "no"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "title")
	assert.Nil(t, questions.newExam)

	w, env = do(t, r, http.MethodPost, "/api/v1/admin/exams", map[string]any{
		"title":      "Physics",
		"start_time": "2026-03-02T10:00:00Z",
		"end_time":   "2026-03-02T09:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "end_time")

	w, env = do(t, r, http.MethodPost, "/api/v1/admin/exams", map[string]any{"title": "Physics", "duration_minutes": 40})
	require.Equal(t, http.StatusCreated, w.Code)
	var exam model.Exam
	require.NoError(t, json.Unmarshal(env.Data, &exam))
	assert.Equal(t, "Physics", exam.Title)
	assert.Equal(t, model.ExamStatusDraft, exam.Status)
	require.NotNil(t, questions.newExam.DurationMinutes)
	assert.Equal(t, 40, *questions.newExam.DurationMinutes)
}

func TestListQuestions(t *testing.T) {
	r := newQuestionRouter(&fakeQuestions{})

	w, env := do(t, r, http.MethodGet, questionsURL(""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Questions []model.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Questions, 1)
	assert.Equal(t, 2, body.Questions[0].CorrectOption, "admins see the answer key")

	r = newQuestionRouter(&fakeQuestions{err: service.ErrExamNotFound})
	w, _ = do(t, r, http.MethodGet, questionsURL(""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddQuestion(t *testing.T) {
	questions := &fakeQuestions{}
	r := newQuestionRouter(questions)

	invalid := map[string]map[string]any{
		"one option":     {"question_text": "2 + 2", "options": []map[string]string{{"text": "4"}}, "correct_option": 1},
		"blank option":   {"question_text": "2 + 2", "options": []map[string]string{{"text": "4"}, {"text": ""}}, "correct_option": 1},
		"no answer key":  {"question_text": "2 + 2", "options": []map[string]string{{"text": "3"}, {"text": "4"}}},
		"short text":     {"question_text": "?", "options": []map[string]string{{"text": "3"}, {"text": "4"}}, "correct_option": 1},
		"negative score": {"question_text": "2 + 2", "options": []map[string]string{{"text": "3"}, {"text": "4"}}, "correct_option": 1, "score": -1},
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			w, env := do(t, r, http.MethodPost, questionsURL(""), body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, response.ErrValidation, env.Error.Code)
		})
	}
	assert.Nil(t, questions.created)

	w, env := do(t, r, http.MethodPost, questionsURL(""), map[string]any{
		"question_text":  "2 + 2",
		"options":        []map[string]string{{"text": "3"}, {"text": "4"}},
		"correct_option": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var q model.Question
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, 4, q.OrderIndex)
	assert.Nil(t, questions.created.Score, "score defaults in the service")
}

func TestAddQuestionCorrectOptionOutOfRange(t *testing.T) {
	r := newQuestionRouter(&fakeQuestions{err: service.ErrCorrectOption})

	w, env := do(t, r, http.MethodPost, questionsURL(""), map[string]any{
		"question_text":  "2 + 2",
		"options":        []map[string]string{{"text": "3"}, {"text": "4"}},
		"correct_option": 3,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrCorrectOption, env.Error.Code)
}

func TestUpdateQuestion(t *testing.T) {
	questions := &fakeQuestions{}
	r := newQuestionRouter(questions)
	path := questionsURL("/" + questionID.String())

	w, env := do(t, r, http.MethodPatch, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrInvalidPayload, env.Error.Code)
	assert.Nil(t, questions.updated)

	w, _ = do(t, r, http.MethodPatch, questionsURL("/not-a-uuid"), map[string]any{"score": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodPatch, path, map[string]any{"question_text": "2 + 3"})
	require.Equal(t, http.StatusOK, w.Code)
	var q model.Question
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, "2 + 3", q.QuestionText)
	assert.Nil(t, questions.updated.Options)

	r = newQuestionRouter(&fakeQuestions{err: service.ErrQuestionNotFound})
	w, env = do(t, r, http.MethodPatch, path, map[string]any{"score": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrNotFound, env.Error.Code)
}

func TestDeleteQuestion(t *testing.T) {
	questions := &fakeQuestions{}
	r := newQuestionRouter(questions)

	w, _ := do(t, r, http.MethodDelete, questionsURL("/"+questionID.String()), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{questionID}, questions.deleted)

	r = newQuestionRouter(&fakeQuestions{err: service.ErrQuestionNotFound})
	w, _ = do(t, r, http.MethodDelete, questionsURL("/"+questionID.String()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReorderQuestions(t *testing.T) {
	questions := &fakeQuestions{}
	r := newQuestionRouter(questions)
	second := uuid.New()

	w, env := do(t, r, http.MethodPut, questionsURL("/order"), map[string]any{"question_ids": []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Nil(t, questions.reordered)

	w, env = do(t, r, http.MethodPut, questionsURL("/order"), map[string]any{
		"question_ids": []string{second.String(), questionID.String()},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{second, questionID}, questions.reordered)
	var body struct {
		Questions []model.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Questions, 2)
	assert.Equal(t, second, body.Questions[0].ID)

	r = newQuestionRouter(&fakeQuestions{err: service.ErrQuestionOrder})
	w, env = do(t, r, http.MethodPut, questionsURL("/order"), map[string]any{"question_ids": []string{questionID.String()}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrQuestionOrder, env.Error.Code)
}
