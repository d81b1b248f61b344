package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/validator"
)

// QuestionService is the part of service.QuestionService the handlers use.
type QuestionService interface {
	CreateExam(ctx context.Context, req model.CreateExamRequest) (*model.Exam, error)
	List(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	Create(ctx context.Context, examID uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error)
	Update(ctx context.Context, examID, questionID uuid.UUID, req model.UpdateQuestionRequest) (*model.Question, error)
	Delete(ctx context.Context, examID, questionID uuid.UUID) error
	Reorder(ctx context.Context, examID uuid.UUID, ids []uuid.UUID) ([]model.Question, error)
}

// QuestionHandler handles exam authoring endpoints.
type QuestionHandler struct {
	questionService QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates a draft exam.
func (h *QuestionHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"end_time": "end_time must be after start_time"})
		return
	}

	exam, err := h.questionService.CreateExam(c.Request.Context(), req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, exam)
}

// ListQuestions godoc
// GET /api/v1/admin/exams/:exam_id/questions
// Lists the questions of an exam with their answer keys.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), examID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/exams/:exam_id/questions
// Appends a question to an exam.
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.CreateQuestionRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), examID, req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, question)
}

// UpdateQuestion godoc
// PATCH /api/v1/admin/exams/:exam_id/questions/:question_id
// Changes the text, options, answer key or score of a question.
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	var req model.UpdateQuestionRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}
	if req.Empty() {
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrInvalidPayload, "Nothing to update.")
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), examID, questionID, req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, question)
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/exams/:exam_id/questions/:question_id
// Removes a question from an exam.
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), examID, questionID); err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question deleted"})
}

// ReorderQuestions godoc
// PUT /api/v1/admin/exams/:exam_id/questions/order
// Sets the display order of every question on an exam.
func (h *QuestionHandler) ReorderQuestions(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.ReorderQuestionsRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}
	ids := make([]uuid.UUID, len(req.QuestionIDs))
	for i, raw := range req.QuestionIDs {
		ids[i] = uuid.MustParse(raw)
	}

	questions, err := h.questionService.Reorder(c.Request.Context(), examID, ids)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
