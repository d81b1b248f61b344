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

// ExamService is the part of service.ExamService the handlers use.
type ExamService interface {
	Info(ctx context.Context, examID, userID uuid.UUID) (*model.ExamInfo, error)
	Paper(ctx context.Context, examID uuid.UUID) ([]model.CandidateQuestion, error)
	Settings(ctx context.Context, examID uuid.UUID) (*model.ExamSettings, error)
	UpdateSettings(ctx context.Context, examID uuid.UUID, req model.UpdateExamSettingsRequest) (*model.ExamSettings, error)
}

// AttemptService is the part of service.AttemptService the handlers use.
type AttemptService interface {
	Start(ctx context.Context, examID, userID uuid.UUID) (*model.AttemptRef, error)
	Paper(ctx context.Context, examID, userID uuid.UUID) (*model.AttemptPaper, error)
	Finish(ctx context.Context, attemptID, userID uuid.UUID, answers map[string]int) (*model.FinishAttemptResponse, error)
	VerifyInProgress(ctx context.Context, attemptID, userID uuid.UUID) (*model.Participation, error)
	RecordAnswer(ctx context.Context, p *model.Participation, questionID string, option int) error
}

// ExamHandler handles candidate exam and attempt endpoints.
type ExamHandler struct {
	examService    ExamService
	attemptService AttemptService
	log            zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService ExamService, attemptService AttemptService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		attemptService: attemptService,
		log:            log.With().Str("component", "exam_handler").Logger(),
	}
}

// GetInfo godoc
// GET /api/v1/exams/:exam_id
// Returns exam metadata and the caller's participation status.
func (h *ExamHandler) GetInfo(c *gin.Context) {
	userID, ok := profileID(c)
	if !ok {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	info, err := h.examService.Info(c.Request.Context(), examID, userID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, info)
}

// StartAttempt godoc
// POST /api/v1/exams/:exam_id/start
// Starts the caller's attempt. Repeated calls return the same attempt.
func (h *ExamHandler) StartAttempt(c *gin.Context) {
	userID, ok := profileID(c)
	if !ok {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	ref, err := h.attemptService.Start(c.Request.Context(), examID, userID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, ref)
}

// GetPaper godoc
// GET /api/v1/exams/:exam_id/paper
// Returns the ordered questions of the caller's running attempt.
func (h *ExamHandler) GetPaper(c *gin.Context) {
	userID, ok := profileID(c)
	if !ok {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	paper, err := h.attemptService.Paper(c.Request.Context(), examID, userID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// FinishAttempt godoc
// POST /api/v1/attempts/:attempt_id/finish
// Closes the attempt with the submitted answers. An empty body uses the
// autosaved answers.
func (h *ExamHandler) FinishAttempt(c *gin.Context) {
	userID, ok := profileID(c)
	if !ok {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.FinishAttemptRequest
	if c.Request.ContentLength != 0 {
		if errs := validator.Bind(c, &req); errs != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
			return
		}
	}

	resp, err := h.attemptService.Finish(c.Request.Context(), attemptID, userID, req.Answers)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
