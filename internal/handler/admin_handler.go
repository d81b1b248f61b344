package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/validator"
)

// AdminHandler handles exam administration endpoints.
type AdminHandler struct {
	examService ExamService
	log         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(examService ExamService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		examService: examService,
		log:         log.With().Str("component", "admin_handler").Logger(),
	}
}

// GetExamSettings godoc
// GET /api/v1/admin/exams/:exam_id/settings
// Returns the duration and negative marking of an exam.
func (h *AdminHandler) GetExamSettings(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	settings, err := h.examService.Settings(c.Request.Context(), examID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// UpdateExamSettings godoc
// PATCH /api/v1/admin/exams/:exam_id/settings
// Changes the duration (or unlimited) and negative marking of an exam.
func (h *AdminHandler) UpdateExamSettings(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.UpdateExamSettingsRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}
	if !req.Unlimited && req.DurationMinutes == nil && req.NegativeMarking == nil {
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrInvalidPayload, "Nothing to update.")
		return
	}

	settings, err := h.examService.UpdateSettings(c.Request.Context(), examID, req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
