package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/middleware"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/service"
)

// failFromService maps a service error to its HTTP status and error code.
// Unknown errors are logged and reported as internal errors.
func failFromService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrSessionInvalidated):
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
	case errors.Is(err, service.ErrExamNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrQuestionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusForbidden, response.ErrExamNotPublished)
	case errors.Is(err, service.ErrExamUpcoming):
		response.Fail(c, http.StatusForbidden, response.ErrExamUpcoming)
	case errors.Is(err, service.ErrExamExpired):
		response.Fail(c, http.StatusForbidden, response.ErrExamExpired)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
	case errors.Is(err, service.ErrAttemptNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotStarted)
	case errors.Is(err, service.ErrAttemptFinished):
		response.Fail(c, http.StatusConflict, response.ErrAttemptFinished)
	case errors.Is(err, service.ErrAttemptTimeUp):
		response.Fail(c, http.StatusConflict, response.ErrAttemptTimeUp)
	case errors.Is(err, service.ErrCorrectOption):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrCorrectOption)
	case errors.Is(err, service.ErrQuestionOrder):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrQuestionOrder)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// profileID extracts the caller's profile UUID from the validated claims.
func profileID(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	id, err := claims.ProfileID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return id, true
}

// uuidParam parses a UUID path parameter, failing the request when malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
