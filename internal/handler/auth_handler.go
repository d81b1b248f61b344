package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/middleware"
	"github.com/sanjio/sanjio/internal/model"
	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/validator"
)

// AuthService is the part of service.AuthService the handlers use.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Me(ctx context.Context, profileID uuid.UUID) (*model.Profile, error)
	Logout(ctx context.Context, profileID string) error
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/login
// Authenticates by email and password and returns a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if errs := validator.Bind(c, &req); errs != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, errs)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	h.log.Info().Str("profile_id", resp.Profile.ID.String()).Msg("Login succeeded")
	response.Success(c, http.StatusOK, resp)
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}

	profile, err := h.authService.Me(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// Logout godoc
// POST /api/v1/auth/logout
// Ends the caller's session.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.UserID); err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
