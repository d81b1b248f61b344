package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/service"
)

// CheckSingleDeviceSession validates the JWT's JTI against the active session in Redis.
// A newer login on another device replaces the stored JTI and ends this one.
func CheckSingleDeviceSession(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := auth.ValidateSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			if errors.Is(err, service.ErrSessionInvalidated) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
				return
			}
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Next()
	}
}
