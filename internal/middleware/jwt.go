package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sanjio/sanjio/internal/response"
	"github.com/sanjio/sanjio/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// TokenValidator is the part of the auth service the middleware needs.
type TokenValidator interface {
	ValidateToken(tokenStr string) (*service.Claims, error)
	ValidateSession(ctx context.Context, profileID, jti string) error
}

// RequireCandidateJWT validates a candidate JWT from the Authorization header.
func RequireCandidateJWT(auth TokenValidator) gin.HandlerFunc {
	return requireJWT(auth, bearerToken, service.TokenTypeCandidate, response.ErrCandidateAccessOnly)
}

// RequireAdminJWT validates an admin JWT from the Authorization header.
func RequireAdminJWT(auth TokenValidator) gin.HandlerFunc {
	return requireJWT(auth, bearerToken, service.TokenTypeAdmin, response.ErrAdminAccessOnly)
}

// RequireAnyJWT accepts both candidate and admin tokens.
func RequireAnyJWT(auth TokenValidator) gin.HandlerFunc {
	return requireJWT(auth, bearerToken, "", "")
}

// RequireCandidateWSAuth validates a candidate JWT from the query param ?token=...
// Used for WebSocket upgrade requests, which cannot carry headers from browsers.
func RequireCandidateWSAuth(auth TokenValidator) gin.HandlerFunc {
	return requireJWT(auth, func(c *gin.Context) string { return c.Query("token") },
		service.TokenTypeCandidate, response.ErrCandidateAccessOnly)
}

func requireJWT(auth TokenValidator, extract func(*gin.Context) string, want service.TokenType, wrongType response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extract(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := auth.ValidateToken(tokenStr)
		if err != nil {
			code := response.ErrTokenInvalid
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = response.ErrTokenExpired
			}
			response.AbortFail(c, http.StatusUnauthorized, code)
			return
		}

		if want != "" && claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, wrongType)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
