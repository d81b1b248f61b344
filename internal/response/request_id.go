package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// ContextKeyRequestID is the Gin context key for the request ID.
	ContextKeyRequestID = "request_id"
	HeaderRequestID     = "X-Request-ID"

	maxRequestIDLen = 64
)

// RequestIDMiddleware tags every request with an ID. A well-formed
// X-Request-ID from the caller is kept; anything else is replaced.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// RequestID returns the ID assigned by RequestIDMiddleware, or "".
func RequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// AccessLog writes one zerolog line per request. Server errors log at
// error level, client errors at warn.
func AccessLog(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev.Str("request_id", RequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request handled")
	}
}
