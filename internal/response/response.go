package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the standardized API response envelope.
type Response struct {
	Data     any        `json:"data"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends a successful JSON response with the given status code and data.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{
		Data:     data,
		Metadata: buildMetadata(c),
	})
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, failure(c, ErrorBody{Code: code, Message: GetMessage(code)}))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, failure(c, ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}))
}

// FailWithMessage sends an error response with a message specific to this failure.
func FailWithMessage(c *gin.Context, statusCode int, code ErrCode, message string) {
	c.JSON(statusCode, failure(c, ErrorBody{Code: code, Message: message}))
}

// AbortFail stops the middleware chain with an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, failure(c, ErrorBody{Code: code, Message: GetMessage(code)}))
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

// failure wraps body in an envelope whose data is always null.
func failure(c *gin.Context, body ErrorBody) Response {
	return Response{Error: &body, Metadata: buildMetadata(c)}
}

func buildMetadata(c *gin.Context) Metadata {
	id := RequestID(c)
	if id == "" {
		// Handlers mounted without RequestIDMiddleware, e.g. in tests.
		id = uuid.New().String()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
