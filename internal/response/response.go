package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/model"
)

// Response is the envelope of every REST reply.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody is shared by REST replies and WebSocket error frames.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	// AttemptStatus is set when a write was refused because the attempt is
	// already closed, so the client can leave the exam screen.
	AttemptStatus model.AttemptStatus `json:"attemptStatus,omitempty"`
	Retryable     bool                `json:"retryable,omitempty"`
}

// ErrorOption adds detail to an ErrorBody.
type ErrorOption func(*ErrorBody)

// WithFields attaches field-level validation messages.
func WithFields(fields map[string]string) ErrorOption {
	return func(b *ErrorBody) { b.Fields = fields }
}

// WithAttemptStatus reports the status the attempt was found in.
func WithAttemptStatus(status model.AttemptStatus) ErrorOption {
	return func(b *ErrorBody) { b.AttemptStatus = status }
}

// NewErrorBody builds the body for code with its standard message.
func NewErrorBody(code ErrCode, opts ...ErrorOption) *ErrorBody {
	body := &ErrorBody{
		Code:      code,
		Message:   GetMessage(code),
		Retryable: code.Retryable(),
	}
	for _, opt := range opts {
		opt(body)
	}
	return body
}

// Pagination describes one page of a list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives the page count from total.
func NewPagination(page, perPage, total int) *Pagination {
	p := &Pagination{Page: page, PerPage: perPage, TotalItems: total}
	if perPage > 0 {
		p.TotalPages = (total + perPage - 1) / perPage
	}
	return p
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

// SuccessWithPagination sends one page of a list.
func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	c.JSON(statusCode, Response{
		Data:       data,
		Pagination: pagination,
		Metadata:   buildMetadata(c),
	})
}

// Fail sends an error response.
func Fail(c *gin.Context, statusCode int, code ErrCode, opts ...ErrorOption) {
	FailWithBody(c, statusCode, NewErrorBody(code, opts...))
}

// FailWithBody sends an error response with a prepared body.
func FailWithBody(c *gin.Context, statusCode int, body *ErrorBody) {
	c.JSON(statusCode, Response{
		Error:    body,
		Metadata: buildMetadata(c),
	})
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode, opts ...ErrorOption) {
	c.AbortWithStatusJSON(statusCode, Response{
		Error:    NewErrorBody(code, opts...),
		Metadata: buildMetadata(c),
	})
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func buildMetadata(c *gin.Context) Metadata {
	reqID, _ := c.Get(ContextKeyRequestID)
	id, ok := reqID.(string)
	if !ok || id == "" {
		id = uuid.New().String()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
