package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewErrorBody(t *testing.T) {
	tests := []struct {
		name string
		code ErrCode
		opts []ErrorOption
		want ErrorBody
	}{
		{
			name: "plain",
			code: ErrAttemptNotFound,
			want: ErrorBody{Code: ErrAttemptNotFound, Message: GetMessage(ErrAttemptNotFound)},
		},
		{
			name: "closed attempt",
			code: ErrAttemptClosed,
			opts: []ErrorOption{WithAttemptStatus(model.AttemptStatusTerminated)},
			want: ErrorBody{
				Code:          ErrAttemptClosed,
				Message:       GetMessage(ErrAttemptClosed),
				AttemptStatus: model.AttemptStatusTerminated,
			},
		},
		{
			name: "validation",
			code: ErrValidation,
			opts: []ErrorOption{WithFields(map[string]string{"examId": "required"})},
			want: ErrorBody{
				Code:    ErrValidation,
				Message: GetMessage(ErrValidation),
				Fields:  map[string]string{"examId": "required"},
			},
		},
		{
			name: "conflict is retryable",
			code: ErrConflict,
			want: ErrorBody{Code: ErrConflict, Message: GetMessage(ErrConflict), Retryable: true},
		},
		{
			name: "rate limit is retryable",
			code: ErrRateLimitExceeded,
			want: ErrorBody{Code: ErrRateLimitExceeded, Message: GetMessage(ErrRateLimitExceeded), Retryable: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *NewErrorBody(tt.code, tt.opts...))
		})
	}
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, &Pagination{Page: 2, PerPage: 20, TotalItems: 41, TotalPages: 3}, NewPagination(2, 20, 41))
	assert.Equal(t, 0, NewPagination(1, 20, 0).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}

func TestFailWritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Set(ContextKeyRequestID, "req-1")

	Fail(c, http.StatusConflict, ErrTimeOver, WithAttemptStatus(model.AttemptStatusAutoSubmitted))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Nil(t, got["data"])
	assert.Equal(t, map[string]any{
		"code":          string(ErrTimeOver),
		"message":       GetMessage(ErrTimeOver),
		"attemptStatus": string(model.AttemptStatusAutoSubmitted),
	}, got["error"])
	assert.Equal(t, "req-1", got["metadata"].(map[string]any)["request_id"])
}
