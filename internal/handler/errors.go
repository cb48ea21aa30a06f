package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/rs/zerolog"
)

// errorStatus maps a service error onto an HTTP status and error code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, response.ErrExamAccessRequired
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, service.ErrAttemptClosed):
		return http.StatusConflict, response.ErrAttemptClosed
	case errors.Is(err, service.ErrTimeOver):
		return http.StatusConflict, response.ErrTimeOver
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, response.ErrConflict
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// errorBody builds the error body for err, with the attempt status when
// the attempt refused a write and the message of validation failures.
func errorBody(err error) (int, *response.ErrorBody) {
	status, code := errorStatus(err)

	var opts []response.ErrorOption
	var closed *service.AttemptClosedError
	switch {
	case errors.As(err, &closed):
		opts = append(opts, response.WithAttemptStatus(closed.Status))
	case code == response.ErrTimeOver:
		opts = append(opts, response.WithAttemptStatus(model.AttemptStatusAutoSubmitted))
	case code == response.ErrValidation:
		opts = append(opts, response.WithFields(map[string]string{"detail": err.Error()}))
	}
	return status, response.NewErrorBody(code, opts...)
}

// failWithError writes the error envelope for err. Unexpected errors are
// logged and hidden.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	response.FailWithBody(c, status, body)
}
