package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/middleware"
	"github.com/proctorhub/assessment-backend/internal/model"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/proctorhub/assessment-backend/internal/validator"
	"github.com/rs/zerolog"
)

// AssessmentHandler exposes the attempt lifecycle to candidates.
type AssessmentHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(attempts *service.AttemptService, log zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		attempts: attempts,
		log:      log.With().Str("component", "assessment_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/assessment/start
func (h *AssessmentHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, response.WithFields(fields))
		return
	}

	result, err := h.attempts.Start(c.Request.Context(), claims.UserID, uuid.MustParse(req.ExamID), model.NavigationMode(req.NavigationMode))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetState godoc
// GET /api/v1/assessment/:attemptId
func (h *AssessmentHandler) GetState(c *gin.Context) {
	claims, attemptID, ok := attemptRequest(c)
	if !ok {
		return
	}

	state, err := h.attempts.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SubmitAnswer godoc
// POST /api/v1/assessment/:attemptId/answer
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	claims, attemptID, ok := attemptRequest(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, response.WithFields(fields))
		return
	}

	if err := h.attempts.SubmitAnswer(c.Request.Context(), attemptID, claims.UserID, req.ToAnswer()); err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Answer saved"})
}

// ProctorEvent godoc
// POST /api/v1/assessment/:attemptId/proctor-event
func (h *AssessmentHandler) ProctorEvent(c *gin.Context) {
	claims, attemptID, ok := attemptRequest(c)
	if !ok {
		return
	}

	var req model.ProctorEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation, response.WithFields(fields))
		return
	}

	outcome, err := h.attempts.RecordViolation(c.Request.Context(), attemptID, claims.UserID, model.ViolationType(req.Type))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// Submit godoc
// POST /api/v1/assessment/:attemptId/submit
// Idempotent: a closed attempt returns its stored result.
func (h *AssessmentHandler) Submit(c *gin.Context) {
	claims, attemptID, ok := attemptRequest(c)
	if !ok {
		return
	}

	result, err := h.attempts.Submit(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// attemptRequest reads the caller's claims and the :attemptId path param,
// writing the error response itself when either is missing or malformed.
func attemptRequest(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	attemptID, err := uuid.Parse(c.Param("attemptId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, attemptID, true
}
