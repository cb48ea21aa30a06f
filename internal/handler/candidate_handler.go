package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/proctorhub/assessment-backend/internal/middleware"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/rs/zerolog"
)

// CandidateHandler serves the candidate's own history.
type CandidateHandler struct {
	dashboard *service.DashboardService
	log       zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(dashboard *service.DashboardService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		dashboard: dashboard,
		log:       log.With().Str("component", "candidate_handler").Logger(),
	}
}

// Dashboard godoc
// GET /api/v1/candidate/dashboard
func (h *CandidateHandler) Dashboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	dash, err := h.dashboard.CandidateDashboard(c.Request.Context(), claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, dash)
}
