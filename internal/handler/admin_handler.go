package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/rs/zerolog"
)

// AdminHandler serves platform-wide attempt views.
type AdminHandler struct {
	dashboard *service.DashboardService
	log       zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(dashboard *service.DashboardService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		dashboard: dashboard,
		log:       log.With().Str("component", "admin_handler").Logger(),
	}
}

// Overview godoc
// GET /api/v1/admin/overview
func (h *AdminHandler) Overview(c *gin.Context) {
	overview, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, overview)
}

// ListAttempts godoc
// GET /api/v1/admin/attempts?page=1&per_page=20
func (h *AdminHandler) ListAttempts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	attempts, pagination, err := h.dashboard.ListAttempts(c.Request.Context(), page, perPage)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, attempts, pagination)
}
