package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/response"
	"github.com/proctorhub/assessment-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 30 * time.Second

// MonitorHandler streams live attempt activity of one exam to admins.
type MonitorHandler struct {
	rdb       *redis.Client
	dashboard *service.DashboardService
	log       zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, dashboard *service.DashboardService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:       rdb,
		dashboard: dashboard,
		log:       log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:examId/monitor
// Sends a snapshot of every attempt of the exam, then each attempt event as
// it is published, with periodic pings.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("examId"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	// Subscribe before the snapshot so no event falls between the two.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	exam, attempts, err := h.dashboard.ExamSnapshot(reqCtx, examID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	inProgress := 0
	for _, a := range attempts {
		if !a.Status.IsTerminal() {
			inProgress++
		}
	}
	c.SSEvent("snapshot", gin.H{
		"exam": gin.H{
			"id":              exam.ID,
			"title":           exam.Title,
			"durationMinutes": exam.DurationMinutes,
			"totalQuestions":  len(exam.Questions),
		},
		"stats": gin.H{
			"attempts":   len(attempts),
			"inProgress": inProgress,
		},
		"attempts": attempts,
	})
	c.Writer.Flush()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	ch := pubsub.Channel()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON attempt events; forward them as-is.
			_, _ = c.Writer.WriteString("event: attempt\ndata: ")
			_, _ = c.Writer.WriteString(msg.Payload)
			_, _ = c.Writer.WriteString("\n\n")
			c.Writer.Flush()

		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}
