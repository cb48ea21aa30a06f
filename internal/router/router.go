package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/proctorhub/assessment-backend/internal/config"
	"github.com/proctorhub/assessment-backend/internal/handler"
	"github.com/proctorhub/assessment-backend/internal/middleware"
	"github.com/proctorhub/assessment-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment *handler.AssessmentHandler
	Candidate  *handler.CandidateHandler
	Admin      *handler.AdminHandler
	Monitor    *handler.MonitorHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// startLimiter throttles attempt creation per candidate; nil disables it.
func SetupRouter(
	tokens middleware.TokenValidator,
	handlers *Handlers,
	startLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Assessment Group (Candidate JWT) ───────────────────────────
	assessment := router.Group("/api/v1/assessment")
	assessment.Use(middleware.RequireCandidateJWT(tokens))
	{
		start := []gin.HandlerFunc{handlers.Assessment.Start}
		if startLimiter != nil {
			start = append([]gin.HandlerFunc{startLimiter.MiddlewareByKey(middleware.CandidateKey)}, start...)
		}
		assessment.POST("/start", start...)
		assessment.GET("/:attemptId", handlers.Assessment.GetState)
		assessment.POST("/:attemptId/answer", handlers.Assessment.SubmitAnswer)
		assessment.POST("/:attemptId/proctor-event", handlers.Assessment.ProctorEvent)
		assessment.POST("/:attemptId/submit", handlers.Assessment.Submit)
	}

	// ─── 2. Candidate Group (Candidate JWT) ────────────────────────────
	candidate := router.Group("/api/v1/candidate")
	candidate.Use(middleware.RequireCandidateJWT(tokens))
	{
		candidate.GET("/dashboard", handlers.Candidate.Dashboard)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(tokens))
	{
		ws.GET("/assessment/:attemptId/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group (Admin JWT) ────────────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.RequireAdminJWT(tokens))
	{
		admin.GET("/overview", handlers.Admin.Overview)
		admin.GET("/attempts", handlers.Admin.ListAttempts)
		if handlers.Monitor != nil {
			admin.GET("/exams/:examId/monitor", handlers.Monitor.MonitorExamSSE)
		}
	}

	return router
}
