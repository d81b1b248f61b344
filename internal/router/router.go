package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/handler"
	"github.com/sanjio/sanjio/internal/middleware"
	"github.com/sanjio/sanjio/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Exam     *handler.ExamHandler
	Admin    *handler.AdminHandler
	Question *handler.QuestionHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(response.AccessLog(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		authAPI.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)

		session := authAPI.Group("")
		session.Use(middleware.RequireAnyJWT(auth), middleware.CheckSingleDeviceSession(auth))
		session.GET("/me", handlers.Auth.Me)
		session.POST("/logout", handlers.Auth.Logout)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(auth),
		middleware.CheckSingleDeviceSession(auth),
		middleware.CacheControl("no-store"),
	)
	{
		candidateAPI.GET("/exams/:exam_id", handlers.Exam.GetInfo)
		candidateAPI.POST("/exams/:exam_id/start", handlers.Exam.StartAttempt)
		candidateAPI.GET("/exams/:exam_id/paper", handlers.Exam.GetPaper)
		candidateAPI.POST("/attempts/:attempt_id/finish", handlers.Exam.FinishAttempt)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(
		middleware.RequireCandidateWSAuth(auth),
		middleware.CheckSingleDeviceSession(auth),
	)
	{
		wsAPI.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAdminJWT(auth),
		middleware.CheckSingleDeviceSession(auth),
		middleware.CacheControl("no-store"),
	)
	{
		adminAPI.GET("/exams/:exam_id/settings", handlers.Admin.GetExamSettings)
		adminAPI.PATCH("/exams/:exam_id/settings", handlers.Admin.UpdateExamSettings)

		adminAPI.POST("/exams", handlers.Question.CreateExam)
		adminAPI.GET("/exams/:exam_id/questions", handlers.Question.ListQuestions)
		adminAPI.POST("/exams/:exam_id/questions", handlers.Question.AddQuestion)
		adminAPI.PUT("/exams/:exam_id/questions/order", handlers.Question.ReorderQuestions)
		adminAPI.PATCH("/exams/:exam_id/questions/:question_id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/exams/:exam_id/questions/:question_id", handlers.Question.DeleteQuestion)
	}

	return router
}
