package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/handler"
	"github.com/stemsi/tutor-gateway/internal/middleware"
	"github.com/stemsi/tutor-gateway/internal/response"
	"github.com/stemsi/tutor-gateway/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Chat     *handler.ChatHandler
	Practice *handler.PracticeHandler
	WS       *handler.WSHandler
	System   *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
	handlers *Handlers,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", handlers.System.Health)

	// Rate limiter for chat sends (30 per minute per user).
	sendLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Chat Group (JWT) ───────────────────────────────────────────
	chatAPI := router.Group("/api/v1/chat")
	chatAPI.Use(middleware.RequireUserJWT(tokens))
	{
		chatAPI.POST("/bootstrap", handlers.Chat.Bootstrap)
		chatAPI.GET("/state", handlers.Chat.State)
		chatAPI.POST("/messages", sendLimiter.Middleware(), handlers.Chat.Send)
		chatAPI.POST("/history", handlers.Chat.LoadHistory)
	}

	// ─── 2. Practice Group (JWT) ───────────────────────────────────────
	practiceAPI := router.Group("/api/v1/practice")
	practiceAPI.Use(middleware.RequireUserJWT(tokens))
	{
		practiceAPI.POST("/sessions", handlers.Practice.Start)
		practiceAPI.GET("/sessions/:session_id", handlers.Practice.Get)
		practiceAPI.PUT("/sessions/:session_id/answers", handlers.Practice.RecordAnswer)
		practiceAPI.POST("/sessions/:session_id/submit", handlers.Practice.Submit)
		practiceAPI.DELETE("/sessions/:session_id", handlers.Practice.Close)
		practiceAPI.GET("/attempts", handlers.Practice.ListAttempts)
	}

	// ─── 3. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(tokens))
	{
		ws.GET("/chat/stream", handlers.WS.ChatEventStream)
	}

	return router
}
