package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/carefully-app/carefully-backend/internal/handlers"
	"github.com/carefully-app/carefully-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	UserHandler     *handlers.UserHandler
	ScenarioHandler *handlers.ScenarioHandler
	SessionHandler  *handlers.SessionHandler
	MediaDir        string
	MediaBaseURL    string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.MediaDir != "" && cfg.MediaBaseURL != "" {
		router.Static(cfg.MediaBaseURL, cfg.MediaDir)
	}
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetMe)
	protected.GET("/user/stats", cfg.UserHandler.GetStats)
	protected.POST("/user/avatar", cfg.UserHandler.UpdateAvatar)
	protected.GET("/user/scenarios", cfg.SessionHandler.ListForUser)
	protected.GET("/user/scenarios/:scenarioId", cfg.SessionHandler.Snapshot)
	// Scenarios
	protected.GET("/scenarios", cfg.ScenarioHandler.GetAll)
	protected.GET("/scenarios/:id", cfg.ScenarioHandler.GetByID)
	// Sessions
	protected.POST("/scenarios/:id/start", cfg.SessionHandler.Start)
	protected.POST("/scenarios/:id/conversation", cfg.SessionHandler.Conversation)
	protected.POST("/scenarios/:id/complete", cfg.SessionHandler.Complete)

	return router
}
