package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/carefully-app/carefully-backend/internal/clients/redis"
	"github.com/carefully-app/carefully-backend/internal/db"
	"github.com/carefully-app/carefully-backend/internal/handlers"
	"github.com/carefully-app/carefully-backend/internal/logger"
	"github.com/carefully-app/carefully-backend/internal/middleware"
	"github.com/carefully-app/carefully-backend/internal/repos"
	"github.com/carefully-app/carefully-backend/internal/server"
	"github.com/carefully-app/carefully-backend/internal/services"
	"github.com/carefully-app/carefully-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	turnTarget := utils.GetEnvAsInt("SESSION_TURN_TARGET", 3, log)
	seedPath := utils.GetEnv("SCENARIO_SEED_PATH", "config/scenarios.yaml", log)
	mediaDir := utils.GetEnv("MEDIA_DIR", "media", log)
	mediaBaseURL := utils.GetEnv("MEDIA_BASE_URL", "/media", log)
	port := utils.GetEnv("PORT", "8080", log)

	// Database
	dbService, err := db.NewService(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = dbService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	theDB := dbService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(theDB, log)
	userTokenRepo := repos.NewUserTokenRepo(theDB, log)
	scenarioRepo := repos.NewScenarioRepo(theDB, log)
	userScenarioRepo := repos.NewUserScenarioRepo(theDB, log)
	aiCallLogRepo := repos.NewAICallLogRepo(theDB, log)

	// Services
	log.Info("Setting up Services from main...")
	catalogCache, err := redis.NewCatalogCache(log)
	if err != nil {
		log.Warn("Could not init catalog cache, running without it", "error", err)
		catalogCache = nil
	}
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	avatarService, err := services.NewAvatarService(log)
	if err != nil {
		log.Warn("Could not init AvatarService, running without avatars", "error", err)
		avatarService = nil
	}
	authService := services.NewAuthService(theDB, log, userRepo, userTokenRepo, avatarService, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(theDB, log, userRepo, userScenarioRepo, avatarService)
	scenarioService := services.NewScenarioService(theDB, log, scenarioRepo, catalogCache)
	roleplayService := services.NewRoleplayService(log, openaiClient, aiCallLogRepo)
	sessionLocks := services.NewSessionLocks()
	sessionService := services.NewSessionService(theDB, log, scenarioService, userScenarioRepo, roleplayService, sessionLocks)
	conversationService := services.NewConversationService(theDB, log, scenarioService, userScenarioRepo, roleplayService, sessionLocks, turnTarget)
	completionService := services.NewCompletionService(theDB, log, userScenarioRepo, userRepo, sessionLocks)

	// Scenario catalog seed
	if seedPath != "" {
		if err := scenarioService.SeedFromFile(context.Background(), seedPath); err != nil {
			log.Warn("Scenario seeding failed", "path", seedPath, "error", err)
		}
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	scenarioHandler := handlers.NewScenarioHandler(scenarioService)
	sessionHandler := handlers.NewSessionHandler(sessionService, conversationService, completionService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		UserHandler:     userHandler,
		ScenarioHandler: scenarioHandler,
		SessionHandler:  sessionHandler,
		MediaDir:        mediaDir,
		MediaBaseURL:    mediaBaseURL,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
