package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/simmer-app/backend/config"
	"github.com/simmer-app/backend/internal/api"
	"github.com/simmer-app/backend/internal/database"
	"github.com/simmer-app/backend/internal/router"
	"github.com/simmer-app/backend/internal/server"
	"github.com/simmer-app/backend/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := database.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, enrichment caching disabled", zap.Error(err))
		redisClient = nil
	}

	var llmService *service.LLMService
	if cfg.LLMAPIKey != "" {
		llmService, err = service.NewLLMService(service.LLMConfig{
			APIKey:     cfg.LLMAPIKey,
			BaseURL:    cfg.LLMBaseURL,
			Model:      cfg.LLMModel,
			Timeout:    cfg.LLMTimeout,
			MaxRetries: cfg.LLMMaxRetries,
		}, redisClient, logger)
		if err != nil {
			logger.Fatal("failed to initialize enrichment client", zap.Error(err))
		}
	} else {
		logger.Warn("OPENROUTER_API_KEY not set, nutrition enrichment disabled")
	}

	var imageService *service.ImageService
	if cfg.AWSRegion != "" {
		imageService, err = service.NewImageService(context.Background(), cfg.S3Bucket, cfg.AWSRegion, logger)
		if err != nil {
			logger.Warn("image storage unavailable", zap.Error(err))
		}
	}

	store := service.NewRecipeStore(db.Gorm)
	var enricher service.NutritionEnricher
	if llmService != nil {
		enricher = llmService
	}
	recipeService := service.NewRecipeService(store, enricher, logger, service.RecipeServiceConfig{
		Atomic:        cfg.AtomicWrites,
		SyncNutrition: cfg.NutritionSync,
	})

	tokenService := service.NewTokenService(cfg.JWTSecret)
	identityService := service.NewIdentityService(db.Gorm)

	recipeHandler := api.NewRecipeHandler(recipeService, imageService, logger)
	llmHandler := api.NewLLMHandler(recipeService, llmService, logger)
	healthHandler := api.NewHealthHandler(db, redisClient, llmService)

	engine := router.SetupRouter(recipeHandler, llmHandler, healthHandler, tokenService, identityService)
	srv := server.New(engine, cfg.ServerHost, cfg.ServerPort, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("received signal", zap.String("signal", sig.String()))
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Fatal("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
