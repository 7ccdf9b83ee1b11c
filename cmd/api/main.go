package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/steelycan/autograde/internal/config"
	"github.com/steelycan/autograde/internal/database"
	"github.com/steelycan/autograde/internal/handler"
	"github.com/steelycan/autograde/internal/middleware"
	"github.com/steelycan/autograde/internal/repository"
	"github.com/steelycan/autograde/internal/router"
	"github.com/steelycan/autograde/internal/service"
	"github.com/steelycan/autograde/pkg/ai"
	cloud "github.com/steelycan/autograde/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&repository.EvaluationLogRow{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	engine, err := ai.NewOpenAIEngine(ai.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.GradingModel,
		VisionModel: cfg.VisionModel,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to create ai engine: %v", err)
	}

	// Vision is an optional collaborator: a nil extractor makes the
	// normalizer reject image submissions outright.
	var vision ai.VisionExtractor
	if cfg.VisionEnabled() {
		vision = engine
	}

	var storage service.FileStorage
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	logRepo := repository.NewEvaluationLogRepository(db)
	sessions := service.NewSessionManager(logger)
	normalizer := service.NewNormalizer(vision, logger)

	gradingService := service.NewGradingService(engine, normalizer, storage, logRepo, validate, cfg.MaxImageMB, logger)
	feedbackService := service.NewFeedbackService(engine, logRepo, validate, logger)

	gradingHandler := handler.NewGradingHandler(gradingService, feedbackService, sessions, logger)
	historyHandler := handler.NewHistoryHandler(sessions, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxImageMB + 2) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		GradingHandler: gradingHandler,
		HistoryHandler: historyHandler,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
		VisionEnabled:  cfg.VisionEnabled(),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
