package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fraudshield/backend/internal/config"
	"github.com/fraudshield/backend/internal/db"
	"github.com/fraudshield/backend/internal/events"
	"github.com/fraudshield/backend/internal/extraction"
	"github.com/fraudshield/backend/internal/fieldcrypt"
	apphttp "github.com/fraudshield/backend/internal/http"
	"github.com/fraudshield/backend/internal/http/handlers"
	"github.com/fraudshield/backend/internal/repositories"
	"github.com/fraudshield/backend/internal/scoring"
	"github.com/fraudshield/backend/internal/services"
	"github.com/fraudshield/backend/migrations"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if err := cfg.Validate(log); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	guard, err := fieldcrypt.NewGuardFromHex(cfg.FieldEncryptionKey)
	if err != nil {
		log.Fatal("failed to initialise field encryption", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	auditRepo := repositories.NewAuditRepo(pool)
	caseRepo := repositories.NewCaseRepo(pool, auditRepo)
	dispatchRepo := repositories.NewDispatchRepo(pool)
	otpRepo := repositories.NewOTPRepo(rdb)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Document extraction is optional; without it officers enter cases manually.
	var extractor services.Extractor
	if cfg.GeminiAPIKey != "" {
		gemini, err := extraction.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Error("document extraction disabled", zap.Error(err))
		} else {
			extractor = gemini
		}
	}

	// Services
	notifier := services.NewNotifierClient(cfg.NotifierURL, log)
	caseService := services.NewCaseService(caseRepo, auditRepo, guard, publisher, cfg.StoreTimeout, log)
	intelligenceService := services.NewIntelligenceService(caseService, scoring.NewEngine(cfg.Scoring), log)
	ingestService := services.NewIngestService(extractor, log)
	legalService := services.NewLegalService(caseService, dispatchRepo, notifier, cfg.DefaultInstitution, cfg.StoreTimeout, log)
	otpService := services.NewOTPService(otpRepo, notifier, cfg.OTPTTL, log)

	// Handlers
	caseHandler := handlers.NewCaseHandler(caseService, intelligenceService, ingestService, log)
	adminHandler := handlers.NewAdminHandler(caseService, log)
	legalHandler := handlers.NewLegalHandler(legalService, log)
	otpHandler := handlers.NewOTPHandler(otpService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to case events", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 12 << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, caseHandler, adminHandler, legalHandler, otpHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
