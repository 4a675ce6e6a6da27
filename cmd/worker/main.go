package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fraudshield/backend/internal/config"
	"github.com/fraudshield/backend/internal/db"
	"github.com/fraudshield/backend/internal/events"
	"github.com/fraudshield/backend/internal/fieldcrypt"
	"github.com/fraudshield/backend/internal/repositories"
	"github.com/fraudshield/backend/internal/services"
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

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	auditRepo := repositories.NewAuditRepo(pool)
	caseRepo := repositories.NewCaseRepo(pool, auditRepo)
	dispatchRepo := repositories.NewDispatchRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	notifier := services.NewNotifierClient(cfg.NotifierURL, log)
	caseService := services.NewCaseService(caseRepo, auditRepo, guard, publisher, cfg.StoreTimeout, log)
	legalService := services.NewLegalService(caseService, dispatchRepo, notifier, cfg.DefaultInstitution, cfg.StoreTimeout, log)
	autoFreeze := services.NewAutoFreezeJob(caseService, legalService, cfg.AutoFreezeAfter, log)

	// Health endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "auto_freeze": cfg.AutoFreezeEnabled})
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := app.Listen(addr); err != nil {
			log.Error("worker health server stopped", zap.Error(err))
		}
	}()
	defer app.Shutdown()

	log.Info("worker started",
		zap.Bool("auto_freeze", cfg.AutoFreezeEnabled),
		zap.Duration("auto_freeze_after", cfg.AutoFreezeAfter),
	)

	interval := cfg.AutoFreezeInterval
	if interval <= 0 {
		interval = time.Minute
	}
	freezeTicker := time.NewTicker(interval)
	defer freezeTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-freezeTicker.C:
			if !cfg.AutoFreezeEnabled {
				continue
			}
			if _, err := autoFreeze.Run(ctx); err != nil {
				log.Error("auto freeze run failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
