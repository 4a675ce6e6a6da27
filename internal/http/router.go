package http

import (
	"time"

	"github.com/fraudshield/backend/internal/config"
	"github.com/fraudshield/backend/internal/http/handlers"
	"github.com/fraudshield/backend/internal/middleware"
	"github.com/fraudshield/backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	caseHandler *handlers.CaseHandler,
	adminHandler *handlers.AdminHandler,
	legalHandler *handlers.LegalHandler,
	otpHandler *handlers.OTPHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// OTP (public, rate-limited per IP)
	otp := api.Group("/auth/otp", middleware.RateLimitMiddleware(rdb, 10, time.Minute, log))
	otp.Post("/generate", otpHandler.Generate)
	otp.Post("/verify", otpHandler.Verify)

	// Officer endpoints
	protected := api.Group("",
		middleware.AuthMiddleware(cfg, log),
		middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMin, time.Minute, log),
	)

	// Cases
	protected.Get("/cases", caseHandler.ListCases)
	protected.Post("/cases", caseHandler.CreateCase)
	protected.Post("/cases/ingest/ocr", caseHandler.IngestOCR)
	protected.Get("/cases/:id", caseHandler.GetCase)
	protected.Get("/cases/:id/intelligence", caseHandler.GetIntelligence)
	protected.Patch("/cases/:id/status", caseHandler.UpdateStatus)
	protected.Post("/cases/:id/escalate", caseHandler.Escalate)
	protected.Get("/cases/:id/audit", caseHandler.GetAuditTrail)
	protected.Get("/cases/:id/dispatches", legalHandler.History)

	// Legal
	protected.Post("/legal/dispatch", middleware.RequireCapability(rbac.CapFreeze), legalHandler.Dispatch)

	// Admin
	admin := protected.Group("/admin", middleware.RequireCapability(rbac.CapAdmin))
	admin.Get("/analytics", adminHandler.Analytics)
	admin.Get("/audit-logs", adminHandler.AuditLogs)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
