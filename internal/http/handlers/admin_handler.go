package handlers

import (
	"github.com/fraudshield/backend/internal/http/dto"
	"github.com/fraudshield/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const recentAuditLimit = 50

type AdminHandler struct {
	caseService *services.CaseService
	log         *zap.Logger
}

func NewAdminHandler(caseService *services.CaseService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{caseService: caseService, log: log}
}

func (h *AdminHandler) Analytics(c *fiber.Ctx) error {
	stats, err := h.caseService.Analytics(c.Context())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(stats)
}

func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	logs, err := h.caseService.RecentAudit(c.Context(), recentAuditLimit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ListResponse{Items: logs, Limit: recentAuditLimit})
}
