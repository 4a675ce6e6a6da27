package handlers

import (
	"errors"

	"github.com/fraudshield/backend/internal/http/dto"
	"github.com/fraudshield/backend/internal/middleware"
	"github.com/fraudshield/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LegalHandler struct {
	legalService *services.LegalService
	log          *zap.Logger
}

func NewLegalHandler(legalService *services.LegalService, log *zap.Logger) *LegalHandler {
	return &LegalHandler{legalService: legalService, log: log}
}

func (h *LegalHandler) Dispatch(c *fiber.Ctx) error {
	var req dto.LegalDispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		return badRequest(c, "invalid case_id")
	}

	d, err := h.legalService.Dispatch(c.Context(), caseID, req.Institution, middleware.GetOfficerName(c))
	if errors.Is(err, services.ErrDispatchFailed) {
		// The failed attempt is recorded; report it with the log row.
		return c.Status(fiber.StatusBadGateway).JSON(dto.SuccessResponse{OK: false, Data: d})
	}
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *LegalHandler) History(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid case id")
	}
	logs, err := h.legalService.History(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ListResponse{Items: logs, Limit: len(logs)})
}
