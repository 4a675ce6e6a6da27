package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/fraudshield/backend/internal/http/dto"
	"github.com/fraudshield/backend/internal/middleware"
	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20

type CaseHandler struct {
	caseService         *services.CaseService
	intelligenceService *services.IntelligenceService
	ingestService       *services.IngestService
	log                 *zap.Logger
}

func NewCaseHandler(
	caseService *services.CaseService,
	intelligenceService *services.IntelligenceService,
	ingestService *services.IngestService,
	log *zap.Logger,
) *CaseHandler {
	return &CaseHandler{
		caseService:         caseService,
		intelligenceService: intelligenceService,
		ingestService:       ingestService,
		log:                 log,
	}
}

func (h *CaseHandler) CreateCase(c *fiber.Ctx) error {
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	origin := req.Origin
	if origin == "" {
		origin = models.CaseOriginManual
	}

	created, err := h.caseService.CreateCase(c.Context(), services.CreateCaseInput{
		Origin:          origin,
		Amount:          req.Payload.Amount.String(),
		TxnID:           req.Payload.TxnID,
		UTR:             req.Payload.UTR,
		BeneficiaryVPA:  req.Payload.BeneficiaryVPA,
		BankName:        req.Payload.BankName,
		IncidentDate:    req.Payload.IncidentDate,
		LegitimacyScore: req.Payload.LegitimacyScore,
		Actor:           middleware.GetOfficerName(c),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: created})
}

func (h *CaseHandler) ListCases(c *fiber.Ctx) error {
	limit, offset := pagination(c, 100)
	cases, err := h.caseService.ListCases(c.Context(), c.Query("status"), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ListResponse{Items: cases, Limit: limit, Offset: offset})
}

func (h *CaseHandler) GetCase(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid case id")
	}
	view, err := h.caseService.GetCaseView(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

func (h *CaseHandler) GetIntelligence(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid case id")
	}
	view, err := h.intelligenceService.GetIntelligence(c.Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(view)
}

func (h *CaseHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid case id")
	}

	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Status == "" {
		return badRequest(c, "status is required")
	}

	extra := models.StatusExtra{FrozenAmount: req.FrozenAmount, TotalBalance: req.TotalBalance}
	if req.Extra != nil {
		if req.Extra.FrozenAmount != nil {
			extra.FrozenAmount = req.Extra.FrozenAmount
		}
		if req.Extra.TotalBalance != nil {
			extra.TotalBalance = req.Extra.TotalBalance
		}
	}

	return h.transition(c, id, req.Status, extra)
}

// Escalate is UpdateStatus with the target fixed to ESCALATED.
func (h *CaseHandler) Escalate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid case id")
	}
	return h.transition(c, id, models.CaseStatusEscalated, models.StatusExtra{})
}

func (h *CaseHandler) transition(c *fiber.Ctx, id uuid.UUID, status string, extra models.StatusExtra) error {
	updated, err := h.caseService.UpdateStatus(c.Context(), services.TransitionRequest{
		CaseID:       id,
		Status:       status,
		Extra:        extra,
		Actor:        middleware.GetOfficerName(c),
		Capabilities: middleware.GetCapabilities(c),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

func (h *CaseHandler) GetAuditTrail(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid case id")
	}
	limit, offset := pagination(c, 100)
	logs, err := h.caseService.AuditTrail(c.Context(), id, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ListResponse{Items: logs, Limit: limit, Offset: offset})
}

// IngestOCR extracts case fields from an uploaded screenshot. Nothing is
// stored; the officer reviews the record and submits it through CreateCase.
func (h *CaseHandler) IngestOCR(c *fiber.Ctx) error {
	fh, err := c.FormFile("screenshot")
	if err != nil {
		return badRequest(c, "screenshot file is required")
	}
	if fh.Size > maxUploadBytes {
		return badRequest(c, "screenshot is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return badRequest(c, "unreadable upload")
	}

	rec, err := h.ingestService.ExtractScreenshot(c.Context(), data, fh.Header.Get(fiber.HeaderContentType))
	if errors.Is(err, services.ErrExtractionFailed) || errors.Is(err, services.ErrExtractionUnavailable) {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error:               "document extraction failed, enter the case manually",
			RequestID:           middleware.GetRequestID(c),
			ManualEntryRequired: true,
		})
	}
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ExtractionResponse{ExtractedData: rec})
}

func pagination(c *fiber.Ctx, defaultLimit int) (int, int) {
	limit, offset := defaultLimit, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
