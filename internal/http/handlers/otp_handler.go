package handlers

import (
	"github.com/fraudshield/backend/internal/http/dto"
	"github.com/fraudshield/backend/internal/middleware"
	"github.com/fraudshield/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type OTPHandler struct {
	otpService *services.OTPService
	log        *zap.Logger
}

func NewOTPHandler(otpService *services.OTPService, log *zap.Logger) *OTPHandler {
	return &OTPHandler{otpService: otpService, log: log}
}

func (h *OTPHandler) Generate(c *fiber.Ctx) error {
	var req dto.OTPGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := h.otpService.Generate(c.Context(), req.Phone); err != nil {
		if StatusFor(err) == fiber.StatusInternalServerError {
			h.log.Warn("otp delivery failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error:     "could not deliver code",
				RequestID: middleware.GetRequestID(c),
			})
		}
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.StatusResponse{Status: "SENT"})
}

func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	var req dto.OTPVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	ok, err := h.otpService.Verify(c.Context(), req.Phone, req.Code)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !ok {
		return badRequest(c, "invalid or expired OTP")
	}
	return c.JSON(dto.StatusResponse{Status: "VERIFIED"})
}
