package handlers

import (
	"errors"

	"github.com/fraudshield/backend/internal/http/dto"
	"github.com/fraudshield/backend/internal/middleware"
	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/rbac"
	"github.com/fraudshield/backend/internal/repositories"
	"github.com/fraudshield/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	var verr *services.ValidationError
	var terr *models.TransitionError
	switch {
	case errors.As(err, &verr), errors.As(err, &terr), errors.Is(err, repositories.ErrRejected):
		return fiber.StatusBadRequest
	case errors.Is(err, rbac.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, repositories.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, repositories.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, services.ErrExtractionFailed),
		errors.Is(err, services.ErrExtractionUnavailable),
		errors.Is(err, services.ErrDispatchFailed):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusFor(err)
	resp := dto.ErrorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(c)}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	switch status {
	case fiber.StatusNotFound:
		resp.Error = "case not found"
	case fiber.StatusConflict:
		resp.Error = "case status changed concurrently, reload and retry"
	case fiber.StatusServiceUnavailable:
		resp.Error = "store unavailable, retry later"
	case fiber.StatusInternalServerError:
		log.Error("unhandled error", zap.String("request_id", resp.RequestID), zap.Error(err))
		resp.Error = "internal error"
	}

	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}
