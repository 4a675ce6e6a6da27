package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/fraudshield/backend/internal/models"
	"go.uber.org/zap"
)

const maxScreenshotBytes = 10 << 20

// Extractor turns a document image into a structured record. Failures are
// expected; callers fall back to manual entry.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractedRecord, error)
}

type IngestService struct {
	extractor Extractor
	log       *zap.Logger
}

// NewIngestService accepts a nil extractor, in which case every extraction
// reports ErrExtractionUnavailable.
func NewIngestService(extractor Extractor, log *zap.Logger) *IngestService {
	return &IngestService{extractor: extractor, log: log}
}

func (s *IngestService) ExtractScreenshot(ctx context.Context, data []byte, mimeType string) (*models.ExtractedRecord, error) {
	if len(data) == 0 {
		return nil, invalid("screenshot", "is required")
	}
	if len(data) > maxScreenshotBytes {
		return nil, invalid("screenshot", "exceeds %d bytes", maxScreenshotBytes)
	}
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return nil, invalid("screenshot", "unsupported content type %q", mimeType)
	}
	if s.extractor == nil {
		return nil, ErrExtractionUnavailable
	}

	rec, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		s.log.Warn("extraction failed, manual entry required", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if rec.LegitimacyScore == nil {
		score := defaultLegitimacyScore
		rec.LegitimacyScore = &score
	}
	return rec, nil
}
