package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fraudshield/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier sends legal notices for a case. Delivery content is its concern;
// callers only learn whether the dispatch went out.
type Notifier interface {
	Dispatch(ctx context.Context, caseID uuid.UUID, institution string) (*DispatchReceipt, error)
}

type DispatchRepository interface {
	Create(ctx context.Context, d *models.DispatchLog) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.DispatchLog, error)
}

type LegalService struct {
	cases              *CaseService
	dispatches         DispatchRepository
	notifier           Notifier
	defaultInstitution string
	storeTimeout       time.Duration
	log                *zap.Logger
}

func NewLegalService(
	cases *CaseService,
	dispatches DispatchRepository,
	notifier Notifier,
	defaultInstitution string,
	storeTimeout time.Duration,
	log *zap.Logger,
) *LegalService {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &LegalService{
		cases:              cases,
		dispatches:         dispatches,
		notifier:           notifier,
		defaultInstitution: defaultInstitution,
		storeTimeout:       storeTimeout,
		log:                log,
	}
}

// Dispatch sends a legal notice for caseID to institution and records the
// outcome, successful or not, in the dispatch log and the audit trail. A
// notifier failure is returned wrapped in ErrDispatchFailed after recording.
func (s *LegalService) Dispatch(ctx context.Context, caseID uuid.UUID, institution, actor string) (*models.DispatchLog, error) {
	institution = strings.TrimSpace(institution)
	if institution == "" {
		institution = s.defaultInstitution
	}
	if actor == "" {
		actor = models.ActorSystem
	}

	if _, err := s.cases.GetCase(ctx, caseID); err != nil {
		return nil, err
	}

	receipt, sendErr := s.notifier.Dispatch(ctx, caseID, institution)

	d := &models.DispatchLog{
		CaseID:      caseID,
		Institution: institution,
		Status:      models.DispatchStatusSent,
	}
	if sendErr != nil {
		d.Status = models.DispatchStatusFailed
		s.log.Warn("legal dispatch failed",
			zap.String("case_id", caseID.String()),
			zap.String("institution", institution),
			zap.Error(sendErr),
		)
	} else if receipt != nil && receipt.MessageID != "" {
		id := receipt.MessageID
		d.MessageID = &id
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.dispatches.Create(sctx, d); err != nil {
		return nil, storeCall(err)
	}

	meta := map[string]any{
		"institution": institution,
		"status":      d.Status,
	}
	if d.MessageID != nil {
		meta["message_id"] = *d.MessageID
	}
	if err := s.cases.LogAudit(ctx, &models.AuditLog{
		CaseID:   caseID,
		Action:   models.AuditActionLegalDispatch,
		Actor:    actor,
		Metadata: meta,
	}); err != nil {
		return nil, err
	}

	if sendErr != nil {
		return d, fmt.Errorf("%w: %v", ErrDispatchFailed, sendErr)
	}

	s.log.Info("legal notice dispatched",
		zap.String("case_id", caseID.String()),
		zap.String("institution", institution),
	)
	return d, nil
}

func (s *LegalService) History(ctx context.Context, caseID uuid.UUID) ([]models.DispatchLog, error) {
	if _, err := s.cases.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	logs, err := s.dispatches.ListByCase(sctx, caseID)
	if err != nil {
		return nil, storeCall(err)
	}
	return logs, nil
}
