package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fraudshield/backend/internal/events"
	"github.com/fraudshield/backend/internal/fieldcrypt"
	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/rbac"
	"github.com/fraudshield/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLegitimacyScore = 50

type CaseRepository interface {
	Create(ctx context.Context, c *models.Case, entry *models.AuditLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	List(ctx context.Context, f repositories.CaseFilter) ([]models.Case, error)
	TransitionStatus(ctx context.Context, p repositories.TransitionParams) (*models.Case, error)
	ListBeneficiaryCiphertexts(ctx context.Context, excludeID uuid.UUID) ([]repositories.BeneficiaryCipher, error)
	ListStaleByStatus(ctx context.Context, status string, age time.Duration, limit int) ([]models.Case, error)
	Analytics(ctx context.Context) (*models.CaseAnalytics, error)
}

type AuditRepository interface {
	Log(ctx context.Context, entry *models.AuditLog) error
	ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
	ListRecent(ctx context.Context, limit int) ([]models.AuditLogWithCase, error)
}

// CaseService owns every read and write of fraud cases. Sensitive payload
// fields are encrypted before they reach the store and decrypted on reveal.
type CaseService struct {
	cases        CaseRepository
	audit        AuditRepository
	guard        *fieldcrypt.Guard
	publisher    events.Publisher
	storeTimeout time.Duration
	log          *zap.Logger
}

func NewCaseService(
	cases CaseRepository,
	audit AuditRepository,
	guard *fieldcrypt.Guard,
	publisher events.Publisher,
	storeTimeout time.Duration,
	log *zap.Logger,
) *CaseService {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &CaseService{
		cases:        cases,
		audit:        audit,
		guard:        guard,
		publisher:    publisher,
		storeTimeout: storeTimeout,
		log:          log,
	}
}

func (s *CaseService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeCall maps a deadline hit on a store call to ErrStoreUnavailable.
func storeCall(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, repositories.ErrStoreUnavailable) {
		return errors.Join(repositories.ErrStoreUnavailable, err)
	}
	return err
}

type CreateCaseInput struct {
	Origin          string
	Amount          string
	TxnID           *string
	UTR             *string
	BeneficiaryVPA  *string
	BankName        *string
	IncidentDate    *string
	LegitimacyScore *int
	Actor           string
}

// maxMoney is the exclusive upper bound of NUMERIC(18,2) money columns.
const maxMoney = 1e16

// ParseAmount accepts a decimal string and requires a finite positive value
// with at most two decimal places.
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid("amount", "is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid("amount", "must be a number, got %q", raw)
	}
	if v <= 0 {
		return 0, invalid("amount", "must be positive")
	}
	if err := checkMoney("amount", v); err != nil {
		return 0, err
	}
	return v, nil
}

// checkMoney rejects values a NUMERIC(18,2) column would round or overflow.
func checkMoney(field string, v float64) error {
	if v >= maxMoney {
		return invalid(field, "must be less than %.0f", maxMoney)
	}
	// Shortest representation that round-trips, so 0.1 stays "0.1".
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 2 {
		return invalid(field, "must have at most 2 decimal places")
	}
	return nil
}

func (s *CaseService) CreateCase(ctx context.Context, in CreateCaseInput) (*models.Case, error) {
	if !models.IsValidOrigin(in.Origin) {
		return nil, invalid("case_origin", "must be %s or %s", models.CaseOriginOCR, models.CaseOriginManual)
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	legitimacy := defaultLegitimacyScore
	if in.LegitimacyScore != nil {
		legitimacy = *in.LegitimacyScore
		if legitimacy < 0 || legitimacy > 100 {
			return nil, invalid("legitimacy_score", "must be between 0 and 100")
		}
	}

	utr, err := s.guard.Encrypt(nonEmpty(in.UTR))
	if err != nil {
		return nil, err
	}
	beneficiary, err := s.guard.Encrypt(nonEmpty(in.BeneficiaryVPA))
	if err != nil {
		return nil, err
	}

	c := &models.Case{
		Amount:     amount,
		Status:     models.CaseStatusIngested,
		CaseOrigin: in.Origin,
		Payload: models.Payload{
			TxnID:          nonEmpty(in.TxnID),
			TransactionRef: utr,
			BeneficiaryID:  beneficiary,
			BankName:       nonEmpty(in.BankName),
			IncidentDate:   nonEmpty(in.IncidentDate),
		},
		LegitimacyScore: legitimacy,
	}

	actor := in.Actor
	if actor == "" {
		actor = models.ActorSystem
	}
	entry := &models.AuditLog{
		Action:   models.AuditActionIngestionComplete,
		Actor:    actor,
		Metadata: map[string]any{"case_origin": in.Origin, "amount": amount},
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.cases.Create(sctx, c, entry); err != nil {
		return nil, storeCall(err)
	}

	s.log.Info("case ingested",
		zap.String("case_id", c.ID.String()),
		zap.String("origin", c.CaseOrigin),
		zap.Float64("amount", c.Amount),
	)

	if err := s.publisher.Publish(ctx, events.StreamCases, events.Event{
		Type: events.EventCaseCreated,
		Payload: map[string]any{
			"case_id": c.ID.String(),
			"status":  c.Status,
		},
	}); err != nil {
		s.log.Warn("publish case created failed", zap.String("case_id", c.ID.String()), zap.Error(err))
	}

	return c, nil
}

func (s *CaseService) GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.cases.GetByID(sctx, id)
	if err != nil {
		return nil, storeCall(err)
	}
	return c, nil
}

// GetCaseView returns the case with its sensitive fields decrypted.
func (s *CaseService) GetCaseView(ctx context.Context, id uuid.UUID) (*models.CaseView, error) {
	c, err := s.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.CaseView{Case: *c, Payload: s.Reveal(c)}, nil
}

// Reveal decrypts the sensitive payload fields of c. A field that fails to
// decrypt is left nil and listed as unavailable; it never fails the read.
func (s *CaseService) Reveal(c *models.Case) models.RevealedPayload {
	out := models.RevealedPayload{Payload: c.Payload}

	utr, err := s.guard.Decrypt(c.Payload.TransactionRef)
	if err != nil {
		s.log.Warn("utr unavailable", zap.String("case_id", c.ID.String()), zap.Error(err))
		out.Unavailable = append(out.Unavailable, "utr")
	}
	out.TransactionRef = utr

	beneficiary, err := s.guard.Decrypt(c.Payload.BeneficiaryID)
	if err != nil {
		s.log.Warn("beneficiary unavailable", zap.String("case_id", c.ID.String()), zap.Error(err))
		out.Unavailable = append(out.Unavailable, "beneficiary_vpa")
	}
	out.BeneficiaryID = beneficiary

	return out
}

func (s *CaseService) ListCases(ctx context.Context, status string, limit, offset int) ([]models.Case, error) {
	f := repositories.CaseFilter{Limit: limit, Offset: offset}
	if status != "" {
		if !models.IsKnownStatus(status) {
			return nil, invalid("status", "unknown status %q", status)
		}
		f.Status = &status
	}
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cases, err := s.cases.List(sctx, f)
	if err != nil {
		return nil, storeCall(err)
	}
	return cases, nil
}

type TransitionRequest struct {
	CaseID       uuid.UUID
	Status       string
	Extra        models.StatusExtra
	Actor        string
	Capabilities []string
}

// UpdateStatus moves a case along its lifecycle. The status change and its
// audit entry commit together or not at all; a concurrent change of the same
// case yields repositories.ErrConflict.
func (s *CaseService) UpdateStatus(ctx context.Context, req TransitionRequest) (*models.Case, error) {
	if err := rbac.AuthorizeTransition(req.Capabilities, req.Status); err != nil {
		return nil, err
	}
	if err := validateExtra(req.Extra); err != nil {
		return nil, err
	}

	current, err := s.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateTransition(current.Status, req.Status); err != nil {
		return nil, err
	}

	var frozen, total *float64
	switch req.Status {
	case models.CaseStatusFreezeConfirmed:
		frozen, total = req.Extra.FrozenAmount, req.Extra.TotalBalance
		if frozen == nil {
			amount := current.Amount
			frozen = &amount
		}
	case models.CaseStatusPartiallyFrozen:
		frozen, total = req.Extra.FrozenAmount, req.Extra.TotalBalance
	}

	actor := req.Actor
	if actor == "" {
		actor = models.ActorSystem
	}
	meta := map[string]any{
		"previous_status": current.Status,
		"new_status":      req.Status,
	}
	if frozen != nil {
		meta["frozen_amount"] = *frozen
	}
	if total != nil {
		meta["total_balance"] = *total
	}
	entry := &models.AuditLog{
		Action:   models.StatusChangeAction(req.Status),
		Actor:    actor,
		Metadata: meta,
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	updated, err := s.cases.TransitionStatus(sctx, repositories.TransitionParams{
		CaseID:       req.CaseID,
		FromStatus:   current.Status,
		ToStatus:     req.Status,
		FrozenAmount: frozen,
		TotalBalance: total,
		Audit:        entry,
	})
	if err != nil {
		return nil, storeCall(err)
	}

	s.log.Info("case status changed",
		zap.String("case_id", updated.ID.String()),
		zap.String("from", current.Status),
		zap.String("to", updated.Status),
		zap.String("actor", actor),
	)

	payload := map[string]any{
		"case_id":    updated.ID.String(),
		"old_status": current.Status,
		"new_status": updated.Status,
		"actor":      actor,
	}
	if updated.FrozenAmount != nil {
		payload["frozen_amount"] = *updated.FrozenAmount
	}
	if err := s.publisher.Publish(ctx, events.StreamCases, events.Event{
		Type:    events.EventCaseStatusChanged,
		Payload: payload,
	}); err != nil {
		s.log.Warn("publish status change failed", zap.String("case_id", updated.ID.String()), zap.Error(err))
	}

	return updated, nil
}

func validateExtra(extra models.StatusExtra) error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"frozen_amount", extra.FrozenAmount},
		{"total_balance", extra.TotalBalance},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if *f.v < 0 || math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return invalid(f.name, "must be a non-negative number")
		}
		if err := checkMoney(f.name, *f.v); err != nil {
			return err
		}
	}
	return nil
}

// CountPriorCasesByBeneficiary counts other cases whose decrypted beneficiary
// equals beneficiary. Entries that fail to decrypt count as non-matches.
func (s *CaseService) CountPriorCasesByBeneficiary(ctx context.Context, excludeID uuid.UUID, beneficiary string) (int, error) {
	if beneficiary == "" {
		return 0, nil
	}
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	candidates, err := s.cases.ListBeneficiaryCiphertexts(sctx, excludeID)
	if err != nil {
		return 0, storeCall(err)
	}

	count, skipped := 0, 0
	for _, c := range candidates {
		plain, err := s.guard.DecryptString(c.Ciphertext)
		if err != nil {
			skipped++
			continue
		}
		if plain == beneficiary {
			count++
		}
	}
	if skipped > 0 {
		s.log.Warn("skipped undecryptable beneficiaries",
			zap.String("case_id", excludeID.String()),
			zap.Int("skipped", skipped),
		)
	}
	return count, nil
}

// AuditTrail returns the audit entries of one case, newest first.
func (s *CaseService) AuditTrail(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	logs, err := s.audit.ListByCase(sctx, caseID, limit, offset)
	if err != nil {
		return nil, storeCall(err)
	}
	return logs, nil
}

func (s *CaseService) RecentAudit(ctx context.Context, limit int) ([]models.AuditLogWithCase, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	logs, err := s.audit.ListRecent(sctx, limit)
	if err != nil {
		return nil, storeCall(err)
	}
	return logs, nil
}

func (s *CaseService) Analytics(ctx context.Context) (*models.CaseAnalytics, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	a, err := s.cases.Analytics(sctx)
	if err != nil {
		return nil, storeCall(err)
	}
	return a, nil
}

// ListStale returns cases left in status for longer than age.
func (s *CaseService) ListStale(ctx context.Context, status string, age time.Duration, limit int) ([]models.Case, error) {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cases, err := s.cases.ListStaleByStatus(sctx, status, age, limit)
	if err != nil {
		return nil, storeCall(err)
	}
	return cases, nil
}

// LogAudit appends a standalone audit entry, e.g. for actions that do not change status.
func (s *CaseService) LogAudit(ctx context.Context, entry *models.AuditLog) error {
	sctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return storeCall(s.audit.Log(sctx, entry))
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
