package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/scoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var utrPattern = regexp.MustCompile(`^\d{12}$`)

const (
	railSpeedInstant  = "Instant (< 1s)"
	railSpeedDeferred = "T+2 hours"
	bankDetectedByUTR = "Detected via UTR"
)

// IntelligenceService composes the read-only recovery view of a case.
// Nothing it computes is written back.
type IntelligenceService struct {
	cases  *CaseService
	engine *scoring.Engine
	now    func() time.Time
	log    *zap.Logger
}

func NewIntelligenceService(cases *CaseService, engine *scoring.Engine, log *zap.Logger) *IntelligenceService {
	return &IntelligenceService{cases: cases, engine: engine, now: time.Now, log: log}
}

func (s *IntelligenceService) GetIntelligence(ctx context.Context, caseID uuid.UUID) (*models.IntelligenceView, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	revealed := s.cases.Reveal(c)

	beneficiary := deref(revealed.BeneficiaryID)
	priors := 0
	if beneficiary != "" {
		priors, err = s.cases.CountPriorCasesByBeneficiary(ctx, c.ID, beneficiary)
		if err != nil {
			return nil, err
		}
	}

	res := s.engine.Score(scoring.Input{
		Status:             c.Status,
		Amount:             c.Amount,
		FrozenAmount:       c.FrozenAmount,
		LegitimacyScore:    c.LegitimacyScore,
		CreatedAt:          c.CreatedAt,
		PriorOffenderCount: priors,
	}, s.now())

	rail := DetectRail(beneficiary, deref(revealed.TransactionRef))
	speed := railSpeedDeferred
	if rail == models.RailUPI {
		speed = railSpeedInstant
	}
	bank := bankDetectedByUTR
	if b := deref(c.Payload.BankName); b != "" {
		bank = b
	}

	var frozen float64
	if c.FrozenAmount != nil {
		frozen = *c.FrozenAmount
	}

	return &models.IntelligenceView{
		CaseID:               c.ID.String(),
		Rail:                 rail,
		RailSpeed:            speed,
		BankDetected:         bank,
		RiskScore:            res.RiskScore,
		RecoveryProbability:  res.RecoveryProbability,
		PreviouslyReported:   priors > 0,
		ReportCount:          priors,
		SLARemainingMinutes:  res.SLARemainingMinutes,
		AgeMinutes:           res.AgeMinutes,
		CurrentStatus:        c.Status,
		FrozenAmount:         frozen,
		States:               append([]string(nil), models.CaseStatuses...),
		RecommendedNext:      append([]string{}, models.ValidCaseTransitions[c.Status]...),
		InstitutionalVisible: scoring.InstitutionalVisibility(c.Status, res.AgeMinutes),
		CaseHealth:           res.CaseHealth,
		BeneficiaryAvailable: revealed.BeneficiaryID != nil,
	}, nil
}

// DetectRail infers the payment network from the shape of the decrypted identifiers.
func DetectRail(beneficiary, utr string) string {
	switch {
	case strings.Contains(beneficiary, "@"):
		return models.RailUPI
	case utrPattern.MatchString(utr):
		return models.RailUPIIMPS
	default:
		return models.RailNEFT
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
