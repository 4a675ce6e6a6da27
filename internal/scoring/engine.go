// Package scoring derives recovery and risk figures from case data. Everything
// here is a pure function of its inputs.
package scoring

import (
	"math"
	"time"

	"github.com/fraudshield/backend/internal/models"
)

// Params holds every tunable threshold used by the engine.
type Params struct {
	DecayPerMinute         float64
	ProbabilityFloor       float64
	SLAWindow              time.Duration
	LegitimacyThreshold    int
	BaseLowRisk            int
	BaseHighRisk           int
	CorrelationBonus       int
	RiskCeiling            int
	HealthRedRisk          int
	HealthRedAgeMinutes    float64
	HealthYellowRisk       int
	HealthYellowAgeMinutes float64
}

func DefaultParams() Params {
	return Params{
		DecayPerMinute:         0.5,
		ProbabilityFloor:       10,
		SLAWindow:              30 * time.Minute,
		LegitimacyThreshold:    70,
		BaseLowRisk:            20,
		BaseHighRisk:           60,
		CorrelationBonus:       30,
		RiskCeiling:            95,
		HealthRedRisk:          90,
		HealthRedAgeMinutes:    120,
		HealthYellowRisk:       70,
		HealthYellowAgeMinutes: 60,
	}
}

// Input is the subset of a case the engine needs, plus the correlation count.
type Input struct {
	Status             string
	Amount             float64
	FrozenAmount       *float64
	LegitimacyScore    int
	CreatedAt          time.Time
	PriorOffenderCount int
}

type Result struct {
	AgeMinutes          float64
	RecoveryProbability int
	RiskScore           int
	PriorOffenderCount  int
	CaseHealth          string
	SLARemainingMinutes int
}

type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine {
	return &Engine{p: p}
}

func (e *Engine) Params() Params {
	return e.p
}

func (e *Engine) Score(in Input, now time.Time) Result {
	age := AgeMinutes(in.CreatedAt, now)
	risk := e.RiskScore(in.LegitimacyScore, in.PriorOffenderCount)
	return Result{
		AgeMinutes:          age,
		RecoveryProbability: e.RecoveryProbability(in.Status, in.Amount, in.FrozenAmount, age),
		RiskScore:           risk,
		PriorOffenderCount:  in.PriorOffenderCount,
		CaseHealth:          e.CaseHealth(risk, age),
		SLARemainingMinutes: e.SLARemaining(age),
	}
}

// AgeMinutes is fractional; a created_at in the future counts as zero.
func AgeMinutes(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt).Minutes()
	if age < 0 {
		return 0
	}
	return age
}

func (e *Engine) RecoveryProbability(status string, amount float64, frozen *float64, ageMinutes float64) int {
	p := math.Max(e.p.ProbabilityFloor, 100-e.p.DecayPerMinute*ageMinutes)

	switch {
	case status == models.CaseStatusFreezeConfirmed || status == models.CaseStatusFundsCredited:
		p = 100
	case status == models.CaseStatusPartiallyFrozen && frozen != nil:
		if amount == 0 {
			p = 0
		} else {
			p = math.Min(100, 100*(*frozen)/amount)
		}
	case status == models.CaseStatusRejected:
		p = 0
	}

	return clamp(int(math.Round(p)), 0, 100)
}

func (e *Engine) RiskScore(legitimacyScore, priorOffenders int) int {
	score := e.p.BaseHighRisk
	if legitimacyScore > e.p.LegitimacyThreshold {
		score = e.p.BaseLowRisk
	}
	if priorOffenders > 0 {
		score += e.p.CorrelationBonus
	}
	if score > e.p.RiskCeiling {
		score = e.p.RiskCeiling
	}
	return score
}

func (e *Engine) CaseHealth(riskScore int, ageMinutes float64) string {
	switch {
	case riskScore > e.p.HealthRedRisk || ageMinutes > e.p.HealthRedAgeMinutes:
		return models.CaseHealthRed
	case riskScore > e.p.HealthYellowRisk || ageMinutes > e.p.HealthYellowAgeMinutes:
		return models.CaseHealthYellow
	default:
		return models.CaseHealthGreen
	}
}

// SLARemaining counts down the current SLA window, restarting each window.
// Partial minutes round up.
func (e *Engine) SLARemaining(ageMinutes float64) int {
	window := e.p.SLAWindow.Minutes()
	if window <= 0 {
		return 0
	}
	remaining := window - math.Mod(ageMinutes, window)
	if remaining < 0 {
		return 0
	}
	return int(math.Ceil(remaining))
}

// InstitutionalVisibility reports which institutions have seen the case so far.
func InstitutionalVisibility(status string, ageMinutes float64) []models.InstitutionStatus {
	victimBank := "PENDING"
	if ageMinutes > 2 {
		victimBank = "COMPLETED"
	}

	beneficiaryBank := "AWAITING"
	switch {
	case status == models.CaseStatusBankReview:
		beneficiaryBank = "IN_PROGRESS"
	case models.StatusIndex(status) > models.StatusIndex(models.CaseStatusBankReview):
		beneficiaryBank = "COMPLETED"
	}

	npci := "PENDING"
	if ageMinutes > 5 {
		npci = "COMPLETED"
	}

	ombudsman := "IDLE"
	if status == models.CaseStatusEscalated {
		ombudsman = "INVESTIGATING"
	}

	return []models.InstitutionStatus{
		{Name: "Victim Bank", Status: victimBank},
		{Name: "Beneficiary Bank", Status: beneficiaryBank},
		{Name: "NPCI", Status: npci},
		{Name: "Ombudsman", Status: ombudsman},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
