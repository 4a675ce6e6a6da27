package models

// Case health levels
const (
	CaseHealthGreen  = "GREEN"
	CaseHealthYellow = "YELLOW"
	CaseHealthRed    = "RED"
)

// Payment rails
const (
	RailUPI     = "UPI"
	RailUPIIMPS = "UPI/IMPS"
	RailNEFT    = "NEFT/IMPS"
)

type InstitutionStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// IntelligenceView is a read-only projection of a case. None of it is persisted.
type IntelligenceView struct {
	CaseID               string              `json:"case_id"`
	Rail                 string              `json:"rail"`
	RailSpeed            string              `json:"rail_speed"`
	BankDetected         string              `json:"bank_detected"`
	RiskScore            int                 `json:"risk_score"`
	RecoveryProbability  int                 `json:"recovery_probability"`
	PreviouslyReported   bool                `json:"previously_reported"`
	ReportCount          int                 `json:"report_count"`
	SLARemainingMinutes  int                 `json:"sla_remaining_minutes"`
	AgeMinutes           float64             `json:"age_minutes"`
	CurrentStatus        string              `json:"current_status"`
	FrozenAmount         float64             `json:"frozen_amount"`
	States               []string            `json:"states"`
	RecommendedNext      []string            `json:"recommended_next"`
	InstitutionalVisible []InstitutionStatus `json:"institutional_visibility"`
	CaseHealth           string              `json:"case_health"`
	BeneficiaryAvailable bool                `json:"beneficiary_available"`
}
