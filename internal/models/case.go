package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Case statuses
const (
	CaseStatusIngested        = "INGESTED"
	CaseStatusFreezeSent      = "FREEZE_SENT"
	CaseStatusBankReview      = "BANK_REVIEW"
	CaseStatusFreezeConfirmed = "FREEZE_CONFIRMED"
	CaseStatusPartiallyFrozen = "PARTIALLY_FROZEN"
	CaseStatusRejected        = "REJECTED"
	CaseStatusEscalated       = "ESCALATED"
	CaseStatusFundsCredited   = "FUNDS_CREDITED"
)

// CaseStatuses lists every lifecycle state in display order.
var CaseStatuses = []string{
	CaseStatusIngested,
	CaseStatusFreezeSent,
	CaseStatusBankReview,
	CaseStatusFreezeConfirmed,
	CaseStatusPartiallyFrozen,
	CaseStatusRejected,
	CaseStatusEscalated,
	CaseStatusFundsCredited,
}

// Valid state transitions: from -> []to
var ValidCaseTransitions = map[string][]string{
	CaseStatusIngested:        {CaseStatusFreezeSent},
	CaseStatusFreezeSent:      {CaseStatusBankReview},
	CaseStatusBankReview:      {CaseStatusFreezeConfirmed, CaseStatusPartiallyFrozen, CaseStatusRejected},
	CaseStatusFreezeConfirmed: {CaseStatusEscalated},
	CaseStatusPartiallyFrozen: {CaseStatusEscalated},
	CaseStatusEscalated:       {CaseStatusFundsCredited},
	CaseStatusRejected:        {},
	CaseStatusFundsCredited:   {},
}

// Case origins
const (
	CaseOriginOCR    = "OCR"
	CaseOriginManual = "MANUAL"
)

// TransitionError is returned when the requested status is not reachable from the current one.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// ValidateTransition reports whether from -> to is an edge of the case lifecycle.
// It never touches storage.
func ValidateTransition(from, to string) error {
	for _, s := range ValidCaseTransitions[from] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

func IsValidTransition(from, to string) bool {
	return ValidateTransition(from, to) == nil
}

func IsKnownStatus(status string) bool {
	_, ok := ValidCaseTransitions[status]
	return ok
}

func IsTerminalStatus(status string) bool {
	next, ok := ValidCaseTransitions[status]
	return ok && len(next) == 0
}

// StatusIndex returns the position of status in CaseStatuses, or -1.
func StatusIndex(status string) int {
	for i, s := range CaseStatuses {
		if s == status {
			return i
		}
	}
	return -1
}

func IsValidOrigin(origin string) bool {
	return origin == CaseOriginOCR || origin == CaseOriginManual
}

// Payload holds the domain fields of a case. TransactionRef and BeneficiaryID
// carry ciphertext whenever the payload belongs to a stored case.
type Payload struct {
	TxnID          *string `json:"txn_id,omitempty"`
	TransactionRef *string `json:"utr,omitempty"`
	BeneficiaryID  *string `json:"beneficiary_vpa,omitempty"`
	BankName       *string `json:"bank_name,omitempty"`
	IncidentDate   *string `json:"incident_date,omitempty"`
}

type Case struct {
	ID              uuid.UUID `json:"id"`
	Amount          float64   `json:"amount"`
	Status          string    `json:"status"`
	CaseOrigin      string    `json:"case_origin"`
	Payload         Payload   `json:"payload"`
	LegitimacyScore int       `json:"legitimacy_score"`
	FrozenAmount    *float64  `json:"frozen_amount,omitempty"`
	TotalBalance    *float64  `json:"total_balance,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RevealedPayload is a payload with sensitive fields decrypted for display.
// Fields that could not be decrypted are nil and named in Unavailable.
type RevealedPayload struct {
	Payload
	Unavailable []string `json:"unavailable,omitempty"`
}

// CaseView is a case as returned to officers.
type CaseView struct {
	Case
	Payload RevealedPayload `json:"payload"`
}

// StatusExtra carries values that only specific transitions may set.
type StatusExtra struct {
	FrozenAmount *float64 `json:"frozen_amount,omitempty"`
	TotalBalance *float64 `json:"total_balance,omitempty"`
}

// ExtractedRecord is what the document extraction service returns for a screenshot.
type ExtractedRecord struct {
	TxnID           *string  `json:"txn_id,omitempty"`
	Amount          *float64 `json:"amount,omitempty"`
	UTR             *string  `json:"utr,omitempty"`
	BeneficiaryVPA  *string  `json:"beneficiary_vpa,omitempty"`
	BankName        *string  `json:"bank_name,omitempty"`
	IncidentDate    *string  `json:"incident_date,omitempty"`
	LegitimacyScore *int     `json:"legitimacy_score,omitempty"`
}

type CaseAnalytics struct {
	TotalCases     int     `json:"total_cases"`
	FullFreeze     int     `json:"full_freeze"`
	PartialFreeze  int     `json:"partial_freeze"`
	Rejected       int     `json:"rejected"`
	TotalRecovered float64 `json:"total_recovered"`
}
