package dto

import "encoding/json"

type CasePayload struct {
	TxnID           *string     `json:"txn_id,omitempty"`
	Amount          json.Number `json:"amount"`
	UTR             *string     `json:"utr,omitempty"`
	BeneficiaryVPA  *string     `json:"beneficiary_vpa,omitempty"`
	BankName        *string     `json:"bank_name,omitempty"`
	IncidentDate    *string     `json:"incident_date,omitempty"`
	LegitimacyScore *int        `json:"legitimacy_score,omitempty"`
}

type CreateCaseRequest struct {
	Origin  string      `json:"origin"`
	Payload CasePayload `json:"payload"`
}

type StatusExtraRequest struct {
	FrozenAmount *float64 `json:"frozen_amount,omitempty"`
	TotalBalance *float64 `json:"total_balance,omitempty"`
}

// UpdateStatusRequest accepts the extras either nested under "extra" or at
// the top level; nested values win. The acting officer always comes from
// the bearer token.
type UpdateStatusRequest struct {
	Status       string              `json:"status"`
	Extra        *StatusExtraRequest `json:"extra,omitempty"`
	FrozenAmount *float64            `json:"frozen_amount,omitempty"`
	TotalBalance *float64            `json:"total_balance,omitempty"`
}

type LegalDispatchRequest struct {
	CaseID      string `json:"case_id"`
	Institution string `json:"institution"`
}

type OTPGenerateRequest struct {
	Phone string `json:"phone"`
}

type OTPVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}
