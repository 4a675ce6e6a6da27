package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known actors and actions.
const (
	ActorSystem      = "SYSTEM"
	ActorSystemTimer = "SYSTEM_TIMER"

	AuditActionIngestionComplete = "INGESTION_COMPLETE"
	AuditActionLegalDispatch     = "LEGAL_DISPATCH"
	auditActionStatusPrefix      = "STATUS_CHANGE_"
)

// StatusChangeAction returns the audit action tag for a transition into status.
func StatusChangeAction(status string) string {
	return auditActionStatusPrefix + status
}

// AuditLog is append-only; rows are never updated or deleted.
type AuditLog struct {
	ID        uuid.UUID      `json:"id"`
	CaseID    uuid.UUID      `json:"case_id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditLogWithCase adds the case amount for admin listings.
type AuditLogWithCase struct {
	AuditLog
	CaseAmount *float64 `json:"case_amount,omitempty"`
}

// Dispatch statuses
const (
	DispatchStatusSent   = "SENT"
	DispatchStatusFailed = "FAILED"
)

type DispatchLog struct {
	ID          uuid.UUID `json:"id"`
	CaseID      uuid.UUID `json:"case_id"`
	Institution string    `json:"institution"`
	MessageID   *string   `json:"message_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
