package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fraudshield/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo appends and reads audit entries. It has no update or delete path.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append writes entry through q, which is usually the transaction that
// committed the change being audited.
func (r *AuditRepo) Append(ctx context.Context, q DBTX, entry *models.AuditLog) error {
	meta := entry.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	err = q.QueryRow(ctx, `
		INSERT INTO audit_logs (case_id, action, actor, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, entry.CaseID, entry.Action, entry.Actor, metaBytes).Scan(&entry.ID, &entry.Timestamp)
	return storeErr("append audit", err)
}

// Log appends an entry outside of any caller transaction.
func (r *AuditRepo) Log(ctx context.Context, entry *models.AuditLog) error {
	return r.Append(ctx, r.pool, entry)
}

func (r *AuditRepo) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, case_id, action, actor, metadata, created_at
		FROM audit_logs WHERE case_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, caseID, limit, offset)
	if err != nil {
		return nil, storeErr("list audit by case", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		var metaBytes []byte
		if err := rows.Scan(&l.ID, &l.CaseID, &l.Action, &l.Actor, &metaBytes, &l.Timestamp); err != nil {
			return nil, storeErr("scan audit", err)
		}
		if l.Metadata, err = decodeMetadata(metaBytes); err != nil {
			return nil, fmt.Errorf("audit %s: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, storeErr("list audit by case", rows.Err())
}

// ListRecent returns the newest entries across all cases, joined with the case amount.
func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]models.AuditLogWithCase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.case_id, a.action, a.actor, a.metadata, a.created_at, c.amount
		FROM audit_logs a
		LEFT JOIN cases c ON c.id = a.case_id
		ORDER BY a.created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, storeErr("list recent audit", err)
	}
	defer rows.Close()

	logs := []models.AuditLogWithCase{}
	for rows.Next() {
		var l models.AuditLogWithCase
		var metaBytes []byte
		if err := rows.Scan(&l.ID, &l.CaseID, &l.Action, &l.Actor, &metaBytes, &l.Timestamp, &l.CaseAmount); err != nil {
			return nil, storeErr("scan audit", err)
		}
		if l.Metadata, err = decodeMetadata(metaBytes); err != nil {
			return nil, fmt.Errorf("audit %s: %w", l.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, storeErr("list recent audit", rows.Err())
}

func decodeMetadata(b []byte) (map[string]any, error) {
	meta := map[string]any{}
	if len(b) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}
