package repositories

import (
	"context"

	"github.com/fraudshield/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DispatchRepo records outbound legal-document dispatches per case.
type DispatchRepo struct {
	pool *pgxpool.Pool
}

func NewDispatchRepo(pool *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{pool: pool}
}

func (r *DispatchRepo) Create(ctx context.Context, d *models.DispatchLog) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO dispatch_logs (case_id, institution, message_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, d.CaseID, d.Institution, d.MessageID, d.Status).Scan(&d.ID, &d.CreatedAt)
	return storeErr("insert dispatch", err)
}

func (r *DispatchRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.DispatchLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, case_id, institution, message_id, status, created_at
		FROM dispatch_logs WHERE case_id = $1
		ORDER BY created_at DESC
	`, caseID)
	if err != nil {
		return nil, storeErr("list dispatches", err)
	}
	defer rows.Close()

	logs := []models.DispatchLog{}
	for rows.Next() {
		var d models.DispatchLog
		if err := rows.Scan(&d.ID, &d.CaseID, &d.Institution, &d.MessageID, &d.Status, &d.CreatedAt); err != nil {
			return nil, storeErr("scan dispatch", err)
		}
		logs = append(logs, d)
	}
	return logs, storeErr("list dispatches", rows.Err())
}
