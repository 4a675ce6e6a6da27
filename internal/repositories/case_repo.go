package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fraudshield/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const caseColumns = `id, amount, status, case_origin, payload, legitimacy_score,
	frozen_amount, total_balance, created_at, updated_at`

type CaseRepo struct {
	pool  *pgxpool.Pool
	audit *AuditRepo
}

func NewCaseRepo(pool *pgxpool.Pool, audit *AuditRepo) *CaseRepo {
	return &CaseRepo{pool: pool, audit: audit}
}

// Create inserts c and its ingestion audit entry in one transaction.
// c.ID, c.CreatedAt and c.UpdatedAt are filled from the store.
func (r *CaseRepo) Create(ctx context.Context, c *models.Case, entry *models.AuditLog) error {
	payloadBytes, err := json.Marshal(c.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin create case", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO cases (amount, status, case_origin, payload, legitimacy_score, frozen_amount, total_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, c.Amount, c.Status, c.CaseOrigin, payloadBytes, c.LegitimacyScore, c.FrozenAmount, c.TotalBalance,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return storeErr("insert case", err)
	}

	entry.CaseID = c.ID
	if err := r.audit.Append(ctx, tx, entry); err != nil {
		return err
	}

	return storeErr("commit create case", tx.Commit(ctx))
}

func (r *CaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
	c, err := scanCase(row)
	if err != nil {
		return nil, storeErr("get case", err)
	}
	return c, nil
}

type CaseFilter struct {
	Status *string
	Limit  int
	Offset int
}

// List returns cases newest first.
func (r *CaseRepo) List(ctx context.Context, f CaseFilter) ([]models.Case, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + caseColumns + ` FROM cases`
	args := []any{}
	argIdx := 1
	if f.Status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, *f.Status)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list cases", err)
	}
	defer rows.Close()

	cases := []models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, storeErr("scan case", err)
		}
		cases = append(cases, *c)
	}
	return cases, storeErr("list cases", rows.Err())
}

type TransitionParams struct {
	CaseID       uuid.UUID
	FromStatus   string
	ToStatus     string
	FrozenAmount *float64
	TotalBalance *float64
	Audit        *models.AuditLog
}

// TransitionStatus moves a case from p.FromStatus to p.ToStatus only if its
// status still equals p.FromStatus, and appends p.Audit in the same
// transaction. A lost race returns ErrConflict and writes nothing.
func (r *CaseRepo) TransitionStatus(ctx context.Context, p TransitionParams) (*models.Case, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin transition", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE cases
		SET status = $1,
		    frozen_amount = COALESCE($2, frozen_amount),
		    total_balance = COALESCE($3, total_balance),
		    updated_at = now()
		WHERE id = $4 AND status = $5
		RETURNING `+caseColumns,
		p.ToStatus, p.FrozenAmount, p.TotalBalance, p.CaseID, p.FromStatus)
	c, err := scanCase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id = $1)`, p.CaseID).Scan(&exists); err != nil {
			return nil, storeErr("check case exists", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, storeErr("update case status", err)
	}

	p.Audit.CaseID = c.ID
	if err := r.audit.Append(ctx, tx, p.Audit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit transition", err)
	}
	return c, nil
}

// BeneficiaryCipher is a stored, still-encrypted beneficiary identifier.
type BeneficiaryCipher struct {
	CaseID     uuid.UUID
	Ciphertext string
}

// ListBeneficiaryCiphertexts returns the encrypted beneficiary identifiers of
// every case except excludeID. Ciphertexts carry a random IV, so matching has
// to happen on decrypted values.
func (r *CaseRepo) ListBeneficiaryCiphertexts(ctx context.Context, excludeID uuid.UUID) ([]BeneficiaryCipher, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payload->>'beneficiary_vpa'
		FROM cases
		WHERE id <> $1 AND payload->>'beneficiary_vpa' IS NOT NULL
	`, excludeID)
	if err != nil {
		return nil, storeErr("list beneficiaries", err)
	}
	defer rows.Close()

	out := []BeneficiaryCipher{}
	for rows.Next() {
		var b BeneficiaryCipher
		if err := rows.Scan(&b.CaseID, &b.Ciphertext); err != nil {
			return nil, storeErr("scan beneficiary", err)
		}
		out = append(out, b)
	}
	return out, storeErr("list beneficiaries", rows.Err())
}

// ListStaleByStatus returns cases that have sat in status for longer than age.
func (r *CaseRepo) ListStaleByStatus(ctx context.Context, status string, age time.Duration, limit int) ([]models.Case, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE status = $1 AND updated_at < now() - make_interval(secs => $2)
		ORDER BY updated_at ASC
		LIMIT $3
	`, status, age.Seconds(), limit)
	if err != nil {
		return nil, storeErr("list stale cases", err)
	}
	defer rows.Close()

	cases := []models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, storeErr("scan case", err)
		}
		cases = append(cases, *c)
	}
	return cases, storeErr("list stale cases", rows.Err())
}

func (r *CaseRepo) Analytics(ctx context.Context) (*models.CaseAnalytics, error) {
	var a models.CaseAnalytics
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'FREEZE_CONFIRMED'),
		       COUNT(*) FILTER (WHERE status = 'PARTIALLY_FROZEN'),
		       COUNT(*) FILTER (WHERE status = 'REJECTED'),
		       COALESCE(SUM(frozen_amount), 0)::float8
		FROM cases
	`).Scan(&a.TotalCases, &a.FullFreeze, &a.PartialFreeze, &a.Rejected, &a.TotalRecovered)
	if err != nil {
		return nil, storeErr("case analytics", err)
	}
	return &a, nil
}

func scanCase(row rowScanner) (*models.Case, error) {
	var c models.Case
	var payloadBytes []byte
	if err := row.Scan(&c.ID, &c.Amount, &c.Status, &c.CaseOrigin, &payloadBytes, &c.LegitimacyScore,
		&c.FrozenAmount, &c.TotalBalance, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(payloadBytes) > 0 {
		if err := json.Unmarshal(payloadBytes, &c.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return &c, nil
}
