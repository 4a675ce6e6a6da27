package repositories

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fraudshield/backend/internal/db"
	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// newTestPool returns a migrated pool. REPO_TEST_PG_DSN reuses an existing
// database; otherwise a postgres container is started.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("store integration test skipped in -short mode")
	}
	ctx := context.Background()

	dsn := os.Getenv("REPO_TEST_PG_DSN")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		pgC, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("fraudshield"),
			postgres.WithUsername("fraudshield"),
			postgres.WithPassword("fraudshield"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("start postgres container: %v", err)
		}
		t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("connection string: %v", err)
		}
	}

	pool, err := db.NewPostgresPool(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.RunMigrations(ctx, pool, migrations.FS, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func insertCase(t *testing.T, repo *CaseRepo, amount float64, beneficiaryCipher *string) *models.Case {
	t.Helper()
	c := &models.Case{
		Amount:          amount,
		Status:          models.CaseStatusIngested,
		CaseOrigin:      models.CaseOriginManual,
		Payload:         models.Payload{BeneficiaryID: beneficiaryCipher},
		LegitimacyScore: 50,
	}
	entry := &models.AuditLog{Action: models.AuditActionIngestionComplete, Actor: models.ActorSystem}
	if err := repo.Create(context.Background(), c, entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func advance(t *testing.T, repo *CaseRepo, id uuid.UUID, from, to string, frozen *float64) *models.Case {
	t.Helper()
	c, err := repo.TransitionStatus(context.Background(), TransitionParams{
		CaseID:       id,
		FromStatus:   from,
		ToStatus:     to,
		FrozenAmount: frozen,
		Audit:        &models.AuditLog{Action: models.StatusChangeAction(to), Actor: "test"},
	})
	if err != nil {
		t.Fatalf("TransitionStatus %s->%s: %v", from, to, err)
	}
	return c
}

func TestCaseRepoIntegration(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	audit := NewAuditRepo(pool)
	repo := NewCaseRepo(pool, audit)

	t.Run("create and read back", func(t *testing.T) {
		cipher := "aa:bb"
		c := insertCase(t, repo, 45200, &cipher)

		got, err := repo.GetByID(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Amount != 45200 || got.Status != models.CaseStatusIngested {
			t.Errorf("case = %+v", got)
		}
		if got.Payload.BeneficiaryID == nil || *got.Payload.BeneficiaryID != cipher {
			t.Errorf("payload = %+v", got.Payload)
		}

		logs, err := audit.ListByCase(ctx, c.ID, 0, 0)
		if err != nil || len(logs) != 1 || logs[0].Action != models.AuditActionIngestionComplete {
			t.Errorf("audit = %+v, %v", logs, err)
		}
	})

	t.Run("values the column refuses are rejected, not retryable", func(t *testing.T) {
		for _, amount := range []float64{0.001, 1e17} {
			c := &models.Case{
				Amount:          amount,
				Status:          models.CaseStatusIngested,
				CaseOrigin:      models.CaseOriginManual,
				LegitimacyScore: 50,
			}
			entry := &models.AuditLog{Action: models.AuditActionIngestionComplete, Actor: models.ActorSystem}
			err := repo.Create(ctx, c, entry)
			if !errors.Is(err, ErrRejected) || errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("amount %v: err = %v, want ErrRejected", amount, err)
			}
		}
	})

	t.Run("missing case", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err := repo.TransitionStatus(ctx, TransitionParams{
			CaseID:     uuid.New(),
			FromStatus: models.CaseStatusIngested,
			ToStatus:   models.CaseStatusFreezeSent,
			Audit:      &models.AuditLog{Action: "x", Actor: "test"},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("stale from status conflicts", func(t *testing.T) {
		c := insertCase(t, repo, 100, nil)
		_, err := repo.TransitionStatus(ctx, TransitionParams{
			CaseID:     c.ID,
			FromStatus: models.CaseStatusBankReview,
			ToStatus:   models.CaseStatusRejected,
			Audit:      &models.AuditLog{Action: "x", Actor: "test"},
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		logs, _ := audit.ListByCase(ctx, c.ID, 0, 0)
		if len(logs) != 1 {
			t.Errorf("audit entries = %d, want only the ingestion entry", len(logs))
		}
	})

	t.Run("concurrent transitions", func(t *testing.T) {
		c := insertCase(t, repo, 1000, nil)
		advance(t, repo, c.ID, models.CaseStatusIngested, models.CaseStatusFreezeSent, nil)
		advance(t, repo, c.ID, models.CaseStatusFreezeSent, models.CaseStatusBankReview, nil)

		targets := []string{
			models.CaseStatusFreezeConfirmed,
			models.CaseStatusPartiallyFrozen,
			models.CaseStatusRejected,
			models.CaseStatusFreezeConfirmed,
		}
		errs := make([]error, len(targets))
		var g errgroup.Group
		for i, target := range targets {
			g.Go(func() error {
				_, errs[i] = repo.TransitionStatus(ctx, TransitionParams{
					CaseID:     c.ID,
					FromStatus: models.CaseStatusBankReview,
					ToStatus:   target,
					Audit:      &models.AuditLog{Action: models.StatusChangeAction(target), Actor: "test"},
				})
				return nil
			})
		}
		_ = g.Wait()

		wins := 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case !errors.Is(err, ErrConflict):
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Fatalf("wins = %d, want 1", wins)
		}
		logs, _ := audit.ListByCase(ctx, c.ID, 0, 0)
		if len(logs) != 4 {
			t.Errorf("audit entries = %d, want 4", len(logs))
		}
	})

	t.Run("extras are kept", func(t *testing.T) {
		c := insertCase(t, repo, 1000, nil)
		advance(t, repo, c.ID, models.CaseStatusIngested, models.CaseStatusFreezeSent, nil)
		advance(t, repo, c.ID, models.CaseStatusFreezeSent, models.CaseStatusBankReview, nil)
		frozen := 400.0
		got := advance(t, repo, c.ID, models.CaseStatusBankReview, models.CaseStatusPartiallyFrozen, &frozen)
		if got.FrozenAmount == nil || *got.FrozenAmount != 400 {
			t.Errorf("frozen_amount = %v", got.FrozenAmount)
		}
		got = advance(t, repo, c.ID, models.CaseStatusPartiallyFrozen, models.CaseStatusEscalated, nil)
		if got.FrozenAmount == nil || *got.FrozenAmount != 400 {
			t.Errorf("frozen_amount lost on later transition: %v", got.FrozenAmount)
		}
	})

	t.Run("audit log is append-only", func(t *testing.T) {
		c := insertCase(t, repo, 10, nil)
		if _, err := pool.Exec(ctx, `UPDATE audit_logs SET actor = 'mallory' WHERE case_id = $1`, c.ID); err == nil {
			t.Error("audit update succeeded")
		}
		if _, err := pool.Exec(ctx, `DELETE FROM audit_logs WHERE case_id = $1`, c.ID); err == nil {
			t.Error("audit delete succeeded")
		}
	})

	t.Run("beneficiary candidates exclude the query case", func(t *testing.T) {
		a, b := "11:22", "33:44"
		query := insertCase(t, repo, 10, &a)
		other := insertCase(t, repo, 10, &b)

		got, err := repo.ListBeneficiaryCiphertexts(ctx, query.ID)
		if err != nil {
			t.Fatalf("ListBeneficiaryCiphertexts: %v", err)
		}
		foundOther := false
		for _, bc := range got {
			if bc.CaseID == query.ID {
				t.Error("query case included")
			}
			if bc.CaseID == other.ID && bc.Ciphertext == b {
				foundOther = true
			}
		}
		if !foundOther {
			t.Error("other case missing")
		}
	})

	t.Run("stale listing", func(t *testing.T) {
		c := insertCase(t, repo, 10, nil)
		if _, err := pool.Exec(ctx, `UPDATE cases SET updated_at = now() - interval '1 hour' WHERE id = $1`, c.ID); err != nil {
			t.Fatalf("age case: %v", err)
		}
		stale, err := repo.ListStaleByStatus(ctx, models.CaseStatusIngested, 10*time.Minute, 500)
		if err != nil {
			t.Fatalf("ListStaleByStatus: %v", err)
		}
		found := false
		for _, s := range stale {
			if s.ID == c.ID {
				found = true
			}
		}
		if !found {
			t.Error("aged case not listed")
		}
	})

	t.Run("dispatch log", func(t *testing.T) {
		c := insertCase(t, repo, 10, nil)
		dispatches := NewDispatchRepo(pool)
		msg := "m-1"
		if err := dispatches.Create(ctx, &models.DispatchLog{
			CaseID:      c.ID,
			Institution: "SBI",
			MessageID:   &msg,
			Status:      models.DispatchStatusSent,
		}); err != nil {
			t.Fatalf("Create dispatch: %v", err)
		}
		logs, err := dispatches.ListByCase(ctx, c.ID)
		if err != nil || len(logs) != 1 || logs[0].Institution != "SBI" {
			t.Errorf("dispatch logs = %+v, %v", logs, err)
		}
	})

	t.Run("analytics", func(t *testing.T) {
		a, err := repo.Analytics(ctx)
		if err != nil {
			t.Fatalf("Analytics: %v", err)
		}
		if a.TotalCases == 0 || a.TotalRecovered < 400 {
			t.Errorf("analytics = %+v", a)
		}
	})
}
