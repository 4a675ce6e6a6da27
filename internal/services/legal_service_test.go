package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeDispatchRepo struct {
	mu   sync.Mutex
	logs []models.DispatchLog
}

func (r *fakeDispatchRepo) Create(ctx context.Context, d *models.DispatchLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	r.logs = append(r.logs, *d)
	return nil
}

func (r *fakeDispatchRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]models.DispatchLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.DispatchLog{}
	for _, l := range r.logs {
		if l.CaseID == caseID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (n *fakeNotifier) Dispatch(ctx context.Context, caseID uuid.UUID, institution string) (*DispatchReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	return &DispatchReceipt{MessageID: "msg-" + institution}, nil
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func TestLegalDispatchRecordsSuccess(t *testing.T) {
	env := newTestEnv(t)
	c := createCase(t, env, "1000", "a@b")
	repo := &fakeDispatchRepo{}
	svc := NewLegalService(env.svc, repo, &fakeNotifier{}, "Beneficiary Bank", time.Second, zap.NewNop())

	d, err := svc.Dispatch(context.Background(), c.ID, "", "officer.rao")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if d.Status != models.DispatchStatusSent || d.Institution != "Beneficiary Bank" {
		t.Errorf("dispatch = %+v", d)
	}
	if d.MessageID == nil || *d.MessageID != "msg-Beneficiary Bank" {
		t.Errorf("message_id = %v", d.MessageID)
	}

	entries := env.audit.byAction(models.AuditActionLegalDispatch)
	if len(entries) != 1 {
		t.Fatalf("LEGAL_DISPATCH entries = %d, want 1", len(entries))
	}
	if entries[0].Actor != "officer.rao" || entries[0].Metadata["status"] != models.DispatchStatusSent {
		t.Errorf("audit entry = %+v", entries[0])
	}

	history, err := svc.History(context.Background(), c.ID)
	if err != nil || len(history) != 1 {
		t.Errorf("history = %v, %v", history, err)
	}
}

func TestLegalDispatchRecordsFailure(t *testing.T) {
	env := newTestEnv(t)
	c := createCase(t, env, "1000", "a@b")
	repo := &fakeDispatchRepo{}
	svc := NewLegalService(env.svc, repo, &fakeNotifier{err: errors.New("smtp down")}, "Beneficiary Bank", time.Second, zap.NewNop())

	d, err := svc.Dispatch(context.Background(), c.ID, "SBI", "")
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	if d == nil || d.Status != models.DispatchStatusFailed {
		t.Errorf("dispatch = %+v", d)
	}
	entries := env.audit.byAction(models.AuditActionLegalDispatch)
	if len(entries) != 1 || entries[0].Metadata["status"] != models.DispatchStatusFailed || entries[0].Actor != models.ActorSystem {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestLegalDispatchUnknownCase(t *testing.T) {
	env := newTestEnv(t)
	notifier := &fakeNotifier{}
	svc := NewLegalService(env.svc, &fakeDispatchRepo{}, notifier, "Beneficiary Bank", time.Second, zap.NewNop())

	_, err := svc.Dispatch(context.Background(), uuid.New(), "SBI", "")
	if !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notifier.calls != 0 {
		t.Error("notifier called for unknown case")
	}
}
