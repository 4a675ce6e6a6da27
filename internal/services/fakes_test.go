package services

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fraudshield/backend/internal/events"
	"github.com/fraudshield/backend/internal/fieldcrypt"
	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *fakeAuditRepo) append(entry *models.AuditLog) {
	entry.ID = uuid.New()
	entry.Timestamp = time.Now()
	r.entries = append(r.entries, *entry)
}

func (r *fakeAuditRepo) Log(ctx context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(entry)
	return nil
}

func (r *fakeAuditRepo) ListByCase(ctx context.Context, caseID uuid.UUID, limit, offset int) ([]models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.AuditLog{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].CaseID == caseID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListRecent(ctx context.Context, limit int) ([]models.AuditLogWithCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.AuditLogWithCase{}
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, models.AuditLogWithCase{AuditLog: r.entries[i]})
	}
	return out, nil
}

func (r *fakeAuditRepo) byAction(action string) []models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.AuditLog{}
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeAuditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// fakeCaseRepo mimics the store: TransitionStatus is a compare-and-swap on
// status and appends the audit entry under the same lock.
type fakeCaseRepo struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*models.Case
	audit *fakeAuditRepo

	// readBarrier, when set by holdReads, makes the next n GetByID calls
	// wait until all n have read. Later reads pass straight through.
	readBarrier *sync.WaitGroup
	barrierLeft int

	transitionErr error
}

func newFakeCaseRepo(audit *fakeAuditRepo) *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[uuid.UUID]*models.Case{}, audit: audit}
}

func (r *fakeCaseRepo) Create(ctx context.Context, c *models.Case, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.cases[c.ID] = &cp
	entry.CaseID = c.ID
	r.audit.mu.Lock()
	r.audit.append(entry)
	r.audit.mu.Unlock()
	return nil
}

func (r *fakeCaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	r.mu.Lock()
	c, ok := r.cases[id]
	var cp models.Case
	if ok {
		cp = *c
	}
	barrier := r.readBarrier
	if barrier != nil && r.barrierLeft > 0 {
		r.barrierLeft--
	} else {
		barrier = nil
	}
	r.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &cp, nil
}

func (r *fakeCaseRepo) List(ctx context.Context, f repositories.CaseFilter) ([]models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Case{}
	for _, c := range r.cases {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeCaseRepo) TransitionStatus(ctx context.Context, p repositories.TransitionParams) (*models.Case, error) {
	if r.transitionErr != nil {
		return nil, r.transitionErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[p.CaseID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if c.Status != p.FromStatus {
		return nil, repositories.ErrConflict
	}
	c.Status = p.ToStatus
	if p.FrozenAmount != nil {
		v := *p.FrozenAmount
		c.FrozenAmount = &v
	}
	if p.TotalBalance != nil {
		v := *p.TotalBalance
		c.TotalBalance = &v
	}
	c.UpdatedAt = time.Now()

	p.Audit.CaseID = c.ID
	r.audit.mu.Lock()
	r.audit.append(p.Audit)
	r.audit.mu.Unlock()

	cp := *c
	return &cp, nil
}

func (r *fakeCaseRepo) ListBeneficiaryCiphertexts(ctx context.Context, excludeID uuid.UUID) ([]repositories.BeneficiaryCipher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []repositories.BeneficiaryCipher{}
	for id, c := range r.cases {
		if id == excludeID || c.Payload.BeneficiaryID == nil {
			continue
		}
		out = append(out, repositories.BeneficiaryCipher{CaseID: id, Ciphertext: *c.Payload.BeneficiaryID})
	}
	return out, nil
}

func (r *fakeCaseRepo) ListStaleByStatus(ctx context.Context, status string, age time.Duration, limit int) ([]models.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-age)
	out := []models.Case{}
	for _, c := range r.cases {
		if c.Status == status && c.UpdatedAt.Before(cutoff) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCaseRepo) Analytics(ctx context.Context) (*models.CaseAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var a models.CaseAnalytics
	for _, c := range r.cases {
		a.TotalCases++
		switch c.Status {
		case models.CaseStatusFreezeConfirmed:
			a.FullFreeze++
		case models.CaseStatusPartiallyFrozen:
			a.PartialFreeze++
		case models.CaseStatusRejected:
			a.Rejected++
		}
		if c.FrozenAmount != nil {
			a.TotalRecovered += *c.FrozenAmount
		}
	}
	return &a, nil
}

func (r *fakeCaseRepo) holdReads(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readBarrier = &sync.WaitGroup{}
	r.readBarrier.Add(n)
	r.barrierLeft = n
}

// set mutates a stored case directly, bypassing every check.
func (r *fakeCaseRepo) set(id uuid.UUID, fn func(c *models.Case)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.cases[id])
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) ofType(typ string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []events.Event{}
	for _, e := range p.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	repo  *fakeCaseRepo
	audit *fakeAuditRepo
	pub   *fakePublisher
	guard *fieldcrypt.Guard
	svc   *CaseService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	guard, err := fieldcrypt.NewGuard(bytes.Repeat([]byte{0x42}, fieldcrypt.KeySize))
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	audit := &fakeAuditRepo{}
	repo := newFakeCaseRepo(audit)
	pub := &fakePublisher{}
	return &testEnv{
		repo:  repo,
		audit: audit,
		pub:   pub,
		guard: guard,
		svc:   NewCaseService(repo, audit, guard, pub, time.Second, zap.NewNop()),
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
