package services

import (
	"context"
	"errors"
	"time"

	"github.com/fraudshield/backend/internal/models"
	"github.com/fraudshield/backend/internal/rbac"
	"github.com/fraudshield/backend/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	autoFreezeBatch       = 50
	autoFreezeConcurrency = 4
)

// AutoFreezeJob initiates the freeze for cases left in INGESTED too long:
// the case moves to FREEZE_SENT as SYSTEM_TIMER and a legal notice then goes
// to the default institution. The conditional transition is the claim, so a
// notice is sent at most once per case even with several workers running.
type AutoFreezeJob struct {
	cases *CaseService
	legal *LegalService
	after time.Duration
	log   *zap.Logger
}

func NewAutoFreezeJob(cases *CaseService, legal *LegalService, after time.Duration, log *zap.Logger) *AutoFreezeJob {
	return &AutoFreezeJob{cases: cases, legal: legal, after: after, log: log}
}

type AutoFreezeResult struct {
	Frozen  int
	Skipped int
	Failed  int
}

// Run processes one batch. Per-case failures are logged and counted; only a
// failure to list candidates is returned.
func (j *AutoFreezeJob) Run(ctx context.Context) (AutoFreezeResult, error) {
	var res AutoFreezeResult

	stale, err := j.cases.ListStale(ctx, models.CaseStatusIngested, j.after, autoFreezeBatch)
	if err != nil {
		return res, err
	}
	if len(stale) == 0 {
		return res, nil
	}

	outcomes := make([]int, len(stale))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(autoFreezeConcurrency)
	for i, c := range stale {
		g.Go(func() error {
			outcomes[i] = j.freeze(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch o {
		case outcomeFrozen:
			res.Frozen++
		case outcomeSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}
	j.log.Info("auto freeze batch done",
		zap.Int("candidates", len(stale)),
		zap.Int("frozen", res.Frozen),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

const (
	outcomeFailed = iota
	outcomeFrozen
	outcomeSkipped
)

func (j *AutoFreezeJob) freeze(ctx context.Context, c models.Case) int {
	caseID := c.ID.String()

	_, err := j.cases.UpdateStatus(ctx, TransitionRequest{
		CaseID:       c.ID,
		Status:       models.CaseStatusFreezeSent,
		Actor:        models.ActorSystemTimer,
		Capabilities: rbac.SystemCapabilities,
	})
	var terr *models.TransitionError
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrConflict), errors.As(err, &terr):
		j.log.Info("case moved on before auto freeze", zap.String("case_id", caseID))
		return outcomeSkipped
	default:
		j.log.Error("auto freeze transition failed", zap.String("case_id", caseID), zap.Error(err))
		return outcomeFailed
	}

	// The FAILED dispatch row stays visible for a manual re-dispatch.
	if _, err := j.legal.Dispatch(ctx, c.ID, "", models.ActorSystemTimer); err != nil {
		j.log.Error("auto freeze dispatch failed", zap.String("case_id", caseID), zap.Error(err))
		return outcomeFailed
	}
	return outcomeFrozen
}
