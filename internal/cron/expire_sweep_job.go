package cron

import (
	"context"
	"fmt"

	"github.com/emekadefirst/learnhub-backend/internal/subscriptions"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type subscriptionSweeper interface {
	ExpireSweep(ctx context.Context, limit int) (*subscriptions.SweepResult, error)
}

// ExpireSweepJob closes out lapsed subscriptions on every cycle. The sweep
// itself is idempotent, so overlapping or repeated runs are safe.
type ExpireSweepJob struct {
	logg    *logger.Logger
	sweeper subscriptionSweeper
	limit   int
}

// NewExpireSweepJob builds the subscription expiry job.
func NewExpireSweepJob(logg *logger.Logger, sweeper subscriptionSweeper, limit int) (*ExpireSweepJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("subscription sweeper required")
	}
	return &ExpireSweepJob{logg: logg, sweeper: sweeper, limit: limit}, nil
}

// Name identifies the job in logs and metrics.
func (j *ExpireSweepJob) Name() string { return "subscription_expire_sweep" }

// Run executes one sweep pass.
func (j *ExpireSweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.ExpireSweep(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("expire sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":  result.Scanned,
		"canceled": result.Canceled,
		"expired":  result.Expired,
	})
	j.logg.Info(logCtx, "sweep.subscriptions")
	return nil
}
