// Package scheduler drives periodic monitoring passes in API mode.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pass is one full monitoring pass.
type Pass interface {
	RunAll(ctx context.Context) bool
}

// Runner executes a pass immediately and then on every tick until the
// context is canceled. Interval 0 disables periodic runs.
type Runner struct {
	Logger   *zap.Logger
	Monitor  Pass
	Interval time.Duration
}

func (r *Runner) Run(ctx context.Context) {
	if r.Interval <= 0 {
		r.Logger.Info("periodic runs disabled")
		return
	}

	r.pass(ctx)

	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner stopped", zap.Error(ctx.Err()))
			return
		case <-t.C:
			r.pass(ctx)
		}
	}
}

func (r *Runner) pass(ctx context.Context) {
	start := time.Now()
	clean := r.Monitor.RunAll(ctx)
	r.Logger.Info("scheduled pass finished",
		zap.Bool("clean", clean),
		zap.Duration("took", time.Since(start)),
	)
}
