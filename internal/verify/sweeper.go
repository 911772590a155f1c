package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultSweepSchedule runs the sweep every minute.
const DefaultSweepSchedule = "* * * * *"

// Sweeper periodically removes expired entries on a cron schedule.
type Sweeper struct {
	svc      *Service
	schedule string
	logger   *slog.Logger
}

// NewSweeper validates schedule and creates a Sweeper for svc.
func NewSweeper(svc *Service, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid cron expression %q", schedule)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{svc: svc, schedule: schedule, logger: logger}, nil
}

// Next returns the first scheduled sweep strictly after ref.
func (w *Sweeper) Next(ref time.Time) (time.Time, error) {
	next, err := gronx.NextTickAfter(w.schedule, ref, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to compute next tick for %q: %w", w.schedule, err)
	}
	return next, nil
}

// Run sweeps on schedule until ctx is canceled. It always returns nil on
// cancellation so it can run under an errgroup next to the HTTP server.
func (w *Sweeper) Run(ctx context.Context) error {
	w.logger.Info("expired code sweeper started", "schedule", w.schedule)
	for {
		next, err := w.Next(time.Now())
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("expired code sweeper stopped")
			return nil
		case <-timer.C:
		}
		w.RunOnce(ctx)
	}
}

// RunOnce performs a single sweep and logs the result.
func (w *Sweeper) RunOnce(ctx context.Context) int {
	n, err := w.svc.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("sweeping expired codes", "error", err)
		}
		return n
	}
	if n > 0 {
		w.logger.Info("swept expired verification codes", "count", n)
	}
	return n
}
