package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/efeurhobobullish/vcf-generator/contract"
	"github.com/efeurhobobullish/vcf-generator/errors"
	"github.com/efeurhobobullish/vcf-generator/repositories"
	"github.com/jonboulle/clockwork"
)

const DefaultSweepInterval = 60 * time.Second

// SweepReport summarizes one tick.
type SweepReport struct {
	Skipped   bool
	Due       int
	Delivered int
	Failed    int
}

// ExpirySweeper periodically delivers the sessions that expired with contacts
// and were not notified yet. Ticks never overlap: a tick that starts while
// the previous one is still running is skipped.
type ExpirySweeper struct {
	log        *slog.Logger
	repository repositories.ISessionRepository
	deliverer  contract.Deliverer
	clock      clockwork.Clock
	interval   time.Duration
	running    atomic.Bool
}

func NewExpirySweeper(
	log *slog.Logger,
	repository repositories.ISessionRepository,
	deliverer contract.Deliverer,
	clk clockwork.Clock,
	interval time.Duration,
) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ExpirySweeper{
		log:        log,
		repository: repository,
		deliverer:  deliverer,
		clock:      clk,
		interval:   interval,
	}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	w.log.Info("Starting expiry sweeper", "interval", w.interval)
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := w.Tick(ctx); err != nil {
				w.log.Error("Sweep aborted, retrying next tick", "error", err)
			}
		}
	}
}

// Tick runs one sweep. A store failure aborts the tick; a failure on one
// session is logged and the sweep moves on to the next one.
func (w *ExpirySweeper) Tick(ctx context.Context) (SweepReport, error) {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn("Previous sweep still running, skipping tick")
		return SweepReport{Skipped: true}, nil
	}
	defer w.running.Store(false)

	now := w.clock.Now()
	due, err := w.repository.FindDueUnnotified(now)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	report := SweepReport{Due: len(due)}
	for _, session := range due {
		if ctx.Err() != nil {
			w.log.Info("Sweep interrupted", "remaining", len(due)-report.Delivered-report.Failed)
			return report, nil
		}
		if err := w.deliverer.DeliverIfDue(ctx, session); err != nil {
			report.Failed++
			w.log.Error("Session delivery failed",
				"session_id", session.ID,
				"name", session.Name,
				"error", err)
			continue
		}
		report.Delivered++
	}

	if report.Due > 0 {
		w.log.Info("Sweep finished",
			"due", report.Due,
			"delivered", report.Delivered,
			"failed", report.Failed)
	}
	return report, nil
}
