/*
scheduler.go - Scheduled ledger reconciliation

PURPOSE:
  Runs the reconciler on a cron schedule so cached user and company
  totals drift back to the ledger truth without operator action. The
  manual /api/admin/reconcile endpoint triggers the same run on demand.

DESIGN:
  - robfig/cron drives the schedule; the spec comes from configuration
  - Runs never overlap: a mutex skips a tick while the previous run is
    still in flight
  - Each run is logged with the repair counts

USAGE:
  scheduler, err := NewReconcileScheduler(reconciler, "0 3 * * *")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - loyalty/reconcile.go: The reconciliation pass itself
  - handlers.go: Reconcile endpoint (manual trigger)
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/warp/loyalty-engine/loyalty"
)

// ReconcileScheduler runs periodic reconciliation passes.
type ReconcileScheduler struct {
	reconciler *loyalty.Reconciler
	cron       *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewReconcileScheduler registers the reconciliation job on the given
// cron spec (standard five-field syntax).
func NewReconcileScheduler(reconciler *loyalty.Reconciler, spec string) (*ReconcileScheduler, error) {
	rs := &ReconcileScheduler{
		reconciler: reconciler,
		cron:       cron.New(),
	}

	if _, err := rs.cron.AddFunc(spec, rs.tick); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return rs, nil
}

// Start begins the schedule in a background goroutine.
func (rs *ReconcileScheduler) Start() {
	rs.cron.Start()
	log.Info("reconcile scheduler started")
}

// Stop halts the schedule and waits for a running job to finish.
func (rs *ReconcileScheduler) Stop() {
	ctx := rs.cron.Stop()
	<-ctx.Done()
	log.Info("reconcile scheduler stopped")
}

func (rs *ReconcileScheduler) tick() {
	rs.mu.Lock()
	if rs.running {
		rs.mu.Unlock()
		log.Warn("reconcile run still in flight, skipping tick")
		return
	}
	rs.running = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.running = false
		rs.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := rs.reconciler.Run(ctx)
	if err != nil {
		log.WithError(err).Error("scheduled reconcile failed")
		return
	}
	log.WithFields(log.Fields{
		"users_repaired":     report.UsersRepaired,
		"companies_repaired": report.CompaniesRepaired,
	}).Info("scheduled reconcile finished")
}
