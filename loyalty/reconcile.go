/*
reconcile.go - Cached total reconciliation

PURPOSE:
  User and Company carry cached point totals for cheap reads. They are
  maintained incrementally inside the same transactions that write the
  ledger, but caches can still drift (operator SQL, historical bugs,
  partial imports). The reconciler restores the invariant from the
  source of truth:

    user.total_points          = sum of the user's ledger deltas
    user.accomplishment_points = sum of the user's earn rows
    company.total_points       = sum of its active customer users'
                                 accomplishment points

  Deactivated users are skipped: company deletion zeroes their caches on
  purpose, and rebuilding them would undo that.

SCHEDULING:
  Run periodically (cmd/server wires it to a cron schedule) or on demand
  through the admin API.
*/
package loyalty

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Reconciler rebuilds cached totals from the ledger.
type Reconciler struct {
	store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	UsersChecked      int
	UsersRepaired     int
	CompaniesChecked  int
	CompaniesRepaired int
}

// Run recomputes every active user's cached totals from the ledger, then
// every active company's total from its users. Each repair is its own
// transaction so one bad row does not block the rest of the pass.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return report, err
	}

	for i := range users {
		u := &users[i]
		if !u.Active {
			continue
		}
		report.UsersChecked++

		repaired, err := r.reconcileUser(ctx, u)
		if err != nil {
			return report, err
		}
		if repaired {
			report.UsersRepaired++
		}
	}

	companies, err := r.store.ListCompanies(ctx)
	if err != nil {
		return report, err
	}

	for i := range companies {
		c := &companies[i]
		if c.Status != CompanyActive {
			continue
		}
		report.CompaniesChecked++

		repaired, err := r.reconcileCompany(ctx, c)
		if err != nil {
			return report, err
		}
		if repaired {
			report.CompaniesRepaired++
		}
	}

	log.WithFields(log.Fields{
		"users_checked":      report.UsersChecked,
		"users_repaired":     report.UsersRepaired,
		"companies_checked":  report.CompaniesChecked,
		"companies_repaired": report.CompaniesRepaired,
	}).Info("ledger reconciliation complete")

	return report, nil
}

func (r *Reconciler) reconcileUser(ctx context.Context, u *User) (bool, error) {
	var repaired bool

	err := r.store.WithTx(ctx, func(tx Store) error {
		ledger := NewLedger(tx)
		balance, err := ledger.Balance(ctx, u.ID)
		if err != nil {
			return err
		}
		earned, err := ledger.Earned(ctx, u.ID)
		if err != nil {
			return err
		}

		if balance.Equal(u.TotalPoints) && earned.Equal(u.AccomplishmentPoints) {
			return nil
		}

		log.WithFields(log.Fields{
			"user_id":       u.ID,
			"cached_total":  u.TotalPoints.String(),
			"ledger_total":  balance.String(),
			"cached_earned": u.AccomplishmentPoints.String(),
			"ledger_earned": earned.String(),
		}).Warn("cached user totals drifted from ledger")

		repaired = true
		return tx.SetUserPoints(ctx, u.ID, balance, earned)
	})
	return repaired, err
}

func (r *Reconciler) reconcileCompany(ctx context.Context, c *Company) (bool, error) {
	var repaired bool

	err := r.store.WithTx(ctx, func(tx Store) error {
		expected, err := tx.SumAccomplishmentByCompany(ctx, c.ID)
		if err != nil {
			return err
		}
		if expected.Equal(c.TotalPoints) {
			return nil
		}

		log.WithFields(log.Fields{
			"company_id":   c.ID,
			"cached_total": c.TotalPoints.String(),
			"user_sum":     expected.String(),
		}).Warn("cached company total drifted from user sum")

		repaired = true
		return tx.SetCompanyPoints(ctx, c.ID, expected)
	})
	return repaired, err
}
