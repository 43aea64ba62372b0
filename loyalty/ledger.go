/*
ledger.go - Append-only point transaction log

PURPOSE:
  The ledger is the source of truth for point balances. Every accrual,
  redemption debit, and reversal is one immutable PointTransaction row;
  the cached totals on User and Company are projections that can always
  be rebuilt by summation.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Corrections are adjust rows.
  2. LEDGER FIRST: Inside an accrual or settlement transaction the
     ledger row is written before the cached totals are touched, so a
     cached total without a backing row cannot survive a commit.
  3. RECONSTRUCTABLE: Balance(user) == sum of that user's deltas;
     accomplishment == sum of earn rows.

SEE ALSO:
  - reconcile.go: Rebuilds cached totals from this ledger
  - store/sqlite:  Enforces append-only at the schema level
*/
package loyalty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger provides the canonical balance queries over the append-only
// transaction log.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// NewTransaction builds a ledger row with a fresh ID and timestamp.
func NewTransaction(userID UserID, delta Points, txType TransactionType, desc string) *PointTransaction {
	return &PointTransaction{
		ID:          TransactionID(uuid.NewString()),
		UserID:      userID,
		Delta:       delta,
		Type:        txType,
		Description: desc,
		CreatedAt:   time.Now().UTC(),
	}
}

// Append records a transaction. This is the only write operation.
func (l *Ledger) Append(ctx context.Context, tx *PointTransaction) error {
	return l.store.AppendTransaction(ctx, tx)
}

// ByUser returns a user's transactions, chronologically.
func (l *Ledger) ByUser(ctx context.Context, id UserID) ([]PointTransaction, error) {
	return l.store.TransactionsByUser(ctx, id)
}

// Balance computes the redeemable balance by summation. This is the
// reconciliation query, independent of the cached totals.
func (l *Ledger) Balance(ctx context.Context, id UserID) (Points, error) {
	return l.store.SumTransactionsByUser(ctx, id)
}

// Earned computes the cumulative earned total (earn rows only), the
// ledger-derived counterpart of User.AccomplishmentPoints.
func (l *Ledger) Earned(ctx context.Context, id UserID) (Points, error) {
	return l.store.SumEarnedByUser(ctx, id)
}
