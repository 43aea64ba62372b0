/*
redemption.go - Redemption settlement

PURPOSE:
  The mirror image of accrual. Creating a redemption spends points and
  reserves stock immediately; settlement finalizes the outcome:

    create:  balance check, ledger spend row, debit user, stock -1,
             redemption row in active status, audit row - one transaction
    approve: active -> approved, bookkeeping only (points already spent)
    reject:  active -> rejected, credit the points back (ledger adjust
             row) and restore stock - the exact reversal of create

IDEMPOTENCE:
  Settlement transitions only from active via compare-and-set. A second
  settle on a terminal redemption surfaces a ConflictError; it never
  re-applies the point or stock adjustment.

BALANCE FLOOR:
  Redemptions are rejected up front when points_spent exceeds the user's
  redeemable balance, keeping balances non-negative.
*/
package loyalty

import (
	"context"
	"fmt"
	"time"
)

// Settlement handles redemption create/approve/reject.
type Settlement struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewSettlement(store Store, notifier Notifier) *Settlement {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Settlement{store: store, notifier: notifier, now: time.Now}
}

// SettleDecision is the terminal outcome applied to an active redemption.
type SettleDecision string

const (
	SettleApprove SettleDecision = "approve"
	SettleReject  SettleDecision = "reject"
)

// =============================================================================
// CREATE
// =============================================================================

// Redeem atomically spends points on a product claim: debits the user's
// redeemable balance, decrements stock by one, and opens the redemption
// in active status with a shipping snapshot.
func (s *Settlement) Redeem(ctx context.Context, userID UserID, productID ProductID, pointsSpent Points, shipping ShippingInfo) (*Redemption, error) {
	if !pointsSpent.IsPositive() {
		return nil, &ValidationError{Field: "points_spent", Message: "must be positive"}
	}

	var redemption Redemption

	err := s.store.WithTx(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		if user.TotalPoints.LessThan(pointsSpent) {
			return &InsufficientBalanceError{
				UserID:    userID,
				Available: user.TotalPoints,
				Requested: pointsSpent,
			}
		}
		if product.StockQuantity < 1 {
			return ErrOutOfStock
		}

		redemption = Redemption{
			UserID:      userID,
			ProductID:   productID,
			PointsSpent: pointsSpent,
			Status:      RedemptionActive,
			Shipping:    shipping,
			CreatedAt:   s.now().UTC(),
		}
		if err := tx.CreateRedemption(ctx, &redemption); err != nil {
			return err
		}

		// Ledger first, then the cached projections.
		ledgerTx := NewTransaction(userID, pointsSpent.Neg(), TxSpend,
			fmt.Sprintf("redemption %d: %s", redemption.ID, product.Name))
		rid := redemption.ID
		ledgerTx.RedemptionID = &rid
		if err := tx.AppendTransaction(ctx, ledgerTx); err != nil {
			return err
		}

		// Spending never touches accomplishment points.
		if err := tx.AddUserPoints(ctx, userID, pointsSpent.Neg(), ZeroPoints()); err != nil {
			return err
		}
		if err := tx.AdjustProductStock(ctx, productID, -1); err != nil {
			return err
		}
		return tx.RecordAction(ctx, newAction(userID, ActionRedeemed, RedeemRef(redemption.ID), ""))
	})
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

// =============================================================================
// SETTLE
// =============================================================================

// Settle finalizes an active redemption. Approve keeps the spent points
// spent; reject reverses the create exactly: points back, stock back.
func (s *Settlement) Settle(ctx context.Context, id RedemptionID, decision SettleDecision) (*Redemption, error) {
	var (
		redemption *Redemption
		user       *User
	)

	target, err := targetStatus(decision)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		redemption, err = tx.GetRedemption(ctx, id)
		if err != nil {
			return err
		}

		swapped, err := tx.TransitionRedemption(ctx, id, RedemptionActive, target)
		if err != nil {
			return err
		}
		if !swapped {
			return &ConflictError{
				Entity:   "redemption",
				ID:       int64(id),
				Expected: string(RedemptionActive),
				Actual:   string(redemption.Status),
			}
		}
		redemption.Status = target

		user, err = tx.GetUser(ctx, redemption.UserID)
		if err != nil {
			return err
		}

		if decision == SettleReject {
			// Reverse the create: adjust row, credit back, restock.
			ledgerTx := NewTransaction(user.ID, redemption.PointsSpent, TxAdjust,
				fmt.Sprintf("redemption %d rejected: points returned", id))
			rid := redemption.ID
			ledgerTx.RedemptionID = &rid
			if err := tx.AppendTransaction(ctx, ledgerTx); err != nil {
				return err
			}
			if err := tx.AddUserPoints(ctx, user.ID, redemption.PointsSpent, ZeroPoints()); err != nil {
				return err
			}
			if err := tx.AdjustProductStock(ctx, redemption.ProductID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := TemplateRedemptionApproved
	if decision == SettleReject {
		kind = TemplateRedemptionRejected
	}
	s.notify(ctx, Notification{
		UserID: user.ID,
		Email:  redemption.Shipping.Email,
		Kind:   kind,
		Params: map[string]string{
			"username": user.Username,
			"fullname": redemption.Shipping.Fullname,
			"points":   redemption.PointsSpent.String(),
		},
	})

	return redemption, nil
}

func targetStatus(decision SettleDecision) (RedemptionStatus, error) {
	switch decision {
	case SettleApprove:
		return RedemptionApproved, nil
	case SettleReject:
		return RedemptionRejected, nil
	default:
		return "", &ValidationError{Field: "decision", Message: "must be approve or reject"}
	}
}

func (s *Settlement) notify(ctx context.Context, n Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		logNotifyFailure(n, err)
	}
}
