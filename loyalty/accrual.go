/*
accrual.go - The form-approval accrual engine

PURPOSE:
  Computes and applies the point delta for a single form approval:

    delta = base reward
          + quantity-tiered bonus   (bonus.go)
          + promotional bonus       (campaign.go)
          + milestone backfill      (milestone.go)

  and applies it atomically: ledger row first, then the cached user and
  company totals, then the audit row, all inside one store transaction.
  The user notification fires after commit and never rolls points back.

CONCURRENCY:
  The status compare-and-set (submitted -> approved) is the serialization
  point. Two concurrent approvals of the same form race on the CAS; the
  loser observes swapped=false and surfaces a ConflictError instead of
  double-applying points.

FAILURE SEMANTICS:
  - Unknown form id:            ErrFormNotFound, no mutation
  - Form not in submitted:      ConflictError, no mutation
  - Any persistence failure:    full rollback, PersistenceError
*/
package loyalty

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Engine applies form submissions and approval decisions.
type Engine struct {
	store    Store
	campaign Campaign
	notifier Notifier

	// now is swappable so tests can pin the promo window.
	now func() time.Time
}

func NewEngine(store Store, campaign Campaign, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		store:    store,
		campaign: campaign,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock returns a copy of the engine using the given clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	clone := *e
	clone.now = now
	return &clone
}

// =============================================================================
// SUBMISSION
// =============================================================================

// SubmissionResult reports a created form and whether it completed the
// project's submission set.
type SubmissionResult struct {
	Form             Form
	ProjectComplete  bool
	SubmittedInGroup int
}

// SubmitForm creates a milestone form in submitted status and detects
// whether the user's submitted set now completes the project for their
// tier. Completion at submission time only counts while the campaign's
// submission window is open.
func (e *Engine) SubmitForm(ctx context.Context, userID UserID, projectID ProjectID, formTypeID FormTypeID, data []FormField) (SubmissionResult, error) {
	var result SubmissionResult

	err := e.store.WithTx(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		ft, err := tx.GetFormType(ctx, formTypeID)
		if err != nil {
			return err
		}
		if !ft.Active {
			return &ValidationError{Field: "form_type_id", Message: "form type is inactive"}
		}

		form := Form{
			UserID:     userID,
			ProjectID:  projectID,
			FormTypeID: formTypeID,
			Status:     FormSubmitted,
			Data:       data,
			CreatedAt:  e.now().UTC(),
		}
		if err := tx.CreateForm(ctx, &form); err != nil {
			return err
		}

		submitted, err := tx.CountFormsByStatus(ctx, userID, projectID, FormSubmitted)
		if err != nil {
			return err
		}

		result = SubmissionResult{
			Form:             form,
			SubmittedInGroup: submitted,
		}
		if e.campaign.SubmissionWindowOpen(e.now()) {
			result.ProjectComplete = ProjectComplete(user.Tier, submitted)
		}

		return tx.RecordAction(ctx, newAction(userID, ActionSubmitted, FormRef(form.ID), ""))
	})
	if err != nil {
		return SubmissionResult{}, err
	}
	return result, nil
}

// =============================================================================
// APPROVAL
// =============================================================================

// ApprovalResult is the accrual breakdown for one approved form.
type ApprovalResult struct {
	Form Form

	BaseReward    Points
	QuantityBonus Points
	PromoBonus    Points
	BackfillBonus Points
	Delta         Points

	UserTotal       Points
	CompanyTotal    Points
	ProjectComplete bool
}

// ApproveForm transitions a submitted form to approved and accrues the
// resulting point delta to the user, their company, and the ledger, all
// in one transaction. quantity is the approver-supplied product quantity
// backing the quantity-tier bonus; pass zero when absent.
func (e *Engine) ApproveForm(ctx context.Context, formID FormID, quantity int) (ApprovalResult, error) {
	var (
		result ApprovalResult
		user   *User
	)

	err := e.store.WithTx(ctx, func(tx Store) error {
		form, err := tx.GetForm(ctx, formID)
		if err != nil {
			return err
		}

		swapped, err := tx.TransitionForm(ctx, formID, FormSubmitted, FormApproved, "")
		if err != nil {
			return err
		}
		if !swapped {
			return &ConflictError{
				Entity:   "form",
				ID:       int64(formID),
				Expected: string(FormSubmitted),
				Actual:   string(form.Status),
			}
		}
		form.Status = FormApproved

		user, err = tx.GetUser(ctx, form.UserID)
		if err != nil {
			return err
		}
		company, err := tx.GetCompany(ctx, user.CompanyID)
		if err != nil {
			return err
		}
		formType, err := tx.GetFormType(ctx, form.FormTypeID)
		if err != nil {
			return err
		}
		allTypes, err := tx.ListFormTypes(ctx)
		if err != nil {
			return err
		}
		approvedIDs, err := tx.FormTypeIDsByStatus(ctx, form.UserID, form.ProjectID, FormApproved)
		if err != nil {
			return err
		}

		// The approved set includes the form approved above, so the promo
		// prerequisite and backfill checks see the program state after
		// this approval, matching how the bonus schedule is defined.
		approved := CompletedSet(approvedIDs)

		result = ApprovalResult{
			Form:          *form,
			BaseReward:    formType.PointReward,
			QuantityBonus: QuantityBonus(form.FormTypeID, quantity),
			PromoBonus:    e.campaign.PromoBonusFor(e.now(), approved, form.FormTypeID),
			BackfillBonus: BackfillBonus(RewardIndex(allTypes), approved),
		}
		result.Delta = result.BaseReward.
			Add(result.QuantityBonus).
			Add(result.PromoBonus).
			Add(result.BackfillBonus)

		// Ledger first: the row is the source of truth, the cached
		// totals below are projections of it.
		ledgerTx := NewTransaction(user.ID, result.Delta, TxEarn, accrualDescription(form, result))
		fid := form.ID
		ledgerTx.FormID = &fid
		if err := tx.AppendTransaction(ctx, ledgerTx); err != nil {
			return err
		}

		if err := tx.AddUserPoints(ctx, user.ID, result.Delta, result.Delta); err != nil {
			return err
		}
		if err := tx.AddCompanyPoints(ctx, company.ID, result.Delta); err != nil {
			return err
		}
		if err := tx.RecordAction(ctx, newAction(user.ID, ActionApproved, FormRef(form.ID), "")); err != nil {
			return err
		}

		approvedCount, err := tx.CountFormsByStatus(ctx, form.UserID, form.ProjectID, FormApproved)
		if err != nil {
			return err
		}

		result.UserTotal = user.TotalPoints.Add(result.Delta)
		result.CompanyTotal = company.TotalPoints.Add(result.Delta)
		result.ProjectComplete = ProjectComplete(user.Tier, approvedCount)
		return nil
	})
	if err != nil {
		return ApprovalResult{}, err
	}

	e.notify(ctx, Notification{
		UserID: user.ID,
		Email:  user.Email,
		Kind:   TemplateFormApproved,
		Params: map[string]string{
			"username": user.Username,
			"points":   result.Delta.String(),
		},
	})

	return result, nil
}

// RejectForm transitions a submitted form to rejected with a reason.
// No points move.
func (e *Engine) RejectForm(ctx context.Context, formID FormID, reason string) (*Form, error) {
	var (
		form *Form
		user *User
	)

	err := e.store.WithTx(ctx, func(tx Store) error {
		var err error
		form, err = tx.GetForm(ctx, formID)
		if err != nil {
			return err
		}

		swapped, err := tx.TransitionForm(ctx, formID, FormSubmitted, FormRejected, reason)
		if err != nil {
			return err
		}
		if !swapped {
			return &ConflictError{
				Entity:   "form",
				ID:       int64(formID),
				Expected: string(FormSubmitted),
				Actual:   string(form.Status),
			}
		}
		form.Status = FormRejected
		form.Note = reason

		user, err = tx.GetUser(ctx, form.UserID)
		if err != nil {
			return err
		}
		return tx.RecordAction(ctx, newAction(user.ID, ActionRejected, FormRef(form.ID), reason))
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, Notification{
		UserID: user.ID,
		Email:  user.Email,
		Kind:   TemplateFormRejected,
		Params: map[string]string{
			"username": user.Username,
			"reason":   reason,
		},
	})

	return form, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// notify delivers best-effort, after commit. Failures are logged, never
// propagated: the accrual has already happened.
func (e *Engine) notify(ctx context.Context, n Notification) {
	if err := e.notifier.Notify(ctx, n); err != nil {
		logNotifyFailure(n, err)
	}
}

func newAction(userID UserID, action ActionType, ref ActionRef, note string) *UserAction {
	return &UserAction{
		ID:        ActionID(uuid.NewString()),
		UserID:    userID,
		Action:    action,
		Ref:       ref,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
}

func accrualDescription(form *Form, r ApprovalResult) string {
	return fmt.Sprintf("form %d (milestone %s) approved: base %s, quantity %s, promo %s, backfill %s",
		form.ID, strconv.FormatInt(int64(form.FormTypeID), 10),
		r.BaseReward, r.QuantityBonus, r.PromoBonus, r.BackfillBonus)
}
