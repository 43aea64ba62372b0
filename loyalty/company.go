/*
company.go - Company and user lifecycle operations

PURPOSE:
  Operations that move or retire point aggregates run through the
  engine rather than plain CRUD: company merge, company delete, and
  single-user deactivation. Each is one all-or-nothing transaction.

MERGE:
  destination.total = source.total + destination.total, every user on
  the source moves to the destination, the source row is removed.

DELETE / DEACTIVATE:
  Soft operations: the company (or user) keeps its row, totals are
  zeroed, users lose sign-in. The company total gives up a deactivated
  user's lifetime earnings. Ledger rows are never touched - history
  survives.
*/
package loyalty

import "context"

// Directory wraps company-level operations over the store.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// MergeCompanies folds the source company into the destination: combined
// point total on the destination, users reassigned, source removed.
func (d *Directory) MergeCompanies(ctx context.Context, sourceID, destinationID CompanyID) (*Company, error) {
	if sourceID == destinationID {
		return nil, &ValidationError{Field: "destination_id", Message: "cannot merge a company into itself"}
	}

	var merged *Company

	err := d.store.WithTx(ctx, func(tx Store) error {
		source, err := tx.GetCompany(ctx, sourceID)
		if err != nil {
			return err
		}
		destination, err := tx.GetCompany(ctx, destinationID)
		if err != nil {
			return err
		}

		combined := source.TotalPoints.Add(destination.TotalPoints)
		if err := tx.SetCompanyPoints(ctx, destinationID, combined); err != nil {
			return err
		}
		if err := tx.ReassignUsers(ctx, sourceID, destinationID); err != nil {
			return err
		}
		if err := tx.RemoveCompany(ctx, sourceID); err != nil {
			return err
		}

		destination.TotalPoints = combined
		merged = destination
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// DeactivateUser retires a single user: the company total gives up the
// user's lifetime earnings, the cached totals are zeroed, and the user
// can no longer sign in. Ledger rows survive.
func (d *Directory) DeactivateUser(ctx context.Context, id UserID) error {
	return d.store.WithTx(ctx, func(tx Store) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if !user.Active {
			return &ConflictError{Entity: "user", ID: int64(id), Expected: "active", Actual: "inactive"}
		}
		if err := tx.AddCompanyPoints(ctx, user.CompanyID, user.AccomplishmentPoints.Neg()); err != nil {
			return err
		}
		if err := tx.SetUserPoints(ctx, id, ZeroPoints(), ZeroPoints()); err != nil {
			return err
		}
		return tx.SetUserActive(ctx, id, false)
	})
}

// DeleteCompany soft-deletes a company: status deleted, total zeroed,
// users deactivated with zeroed cached totals. The point ledger keeps
// its rows.
func (d *Directory) DeleteCompany(ctx context.Context, id CompanyID) error {
	return d.store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.GetCompany(ctx, id); err != nil {
			return err
		}
		if err := tx.SetCompanyStatus(ctx, id, CompanyDeleted); err != nil {
			return err
		}
		if err := tx.SetCompanyPoints(ctx, id, ZeroPoints()); err != nil {
			return err
		}
		return tx.DeactivateUsersByCompany(ctx, id)
	})
}
