/*
store.go - Persistence contracts for the loyalty engine

PURPOSE:
  Defines what the engine needs from storage. The engine never talks SQL;
  it composes these operations inside WithTx so every state-changing
  operation is all-or-nothing.

TRANSACTIONAL PATTERN:
  store.WithTx(ctx, func(tx Store) error {
      // every call on tx joins the same database transaction;
      // returning an error rolls everything back
  })

CAS TRANSITIONS:
  TransitionForm and TransitionRedemption update status only when the row
  is currently in the expected source state and report whether a row was
  changed. This is the serialization point for concurrent approvals: the
  first committer wins, the second sees swapped=false.

SEE ALSO:
  - store/sqlite: The SQLite implementation
  - accrual.go, redemption.go: The composing operations
*/
package loyalty

import "context"

// Store is the persistence surface for the engine. Implementations return
// sentinel not-found errors from the Get* methods and wrap driver failures
// in PersistenceError.
type Store interface {
	// WithTx runs fn with a Store whose operations share one database
	// transaction. fn returning an error rolls back every mutation.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// ----- Users -----
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]User, error)
	// AddUserPoints increments the cached totals. Accomplishment points
	// only ever grow, so spend/adjust deltas pass zero there.
	AddUserPoints(ctx context.Context, id UserID, total, accomplishment Points) error
	// SetUserPoints overwrites the cached totals (reconciler, company delete).
	SetUserPoints(ctx context.Context, id UserID, total, accomplishment Points) error
	UpdateUserProfile(ctx context.Context, id UserID, fullname, phone, jobTitle string) error
	SetUserActive(ctx context.Context, id UserID, active bool) error
	ReassignUsers(ctx context.Context, from, to CompanyID) error
	DeactivateUsersByCompany(ctx context.Context, id CompanyID) error

	// ----- Companies -----
	GetCompany(ctx context.Context, id CompanyID) (*Company, error)
	CreateCompany(ctx context.Context, c *Company) error
	ListCompanies(ctx context.Context) ([]Company, error)
	AddCompanyPoints(ctx context.Context, id CompanyID, delta Points) error
	SetCompanyPoints(ctx context.Context, id CompanyID, total Points) error
	SetCompanyStatus(ctx context.Context, id CompanyID, status CompanyStatus) error
	RemoveCompany(ctx context.Context, id CompanyID) error
	// SumAccomplishmentByCompany aggregates active customer users'
	// accomplishment points, the reconciliation target for the cached
	// company total.
	SumAccomplishmentByCompany(ctx context.Context, id CompanyID) (Points, error)

	// ----- Projects -----
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	CreateProject(ctx context.Context, p *Project) error
	ListProjectsByUser(ctx context.Context, id UserID) ([]Project, error)

	// ----- Form types -----
	GetFormType(ctx context.Context, id FormTypeID) (*FormType, error)
	CreateFormType(ctx context.Context, ft *FormType) error
	ListFormTypes(ctx context.Context) ([]FormType, error)

	// ----- Forms -----
	GetForm(ctx context.Context, id FormID) (*Form, error)
	CreateForm(ctx context.Context, f *Form) error
	ListFormsByProject(ctx context.Context, userID UserID, projectID ProjectID, statuses []FormStatus) ([]Form, error)
	// TransitionForm is a compare-and-set on status. swapped is false when
	// the form exists but is not in the from state.
	TransitionForm(ctx context.Context, id FormID, from, to FormStatus, note string) (swapped bool, err error)
	CountFormsByStatus(ctx context.Context, userID UserID, projectID ProjectID, status FormStatus) (int, error)
	FormTypeIDsByStatus(ctx context.Context, userID UserID, projectID ProjectID, status FormStatus) ([]FormTypeID, error)

	// ----- Products -----
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	// AdjustProductStock changes stock by delta (negative to consume).
	AdjustProductStock(ctx context.Context, id ProductID, delta int) error

	// ----- Redemptions -----
	GetRedemption(ctx context.Context, id RedemptionID) (*Redemption, error)
	CreateRedemption(ctx context.Context, r *Redemption) error
	ListRedemptions(ctx context.Context) ([]Redemption, error)
	TransitionRedemption(ctx context.Context, id RedemptionID, from, to RedemptionStatus) (swapped bool, err error)

	// ----- Point ledger (append-only) -----
	AppendTransaction(ctx context.Context, tx *PointTransaction) error
	TransactionsByUser(ctx context.Context, id UserID) ([]PointTransaction, error)
	SumTransactionsByUser(ctx context.Context, id UserID) (Points, error)
	// SumEarnedByUser sums earn rows only: the accomplishment total.
	SumEarnedByUser(ctx context.Context, id UserID) (Points, error)

	// ----- Audit -----
	RecordAction(ctx context.Context, a *UserAction) error
	ActionsByUser(ctx context.Context, id UserID) ([]UserAction, error)

	// Reset wipes every table. Demo and test environments only.
	Reset(ctx context.Context) error
}
