/*
Package loyalty provides the core points engine for the incentive program.

PURPOSE:
  This package contains the domain model and algorithms for the loyalty
  backend: users enrolled through companies submit milestone forms on
  projects, earn points when forms are approved, and spend points on
  product redemptions. Every balance change flows through an append-only
  point ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Points: A signed point quantity backed by decimal arithmetic
  - User/Company: Participants with cached balance projections
  - Form/FormType: One milestone instance and its definition
  - PointTransaction: An immutable ledger entry recording balance changes
  - Redemption/Product: Catalog claims that spend points and stock
  - UserAction: Append-only audit trail of user-initiated operations

DESIGN PRINCIPLES:
  1. Immutability: Ledger transactions are never modified, only appended
  2. Precision: Uses decimal.Decimal so half-reward bonuses stay exact
  3. Projections: Cached totals on User/Company are derived from the
     ledger and can always be recomputed (see reconcile.go)
  4. Guarded transitions: Form and Redemption status changes happen only
     from their expected source state

SEE ALSO:
  - bonus.go:      Quantity-tier and promotional bonus rules
  - milestone.go:  Completion detection and backfill bonus
  - accrual.go:    The form-approval accrual engine
  - redemption.go: Redemption create/settle
  - ledger.go:     Ledger contract and balance reconstruction
*/
package loyalty

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POINTS - Signed quantity with decimal precision
// =============================================================================

// Points is a signed point amount. Decimal-backed because the milestone
// backfill bonus awards half a base reward, which is fractional when the
// reward is odd.
type Points struct {
	Value decimal.Decimal
}

func NewPoints(v int64) Points {
	return Points{Value: decimal.NewFromInt(v)}
}

// MustParsePoints parses a stored decimal string, returning zero on failure.
func MustParsePoints(s string) Points {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Points{Value: decimal.Zero}
	}
	return Points{Value: d}
}

func ZeroPoints() Points { return Points{Value: decimal.Zero} }

func (p Points) Add(q Points) Points      { return Points{Value: p.Value.Add(q.Value)} }
func (p Points) Sub(q Points) Points      { return Points{Value: p.Value.Sub(q.Value)} }
func (p Points) Neg() Points              { return Points{Value: p.Value.Neg()} }
func (p Points) Half() Points             { return Points{Value: p.Value.Div(decimal.NewFromInt(2))} }
func (p Points) IsZero() bool             { return p.Value.IsZero() }
func (p Points) IsNegative() bool         { return p.Value.IsNegative() }
func (p Points) IsPositive() bool         { return p.Value.IsPositive() }
func (p Points) Equal(q Points) bool      { return p.Value.Equal(q.Value) }
func (p Points) LessThan(q Points) bool   { return p.Value.LessThan(q.Value) }
func (p Points) String() string           { return p.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	UserID        int64
	CompanyID     int64
	ProjectID     int64
	FormID        int64
	FormTypeID    int64
	ProductID     int64
	RedemptionID  int64
	TransactionID string
	ActionID      string
)

// =============================================================================
// USERS AND COMPANIES
// =============================================================================

// UserTier determines how many milestones constitute project completion.
type UserTier string

const (
	TierT1 UserTier = "T1" // 4 milestones
	TierT2 UserTier = "T2" // 6 milestones
)

// MilestonesRequired returns the milestone count that completes a project
// for the tier. Unknown tiers fall back to the larger requirement so a
// mistyped tier never reports completion early.
func (t UserTier) MilestonesRequired() int {
	switch t {
	case TierT1:
		return 4
	case TierT2:
		return 6
	default:
		return 6
	}
}

// UserLevel separates program participants from internal operators.
type UserLevel string

const (
	LevelCustomer UserLevel = "CUSTOMER"
	LevelInternal UserLevel = "INTERNAL"
)

type User struct {
	ID        UserID
	CompanyID CompanyID
	Username  string
	Email     string
	Fullname  string
	Tier      UserTier
	Level     UserLevel

	PasswordHash  string
	ProgramSaleID string
	PhoneNumber   string
	JobTitle      string

	// Cached projections of the point ledger. TotalPoints is the
	// redeemable balance; AccomplishmentPoints is cumulative earned and
	// is never decremented by redemptions.
	TotalPoints          Points
	AccomplishmentPoints Points

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CompanyStatus string

const (
	CompanyActive  CompanyStatus = "active"
	CompanyDeleted CompanyStatus = "deleted"
)

type Company struct {
	ID       CompanyID
	Name     string
	Address  string
	Industry string
	Status   CompanyStatus

	// Cached sum of active users' accomplishment points. Maintained
	// incrementally; the reconciler restores it from the ledger.
	TotalPoints Points

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PROJECTS, FORM TYPES, FORMS
// =============================================================================

type Project struct {
	ID        ProjectID
	UserID    UserID
	Name      string
	CreatedAt time.Time
}

// FormType defines a milestone: its ordinal identity, display name, and
// the base point reward granted on approval.
type FormType struct {
	ID          FormTypeID
	Name        string
	PointReward Points
	Active      bool
	CreatedAt   time.Time
}

type FormStatus string

const (
	FormPending   FormStatus = "pending"
	FormSubmitted FormStatus = "submitted"
	FormApproved  FormStatus = "approved"
	FormRejected  FormStatus = "rejected"
)

// FormField is one label/value pair of submitted form data. Values may be
// nested groups (e.g. a table of serial numbers).
type FormField struct {
	Label    string      `json:"label"`
	Value    string      `json:"value,omitempty"`
	Children []FormField `json:"children,omitempty"`
}

// Form is one milestone submission instance.
type Form struct {
	ID         FormID
	UserID     UserID
	ProjectID  ProjectID
	FormTypeID FormTypeID
	Status     FormStatus
	Data       []FormField
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// POINT TRANSACTIONS - The ledger rows
// =============================================================================

type TransactionType string

const (
	TxEarn   TransactionType = "earn"   // Accrual on form approval
	TxSpend  TransactionType = "spend"  // Redemption debit
	TxAdjust TransactionType = "adjust" // Reversal or manual correction
)

// PointTransaction is an immutable ledger row. Rows are appended, never
// updated or deleted; corrections are new adjust rows.
type PointTransaction struct {
	ID           TransactionID
	UserID       UserID
	Delta        Points
	Type         TransactionType
	FormID       *FormID
	RedemptionID *RedemptionID
	Description  string
	CreatedAt    time.Time
}

// =============================================================================
// PRODUCTS AND REDEMPTIONS
// =============================================================================

type Product struct {
	ID            ProductID
	Name          string
	Description   string
	PointsCost    Points
	StockQuantity int
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RedemptionStatus string

const (
	RedemptionActive   RedemptionStatus = "active"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// ShippingInfo is the contact snapshot captured at redemption time. It is
// denormalized on purpose: later profile edits must not change where an
// in-flight redemption ships.
type ShippingInfo struct {
	Fullname    string
	Email       string
	PhoneNumber string
	Address     string
	PostalCode  string
	Notes       string
}

type Redemption struct {
	ID          RedemptionID
	UserID      UserID
	ProductID   ProductID
	PointsSpent Points
	Status      RedemptionStatus
	Shipping    ShippingInfo
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// USER ACTIONS - Audit trail, independent of the point ledger
// =============================================================================

type ActionEntity string

const (
	EntityForm   ActionEntity = "FORM"
	EntityRedeem ActionEntity = "REDEEM"
)

type ActionType string

const (
	ActionSubmitted ActionType = "SUBMITTED"
	ActionApproved  ActionType = "APPROVED"
	ActionRejected  ActionType = "REJECTED"
	ActionRedeemed  ActionType = "REDEEMED"
)

// ActionRef is a tagged reference: exactly one of FormID/RedemptionID is
// set, matching the Entity tag.
type ActionRef struct {
	Entity       ActionEntity
	FormID       *FormID
	RedemptionID *RedemptionID
}

// FormRef builds a FORM-tagged reference.
func FormRef(id FormID) ActionRef {
	return ActionRef{Entity: EntityForm, FormID: &id}
}

// RedeemRef builds a REDEEM-tagged reference.
func RedeemRef(id RedemptionID) ActionRef {
	return ActionRef{Entity: EntityRedeem, RedemptionID: &id}
}

// UserAction is one append-only audit row.
type UserAction struct {
	ID        ActionID
	UserID    UserID
	Action    ActionType
	Ref       ActionRef
	Note      string
	CreatedAt time.Time
}
