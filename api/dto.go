/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

POINT FORMATTING:
  Point amounts cross the wire as decimal strings ("250", "62.5") so the
  frontend never rounds a half-reward bonus.

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - loyalty/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LoginRequest carries sign-in credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the session token and profile.
type LoginResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// RegisterRequest creates a user under a company.
type RegisterRequest struct {
	CompanyID     int64  `json:"company_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	Fullname      string `json:"fullname,omitempty"`
	Tier          string `json:"tier"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	JobTitle      string `json:"job_title,omitempty"`
	ProgramSaleID string `json:"program_sale_id,omitempty"`
}

// UpdateProfileRequest updates the caller's own profile fields.
type UpdateProfileRequest struct {
	Fullname    string `json:"fullname"`
	PhoneNumber string `json:"phone_number,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}

// UserDTO represents a user in API responses. The password hash never
// leaves the server.
type UserDTO struct {
	ID                   int64  `json:"id"`
	CompanyID            int64  `json:"company_id"`
	Username             string `json:"username"`
	Email                string `json:"email"`
	Fullname             string `json:"fullname,omitempty"`
	Tier                 string `json:"tier"`
	Level                string `json:"level"`
	TotalPoints          string `json:"total_points"`
	AccomplishmentPoints string `json:"accomplishment_points"`
	Active               bool   `json:"active"`
	CreatedAt            string `json:"created_at,omitempty"`
}

// CompanyDTO represents a company.
type CompanyDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Status      string `json:"status"`
	TotalPoints string `json:"total_points"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateCompanyRequest is the request to create a company.
type CreateCompanyRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// MergeCompanyRequest names the surviving company.
type MergeCompanyRequest struct {
	DestinationID int64 `json:"destination_id"`
}

// ProjectDTO represents a project.
type ProjectDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateProjectRequest is the request to create a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// FormTypeDTO represents a milestone definition.
type FormTypeDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PointReward string `json:"point_reward"`
	Active      bool   `json:"active"`
}

// CreateFormTypeRequest is the request to define a milestone.
type CreateFormTypeRequest struct {
	Name        string `json:"name"`
	PointReward int64  `json:"point_reward"`
}

// FormFieldDTO mirrors loyalty.FormField for JSON transport.
type FormFieldDTO struct {
	Label    string         `json:"label"`
	Value    string         `json:"value,omitempty"`
	Children []FormFieldDTO `json:"children,omitempty"`
}

// SubmitFormRequest submits a milestone form.
type SubmitFormRequest struct {
	ProjectID  int64          `json:"project_id"`
	FormTypeID int64          `json:"form_type_id"`
	Data       []FormFieldDTO `json:"data,omitempty"`
}

// SubmitFormResponse reports the created form and group progress.
type SubmitFormResponse struct {
	Form             FormDTO `json:"form"`
	SubmittedInGroup int     `json:"submitted_in_group"`
	ProjectComplete  bool    `json:"project_complete"`
}

// FormDTO represents one milestone submission.
type FormDTO struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user_id"`
	ProjectID  int64          `json:"project_id"`
	FormTypeID int64          `json:"form_type_id"`
	Status     string         `json:"status"`
	Data       []FormFieldDTO `json:"data,omitempty"`
	Note       string         `json:"note,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
}

// ApproveFormRequest carries the reviewer-confirmed device quantity.
type ApproveFormRequest struct {
	Quantity int `json:"quantity"`
}

// ApproveFormResponse itemizes the accrual.
type ApproveFormResponse struct {
	Form            FormDTO `json:"form"`
	BaseReward      string  `json:"base_reward"`
	QuantityBonus   string  `json:"quantity_bonus"`
	PromoBonus      string  `json:"promo_bonus"`
	BackfillBonus   string  `json:"backfill_bonus"`
	Delta           string  `json:"delta"`
	UserTotal       string  `json:"user_total"`
	CompanyTotal    string  `json:"company_total"`
	ProjectComplete bool    `json:"project_complete"`
}

// RejectFormRequest carries the reviewer's reason.
type RejectFormRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ProductDTO represents a catalog product.
type ProductDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PointsCost    string `json:"points_cost"`
	StockQuantity int    `json:"stock_quantity"`
	Active        bool   `json:"active"`
}

// CreateProductRequest adds a catalog product.
type CreateProductRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PointsCost    int64  `json:"points_cost"`
	StockQuantity int    `json:"stock_quantity"`
}

// CreateRedemptionRequest claims a product.
type CreateRedemptionRequest struct {
	ProductID   int64  `json:"product_id"`
	Fullname    string `json:"fullname"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Address     string `json:"address"`
	PostalCode  string `json:"postal_code,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// RedemptionDTO represents a redemption.
type RedemptionDTO struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	ProductID   int64  `json:"product_id"`
	PointsSpent string `json:"points_spent"`
	Status      string `json:"status"`
	Fullname    string `json:"fullname,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Address     string `json:"address,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// TransactionDTO represents a ledger row.
type TransactionDTO struct {
	ID           string `json:"id"`
	Delta        string `json:"delta"`
	Type         string `json:"type"`
	FormID       *int64 `json:"form_id,omitempty"`
	RedemptionID *int64 `json:"redemption_id,omitempty"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// BalanceDTO is the ledger-vs-cache view of a user's points.
type BalanceDTO struct {
	UserID               int64  `json:"user_id"`
	TotalPoints          string `json:"total_points"`
	AccomplishmentPoints string `json:"accomplishment_points"`
	LedgerBalance        string `json:"ledger_balance"`
}

// ActionDTO represents one audit entry.
type ActionDTO struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	Entity       string `json:"entity"`
	FormID       *int64 `json:"form_id,omitempty"`
	RedemptionID *int64 `json:"redemption_id,omitempty"`
	Note         string `json:"note,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// ReconcileResponse summarizes a manual reconciliation run.
type ReconcileResponse struct {
	UsersChecked      int `json:"users_checked"`
	UsersRepaired     int `json:"users_repaired"`
	CompaniesChecked  int `json:"companies_checked"`
	CompaniesRepaired int `json:"companies_repaired"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u *loyalty.User) UserDTO {
	return UserDTO{
		ID:                   int64(u.ID),
		CompanyID:            int64(u.CompanyID),
		Username:             u.Username,
		Email:                u.Email,
		Fullname:             u.Fullname,
		Tier:                 string(u.Tier),
		Level:                string(u.Level),
		TotalPoints:          u.TotalPoints.String(),
		AccomplishmentPoints: u.AccomplishmentPoints.String(),
		Active:               u.Active,
		CreatedAt:            u.CreatedAt.Format(time.RFC3339),
	}
}

func toCompanyDTO(c *loyalty.Company) CompanyDTO {
	return CompanyDTO{
		ID:          int64(c.ID),
		Name:        c.Name,
		Address:     c.Address,
		Industry:    c.Industry,
		Status:      string(c.Status),
		TotalPoints: c.TotalPoints.String(),
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func toFormDTO(f *loyalty.Form) FormDTO {
	return FormDTO{
		ID:         int64(f.ID),
		UserID:     int64(f.UserID),
		ProjectID:  int64(f.ProjectID),
		FormTypeID: int64(f.FormTypeID),
		Status:     string(f.Status),
		Data:       toFieldDTOs(f.Data),
		Note:       f.Note,
		CreatedAt:  f.CreatedAt.Format(time.RFC3339),
	}
}

func toFieldDTOs(fields []loyalty.FormField) []FormFieldDTO {
	if len(fields) == 0 {
		return nil
	}
	dtos := make([]FormFieldDTO, len(fields))
	for i, f := range fields {
		dtos[i] = FormFieldDTO{
			Label:    f.Label,
			Value:    f.Value,
			Children: toFieldDTOs(f.Children),
		}
	}
	return dtos
}

func fromFieldDTOs(dtos []FormFieldDTO) []loyalty.FormField {
	if len(dtos) == 0 {
		return nil
	}
	fields := make([]loyalty.FormField, len(dtos))
	for i, d := range dtos {
		fields[i] = loyalty.FormField{
			Label:    d.Label,
			Value:    d.Value,
			Children: fromFieldDTOs(d.Children),
		}
	}
	return fields
}

func toProductDTO(p *loyalty.Product) ProductDTO {
	return ProductDTO{
		ID:            int64(p.ID),
		Name:          p.Name,
		Description:   p.Description,
		PointsCost:    p.PointsCost.String(),
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
	}
}

func toRedemptionDTO(r *loyalty.Redemption) RedemptionDTO {
	return RedemptionDTO{
		ID:          int64(r.ID),
		UserID:      int64(r.UserID),
		ProductID:   int64(r.ProductID),
		PointsSpent: r.PointsSpent.String(),
		Status:      string(r.Status),
		Fullname:    r.Shipping.Fullname,
		Email:       r.Shipping.Email,
		PhoneNumber: r.Shipping.PhoneNumber,
		Address:     r.Shipping.Address,
		PostalCode:  r.Shipping.PostalCode,
		Notes:       r.Shipping.Notes,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx loyalty.PointTransaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          string(tx.ID),
		Delta:       tx.Delta.String(),
		Type:        string(tx.Type),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.FormID != nil {
		id := int64(*tx.FormID)
		dto.FormID = &id
	}
	if tx.RedemptionID != nil {
		id := int64(*tx.RedemptionID)
		dto.RedemptionID = &id
	}
	return dto
}

func toTransactionDTOs(txs []loyalty.PointTransaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toActionDTO(a loyalty.UserAction) ActionDTO {
	dto := ActionDTO{
		ID:        string(a.ID),
		Action:    string(a.Action),
		Entity:    string(a.Ref.Entity),
		Note:      a.Note,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.Ref.FormID != nil {
		id := int64(*a.Ref.FormID)
		dto.FormID = &id
	}
	if a.Ref.RedemptionID != nil {
		id := int64(*a.Ref.RedemptionID)
		dto.RedemptionID = &id
	}
	return dto
}
