/*
handlers.go - HTTP API handlers for the loyalty engine

PURPOSE:
  Exposes the points engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login             Sign in, returns JWT
    POST   /api/auth/register          Create a user under a company

  Users:
    GET    /api/users                  List users (operator)
    DELETE /api/users/{id}             Deactivate a user (operator)
    GET    /api/users/me               Current user profile
    PUT    /api/users/me               Update own profile
    GET    /api/users/me/balance       Cached totals + ledger balance
    GET    /api/users/me/transactions  Ledger history
    GET    /api/users/me/actions       Audit history

  Companies (operator):
    GET    /api/companies              List companies
    POST   /api/companies              Create company
    POST   /api/companies/{id}/merge   Merge into destination
    DELETE /api/companies/{id}         Soft delete

  Projects / Forms:
    GET    /api/projects               Current user's projects
    POST   /api/projects               Create project
    GET    /api/projects/{id}/forms    Forms on a project
    POST   /api/forms                  Submit a milestone form
    GET    /api/forms/{id}             Get a form
    POST   /api/forms/{id}/approve     Approve + accrue (operator)
    POST   /api/forms/{id}/reject      Reject (operator)

  Catalog / Redemptions:
    GET    /api/products               List products
    POST   /api/products               Add product (operator)
    POST   /api/redemptions            Claim a product
    GET    /api/redemptions            List all (operator)
    POST   /api/redemptions/{id}/approve  Settle approve (operator)
    POST   /api/redemptions/{id}/reject   Settle reject (operator)

  Admin:
    POST   /api/admin/reconcile        Rebuild cached totals from ledger
    POST   /api/admin/seed             Load demo data (seed.go)

ERROR HANDLING:
  Domain errors map onto HTTP status via the error taxonomy:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid token, bad credentials
  - 404: Resource not found
  - 409: Conflict (form/redemption already settled)
  - 422: Insufficient balance, out of stock
  - 500: Persistence and unknown errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - loyalty/: The domain logic handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/loyalty"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      loyalty.Store
	Engine     *loyalty.Engine
	Settlement *loyalty.Settlement
	Ledger     *loyalty.Ledger
	Directory  *loyalty.Directory
	Reconciler *loyalty.Reconciler
	Tokens     *auth.TokenIssuer
}

// NewHandler wires the handler with its domain dependencies.
func NewHandler(store loyalty.Store, engine *loyalty.Engine, settlement *loyalty.Settlement, tokens *auth.TokenIssuer) *Handler {
	return &Handler{
		Store:      store,
		Engine:     engine,
		Settlement: settlement,
		Ledger:     loyalty.NewLedger(store),
		Directory:  loyalty.NewDirectory(store),
		Reconciler: loyalty.NewReconciler(store),
		Tokens:     tokens,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login verifies credentials and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if loyalty.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		writeDomainError(w, err)
		return
	}
	if !user.Active {
		writeError(w, http.StatusUnauthorized, "Account disabled", nil)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserDTO(user)})
}

// Register creates a customer user under an existing company.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username, password and email are required", nil)
		return
	}

	tier := loyalty.UserTier(req.Tier)
	if tier != loyalty.TierT1 && tier != loyalty.TierT2 {
		writeError(w, http.StatusBadRequest, "tier must be T1 or T2", nil)
		return
	}

	if _, err := h.Store.GetCompany(r.Context(), loyalty.CompanyID(req.CompanyID)); err != nil {
		writeDomainError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	user := &loyalty.User{
		CompanyID:            loyalty.CompanyID(req.CompanyID),
		Username:             req.Username,
		Email:                req.Email,
		Fullname:             req.Fullname,
		Tier:                 tier,
		Level:                loyalty.LevelCustomer,
		PasswordHash:         hash,
		PhoneNumber:          req.PhoneNumber,
		JobTitle:             req.JobTitle,
		ProgramSaleID:        req.ProgramSaleID,
		TotalPoints:          loyalty.ZeroPoints(),
		AccomplishmentPoints: loyalty.ZeroPoints(),
		Active:               true,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users. Operator only.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMe returns the authenticated user's profile.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	user, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// UpdateMe updates the authenticated user's profile fields.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.UpdateUserProfile(r.Context(), claims.UserID, req.Fullname, req.PhoneNumber, req.JobTitle); err != nil {
		writeDomainError(w, err)
		return
	}

	user, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// DeactivateUser retires a user, releasing their lifetime points from
// the company total. Operator only.
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Directory.DeactivateUser(r.Context(), loyalty.UserID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMyBalance returns cached totals alongside the ledger-derived balance.
func (h *Handler) GetMyBalance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	user, err := h.Store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ledgerBalance, err := h.Ledger.Balance(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:               int64(user.ID),
		TotalPoints:          user.TotalPoints.String(),
		AccomplishmentPoints: user.AccomplishmentPoints.String(),
		LedgerBalance:        ledgerBalance.String(),
	})
}

// GetMyTransactions returns the authenticated user's ledger history.
func (h *Handler) GetMyTransactions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	txs, err := h.Ledger.ByUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetMyActions returns the authenticated user's audit history.
func (h *Handler) GetMyActions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	actions, err := h.Store.ActionsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = toActionDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// ListCompanies returns all companies.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Store.ListCompanies(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CompanyDTO, len(companies))
	for i := range companies {
		dtos[i] = toCompanyDTO(&companies[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCompany creates a company.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	company := &loyalty.Company{
		Name:        req.Name,
		Address:     req.Address,
		Industry:    req.Industry,
		Status:      loyalty.CompanyActive,
		TotalPoints: loyalty.ZeroPoints(),
	}
	if err := h.Store.CreateCompany(r.Context(), company); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyDTO(company))
}

// MergeCompany folds the path company into the destination.
func (h *Handler) MergeCompany(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req MergeCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	merged, err := h.Directory.MergeCompanies(r.Context(),
		loyalty.CompanyID(sourceID), loyalty.CompanyID(req.DestinationID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(merged))
}

// DeleteCompany soft deletes a company and deactivates its users.
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.Directory.DeleteCompany(r.Context(), loyalty.CompanyID(id)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListMyProjects returns the authenticated user's projects.
func (h *Handler) ListMyProjects(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	projects, err := h.Store.ListProjectsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = ProjectDTO{
			ID:        int64(p.ID),
			UserID:    int64(p.UserID),
			Name:      p.Name,
			CreatedAt: p.CreatedAt.Format(timeRFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject creates a project owned by the authenticated user.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	project := &loyalty.Project{UserID: claims.UserID, Name: req.Name}
	if err := h.Store.CreateProject(r.Context(), project); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProjectDTO{
		ID:        int64(project.ID),
		UserID:    int64(project.UserID),
		Name:      project.Name,
		CreatedAt: project.CreatedAt.Format(timeRFC3339),
	})
}

// ListProjectForms returns the authenticated user's forms on a project,
// optionally filtered by ?status=.
func (h *Handler) ListProjectForms(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var statuses []loyalty.FormStatus
	if st := r.URL.Query().Get("status"); st != "" {
		statuses = append(statuses, loyalty.FormStatus(st))
	}

	forms, err := h.Store.ListFormsByProject(r.Context(), claims.UserID, loyalty.ProjectID(projectID), statuses)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]FormDTO, len(forms))
	for i := range forms {
		dtos[i] = toFormDTO(&forms[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FORM TYPE HANDLERS
// =============================================================================

// ListFormTypes returns the milestone definitions.
func (h *Handler) ListFormTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListFormTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]FormTypeDTO, len(types))
	for i, ft := range types {
		dtos[i] = FormTypeDTO{
			ID:          int64(ft.ID),
			Name:        ft.Name,
			PointReward: ft.PointReward.String(),
			Active:      ft.Active,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFormType defines a milestone. Operator only.
func (h *Handler) CreateFormType(w http.ResponseWriter, r *http.Request) {
	var req CreateFormTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	ft := &loyalty.FormType{
		Name:        req.Name,
		PointReward: loyalty.NewPoints(req.PointReward),
		Active:      true,
	}
	if err := h.Store.CreateFormType(r.Context(), ft); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FormTypeDTO{
		ID:          int64(ft.ID),
		Name:        ft.Name,
		PointReward: ft.PointReward.String(),
		Active:      ft.Active,
	})
}

// =============================================================================
// FORM HANDLERS
// =============================================================================

// SubmitForm creates a milestone submission for the authenticated user.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req SubmitFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.SubmitForm(r.Context(),
		claims.UserID,
		loyalty.ProjectID(req.ProjectID),
		loyalty.FormTypeID(req.FormTypeID),
		fromFieldDTOs(req.Data))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitFormResponse{
		Form:             toFormDTO(&result.Form),
		SubmittedInGroup: result.SubmittedInGroup,
		ProjectComplete:  result.ProjectComplete,
	})
}

// GetForm returns one form.
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	form, err := h.Store.GetForm(r.Context(), loyalty.FormID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFormDTO(form))
}

// ApproveForm approves a submitted form and accrues points. Operator only.
func (h *Handler) ApproveForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ApproveFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Engine.ApproveForm(r.Context(), loyalty.FormID(id), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ApproveFormResponse{
		Form:            toFormDTO(&result.Form),
		BaseReward:      result.BaseReward.String(),
		QuantityBonus:   result.QuantityBonus.String(),
		PromoBonus:      result.PromoBonus.String(),
		BackfillBonus:   result.BackfillBonus.String(),
		Delta:           result.Delta.String(),
		UserTotal:       result.UserTotal.String(),
		CompanyTotal:    result.CompanyTotal.String(),
		ProjectComplete: result.ProjectComplete,
	})
}

// RejectForm rejects a submitted form. Operator only.
func (h *Handler) RejectForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RejectFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	form, err := h.Engine.RejectForm(r.Context(), loyalty.FormID(id), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFormDTO(form))
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the redemption catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i := range products {
		dtos[i] = toProductDTO(&products[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct adds a catalog product. Operator only.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	product := &loyalty.Product{
		Name:          req.Name,
		Description:   req.Description,
		PointsCost:    loyalty.NewPoints(req.PointsCost),
		StockQuantity: req.StockQuantity,
		Active:        true,
	}
	if err := h.Store.CreateProduct(r.Context(), product); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(product))
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// CreateRedemption claims a product for the authenticated user, spending
// the product's point cost.
func (h *Handler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req CreateRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	product, err := h.Store.GetProduct(r.Context(), loyalty.ProductID(req.ProductID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	redemption, err := h.Settlement.Redeem(r.Context(),
		claims.UserID,
		product.ID,
		product.PointsCost,
		loyalty.ShippingInfo{
			Fullname:    req.Fullname,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
			PostalCode:  req.PostalCode,
			Notes:       req.Notes,
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemptionDTO(redemption))
}

// ListRedemptions returns all redemptions. Operator only.
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	redemptions, err := h.Store.ListRedemptions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RedemptionDTO, len(redemptions))
	for i := range redemptions {
		dtos[i] = toRedemptionDTO(&redemptions[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ApproveRedemption settles an active redemption as approved. Operator only.
func (h *Handler) ApproveRedemption(w http.ResponseWriter, r *http.Request) {
	h.settleRedemption(w, r, loyalty.SettleApprove)
}

// RejectRedemption settles an active redemption as rejected, returning
// points and stock. Operator only.
func (h *Handler) RejectRedemption(w http.ResponseWriter, r *http.Request) {
	h.settleRedemption(w, r, loyalty.SettleReject)
}

func (h *Handler) settleRedemption(w http.ResponseWriter, r *http.Request, decision loyalty.SettleDecision) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	redemption, err := h.Settlement.Settle(r.Context(), loyalty.RedemptionID(id), decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(redemption))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Reconcile rebuilds cached totals from the ledger. Operator only.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Run(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		UsersChecked:      report.UsersChecked,
		UsersRepaired:     report.UsersRepaired,
		CompaniesChecked:  report.CompaniesChecked,
		CompaniesRepaired: report.CompaniesRepaired,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

const timeRFC3339 = "2006-01-02T15:04:05Z07:00"

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case loyalty.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case loyalty.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, loyalty.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case loyalty.IsClientError(err):
		// Remaining client errors: insufficient balance, out of stock.
		writeError(w, http.StatusUnprocessableEntity, "Cannot process", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
