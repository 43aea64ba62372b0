package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/api"
	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router   *chi.Mux
	store    *sqlite.Store
	company  *loyalty.Company
	operator *loyalty.User
	customer *loyalty.User
	project  *loyalty.Project
}

// newTestServer wires a full router over an in-memory database with an
// operator, one T2 customer, six milestone definitions, and a product.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	company := &loyalty.Company{Name: "Acme Integrations", TotalPoints: loyalty.ZeroPoints()}
	require.NoError(t, store.CreateCompany(ctx, company))

	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)

	operator := &loyalty.User{
		CompanyID: company.ID, Username: "ops", Email: "ops@example.com",
		Tier: loyalty.TierT1, Level: loyalty.LevelInternal, PasswordHash: hash,
		TotalPoints: loyalty.ZeroPoints(), AccomplishmentPoints: loyalty.ZeroPoints(),
		Active: true,
	}
	require.NoError(t, store.CreateUser(ctx, operator))

	customer := &loyalty.User{
		CompanyID: company.ID, Username: "jordan", Email: "jordan@acme.example",
		Tier: loyalty.TierT2, Level: loyalty.LevelCustomer, PasswordHash: hash,
		TotalPoints: loyalty.ZeroPoints(), AccomplishmentPoints: loyalty.ZeroPoints(),
		Active: true,
	}
	require.NoError(t, store.CreateUser(ctx, customer))

	project := &loyalty.Project{UserID: customer.ID, Name: "site rollout"}
	require.NoError(t, store.CreateProject(ctx, project))

	rewards := []int64{100, 125, 250, 400, 500, 600}
	for i, reward := range rewards {
		ft := &loyalty.FormType{
			Name:        "milestone " + string(rune('1'+i)),
			PointReward: loyalty.NewPoints(reward),
			Active:      true,
		}
		require.NoError(t, store.CreateFormType(ctx, ft))
	}

	product := &loyalty.Product{
		Name: "branded jacket", PointsCost: loyalty.NewPoints(300),
		StockQuantity: 2, Active: true,
	}
	require.NoError(t, store.CreateProduct(ctx, product))

	tokens := auth.NewTokenIssuer("handler-test-secret", time.Hour)
	engine := loyalty.NewEngine(store, loyalty.DefaultCampaign(), nil)
	settlement := loyalty.NewSettlement(store, nil)
	handler := api.NewHandler(store, engine, settlement, tokens)
	router := api.NewRouter(handler, []string{"*"})

	return &testServer{
		router:   router,
		store:    store,
		company:  company,
		operator: operator,
		customer: customer,
		project:  project,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{
		Username: username,
		Password: "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp api.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// =============================================================================
// AUTH TESTS
// =============================================================================

func TestLogin_Success(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{
		Username: "jordan",
		Password: "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[api.LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "jordan", resp.User.Username)
}

func TestLogin_WrongPassword_Unauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{
		Username: "jordan",
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_UnknownUser_Unauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{
		Username: "nobody",
		Password: "hunter2",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoute_MissingToken_Unauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperatorRoute_CustomerToken_Forbidden(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "jordan")

	rec := s.do(t, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegister_ThenLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", api.RegisterRequest{
		CompanyID: int64(s.company.ID),
		Username:  "newbie",
		Password:  "hunter2",
		Email:     "newbie@acme.example",
		Tier:      "T1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	s.login(t, "newbie")
}

// =============================================================================
// USER LIFECYCLE TESTS
// =============================================================================

func TestUpdateMe_ChangesProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "jordan")

	rec := s.do(t, http.MethodPut, "/api/users/me", token, api.UpdateProfileRequest{
		Fullname: "Jordan Reyes",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user := decode[api.UserDTO](t, rec)
	assert.Equal(t, "Jordan Reyes", user.Fullname)
	assert.Equal(t, "jordan", user.Username)
}

func TestDeactivateUser_RevokesAccount(t *testing.T) {
	// GIVEN: An active customer
	// WHEN: An operator deactivates them
	// THEN: The account is gone from sign-in and a second attempt conflicts

	s := newTestServer(t)
	operatorToken := s.login(t, "ops")

	userPath := "/api/users/" + formatID(int64(s.customer.ID))
	rec := s.do(t, http.MethodDelete, userPath, operatorToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	user, err := s.store.GetUser(context.Background(), s.customer.ID)
	require.NoError(t, err)
	assert.False(t, user.Active)

	rec = s.do(t, http.MethodDelete, userPath, operatorToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeactivateUser_CustomerToken_Forbidden(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "jordan")

	rec := s.do(t, http.MethodDelete, "/api/users/"+formatID(int64(s.operator.ID)), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// MILESTONE FLOW TESTS
// =============================================================================

func TestSubmitAndApprove_Flow(t *testing.T) {
	// GIVEN: A customer submission for milestone 1
	// WHEN: An operator approves it with quantity 75
	// THEN: The accrual is itemized and the balance endpoint reflects it

	s := newTestServer(t)
	customerToken := s.login(t, "jordan")
	operatorToken := s.login(t, "ops")

	rec := s.do(t, http.MethodPost, "/api/forms", customerToken, api.SubmitFormRequest{
		ProjectID:  int64(s.project.ID),
		FormTypeID: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[api.SubmitFormResponse](t, rec)
	assert.Equal(t, "submitted", submitted.Form.Status)

	formPath := "/api/forms/" + formatID(submitted.Form.ID)
	rec = s.do(t, http.MethodPost, formPath+"/approve", operatorToken, api.ApproveFormRequest{Quantity: 75})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	approved := decode[api.ApproveFormResponse](t, rec)
	assert.Equal(t, "100", approved.BaseReward)
	assert.Equal(t, "20", approved.QuantityBonus)
	assert.Equal(t, "120", approved.Delta)
	assert.Equal(t, "120", approved.UserTotal)
	assert.Equal(t, "120", approved.CompanyTotal)

	rec = s.do(t, http.MethodGet, "/api/users/me/balance", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "120", balance.TotalPoints)
	assert.Equal(t, "120", balance.LedgerBalance)
}

func TestApproveForm_Twice_Conflict(t *testing.T) {
	s := newTestServer(t)
	customerToken := s.login(t, "jordan")
	operatorToken := s.login(t, "ops")

	rec := s.do(t, http.MethodPost, "/api/forms", customerToken, api.SubmitFormRequest{
		ProjectID:  int64(s.project.ID),
		FormTypeID: 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[api.SubmitFormResponse](t, rec)

	formPath := "/api/forms/" + formatID(submitted.Form.ID)
	rec = s.do(t, http.MethodPost, formPath+"/approve", operatorToken, api.ApproveFormRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, formPath+"/approve", operatorToken, api.ApproveFormRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveForm_Unknown_NotFound(t *testing.T) {
	s := newTestServer(t)
	operatorToken := s.login(t, "ops")

	rec := s.do(t, http.MethodPost, "/api/forms/424242/approve", operatorToken, api.ApproveFormRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectForm_SetsStatus(t *testing.T) {
	s := newTestServer(t)
	customerToken := s.login(t, "jordan")
	operatorToken := s.login(t, "ops")

	rec := s.do(t, http.MethodPost, "/api/forms", customerToken, api.SubmitFormRequest{
		ProjectID:  int64(s.project.ID),
		FormTypeID: 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[api.SubmitFormResponse](t, rec)

	formPath := "/api/forms/" + formatID(submitted.Form.ID)
	rec = s.do(t, http.MethodPost, formPath+"/reject", operatorToken, api.RejectFormRequest{Reason: "illegible"})
	require.Equal(t, http.StatusOK, rec.Code)

	form := decode[api.FormDTO](t, rec)
	assert.Equal(t, "rejected", form.Status)
	assert.Equal(t, "illegible", form.Note)
}

// =============================================================================
// REDEMPTION TESTS
// =============================================================================

func TestCreateRedemption_InsufficientBalance(t *testing.T) {
	s := newTestServer(t)
	customerToken := s.login(t, "jordan")

	rec := s.do(t, http.MethodPost, "/api/redemptions", customerToken, api.CreateRedemptionRequest{
		ProductID: 1,
		Fullname:  "Jordan Reyes",
		Email:     "jordan@acme.example",
		Address:   "12 Harbour St",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestSeed_LoadsDemoProgram(t *testing.T) {
	// GIVEN: A fresh server
	// WHEN: An operator loads the demo program
	// THEN: The demo accounts exist and the seeded customer carries history

	s := newTestServer(t)
	operatorToken := s.login(t, "ops")

	rec := s.do(t, http.MethodPost, "/api/admin/seed", operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx := context.Background()
	dana, err := s.store.GetUserByUsername(ctx, "dana")
	require.NoError(t, err)
	assert.False(t, dana.TotalPoints.IsZero(), "seeded customer has approved milestones")

	txs, err := s.store.TransactionsByUser(ctx, dana.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, txs)
}

func TestReconcile_ReturnsReport(t *testing.T) {
	s := newTestServer(t)
	operatorToken := s.login(t, "ops")

	rec := s.do(t, http.MethodPost, "/api/admin/reconcile", operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[api.ReconcileResponse](t, rec)
	assert.Equal(t, 2, report.UsersChecked)
	assert.Equal(t, 0, report.UsersRepaired, "fresh state has no drift")
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
