package loyalty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store   *sqlite.Store
	company *loyalty.Company
	user    *loyalty.User
	project *loyalty.Project
}

// newFixture seeds a company, one T2 customer, a project, and milestone
// definitions 1-6 with base rewards 100, 125, 250, 400, 500, 600.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	company := &loyalty.Company{Name: "Acme Integrations", TotalPoints: loyalty.ZeroPoints()}
	require.NoError(t, store.CreateCompany(ctx, company))

	user := &loyalty.User{
		CompanyID:            company.ID,
		Username:             "jordan",
		Email:                "jordan@acme.example",
		Tier:                 loyalty.TierT2,
		Level:                loyalty.LevelCustomer,
		PasswordHash:         "x",
		TotalPoints:          loyalty.ZeroPoints(),
		AccomplishmentPoints: loyalty.ZeroPoints(),
		Active:               true,
	}
	require.NoError(t, store.CreateUser(ctx, user))

	project := &loyalty.Project{UserID: user.ID, Name: "site rollout"}
	require.NoError(t, store.CreateProject(ctx, project))

	rewards := []int64{100, 125, 250, 400, 500, 600}
	for i, reward := range rewards {
		ft := &loyalty.FormType{
			Name:        "milestone " + string(rune('1'+i)),
			PointReward: loyalty.NewPoints(reward),
			Active:      true,
		}
		require.NoError(t, store.CreateFormType(ctx, ft))
		require.Equal(t, loyalty.FormTypeID(i+1), ft.ID, "milestone ids must be sequential")
	}

	return &fixture{store: store, company: company, user: user, project: project}
}

// inPromoWindow pins the clock inside the promotional window.
func inPromoWindow() time.Time {
	return time.Date(2024, time.December, 10, 12, 0, 0, 0, time.UTC)
}

func newTestEngine(f *fixture, notifier loyalty.Notifier) *loyalty.Engine {
	return loyalty.NewEngine(f.store, loyalty.DefaultCampaign(), notifier).
		WithClock(inPromoWindow)
}

func (f *fixture) submit(t *testing.T, engine *loyalty.Engine, formType loyalty.FormTypeID) loyalty.Form {
	t.Helper()
	result, err := engine.SubmitForm(context.Background(), f.user.ID, f.project.ID, formType, nil)
	require.NoError(t, err)
	return result.Form
}

func (f *fixture) reloadUser(t *testing.T) *loyalty.User {
	t.Helper()
	user, err := f.store.GetUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	return user
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestSubmitForm_CreatesSubmittedForm(t *testing.T) {
	// GIVEN: A customer with a project
	// WHEN: Submitting milestone 1
	// THEN: The form exists in submitted status and the audit trail records it

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	result, err := engine.SubmitForm(ctx, f.user.ID, f.project.ID, 1, []loyalty.FormField{
		{Label: "serial numbers", Children: []loyalty.FormField{{Label: "sn", Value: "A-100"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, loyalty.FormSubmitted, result.Form.Status)
	assert.Equal(t, 1, result.SubmittedInGroup)
	assert.False(t, result.ProjectComplete)

	stored, err := f.store.GetForm(ctx, result.Form.ID)
	require.NoError(t, err)
	assert.Equal(t, loyalty.FormSubmitted, stored.Status)
	require.Len(t, stored.Data, 1)
	assert.Equal(t, "serial numbers", stored.Data[0].Label)

	actions, err := f.store.ActionsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, loyalty.ActionSubmitted, actions[0].Action)
}

func TestSubmitForm_TierCompletion_InsideWindow(t *testing.T) {
	// GIVEN: A T2 customer with 5 milestones already submitted, before the
	//        submission cutoff
	// WHEN: Submitting the 6th
	// THEN: The submission reports project completion

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	for ft := loyalty.FormTypeID(1); ft <= 5; ft++ {
		f.submit(t, engine, ft)
	}

	result, err := engine.SubmitForm(ctx, f.user.ID, f.project.ID, 6, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, result.SubmittedInGroup)
	assert.True(t, result.ProjectComplete)
}

func TestSubmitForm_TierCompletion_AfterWindow_NotReported(t *testing.T) {
	// GIVEN: The same full submission set, after the submission cutoff
	// WHEN: Submitting the final milestone
	// THEN: The form is created but completion is not reported

	f := newFixture(t)
	afterCutoff := func() time.Time {
		return time.Date(2024, time.December, 20, 0, 0, 0, 0, time.UTC)
	}
	engine := loyalty.NewEngine(f.store, loyalty.DefaultCampaign(), nil).WithClock(afterCutoff)

	for ft := loyalty.FormTypeID(1); ft <= 5; ft++ {
		f.submit(t, engine, ft)
	}

	result, err := engine.SubmitForm(context.Background(), f.user.ID, f.project.ID, 6, nil)
	require.NoError(t, err)
	assert.Equal(t, loyalty.FormSubmitted, result.Form.Status)
	assert.False(t, result.ProjectComplete)
}

func TestSubmitForm_UnknownProject_NotFound(t *testing.T) {
	f := newFixture(t)
	engine := newTestEngine(f, nil)

	_, err := engine.SubmitForm(context.Background(), f.user.ID, 9999, 1, nil)
	assert.True(t, loyalty.IsNotFound(err))
}

// =============================================================================
// APPROVAL ACCRUAL TESTS
// =============================================================================

func TestApproveForm_FullDelta_WithPromo(t *testing.T) {
	// GIVEN: Milestones 1 and 2 approved, inside the promo window
	// WHEN: Approving milestone 3 with quantity 75
	// THEN: delta = base 250 + quantity 100 + promo 200 = 550, applied to
	//       the ledger, the user, and the company in lockstep

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	for ft := loyalty.FormTypeID(1); ft <= 2; ft++ {
		form := f.submit(t, engine, ft)
		_, err := engine.ApproveForm(ctx, form.ID, 0)
		require.NoError(t, err)
	}

	form3 := f.submit(t, engine, 3)
	result, err := engine.ApproveForm(ctx, form3.ID, 75)
	require.NoError(t, err)

	assert.Equal(t, "250", result.BaseReward.String())
	assert.Equal(t, "100", result.QuantityBonus.String())
	assert.Equal(t, "200", result.PromoBonus.String())
	assert.True(t, result.BackfillBonus.IsZero())
	assert.Equal(t, "550", result.Delta.String())

	// Cached projections follow the ledger.
	user := f.reloadUser(t)
	expectedTotal := loyalty.NewPoints(100 + 125 + 550)
	assert.True(t, user.TotalPoints.Equal(expectedTotal), "user total %s", user.TotalPoints)
	assert.True(t, user.AccomplishmentPoints.Equal(expectedTotal))

	company, err := f.store.GetCompany(ctx, f.company.ID)
	require.NoError(t, err)
	assert.True(t, company.TotalPoints.Equal(expectedTotal))

	balance, err := f.store.SumTransactionsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(expectedTotal), "ledger and cache must agree")
}

func TestApproveForm_LedgerRowReferencesForm(t *testing.T) {
	// GIVEN: An approved form
	// WHEN: Reading the ledger
	// THEN: Exactly one earn row exists, carrying the form reference

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	form := f.submit(t, engine, 1)
	result, err := engine.ApproveForm(ctx, form.ID, 10)
	require.NoError(t, err)

	txs, err := f.store.TransactionsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, loyalty.TxEarn, txs[0].Type)
	assert.True(t, txs[0].Delta.Equal(result.Delta))
	require.NotNil(t, txs[0].FormID)
	assert.Equal(t, form.ID, *txs[0].FormID)
	assert.Nil(t, txs[0].RedemptionID)
}

func TestApproveForm_BackfillOnAnchorCompletion(t *testing.T) {
	// GIVEN: A customer who skipped milestones 1-4 and completed 5
	// WHEN: Milestone 6 is approved
	// THEN: The delta carries half of every missing early milestone:
	//       600 + (50 + 62.5 + 125 + 200) = 1037.5

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	form5 := f.submit(t, engine, 5)
	result5, err := engine.ApproveForm(ctx, form5.ID, 0)
	require.NoError(t, err)
	assert.True(t, result5.BackfillBonus.IsZero(), "one anchor is not enough")

	form6 := f.submit(t, engine, 6)
	result6, err := engine.ApproveForm(ctx, form6.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, "437.5", result6.BackfillBonus.String())
	assert.Equal(t, "1037.5", result6.Delta.String())

	user := f.reloadUser(t)
	assert.Equal(t, "1537.5", user.TotalPoints.String())
}

func TestApproveForm_Twice_Conflict(t *testing.T) {
	// GIVEN: An already-approved form
	// WHEN: Approving it again
	// THEN: ConflictError, and no second accrual

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	form := f.submit(t, engine, 2)
	_, err := engine.ApproveForm(ctx, form.ID, 0)
	require.NoError(t, err)

	before := f.reloadUser(t).TotalPoints

	_, err = engine.ApproveForm(ctx, form.ID, 0)
	require.Error(t, err)
	assert.True(t, loyalty.IsConflict(err))

	var conflict *loyalty.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "form", conflict.Entity)
	assert.Equal(t, string(loyalty.FormApproved), conflict.Actual)

	after := f.reloadUser(t).TotalPoints
	assert.True(t, before.Equal(after), "second approval must not move points")

	txs, err := f.store.TransactionsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "single ledger row for a single approval")
}

func TestApproveForm_UnknownForm_NotFound(t *testing.T) {
	f := newFixture(t)
	engine := newTestEngine(f, nil)

	_, err := engine.ApproveForm(context.Background(), 424242, 0)
	assert.True(t, loyalty.IsNotFound(err))
	assert.ErrorIs(t, err, loyalty.ErrFormNotFound)
}

// failingNotifier always errors; the accrual must not care.
type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, n loyalty.Notification) error {
	return errors.New("smtp down")
}

func TestApproveForm_NotifierFailure_PointsStick(t *testing.T) {
	// GIVEN: A notifier that always fails
	// WHEN: Approving a form
	// THEN: The approval succeeds and the points remain committed

	f := newFixture(t)
	engine := newTestEngine(f, failingNotifier{})
	ctx := context.Background()

	form := f.submit(t, engine, 1)
	result, err := engine.ApproveForm(ctx, form.ID, 0)
	require.NoError(t, err, "notification failure must not fail the approval")

	user := f.reloadUser(t)
	assert.True(t, user.TotalPoints.Equal(result.Delta))

	stored, err := f.store.GetForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, loyalty.FormApproved, stored.Status)
}

// =============================================================================
// REJECTION TESTS
// =============================================================================

func TestRejectForm_NoPointsMove(t *testing.T) {
	// GIVEN: A submitted form
	// WHEN: Rejecting it with a reason
	// THEN: Status flips to rejected with the note, the ledger stays empty

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	form := f.submit(t, engine, 4)
	rejected, err := engine.RejectForm(ctx, form.ID, "missing serial numbers")
	require.NoError(t, err)

	assert.Equal(t, loyalty.FormRejected, rejected.Status)
	assert.Equal(t, "missing serial numbers", rejected.Note)

	txs, err := f.store.TransactionsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	user := f.reloadUser(t)
	assert.True(t, user.TotalPoints.IsZero())
}

func TestRejectForm_AfterApproval_Conflict(t *testing.T) {
	// GIVEN: An approved form
	// WHEN: Rejecting it
	// THEN: ConflictError, approval is final

	f := newFixture(t)
	engine := newTestEngine(f, nil)
	ctx := context.Background()

	form := f.submit(t, engine, 1)
	_, err := engine.ApproveForm(ctx, form.ID, 0)
	require.NoError(t, err)

	_, err = engine.RejectForm(ctx, form.ID, "changed my mind")
	assert.True(t, loyalty.IsConflict(err))
}
