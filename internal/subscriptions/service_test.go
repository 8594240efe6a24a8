package subscriptions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  plan_name TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  next_billing_date DATETIME NOT NULL,
  cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
  canceled_at DATETIME,
  restored_at DATETIME,
  provider_subscription_id TEXT,
  provider_customer_code TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	index := `
CREATE UNIQUE INDEX IF NOT EXISTS subscriptions_one_active_per_user_key
  ON subscriptions (user_id) WHERE status = 'active';`
	require.NoError(t, db.Exec(subscriptions).Error)
	require.NoError(t, db.Exec(index).Error)
	return db
}

type cancelRecorder struct {
	payments.Provider

	canceled []string
	fail     bool
}

func (c *cancelRecorder) CancelSubscription(_ context.Context, subscriptionCode string) error {
	if c.fail {
		return errors.New("provider unavailable")
	}
	c.canceled = append(c.canceled, subscriptionCode)
	return nil
}

type lifecycleFixture struct {
	svc      *Service
	repo     Repository
	provider *cancelRecorder
	clock    *time.Time
}

func newLifecycleFixture(t *testing.T, start time.Time) *lifecycleFixture {
	t.Helper()

	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)
	provider := &cancelRecorder{}
	clock := start

	svc, err := NewService(ServiceParams{
		Logger:      logger.New(logger.Options{Output: io.Discard}),
		Repo:        repo,
		Provider:    provider,
		Cycle:       30 * 24 * time.Hour,
		GraceWindow: 72 * time.Hour,
		Now:         func() time.Time { return clock },
	})
	require.NoError(t, err)
	return &lifecycleFixture{svc: svc, repo: repo, provider: provider, clock: &clock}
}

func TestApplyPayment_ActivatesFreshSubscription(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	userID := uuid.New()

	sub, err := f.svc.ApplyPayment(context.Background(), PaymentInput{
		UserID:      userID,
		PlanName:    "pro-monthly",
		AmountMinor: 500000,
		Currency:    "NGN",
		PaidAt:      start,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, start, sub.StartDate)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), sub.EndDate)
	assert.Equal(t, sub.EndDate, sub.NextBillingDate)
}

func TestApplyPayment_RenewalExtendsFromEndDate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	userID := uuid.New()
	ctx := context.Background()

	_, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro-monthly", AmountMinor: 500000, PaidAt: start,
	})
	require.NoError(t, err)

	// renewal lands five days early; the new period still anchors on the
	// old end date, not on the payment time
	*f.clock = time.Date(2024, 1, 26, 0, 0, 0, 0, time.UTC)
	renewed, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro-monthly", AmountMinor: 500000, PaidAt: *f.clock,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), renewed.EndDate)
	assert.Equal(t, start, renewed.StartDate)
	assert.Equal(t, renewed.EndDate, renewed.NextBillingDate)

	active, err := f.repo.FindActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, renewed.ID, active.ID)
}

func TestApplyPayment_RenewalClearsPendingCancel(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	userID := uuid.New()
	ctx := context.Background()

	_, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro-monthly", AmountMinor: 500000, PaidAt: start,
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, userID)
	require.NoError(t, err)

	renewed, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro-monthly", AmountMinor: 500000, PaidAt: start.AddDate(0, 0, 20),
	})
	require.NoError(t, err)
	assert.False(t, renewed.CancelAtPeriodEnd)
	assert.Nil(t, renewed.CanceledAt)
}

func TestCancel_KeepsAccessUntilPeriodEnd(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	userID := uuid.New()
	ctx := context.Background()

	created, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro-monthly", AmountMinor: 500000, PaidAt: start,
		ProviderSubscriptionID: "SUB_xyz",
	})
	require.NoError(t, err)

	*f.clock = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	canceled, err := f.svc.Cancel(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, enums.SubscriptionStatusActive, canceled.Status)
	assert.True(t, canceled.CancelAtPeriodEnd)
	require.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, created.EndDate, canceled.EndDate)
	assert.Equal(t, []string{"SUB_xyz"}, f.provider.canceled)

	// cancel is not repeatable while the flag is pending
	_, err = f.svc.Cancel(ctx, userID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCancel_ProviderFailureDoesNotBlock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	f.provider.fail = true
	userID := uuid.New()
	ctx := context.Background()

	_, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro-monthly", AmountMinor: 500000, PaidAt: start,
		ProviderSubscriptionID: "SUB_xyz",
	})
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, userID)
	require.NoError(t, err)
	assert.True(t, canceled.CancelAtPeriodEnd)
}

func TestExpireSweep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	ctx := context.Background()

	flaggedUser := uuid.New()
	graceUser := uuid.New()
	lapsedUser := uuid.New()
	freshUser := uuid.New()

	_, err := f.svc.ApplyPayment(ctx, PaymentInput{UserID: flaggedUser, PlanName: "pro", AmountMinor: 1000, PaidAt: start})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, flaggedUser)
	require.NoError(t, err)

	_, err = f.svc.ApplyPayment(ctx, PaymentInput{UserID: graceUser, PlanName: "pro", AmountMinor: 1000, PaidAt: start})
	require.NoError(t, err)

	// lapsed well past the grace window
	_, err = f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: lapsedUser, PlanName: "pro", AmountMinor: 1000,
		PaidAt: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// nowhere near due
	_, err = f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: freshUser, PlanName: "pro", AmountMinor: 1000,
		PaidAt: time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// period ended 2024-01-31; sweep on 02-01 is inside the 72h grace
	*f.clock = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	result, err := f.svc.ExpireSweep(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Canceled)
	assert.Equal(t, 1, result.Expired)

	flagged, err := f.repo.FindLatestByUser(ctx, flaggedUser)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCanceled, flagged.Status)

	inGrace, err := f.repo.FindActiveByUser(ctx, graceUser)
	require.NoError(t, err)
	require.NotNil(t, inGrace)

	lapsed, err := f.repo.FindLatestByUser(ctx, lapsedUser)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusExpired, lapsed.Status)

	// second pass finds nothing new
	result, err = f.svc.ExpireSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Canceled)
	assert.Equal(t, 0, result.Expired)

	// past the grace window the unflagged row expires too
	*f.clock = time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)
	result, err = f.svc.ExpireSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
}

func TestRestore(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	userID := uuid.New()
	ctx := context.Background()

	sub, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro", AmountMinor: 1000, PaidAt: start,
	})
	require.NoError(t, err)

	// active rows cannot be restored
	_, err = f.svc.Restore(ctx, sub.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Cancel(ctx, userID)
	require.NoError(t, err)
	*f.clock = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.ExpireSweep(ctx, 0)
	require.NoError(t, err)

	// restored within the paid period keeps the original dates
	*f.clock = time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	restored, err := f.svc.Restore(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, restored.Status)
	assert.Equal(t, sub.StartDate, restored.StartDate)
	assert.Equal(t, sub.EndDate, restored.EndDate)
	assert.False(t, restored.CancelAtPeriodEnd)
	require.NotNil(t, restored.RestoredAt)
}

func TestRestore_AfterPeriodStartsFreshCycle(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	userID := uuid.New()
	ctx := context.Background()

	sub, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro", AmountMinor: 1000, PaidAt: start,
	})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, userID)
	require.NoError(t, err)
	*f.clock = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.ExpireSweep(ctx, 0)
	require.NoError(t, err)

	restoreAt := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	*f.clock = restoreAt
	restored, err := f.svc.Restore(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, restoreAt, restored.StartDate)
	assert.Equal(t, restoreAt.Add(30*24*time.Hour), restored.EndDate)
}

func TestGetForUser(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newLifecycleFixture(t, start)
	ctx := context.Background()

	_, err := f.svc.GetForUser(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	userID := uuid.New()
	created, err := f.svc.ApplyPayment(ctx, PaymentInput{
		UserID: userID, PlanName: "pro", AmountMinor: 1000, PaidAt: start,
	})
	require.NoError(t, err)

	got, err := f.svc.GetForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}
