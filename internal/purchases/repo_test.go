package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
)

func setupPurchasesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	purchases := `
CREATE TABLE IF NOT EXISTS purchases (
  id TEXT PRIMARY KEY,
  buyer_id TEXT,
  buyer_email TEXT NOT NULL,
  identity_key TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_type TEXT NOT NULL,
  plan_name TEXT,
  amount_paid_minor INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  payment_reference TEXT NOT NULL UNIQUE,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  dedup_key TEXT NOT NULL UNIQUE,
  access_granted INTEGER NOT NULL DEFAULT 0,
  access_token TEXT NOT NULL,
  access_granted_at DATETIME,
  access_revoked_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(purchases).Error)
	return db
}

func newGuestPurchase(t *testing.T, email string) *models.Purchase {
	t.Helper()

	productID := uuid.New()
	reference := "LH_" + uuid.NewString()
	identityKey := IdentityKey(nil, email)
	now := time.Now().UTC()
	return &models.Purchase{
		ID:               uuid.New(),
		BuyerEmail:       email,
		IdentityKey:      identityKey,
		ProductID:        productID,
		ProductType:      enums.ProductTypeCourse,
		AmountPaidMinor:  250000,
		Currency:         "NGN",
		PaymentReference: reference,
		PaymentStatus:    enums.PaymentStatusSuccess,
		DedupKey:         DedupKey(identityKey, productID, enums.ProductTypeCourse, reference),
		AccessGranted:    true,
		AccessToken:      uuid.NewString(),
		AccessGrantedAt:  &now,
	}
}

func TestInsertOrGet_CreatesThenReturnsExisting(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := newGuestPurchase(t, "guest-insert@example.com")
	stored, created, err := repo.InsertOrGet(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, stored.ID)

	// same dedup key, different candidate row: the winner is returned
	duplicate := *first
	duplicate.ID = uuid.New()
	stored, created, err = repo.InsertOrGet(ctx, &duplicate)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, first.AccessToken, stored.AccessToken)

	var count int64
	require.NoError(t, db.Model(&models.Purchase{}).Where("dedup_key = ?", first.DedupKey).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLinkGuestPurchases_AttachesOnlyMatchingRows(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	email := "linker-" + uuid.NewString() + "@example.com"
	for i := 0; i < 3; i++ {
		_, _, err := repo.InsertOrGet(ctx, newGuestPurchase(t, email))
		require.NoError(t, err)
	}

	// a row already owned by someone else must not move
	ownerID := uuid.New()
	owned := newGuestPurchase(t, email)
	owned.BuyerID = &ownerID
	owned.IdentityKey = IdentityKey(&ownerID, email)
	owned.DedupKey = DedupKey(owned.IdentityKey, owned.ProductID, owned.ProductType, owned.PaymentReference)
	_, _, err := repo.InsertOrGet(ctx, owned)
	require.NoError(t, err)

	// a guest row for a different email must not move either
	other := newGuestPurchase(t, "other-"+uuid.NewString()+"@example.com")
	_, _, err = repo.InsertOrGet(ctx, other)
	require.NoError(t, err)

	userID := uuid.New()
	linked, err := repo.LinkGuestPurchases(ctx, userID, email)
	require.NoError(t, err)
	assert.Equal(t, int64(3), linked)

	// second pass converges to zero
	linked, err = repo.LinkGuestPurchases(ctx, userID, email)
	require.NoError(t, err)
	assert.Equal(t, int64(0), linked)

	stillOwned, err := repo.FindByID(ctx, owned.ID)
	require.NoError(t, err)
	require.NotNil(t, stillOwned.BuyerID)
	assert.Equal(t, ownerID, *stillOwned.BuyerID)

	stillGuest, err := repo.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, stillGuest.BuyerID)
}

func TestLinkGuestPurchases_MatchesEmailCaseInsensitively(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	email := "mixedcase-" + uuid.NewString() + "@example.com"
	_, _, err := repo.InsertOrGet(ctx, newGuestPurchase(t, email))
	require.NoError(t, err)

	linked, err := repo.LinkGuestPurchases(ctx, uuid.New(), "  "+email+"  ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), linked)
}

func TestRevokeAccess_ClearsGrantKeepsToken(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purchase := newGuestPurchase(t, "revoke-"+uuid.NewString()+"@example.com")
	_, _, err := repo.InsertOrGet(ctx, purchase)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, repo.RevokeAccess(ctx, purchase.ID, now))

	revoked, err := repo.FindByID(ctx, purchase.ID)
	require.NoError(t, err)
	assert.False(t, revoked.AccessGranted)
	assert.NotNil(t, revoked.AccessRevokedAt)
	assert.Equal(t, purchase.AccessToken, revoked.AccessToken)
}

func TestFindByReference(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purchase := newGuestPurchase(t, "byref-"+uuid.NewString()+"@example.com")
	_, _, err := repo.InsertOrGet(ctx, purchase)
	require.NoError(t, err)

	found, err := repo.FindByReference(ctx, purchase.PaymentReference)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, purchase.ID, found.ID)

	missing, err := repo.FindByReference(ctx, "LH_does_not_exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
