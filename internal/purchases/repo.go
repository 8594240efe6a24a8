package purchases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekadefirst/learnhub-backend/pkg/db"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
)

// Repository handles purchase persistence. The dedup_key uniqueness
// constraint in the store, not application-level checks, arbitrates
// concurrent inserts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertOrGet(ctx context.Context, purchase *models.Purchase) (*models.Purchase, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindByDedupKey(ctx context.Context, dedupKey string) (*models.Purchase, error)
	FindByReference(ctx context.Context, reference string) (*models.Purchase, error)
	RevokeAccess(ctx context.Context, id uuid.UUID, now time.Time) error
	LinkGuestPurchases(ctx context.Context, userID uuid.UUID, email string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertOrGet creates the purchase, or, when a concurrent writer already won
// the dedup_key constraint, re-reads and returns the existing row. Losing
// the race is not a failure; it is a duplicate notification.
func (r *repository) InsertOrGet(ctx context.Context, purchase *models.Purchase) (*models.Purchase, bool, error) {
	err := r.db.WithContext(ctx).Create(purchase).Error
	if err == nil {
		return purchase, true, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, false, err
	}
	existing, findErr := r.FindByDedupKey(ctx, purchase.DedupKey)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		// constraint fired but the winner is not visible yet; surface the
		// original violation so the caller can replay
		return nil, false, err
	}
	return existing, false, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByDedupKey(ctx context.Context, dedupKey string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", dedupKey).First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&purchase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// RevokeAccess clears the grant flag but keeps the row and its token.
func (r *repository) RevokeAccess(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"access_granted":    false,
			"access_revoked_at": now,
		}).Error
}

// LinkGuestPurchases attaches all unowned purchases for the email to the
// user. Rows already owned by any user are untouched, so repeated calls
// converge on zero.
func (r *repository) LinkGuestPurchases(ctx context.Context, userID uuid.UUID, email string) (int64, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("buyer_id IS NULL AND LOWER(buyer_email) = ?", normalized).
		Update("buyer_id", userID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
