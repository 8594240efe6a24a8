package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
)

// MismatchRepository persists reconciliation mismatches for operator review.
type MismatchRepository interface {
	WithTx(tx *gorm.DB) MismatchRepository
	Create(ctx context.Context, mismatch *models.ReconciliationMismatch) error
	ListUnresolved(ctx context.Context, limit int) ([]models.ReconciliationMismatch, error)
	Resolve(ctx context.Context, id uuid.UUID, now time.Time) error
}

type mismatchRepository struct {
	db *gorm.DB
}

// NewMismatchRepository returns a mismatch repository bound to the database.
func NewMismatchRepository(conn *gorm.DB) MismatchRepository {
	return &mismatchRepository{db: conn}
}

func (r *mismatchRepository) WithTx(tx *gorm.DB) MismatchRepository {
	if tx == nil {
		return r
	}
	return &mismatchRepository{db: tx}
}

func (r *mismatchRepository) Create(ctx context.Context, mismatch *models.ReconciliationMismatch) error {
	return r.db.WithContext(ctx).Create(mismatch).Error
}

func (r *mismatchRepository) ListUnresolved(ctx context.Context, limit int) ([]models.ReconciliationMismatch, error) {
	var rows []models.ReconciliationMismatch
	q := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *mismatchRepository) Resolve(ctx context.Context, id uuid.UUID, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReconciliationMismatch{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]any{
			"resolved":    true,
			"resolved_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
