package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/pkg/enums"
)

// ReconciliationMismatch records a secondary step that failed after the
// primary access grant succeeded. Rows are created by the reconciliation
// engine and resolved by operators, never auto-resolved.
type ReconciliationMismatch struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID uuid.UUID           `gorm:"column:purchase_id;type:uuid;not null;index"`
	Stage      enums.MismatchStage `gorm:"column:stage;type:mismatch_stage;not null"`
	Detail     string              `gorm:"column:detail;not null"`
	Resolved   bool                `gorm:"column:resolved;not null;default:false"`
	ResolvedAt *time.Time          `gorm:"column:resolved_at"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
