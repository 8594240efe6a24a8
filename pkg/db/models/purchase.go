package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/pkg/enums"
)

// Purchase records one granted access right to a product, tied to a payment
// reference. BuyerID is nil for guest checkouts until GuestLinker attaches
// the row to an authenticated user. IdentityKey and DedupKey are frozen at
// reconciliation time; the dedup_key uniqueness constraint is what arbitrates
// concurrent webhook deliveries.
type Purchase struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID          *uuid.UUID          `gorm:"column:buyer_id;type:uuid;index"`
	BuyerEmail       string              `gorm:"column:buyer_email;not null;index"`
	IdentityKey      string              `gorm:"column:identity_key;not null"`
	ProductID        uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	ProductType      enums.ProductType   `gorm:"column:product_type;type:product_type;not null"`
	PlanName         *string             `gorm:"column:plan_name"`
	AmountPaidMinor  int64               `gorm:"column:amount_paid_minor;not null"`
	Currency         string              `gorm:"column:currency;not null;default:'NGN'"`
	PaymentReference string              `gorm:"column:payment_reference;not null;unique"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	DedupKey         string              `gorm:"column:dedup_key;not null;unique"`
	AccessGranted    bool                `gorm:"column:access_granted;not null;default:false"`
	AccessToken      string              `gorm:"column:access_token;not null"`
	AccessGrantedAt  *time.Time          `gorm:"column:access_granted_at"`
	AccessRevokedAt  *time.Time          `gorm:"column:access_revoked_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
