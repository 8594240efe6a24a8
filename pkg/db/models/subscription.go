package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/pkg/enums"
)

// Subscription persists recurring-access state per user. EndDate is always
// start_date + cycle, recomputed only on renewal; NextBillingDate mirrors
// EndDate. A partial unique index on (user_id) where status='active'
// enforces at most one active row per user.
type Subscription struct {
	ID                     uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                 uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Status                 enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	PlanName               string                   `gorm:"column:plan_name;not null"`
	AmountMinor            int64                    `gorm:"column:amount_minor;not null"`
	Currency               string                   `gorm:"column:currency;not null;default:'NGN'"`
	StartDate              time.Time                `gorm:"column:start_date;not null"`
	EndDate                time.Time                `gorm:"column:end_date;not null"`
	NextBillingDate        time.Time                `gorm:"column:next_billing_date;not null"`
	CancelAtPeriodEnd      bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt             *time.Time               `gorm:"column:canceled_at"`
	RestoredAt             *time.Time               `gorm:"column:restored_at"`
	ProviderSubscriptionID string                   `gorm:"column:provider_subscription_id"`
	ProviderCustomerCode   string                   `gorm:"column:provider_customer_code"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
