package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/pkg/enums"
)

// InitializeParams carries everything the provider needs to open a checkout.
// Metadata is echoed back verbatim on verification, which is how product
// identity survives the round trip through the provider.
type InitializeParams struct {
	Email       string
	AmountMinor int64
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

// Checkout is the provider's redirect target for a freshly opened checkout.
type Checkout struct {
	CheckoutURL string
	AccessCode  string
	Reference   string
}

// Customer identifies the paying party on the provider side.
type Customer struct {
	Email string
	Code  string
}

// VerifiedTransaction is the provider-authoritative view of one transaction.
type VerifiedTransaction struct {
	Reference             string
	ProviderTransactionID string
	Status                enums.PaymentStatus
	AmountMinor           int64
	Currency              string
	Customer              Customer
	PaidAt                *time.Time
	Metadata              map[string]string
}

// ProviderSubscription is the provider's record of a recurring billing
// agreement.
type ProviderSubscription struct {
	SubscriptionCode string
	Status           string
	NextPaymentDate  *time.Time
}

// Provider is the abstract payment-provider capability. One implementation
// exists per provider; the core never talks to a provider API directly.
type Provider interface {
	Initialize(ctx context.Context, params InitializeParams) (*Checkout, error)
	Verify(ctx context.Context, reference, transactionID string) (*VerifiedTransaction, error)
	CreateSubscription(ctx context.Context, email, customerCode, planCode string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionCode string) error
}

// Metadata keys attached at initialization and read back at reconciliation.
const (
	MetaProductID   = "product_id"
	MetaProductType = "product_type"
	MetaPlanName    = "plan_name"
	MetaBuyerID     = "buyer_id"
)

// ProductMetadata builds the metadata map sent with checkout initialization.
func ProductMetadata(productID uuid.UUID, productType enums.ProductType, planName string, buyerID *uuid.UUID) map[string]string {
	meta := map[string]string{
		MetaProductID:   productID.String(),
		MetaProductType: productType.String(),
	}
	if planName != "" {
		meta[MetaPlanName] = planName
	}
	if buyerID != nil {
		meta[MetaBuyerID] = buyerID.String()
	}
	return meta
}
