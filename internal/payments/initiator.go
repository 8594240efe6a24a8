package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
	"github.com/emekadefirst/learnhub-backend/pkg/money"
	"github.com/emekadefirst/learnhub-backend/pkg/security"
)

const referencePrefix = "LH"

// InitiateInput captures a client-triggered checkout request. Amount is in
// major currency units.
type InitiateInput struct {
	Email       string
	AmountMajor decimal.Decimal
	ProductID   uuid.UUID
	ProductType enums.ProductType
	PlanName    string
	BuyerID     *uuid.UUID
}

// InitiateResult is the redirect target plus the locally-minted reference.
type InitiateResult struct {
	CheckoutURL string
	Reference   string
}

// InitiatorParams groups dependencies for the payment initiator.
type InitiatorParams struct {
	Logger      *logger.Logger
	Provider    Provider
	CallbackURL string
}

// Initiator starts checkouts with the provider. Initiation is user-triggered
// and therefore never retried internally; a provider outage surfaces to the
// caller, who can simply try again.
type Initiator struct {
	logg        *logger.Logger
	provider    Provider
	callbackURL string
}

// NewInitiator builds a payment initiator.
func NewInitiator(params InitiatorParams) (*Initiator, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	return &Initiator{
		logg:        params.Logger,
		provider:    params.Provider,
		callbackURL: strings.TrimSpace(params.CallbackURL),
	}, nil
}

// Initiate validates the request, mints a reference, and opens a provider
// checkout.
func (i *Initiator) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !input.ProductType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product type")
	}
	if !input.AmountMajor.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}

	amountMinor, err := money.ToMinor(input.AmountMajor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "normalize amount")
	}

	reference, err := security.NewPaymentReference(referencePrefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint payment reference")
	}

	logCtx := i.logg.WithReference(ctx, reference)
	i.logg.Info(logCtx, "checkout.initiate")

	checkout, err := i.provider.Initialize(ctx, InitializeParams{
		Email:       email,
		AmountMinor: amountMinor,
		Reference:   reference,
		CallbackURL: i.callbackURL,
		Metadata:    ProductMetadata(input.ProductID, input.ProductType, input.PlanName, input.BuyerID),
	})
	if err != nil {
		i.logg.Error(logCtx, "checkout.initiate failed", err)
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize checkout")
	}

	return &InitiateResult{
		CheckoutURL: checkout.CheckoutURL,
		Reference:   checkout.Reference,
	}, nil
}
