package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emekadefirst/learnhub-backend/api/responses"
	"github.com/emekadefirst/learnhub-backend/api/validators"
	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/internal/reconcile"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type checkoutInitiator interface {
	Initiate(ctx context.Context, input payments.InitiateInput) (*payments.InitiateResult, error)
}

type paymentVerifier interface {
	Verify(ctx context.Context, reference, transactionID string) (*payments.VerifiedTransaction, error)
}

type paymentReconciler interface {
	Reconcile(ctx context.Context, tx *payments.VerifiedTransaction) (*reconcile.Result, error)
}

type checkoutRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Amount      string `json:"amount" validate:"required"`
	ProductID   string `json:"product_id" validate:"required,uuid"`
	ProductType string `json:"product_type" validate:"required"`
	PlanName    string `json:"plan_name,omitempty"`
	BuyerID     string `json:"buyer_id,omitempty" validate:"omitempty,uuid"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	Reference   string `json:"reference"`
}

// CheckoutInitiate opens a provider checkout for a product. Guests pass only
// an email; authenticated clients include their buyer id so the purchase
// lands on their account directly.
func CheckoutInitiate(svc checkoutInitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal number"))
			return
		}
		productType, err := enums.ParseProductType(req.ProductType)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown product type"))
			return
		}
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "product id must be a uuid"))
			return
		}

		input := payments.InitiateInput{
			Email:       req.Email,
			AmountMajor: amount,
			ProductID:   productID,
			ProductType: productType,
			PlanName:    strings.TrimSpace(req.PlanName),
		}
		if req.BuyerID != "" {
			buyerID, err := uuid.Parse(req.BuyerID)
			if err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "buyer id must be a uuid"))
				return
			}
			input.BuyerID = &buyerID
		}

		result, err := svc.Initiate(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			CheckoutURL: result.CheckoutURL,
			Reference:   result.Reference,
		})
	}
}

type verifyResponse struct {
	Reference     string `json:"reference"`
	PaymentStatus string `json:"payment_status"`
	PurchaseID    string `json:"purchase_id,omitempty"`
	AccessGranted bool   `json:"access_granted"`
	AccessLink    string `json:"access_link,omitempty"`
}

// PaymentVerify is the checkout callback target. It asks the provider for
// the authoritative transaction state and reconciles it; landing here before
// or after the webhook makes no difference to the stored outcome.
func PaymentVerify(verifier paymentVerifier, reconciler paymentReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required"))
			return
		}

		verified, err := verifier.Verify(ctx, reference, "")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !verified.Status.IsDefinitive() {
			responses.WriteSuccess(w, verifyResponse{
				Reference:     verified.Reference,
				PaymentStatus: verified.Status.String(),
			})
			return
		}

		result, err := reconciler.Reconcile(ctx, verified)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, verifyResponse{
			Reference:     verified.Reference,
			PaymentStatus: result.Purchase.PaymentStatus.String(),
			PurchaseID:    result.Purchase.ID.String(),
			AccessGranted: result.Purchase.AccessGranted,
			AccessLink:    result.AccessLink,
		})
	}
}
