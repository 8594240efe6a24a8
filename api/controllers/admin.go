package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/api/responses"
	"github.com/emekadefirst/learnhub-backend/api/validators"
	"github.com/emekadefirst/learnhub-backend/internal/purchases"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type accessAdmin interface {
	GrantManualAccess(ctx context.Context, input purchases.ManualGrantInput) (*models.Purchase, string, error)
	RevokeAccess(ctx context.Context, purchaseID uuid.UUID) error
}

type mismatchAdmin interface {
	ListUnresolved(ctx context.Context, limit int) ([]models.ReconciliationMismatch, error)
	Resolve(ctx context.Context, id uuid.UUID, now time.Time) error
}

type manualGrantRequest struct {
	Email       string `json:"email" validate:"required,email"`
	ProductID   string `json:"product_id" validate:"required,uuid"`
	ProductType string `json:"product_type" validate:"required"`
	BuyerID     string `json:"buyer_id,omitempty" validate:"omitempty,uuid"`
}

type manualGrantResponse struct {
	PurchaseID string `json:"purchase_id"`
	AccessLink string `json:"access_link"`
}

// AdminGrantAccess hands out access without a payment, for support cases
// and promotional grants.
func AdminGrantAccess(svc accessAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req manualGrantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
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

		input := purchases.ManualGrantInput{
			Email:       req.Email,
			ProductID:   productID,
			ProductType: productType,
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

		purchase, link, err := svc.GrantManualAccess(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, manualGrantResponse{
			PurchaseID: purchase.ID.String(),
			AccessLink: link,
		})
	}
}

// AdminRevokeAccess withdraws a previously granted purchase.
func AdminRevokeAccess(svc accessAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		purchaseID, err := uuid.Parse(chi.URLParam(r, "purchaseId"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "purchase id must be a uuid"))
			return
		}
		if err := svc.RevokeAccess(ctx, purchaseID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "revoked"})
	}
}

type mismatchResponse struct {
	ID         string    `json:"id"`
	PurchaseID string    `json:"purchase_id"`
	Stage      string    `json:"stage"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// AdminListMismatches returns unresolved reconciliation mismatches, oldest
// first.
func AdminListMismatches(repo mismatchAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := repo.ListUnresolved(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list mismatches"))
			return
		}

		out := make([]mismatchResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, mismatchResponse{
				ID:         row.ID.String(),
				PurchaseID: row.PurchaseID.String(),
				Stage:      row.Stage.String(),
				Detail:     row.Detail,
				CreatedAt:  row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminResolveMismatch marks a mismatch as handled.
func AdminResolveMismatch(repo mismatchAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := uuid.Parse(chi.URLParam(r, "mismatchId"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "mismatch id must be a uuid"))
			return
		}
		if err := repo.Resolve(ctx, id, time.Now().UTC()); err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "mismatch not found or already resolved"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "resolved"})
	}
}
