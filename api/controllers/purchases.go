package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/api/responses"
	"github.com/emekadefirst/learnhub-backend/api/validators"
	"github.com/emekadefirst/learnhub-backend/internal/purchases"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type guestLinker interface {
	Link(ctx context.Context, userID uuid.UUID, email string) (*purchases.LinkResult, error)
}

type accessChecker interface {
	CheckAccess(ctx context.Context, purchaseID uuid.UUID, token string) (*models.Purchase, error)
}

type linkRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Email  string `json:"email" validate:"required,email"`
}

// LinkGuestPurchases attaches a signed-up user's guest purchases to their
// account. Calling it again is harmless; already-linked rows stay put.
func LinkGuestPurchases(svc guestLinker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req linkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "user id must be a uuid"))
			return
		}

		result, err := svc.Link(ctx, userID, req.Email)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type accessResponse struct {
	PurchaseID  string `json:"purchase_id"`
	ProductID   string `json:"product_id"`
	ProductType string `json:"product_type"`
	PlanName    string `json:"plan_name,omitempty"`
}

// CheckAccess resolves an access link to the product it unlocks.
func CheckAccess(svc accessChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		purchaseID, err := uuid.Parse(chi.URLParam(r, "purchaseId"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "purchase id must be a uuid"))
			return
		}
		token := strings.TrimSpace(r.URL.Query().Get("token"))

		purchase, err := svc.CheckAccess(ctx, purchaseID, token)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := accessResponse{
			PurchaseID:  purchase.ID.String(),
			ProductID:   purchase.ProductID.String(),
			ProductType: purchase.ProductType.String(),
		}
		if purchase.PlanName != nil {
			resp.PlanName = *purchase.PlanName
		}
		responses.WriteSuccess(w, resp)
	}
}
