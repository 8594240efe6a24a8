package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emekadefirst/learnhub-backend/api/responses"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type subscriptionService interface {
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Restore(ctx context.Context, subscriptionID uuid.UUID) (*models.Subscription, error)
}

type subscriptionResponse struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	PlanName          string     `json:"plan_name"`
	AmountMinor       int64      `json:"amount_minor"`
	Currency          string     `json:"currency"`
	StartDate         time.Time  `json:"start_date"`
	EndDate           time.Time  `json:"end_date"`
	NextBillingDate   time.Time  `json:"next_billing_date"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
}

func toSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                sub.ID.String(),
		Status:            sub.Status.String(),
		PlanName:          sub.PlanName,
		AmountMinor:       sub.AmountMinor,
		Currency:          sub.Currency,
		StartDate:         sub.StartDate,
		EndDate:           sub.EndDate,
		NextBillingDate:   sub.NextBillingDate,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CanceledAt:        sub.CanceledAt,
	}
}

// SubscriptionGet returns the user's current subscription.
func SubscriptionGet(svc subscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := uuid.Parse(chi.URLParam(r, "userId"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "user id must be a uuid"))
			return
		}
		sub, err := svc.GetForUser(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(sub))
	}
}

// SubscriptionCancel schedules the active subscription to lapse at period
// end. Access continues until the paid period runs out.
func SubscriptionCancel(svc subscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := uuid.Parse(chi.URLParam(r, "userId"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "user id must be a uuid"))
			return
		}
		sub, err := svc.Cancel(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(sub))
	}
}

// SubscriptionRestore reactivates a terminal subscription by operator action.
func SubscriptionRestore(svc subscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		subID, err := uuid.Parse(chi.URLParam(r, "subscriptionId"))
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "subscription id must be a uuid"))
			return
		}
		sub, err := svc.Restore(ctx, subID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionResponse(sub))
	}
}
