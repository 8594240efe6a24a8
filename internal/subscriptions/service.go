package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

// ServiceParams groups dependencies for the lifecycle service.
type ServiceParams struct {
	Logger      *logger.Logger
	Repo        Repository
	Provider    payments.Provider
	Cycle       time.Duration
	GraceWindow time.Duration
	Now         func() time.Time
}

// Service manages the subscription state machine: activation and renewal
// from verified payments, cancel-at-period-end, the expiry sweep, and
// operator restores.
type Service struct {
	logg     *logger.Logger
	repo     Repository
	provider payments.Provider
	cycle    time.Duration
	grace    time.Duration
	now      func() time.Time
}

// NewService builds a lifecycle service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Cycle <= 0 {
		return nil, fmt.Errorf("billing cycle must be positive")
	}
	if params.GraceWindow < 0 {
		return nil, fmt.Errorf("grace window cannot be negative")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		repo:     params.Repo,
		provider: params.Provider,
		cycle:    params.Cycle,
		grace:    params.GraceWindow,
		now:      now,
	}, nil
}

// PaymentInput carries the subscription-relevant facts of a verified payment.
type PaymentInput struct {
	UserID                 uuid.UUID
	PlanName               string
	AmountMinor            int64
	Currency               string
	PaidAt                 time.Time
	ProviderSubscriptionID string
	ProviderCustomerCode   string
}

// ApplyPayment activates or renews the user's subscription from a verified
// payment. A renewal extends end_date by exactly one cycle from the current
// end_date; next_billing_date always mirrors end_date. When no active row
// exists a fresh one starts at the payment time.
func (s *Service) ApplyPayment(ctx context.Context, input PaymentInput) (*models.Subscription, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.PlanName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name is required")
	}
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	paidAt = paidAt.UTC()

	active, err := s.repo.FindActiveByUser(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}

	if active != nil {
		active.EndDate = active.EndDate.Add(s.cycle)
		active.NextBillingDate = active.EndDate
		active.PlanName = input.PlanName
		active.AmountMinor = input.AmountMinor
		if input.Currency != "" {
			active.Currency = input.Currency
		}
		if input.ProviderSubscriptionID != "" {
			active.ProviderSubscriptionID = input.ProviderSubscriptionID
		}
		if input.ProviderCustomerCode != "" {
			active.ProviderCustomerCode = input.ProviderCustomerCode
		}
		// a renewal payment supersedes a pending cancellation
		active.CancelAtPeriodEnd = false
		active.CanceledAt = nil
		if err := s.repo.Update(ctx, active); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "renew subscription")
		}
		s.logg.Info(s.logSub(ctx, active), "subscription.renewed")
		return active, nil
	}

	sub := &models.Subscription{
		ID:                     uuid.New(),
		UserID:                 input.UserID,
		Status:                 enums.SubscriptionStatusActive,
		PlanName:               input.PlanName,
		AmountMinor:            input.AmountMinor,
		Currency:               input.Currency,
		StartDate:              paidAt,
		EndDate:                paidAt.Add(s.cycle),
		NextBillingDate:        paidAt.Add(s.cycle),
		ProviderSubscriptionID: input.ProviderSubscriptionID,
		ProviderCustomerCode:   input.ProviderCustomerCode,
	}
	if sub.Currency == "" {
		sub.Currency = "NGN"
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		if !IsDuplicateActive(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		// a concurrent payment activated first; treat ours as the renewal
		winner, findErr := s.repo.FindActiveByUser(ctx, input.UserID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load concurrent activation")
		}
		if winner == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		winner.EndDate = winner.EndDate.Add(s.cycle)
		winner.NextBillingDate = winner.EndDate
		if err := s.repo.Update(ctx, winner); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extend concurrent activation")
		}
		s.logg.Info(s.logSub(ctx, winner), "subscription.renewed")
		return winner, nil
	}

	s.logg.Info(s.logSub(ctx, sub), "subscription.activated")
	return sub, nil
}

// Cancel flags the active subscription to lapse at period end. Access stays
// until end_date; the sweep performs the terminal transition.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	active, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if active == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	if active.CancelAtPeriodEnd {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already scheduled to cancel")
	}

	now := s.now().UTC()
	active.CancelAtPeriodEnd = true
	active.CanceledAt = &now
	if err := s.repo.Update(ctx, active); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag cancellation")
	}

	// stopping future charges at the provider is advisory; local state is
	// authoritative and the sweep closes the period either way
	if s.provider != nil && active.ProviderSubscriptionID != "" {
		if err := s.provider.CancelSubscription(ctx, active.ProviderSubscriptionID); err != nil {
			s.logg.Warn(s.logSub(ctx, active), "subscription.provider_cancel_failed")
		}
	}

	s.logg.Info(s.logSub(ctx, active), "subscription.cancel_scheduled")
	return active, nil
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	Scanned  int
	Canceled int
	Expired  int
}

// ExpireSweep closes out lapsed subscriptions. Rows flagged
// cancel_at_period_end become canceled once the period ends; unflagged rows
// become expired only after the grace window passes. Rows still inside the
// grace window are left alone, so repeated sweeps are harmless.
func (s *Service) ExpireSweep(ctx context.Context, limit int) (*SweepResult, error) {
	now := s.now().UTC()
	due, err := s.repo.ListDueForSweep(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due subscriptions")
	}

	result := &SweepResult{Scanned: len(due)}
	var errs error
	for i := range due {
		sub := &due[i]
		switch {
		case sub.CancelAtPeriodEnd:
			sub.Status = enums.SubscriptionStatusCanceled
			if sub.CanceledAt == nil {
				sub.CanceledAt = &now
			}
			if err := s.repo.Update(ctx, sub); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark %s canceled: %w", sub.ID, err))
				continue
			}
			result.Canceled++
			s.logg.Info(s.logSub(ctx, sub), "subscription.canceled")
		case !now.Before(sub.EndDate.Add(s.grace)):
			sub.Status = enums.SubscriptionStatusExpired
			if err := s.repo.Update(ctx, sub); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark %s expired: %w", sub.ID, err))
				continue
			}
			result.Expired++
			s.logg.Info(s.logSub(ctx, sub), "subscription.expired")
		}
	}
	if errs != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "sweep updates")
	}
	return result, nil
}

// Restore reactivates a canceled or expired subscription by operator action.
// When the paid period has time left the original dates stand; otherwise a
// fresh cycle starts now.
func (s *Service) Restore(ctx context.Context, subscriptionID uuid.UUID) (*models.Subscription, error) {
	if subscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if !sub.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only canceled or expired subscriptions can be restored")
	}

	if existing, err := s.repo.FindActiveByUser(ctx, sub.UserID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active subscription")
	} else if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "user already has an active subscription")
	}

	now := s.now().UTC()
	if !sub.EndDate.After(now) {
		sub.StartDate = now
		sub.EndDate = now.Add(s.cycle)
	}
	sub.Status = enums.SubscriptionStatusActive
	sub.NextBillingDate = sub.EndDate
	sub.CancelAtPeriodEnd = false
	sub.CanceledAt = nil
	sub.RestoredAt = &now

	if err := s.repo.Update(ctx, sub); err != nil {
		if IsDuplicateActive(err) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "user already has an active subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore subscription")
	}

	s.logg.Info(s.logSub(ctx, sub), "subscription.restored")
	return sub, nil
}

// GetForUser returns the user's current subscription, preferring an active
// row over the most recent terminal one.
func (s *Service) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	active, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if active != nil {
		return active, nil
	}
	latest, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest subscription")
	}
	if latest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription found")
	}
	return latest, nil
}

func (s *Service) logSub(ctx context.Context, sub *models.Subscription) context.Context {
	logCtx := s.logg.WithUserID(ctx, sub.UserID.String())
	return s.logg.WithField(logCtx, "subscription_id", sub.ID.String())
}
