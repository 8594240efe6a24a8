package paystackwebhook

import (
	"context"
	"fmt"

	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/internal/reconcile"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

// SignatureVerifier validates the provider's HMAC header against a body.
type SignatureVerifier interface {
	SignatureValid(body []byte, signature string) bool
}

type transactionVerifier interface {
	Verify(ctx context.Context, reference, transactionID string) (*payments.VerifiedTransaction, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, tx *payments.VerifiedTransaction) (*reconcile.Result, error)
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Logger     *logger.Logger
	Signatures SignatureVerifier
	Verifier   transactionVerifier
	Reconciler reconciler
	Guard      *IdempotencyGuard
}

// Service turns provider notifications into reconciled state. A webhook is
// a hint, never a fact: every payment notification is re-verified against
// the provider API before anything is written.
type Service struct {
	logg       *logger.Logger
	signatures SignatureVerifier
	verifier   transactionVerifier
	reconciler reconciler
	guard      *IdempotencyGuard
}

// NewService builds a webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Signatures == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("transaction verifier required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	return &Service{
		logg:       params.Logger,
		signatures: params.Signatures,
		verifier:   params.Verifier,
		reconciler: params.Reconciler,
		guard:      params.Guard,
	}, nil
}

// HandleWebhook authenticates, parses, and processes one raw delivery.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.signatures.SignatureValid(body, signature) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature is invalid")
	}
	event, err := ParseEvent(body)
	if err != nil {
		return err
	}
	return s.HandleEvent(ctx, event)
}

// HandleEvent processes a parsed event. Unknown kinds are acknowledged so
// the provider stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}
	logCtx := s.logg.WithField(ctx, "event_type", event.RawType)

	switch event.Kind {
	case EventPaymentSucceeded, EventPaymentFailed:
		return s.handlePayment(logCtx, event)
	case EventSubscriptionCreated:
		// the billing agreement record arrives with the payment metadata;
		// the standalone event is informational
		s.logg.Info(s.logg.WithField(logCtx, "subscription_code", event.Subscription.SubscriptionCode),
			"webhook.subscription_created")
		return nil
	default:
		s.logg.Warn(logCtx, "webhook.unknown_event")
		return nil
	}
}

func (s *Service) handlePayment(ctx context.Context, event *Event) error {
	logCtx := s.logg.WithReference(ctx, event.Reference)

	eventID := event.RawType + ":" + event.Reference
	seen, err := s.guard.CheckAndMark(ctx, eventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if seen {
		s.logg.Info(logCtx, "webhook.duplicate_delivery")
		return nil
	}

	verified, err := s.verifier.Verify(ctx, event.Reference, event.TransactionID)
	if err != nil {
		s.releaseGuard(logCtx, eventID)
		return err
	}

	if _, err := s.reconciler.Reconcile(ctx, verified); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			// still pending on the provider side; let their retry try again
			s.releaseGuard(logCtx, eventID)
			s.logg.Info(logCtx, "webhook.not_yet_definitive")
			return nil
		}
		s.releaseGuard(logCtx, eventID)
		return err
	}

	s.logg.Info(logCtx, "webhook.reconciled")
	return nil
}

func (s *Service) releaseGuard(ctx context.Context, eventID string) {
	if err := s.guard.Delete(ctx, eventID); err != nil {
		s.logg.Warn(ctx, "webhook.idempotency_release_failed")
	}
}
