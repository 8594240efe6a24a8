package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

// VerifierParams groups dependencies for the payment verifier.
type VerifierParams struct {
	Logger   *logger.Logger
	Provider Provider
	Policy   RetryPolicy
	Sleep    func(context.Context, time.Duration) error
}

// Verifier queries provider-authoritative transaction status. Verification is
// idempotent: identical input always yields the same output with no side
// effects on the provider or the local store. Only transient failures are
// retried; a definitive provider verdict is returned as-is, including
// "failed".
type Verifier struct {
	logg     *logger.Logger
	provider Provider
	policy   RetryPolicy
	sleep    func(context.Context, time.Duration) error
}

// NewVerifier builds a payment verifier with a bounded retry policy.
func NewVerifier(params VerifierParams) (*Verifier, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	sleepFn := params.Sleep
	if sleepFn == nil {
		sleepFn = sleep
	}
	return &Verifier{
		logg:     params.Logger,
		provider: params.Provider,
		policy:   params.Policy.normalized(),
		sleep:    sleepFn,
	}, nil
}

// Verify fetches the authoritative status for a reference, retrying
// transient failures with bounded exponential backoff. Exhausting the budget
// surfaces RETRY_EXHAUSTED, distinct from a definitive failed payment.
func (v *Verifier) Verify(ctx context.Context, reference, transactionID string) (*VerifiedTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	logCtx := v.logg.WithReference(ctx, reference)

	delay := v.policy.BaseDelay
	var waited time.Duration
	var lastErr error

	for attempt := 1; attempt <= v.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verification canceled")
		}

		tx, err := v.provider.Verify(ctx, reference, transactionID)
		if err == nil {
			return tx, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			// definitive answer or malformed input, not worth retrying
			return nil, err
		}
		lastErr = err

		attemptCtx := v.logg.WithField(logCtx, "attempt", attempt)
		v.logg.Warn(attemptCtx, "verify.transient_failure")

		if attempt == v.policy.MaxAttempts || waited+delay > v.policy.MaxTotal {
			break
		}
		if err := v.sleep(ctx, delay); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verification canceled")
		}
		waited += delay
		delay *= time.Duration(v.policy.Multiplier)
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeRetryExhausted, lastErr,
		fmt.Sprintf("verification gave up after %d attempts", v.policy.MaxAttempts))
}
