package notify

import (
	"context"

	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

// AccessGrantedEmail carries everything the template needs.
type AccessGrantedEmail struct {
	To          string
	ProductType string
	PlanName    string
	AccessLink  string
}

// Mailer delivers buyer-facing email. Delivery is advisory: reconciliation
// never fails or retries because a notification did not go out.
type Mailer interface {
	SendAccessGranted(ctx context.Context, email AccessGrantedEmail) error
	SendPaymentFailed(ctx context.Context, to, reference string) error
}

// LogMailer writes notifications to the log instead of sending them. It
// stands in until a real delivery backend is wired.
type LogMailer struct {
	logg *logger.Logger
}

// NewLogMailer builds a log-backed mailer.
func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) SendAccessGranted(ctx context.Context, email AccessGrantedEmail) error {
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"to":           email.To,
		"product_type": email.ProductType,
		"access_link":  email.AccessLink,
	})
	m.logg.Info(logCtx, "notify.access_granted")
	return nil
}

func (m *LogMailer) SendPaymentFailed(ctx context.Context, to, reference string) error {
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"to":        to,
		"reference": reference,
	})
	m.logg.Info(logCtx, "notify.payment_failed")
	return nil
}
