package paystackwebhook

import (
	"encoding/json"
	"strconv"
	"strings"

	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
)

// EventKind is the normalized shape of a provider notification. Everything
// the provider can send collapses into one of these; unknown kinds are
// acknowledged and dropped, never errored.
type EventKind string

const (
	EventPaymentSucceeded    EventKind = "payment_succeeded"
	EventPaymentFailed       EventKind = "payment_failed"
	EventSubscriptionCreated EventKind = "subscription_created"
	EventUnknown             EventKind = "unknown"
)

// Event is one parsed provider notification. Reference and TransactionID are
// hints only: verification against the provider API is what produces facts.
type Event struct {
	Kind          EventKind
	RawType       string
	Reference     string
	TransactionID string
	CustomerEmail string
	Subscription  SubscriptionPayload
}

// SubscriptionPayload is the slice of a subscription event the service uses.
type SubscriptionPayload struct {
	SubscriptionCode string
	CustomerCode     string
	PlanCode         string
}

type rawEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type rawChargeData struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Customer  struct {
		Email        string `json:"email"`
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

type rawSubscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	Customer         struct {
		Email        string `json:"email"`
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
	Plan struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
}

// ParseEvent decodes a raw webhook body into a normalized event.
func ParseEvent(body []byte) (*Event, error) {
	var envelope rawEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body")
	}
	eventType := strings.ToLower(strings.TrimSpace(envelope.Event))
	if eventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook body has no event type")
	}

	event := &Event{RawType: eventType, Kind: EventUnknown}

	switch eventType {
	case "charge.success", "charge.failed", "invoice.payment_failed":
		var data rawChargeData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge payload")
		}
		if strings.TrimSpace(data.Reference) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge payload has no reference")
		}
		if eventType == "charge.success" {
			event.Kind = EventPaymentSucceeded
		} else {
			event.Kind = EventPaymentFailed
		}
		event.Reference = data.Reference
		if data.ID != 0 {
			event.TransactionID = strconv.FormatInt(data.ID, 10)
		}
		event.CustomerEmail = data.Customer.Email
	case "subscription.create":
		var data rawSubscriptionData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription payload")
		}
		event.Kind = EventSubscriptionCreated
		event.CustomerEmail = data.Customer.Email
		event.Subscription = SubscriptionPayload{
			SubscriptionCode: data.SubscriptionCode,
			CustomerCode:     data.Customer.CustomerCode,
			PlanCode:         data.Plan.PlanCode,
		}
	}
	return event, nil
}
