// Package paystack implements the payment provider capability against the
// Paystack REST API. All amounts on the wire are minor units (kobo).
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/pkg/config"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

const defaultBaseURL = "https://api.paystack.co"

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

// Client talks to the Paystack API with centralized auth, timeouts, and
// error classification.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     *logger.Logger
}

var _ payments.Provider = (*Client)(nil)

// NewClient initializes the Paystack wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  secret,
		logger:     logg,
	}
	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// SignatureValid checks the x-paystack-signature header: HMAC-SHA512 of the
// raw body keyed with the secret.
func (c *Client) SignatureValid(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) == 1
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize opens a checkout and returns the hosted payment page URL.
func (c *Client) Initialize(ctx context.Context, params payments.InitializeParams) (*payments.Checkout, error) {
	payload := initializeRequest{
		Email:       params.Email,
		Amount:      params.AmountMinor,
		Reference:   params.Reference,
		CallbackURL: params.CallbackURL,
		Metadata:    params.Metadata,
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}
	return &payments.Checkout{
		CheckoutURL: data.AuthorizationURL,
		AccessCode:  data.AccessCode,
		Reference:   data.Reference,
	}, nil
}

type verifyData struct {
	ID        int64             `json:"id"`
	Status    string            `json:"status"`
	Reference string            `json:"reference"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	PaidAt    string            `json:"paid_at"`
	Metadata  map[string]string `json:"metadata"`
	Customer  struct {
		Email        string `json:"email"`
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

// Verify fetches the authoritative status of a transaction by reference.
// It performs no writes on the provider side and is safe to call repeatedly.
func (c *Client) Verify(ctx context.Context, reference, transactionID string) (*payments.VerifiedTransaction, error) {
	path := "/transaction/verify/" + url.PathEscape(reference)
	if reference == "" && transactionID != "" {
		path = "/transaction/" + url.PathEscape(transactionID)
	}

	var data verifyData
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}

	tx := &payments.VerifiedTransaction{
		Reference:             data.Reference,
		ProviderTransactionID: fmt.Sprintf("%d", data.ID),
		Status:                mapTransactionStatus(data.Status),
		AmountMinor:           data.Amount,
		Currency:              data.Currency,
		Metadata:              data.Metadata,
	}
	tx.Customer.Email = strings.ToLower(strings.TrimSpace(data.Customer.Email))
	tx.Customer.Code = data.Customer.CustomerCode

	if data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			tx.PaidAt = &paidAt
		}
	}
	return tx, nil
}

type subscriptionRequest struct {
	Customer string `json:"customer"`
	Plan     string `json:"plan"`
}

type subscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	Status           string `json:"status"`
	NextPaymentDate  string `json:"next_payment_date"`
	EmailToken       string `json:"email_token"`
}

// CreateSubscription enrolls a customer on a recurring plan.
func (c *Client) CreateSubscription(ctx context.Context, email, customerCode, planCode string) (*payments.ProviderSubscription, error) {
	customer := customerCode
	if customer == "" {
		customer = email
	}

	var data subscriptionData
	if err := c.do(ctx, http.MethodPost, "/subscription", subscriptionRequest{Customer: customer, Plan: planCode}, &data); err != nil {
		return nil, err
	}

	sub := &payments.ProviderSubscription{
		SubscriptionCode: data.SubscriptionCode,
		Status:           data.Status,
	}
	if data.NextPaymentDate != "" {
		if next, err := time.Parse(time.RFC3339, data.NextPaymentDate); err == nil {
			sub.NextPaymentDate = &next
		}
	}
	return sub, nil
}

type disableRequest struct {
	Code  string `json:"code"`
	Token string `json:"token,omitempty"`
}

// CancelSubscription disables a provider-side subscription.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionCode string) error {
	return c.do(ctx, http.MethodPost, "/subscription/disable", disableRequest{Code: subscriptionCode}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paystack request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paystack response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("paystack returned %d", resp.StatusCode))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack envelope")
	}

	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("paystack returned %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, msg)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, msg)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack data")
		}
	}
	return nil
}

// classifyTransportError folds network-class failures into the retryable
// dependency bucket. Timeouts are transient, never definitive.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack request timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack unreachable")
}

// mapTransactionStatus folds Paystack's transaction states into the local
// three-valued status. Abandoned and reversed map to failed.
func mapTransactionStatus(status string) enums.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return enums.PaymentStatusSuccess
	case "failed", "abandoned", "reversed":
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}
