package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/internal/reconcile"
	"github.com/emekadefirst/learnhub-backend/pkg/db/models"
	"github.com/emekadefirst/learnhub-backend/pkg/enums"
	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
	"github.com/emekadefirst/learnhub-backend/pkg/types"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

type stubInitiator struct {
	input  payments.InitiateInput
	result *payments.InitiateResult
	err    error
}

func (s *stubInitiator) Initiate(_ context.Context, input payments.InitiateInput) (*payments.InitiateResult, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestCheckoutInitiate(t *testing.T) {
	svc := &stubInitiator{result: &payments.InitiateResult{
		CheckoutURL: "https://checkout.paystack.com/abc123",
		Reference:   "LH_1_ref",
	}}
	handler := CheckoutInitiate(svc, testLogger())

	productID := uuid.New()
	body := `{"email":"buyer@example.com","amount":"2500.00","product_id":"` +
		productID.String() + `","product_type":"course"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if svc.input.Email != "buyer@example.com" {
		t.Fatalf("email = %s", svc.input.Email)
	}
	if svc.input.ProductType != enums.ProductTypeCourse {
		t.Fatalf("product type = %s", svc.input.ProductType)
	}
	if !svc.input.AmountMajor.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("amount = %s", svc.input.AmountMajor)
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["checkout_url"] != "https://checkout.paystack.com/abc123" {
		t.Fatalf("checkout_url = %v", data["checkout_url"])
	}
}

func TestCheckoutInitiate_BadBody(t *testing.T) {
	handler := CheckoutInitiate(&stubInitiator{}, testLogger())

	cases := []string{
		`{"email":"buyer@example.com"}`,
		`{"email":"not-an-email","amount":"100","product_id":"` + uuid.NewString() + `","product_type":"course"}`,
		`{"email":"buyer@example.com","amount":"abc","product_id":"` + uuid.NewString() + `","product_type":"course"}`,
		`{"email":"buyer@example.com","amount":"100","product_id":"` + uuid.NewString() + `","product_type":"webinar"}`,
	}
	for i, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status = %d body=%s", i, w.Code, w.Body.String())
		}
	}
}

type stubPaymentVerifier struct {
	result *payments.VerifiedTransaction
	err    error
}

func (s *stubPaymentVerifier) Verify(_ context.Context, reference, _ string) (*payments.VerifiedTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.result
	out.Reference = reference
	return &out, nil
}

type stubPaymentReconciler struct {
	result *reconcile.Result
	calls  int
}

func (s *stubPaymentReconciler) Reconcile(_ context.Context, _ *payments.VerifiedTransaction) (*reconcile.Result, error) {
	s.calls++
	return s.result, nil
}

func TestPaymentVerify(t *testing.T) {
	purchase := &models.Purchase{
		ID:            uuid.New(),
		PaymentStatus: enums.PaymentStatusSuccess,
		AccessGranted: true,
	}
	verifier := &stubPaymentVerifier{result: &payments.VerifiedTransaction{Status: enums.PaymentStatusSuccess}}
	reconciler := &stubPaymentReconciler{result: &reconcile.Result{
		Purchase:   purchase,
		Created:    true,
		AccessLink: "https://learnhub.example.com/access/" + purchase.ID.String(),
	}}

	router := chi.NewRouter()
	router.Get("/verify/{reference}", PaymentVerify(verifier, reconciler, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/verify/LH_1_ref", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if reconciler.calls != 1 {
		t.Fatalf("reconcile calls = %d", reconciler.calls)
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["access_granted"] != true {
		t.Fatalf("access_granted = %v", data["access_granted"])
	}
}

func TestPaymentVerify_PendingSkipsReconcile(t *testing.T) {
	verifier := &stubPaymentVerifier{result: &payments.VerifiedTransaction{Status: enums.PaymentStatusPending}}
	reconciler := &stubPaymentReconciler{}

	router := chi.NewRouter()
	router.Get("/verify/{reference}", PaymentVerify(verifier, reconciler, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/verify/LH_1_ref", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if reconciler.calls != 0 {
		t.Fatalf("pending transaction was reconciled")
	}
}

func TestPaymentVerify_ProviderOutage(t *testing.T) {
	verifier := &stubPaymentVerifier{err: pkgerrors.New(pkgerrors.CodeRetryExhausted, "attempts exhausted")}

	router := chi.NewRouter()
	router.Get("/verify/{reference}", PaymentVerify(verifier, &stubPaymentReconciler{}, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/verify/LH_1_ref", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}
