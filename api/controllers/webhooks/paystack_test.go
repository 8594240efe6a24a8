package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/emekadefirst/learnhub-backend/pkg/errors"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
)

type stubWebhookService struct {
	body      []byte
	signature string
	err       error
}

func (s *stubWebhookService) HandleWebhook(_ context.Context, body []byte, signature string) error {
	s.body = body
	s.signature = signature
	return s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func TestPaystackWebhook(t *testing.T) {
	svc := &stubWebhookService{}
	handler := PaystackWebhook(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/paystack", strings.NewReader(`{"event":"charge.success"}`))
	req.Header.Set("X-Paystack-Signature", "deadbeef")
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if svc.signature != "deadbeef" {
		t.Fatalf("signature = %s", svc.signature)
	}
	if string(svc.body) != `{"event":"charge.success"}` {
		t.Fatalf("body = %s", svc.body)
	}
}

func TestPaystackWebhook_MissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	handler := PaystackWebhook(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/paystack", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.body != nil {
		t.Fatal("service ran without a signature header")
	}
}

func TestPaystackWebhook_ServiceErrorPropagatesStatus(t *testing.T) {
	svc := &stubWebhookService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature is invalid")}
	handler := PaystackWebhook(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/paystack", strings.NewReader(`{}`))
	req.Header.Set("X-Paystack-Signature", "bad")
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
