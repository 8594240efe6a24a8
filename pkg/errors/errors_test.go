package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDependency, cause, "verify transaction")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("expected dependency code, got %s", err.Code())
	}
}

func TestAsFindsTypedError(t *testing.T) {
	inner := New(CodeRetryExhausted, "verification retries exhausted")
	wrapped := Wrap(CodeInternal, inner, "reconcile")

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeInternal {
		t.Fatalf("expected outermost code, got %s", typed.Code())
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(New(CodeValidation, "bad email")) {
		t.Fatal("validation errors must not be retryable")
	}
	if Retryable(New(CodePaymentFailed, "declined")) {
		t.Fatal("definitive payment failures must not be retryable")
	}
	if !Retryable(New(CodeDependency, "provider 503")) {
		t.Fatal("dependency errors must be retryable")
	}
	if !Retryable(New(CodeRetryExhausted, "gave up")) {
		t.Fatal("retry exhaustion is surfaced as retryable to the caller")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("timeout"), "verify")
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain entries, got %d", len(dump.Chain))
	}
}
