package security

import (
	"strings"
	"testing"
)

func TestNewAccessTokenEntropyAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewAccessToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 32 bytes base64url -> 43 chars
		if len(token) < 43 {
			t.Fatalf("token too short for 256 bits: %q", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}
		seen[token] = true
	}
}

func TestNewPaymentReferenceShape(t *testing.T) {
	ref, err := NewPaymentReference("LH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := strings.Split(ref, "_")
	if len(parts) != 3 {
		t.Fatalf("unexpected reference shape: %q", ref)
	}
	if parts[0] != "LH" {
		t.Fatalf("unexpected prefix: %q", ref)
	}
	if len(parts[2]) != 16 {
		t.Fatalf("expected 8 random bytes hex encoded, got %q", parts[2])
	}

	other, err := NewPaymentReference("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(other, "LH_") {
		t.Fatalf("expected default prefix, got %q", other)
	}
	if ref == other {
		t.Fatal("references must differ")
	}
}
