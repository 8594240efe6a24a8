package redis

import (
	"testing"

	"github.com/emekadefirst/learnhub-backend/pkg/config"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when url and address missing")
	}
}

func TestOptionsFromConfigAddress(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "localhost:6379",
		Password: "secret",
		DB:       2,
		PoolSize: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 5 {
		t.Fatalf("options not propagated: %+v", opts)
	}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	if got := c.IdempotencyKey("paystack-webhook", "evt_1"); got != "lh:idempotency:paystack-webhook:evt_1" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := c.LockKey("expire-sweep"); got != "lh:lock:expire-sweep" {
		t.Fatalf("unexpected lock key %q", got)
	}
	if got := c.IdempotencyKey("", " evt "); got != "lh:idempotency:evt" {
		t.Fatalf("expected blank scope skipped, got %q", got)
	}
}
