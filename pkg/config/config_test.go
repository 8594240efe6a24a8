package config

import (
	"strings"
	"testing"
	"time"
)

func TestEnsureDSNBuildsFromLegacyFields(t *testing.T) {
	cfg := DBConfig{
		LegacyHost:     "localhost",
		LegacyPort:     5432,
		LegacyUser:     "learnhub",
		LegacyPassword: "p@ss word",
		LegacyName:     "learnhub",
		LegacySSLMode:  "disable",
	}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(cfg.DSN, "postgres://learnhub:") {
		t.Fatalf("unexpected dsn: %s", cfg.DSN)
	}
	if strings.Contains(cfg.DSN, "p@ss word") {
		t.Fatalf("password not escaped: %s", cfg.DSN)
	}
}

func TestEnsureDSNRequiresLegacyFields(t *testing.T) {
	cfg := DBConfig{}
	if err := cfg.ensureDSN(); err == nil {
		t.Fatal("expected error when no dsn and no legacy fields")
	}
}

func TestEnsureDSNKeepsExplicitDSN(t *testing.T) {
	cfg := DBConfig{DSN: "postgres://u:p@host/db"}
	if err := cfg.ensureDSN(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DSN != "postgres://u:p@host/db" {
		t.Fatalf("dsn was mutated: %s", cfg.DSN)
	}
}

func TestBillingCycleFallsBackToThirtyDays(t *testing.T) {
	b := BillingConfig{}
	if b.Cycle() != 30*24*time.Hour {
		t.Fatalf("unexpected cycle %s", b.Cycle())
	}
	b.CycleDays = 7
	if b.Cycle() != 7*24*time.Hour {
		t.Fatalf("unexpected cycle %s", b.Cycle())
	}
}
