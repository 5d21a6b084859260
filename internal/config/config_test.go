package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"laju/internal/quote"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LAJU_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.StoreBackend != BackendWorkbook || cfg.SessionBackend != BackendMemory {
		t.Fatalf("unexpected backends %q/%q", cfg.StoreBackend, cfg.SessionBackend)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.SessionTTL)
	}
	if !reflect.DeepEqual(cfg.QuoteRates(), quote.DefaultRates()) {
		t.Fatalf("default rates drifted: %+v", cfg.QuoteRates())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LAJU_CONFIG", "")
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/laju")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATES_EXPRESS_PER_KG", "20000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreBackend != BackendPostgres {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.SessionTTL)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Fatalf("brokers: got %v want %v", cfg.KafkaBrokers, want)
	}
	if got := cfg.QuoteRates().PerKg[quote.Express]; got != quote.Rupiah(20_000) {
		t.Fatalf("express rate override: got %v", got)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laju.yaml")
	yaml := "port: \"7070\"\nworkbook_path: /data/laju.xlsx\nrates:\n  cod_threshold: 150000\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LAJU_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7070" || cfg.WorkbookPath != "/data/laju.xlsx" {
		t.Fatalf("file not applied: %+v", cfg)
	}
	if cfg.Rates.CODThreshold != 150_000 {
		t.Fatalf("nested rate not applied: %d", cfg.Rates.CODThreshold)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":    {"STORE_BACKEND": "sheets"},
		"postgres no url":  {"STORE_BACKEND": "postgres", "DATABASE_URL": ""},
		"redis no addr":    {"SESSION_BACKEND": "redis", "REDIS_ADDR": ""},
		"missing file":     {"LAJU_CONFIG": "/nonexistent/laju.yaml"},
		"non-positive ttl": {"SESSION_TTL": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LAJU_CONFIG", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
