package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScannerDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Scanner.Interval != 60*time.Second {
		t.Fatalf("expected 60s scan interval default, got %v", cfg.Scanner.Interval)
	}
	if cfg.Scanner.Workers != 5 {
		t.Fatalf("expected 5 workers default, got %d", cfg.Scanner.Workers)
	}
	if cfg.Scanner.LiquidityFloor != 1_000_000 {
		t.Fatalf("expected liquidity floor default, got %f", cfg.Scanner.LiquidityFloor)
	}
	if cfg.Scanner.KlineInterval != "5" || cfg.Scanner.KlineLimit != 200 {
		t.Fatalf("expected kline defaults, got %q/%d", cfg.Scanner.KlineInterval, cfg.Scanner.KlineLimit)
	}
}

func TestRiskDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Risk.RiskPercent != 2 {
		t.Fatalf("expected risk percent default, got %f", cfg.Risk.RiskPercent)
	}
	if cfg.Risk.MaxOpenTrades != 10 {
		t.Fatalf("expected max open trades default, got %d", cfg.Risk.MaxOpenTrades)
	}
	if cfg.Risk.ConfidenceFloor != 0.6 {
		t.Fatalf("expected confidence floor default, got %f", cfg.Risk.ConfidenceFloor)
	}
}

func TestRESTDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.REST.BaseURL != "https://api.bybit.com" {
		t.Fatalf("expected bybit base url default, got %q", cfg.REST.BaseURL)
	}
	if cfg.REST.Timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout default, got %v", cfg.REST.Timeout)
	}
}

func TestValidateRejectsRiskAboveCap(t *testing.T) {
	cfg := &Config{Risk: RiskConfig{RiskPercent: 6, MaxRiskPercent: 5}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for risk percent above cap")
	}
}

func TestValidateRejectsBadConfidenceFloor(t *testing.T) {
	cfg := &Config{Risk: RiskConfig{ConfidenceFloor: 1.5}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for confidence floor above 1")
	}
}

func TestValidateRejectsUnknownFeatureSource(t *testing.T) {
	cfg := &Config{Features: FeaturesConfig{Source: "csv"}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for unknown features source")
	}
}

func TestValidateRequiresTimescaleDSN(t *testing.T) {
	cfg := &Config{Timescale: TimescaleConfig{Enabled: true}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for enabled timescale without dsn")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("scanner:\n  workers: 3\nrisk:\n  risk_percent: 1\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scanner.Workers != 3 {
		t.Fatalf("expected workers 3, got %d", cfg.Scanner.Workers)
	}
	if cfg.Scanner.Interval != 60*time.Second {
		t.Fatalf("expected default interval, got %v", cfg.Scanner.Interval)
	}
	if cfg.Risk.RiskPercent != 1 {
		t.Fatalf("expected risk percent 1, got %f", cfg.Risk.RiskPercent)
	}
}

func TestLoadCredentialsRequiresEnv(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")
	if _, err := LoadCredentials(); err == nil {
		t.Fatalf("expected error without credentials in env")
	}
	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")
	creds, err := LoadCredentials()
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds.APIKey != "key" || creds.APISecret != "secret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}
