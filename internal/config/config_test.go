package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DAYS_TO_SCAN", "SCAN_TYPE", "MASSAGE_TYPE", "TARGET_STAFF", "HEADLESS", "LOG_LEVEL", "OUTPUT_DIR", "BROWSER_MODE", "SCAN_SCHEDULE", "SCAN_RATE_PER_SEC"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.DaysToScan != 30 {
		t.Fatalf("expected default horizon 30, got %d", cfg.DaysToScan)
	}
	if cfg.ScanType != "" || cfg.MassageType != "" {
		t.Fatalf("expected empty scan selectors, got %q/%q", cfg.ScanType, cfg.MassageType)
	}
	if cfg.TargetStaff != nil {
		t.Fatalf("expected no allow-list, got %v", cfg.TargetStaff)
	}
	if !cfg.Headless {
		t.Fatalf("expected headless by default")
	}
	if cfg.OutputDir != "www" {
		t.Fatalf("expected default output dir, got %s", cfg.OutputDir)
	}
	if cfg.UseSidecar() {
		t.Fatalf("expected local browser mode by default")
	}
	if cfg.BrowserTimeout != 120*time.Second {
		t.Fatalf("expected default browser timeout, got %s", cfg.BrowserTimeout)
	}
	if cfg.ScanSchedule != "*/30 * * * *" {
		t.Fatalf("expected default schedule, got %s", cfg.ScanSchedule)
	}
	if cfg.ScanRatePerSec != 1 {
		t.Fatalf("expected default rate 1, got %v", cfg.ScanRatePerSec)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DAYS_TO_SCAN", "14")
	t.Setenv("SCAN_TYPE", " Massage ")
	t.Setenv("MASSAGE_TYPE", "deep_tissue")
	t.Setenv("TARGET_STAFF", "ann, Bob ,,")
	t.Setenv("HEADLESS", "false")
	t.Setenv("BROWSER_MODE", "SIDECAR")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("SCAN_RATE_PER_SEC", "0.5")
	t.Setenv("BROWSER_TIMEOUT", "45s")
	cfg := Load()
	if cfg.DaysToScan != 14 {
		t.Fatalf("expected horizon override, got %d", cfg.DaysToScan)
	}
	if cfg.ScanType != "massage" {
		t.Fatalf("expected normalized scan type, got %q", cfg.ScanType)
	}
	if cfg.MassageType != "deep_tissue" {
		t.Fatalf("expected massage type override, got %q", cfg.MassageType)
	}
	if len(cfg.TargetStaff) != 2 || cfg.TargetStaff[0] != "ann" || cfg.TargetStaff[1] != "Bob" {
		t.Fatalf("unexpected allow-list %v", cfg.TargetStaff)
	}
	if cfg.Headless {
		t.Fatalf("expected headless disabled")
	}
	if !cfg.UseSidecar() {
		t.Fatalf("expected sidecar mode")
	}
	if cfg.TelegramChatID != -100123 {
		t.Fatalf("expected chat id override, got %d", cfg.TelegramChatID)
	}
	if cfg.ScanRatePerSec != 0.5 {
		t.Fatalf("expected rate override, got %v", cfg.ScanRatePerSec)
	}
	if cfg.BrowserTimeout != 45*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.BrowserTimeout)
	}
}

func TestHeadlessOnlyDisabledByLiteralFalse(t *testing.T) {
	t.Setenv("HEADLESS", "0")
	if !Load().Headless {
		t.Fatalf("only the literal \"false\" should disable headless mode")
	}
}
