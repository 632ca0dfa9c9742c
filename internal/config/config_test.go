package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/pingwatch/internal/utils"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Detection.LossThresholdPercent != 50 || cfg.Detection.ConsecutiveTrigger != 3 {
		t.Fatalf("unexpected detection defaults: %+v", cfg.Detection)
	}
	if !cfg.Detection.ResetAfterAlert() {
		t.Fatalf("expected reset-after-alert to default to true")
	}
	if cfg.TickInterval() != 10*time.Second {
		t.Fatalf("unexpected tick interval %v", cfg.TickInterval())
	}
	if cfg.Probe.Timeout != 15*time.Second || cfg.Notifications.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeouts: probe=%v http=%v", cfg.Probe.Timeout, cfg.Notifications.Timeout)
	}
}

func TestParseRecognisedOptions(t *testing.T) {
	raw := []byte(`
targets:
  - 8.8.8.8
  - name: edge-router
    address: 10.0.0.1
tick_interval_seconds: 30
loss_threshold_percent: 25.5
consecutive_trigger: 5
reset_on_alert: false
notifications_enabled: true
notification_credentials:
  token: abc
  chat_id: "42"
probe:
  timeout: 5s
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := cfg.TargetAddresses(); len(got) != 2 || got[0] != "8.8.8.8" || got[1] != "10.0.0.1" {
		t.Fatalf("unexpected targets: %v", got)
	}
	if cfg.Targets[0].Name != "8.8.8.8" || cfg.Targets[1].Name != "edge-router" {
		t.Fatalf("unexpected target names: %+v", cfg.Targets)
	}
	if cfg.TickIntervalSeconds != 30 || cfg.Detection.LossThresholdPercent != 25.5 || cfg.Detection.ConsecutiveTrigger != 5 {
		t.Fatalf("unexpected detection settings: %+v", cfg)
	}
	if cfg.Detection.ResetAfterAlert() {
		t.Fatalf("expected reset_on_alert=false to be honoured")
	}
	if !cfg.NotificationsEnabled || cfg.NotificationCredentials.Token != "abc" || cfg.NotificationCredentials.ChatID != "42" {
		t.Fatalf("unexpected notification settings: %+v %+v", cfg.NotificationsEnabled, cfg.NotificationCredentials)
	}
	if cfg.Probe.Timeout != 5*time.Second || cfg.Probe.Count != 4 {
		t.Fatalf("expected probe timeout override and count default, got %+v", cfg.Probe)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Targets = append(cfg.Targets, cfg.Targets[0])
	cfg.TickIntervalSeconds = 0
	cfg.Detection.LossThresholdPercent = 120
	cfg.Detection.ConsecutiveTrigger = 0
	cfg.Storage.Backend = "parquet"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !utils.HasCode(err, utils.CodeConfigInvalidValue) {
		t.Fatalf("expected invalid value code, got %q", utils.CodeOf(err))
	}
	for _, want := range []string{"duplicate target", "tick_interval_seconds", "loss_threshold_percent", "consecutive_trigger", "storage.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidateRejectsZeroLossThreshold(t *testing.T) {
	cfg := Default()
	cfg.Detection.LossThresholdPercent = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected a zero loss threshold to be rejected")
	}
	if !strings.Contains(err.Error(), "loss_threshold_percent must be greater than 0") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pingwatch.yaml")
	if err := os.WriteFile(path, []byte("targets: [1.1.1.1]\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PINGWATCH_TARGETS", "9.9.9.9, 8.8.4.4")
	t.Setenv("PINGWATCH_CONSECUTIVE_TRIGGER", "4")
	t.Setenv("PINGWATCH_NOTIFICATIONS_ENABLED", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.TargetAddresses(); len(got) != 2 || got[0] != "9.9.9.9" || got[1] != "8.8.4.4" {
		t.Fatalf("expected env targets, got %v", got)
	}
	if cfg.Detection.ConsecutiveTrigger != 4 || !cfg.NotificationsEnabled {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !utils.HasCode(err, utils.CodeConfigReadFailure) {
		t.Fatalf("expected read failure code, got %v", err)
	}
}
