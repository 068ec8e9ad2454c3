package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"ENLARGE_TRACE_EXPORTER", "ENLARGE_METRICS_FILE", "MINIO_BUCKET", "ENLARGE_WEBHOOK_ATTEMPTS", "OTEL_SERVICE_NAME"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trace.Exporter != "none" {
		t.Fatalf("expected exporter none, got %s", cfg.Trace.Exporter)
	}
	if cfg.Trace.ServiceName != "enlarge" {
		t.Fatalf("expected service name enlarge, got %s", cfg.Trace.ServiceName)
	}
	if cfg.Storage.Enabled() {
		t.Fatal("expected publishing to be disabled without a bucket")
	}
	if cfg.Webhook.MaxAttempts != 3 {
		t.Fatalf("expected 3 webhook attempts, got %d", cfg.Webhook.MaxAttempts)
	}
	if cfg.Resample.UnsharpSigma != 0.8 {
		t.Fatalf("expected unsharp sigma 0.8, got %v", cfg.Resample.UnsharpSigma)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENLARGE_TRACE_EXPORTER", "stdout")
	t.Setenv("MINIO_BUCKET", "icons")
	t.Setenv("ENLARGE_WEBHOOK_TIMEOUT", "3s")
	t.Setenv("ENLARGE_WEBHOOK_ATTEMPTS", "not-a-number")
	t.Setenv("ENLARGE_UNSHARP_AMOUNT", "1.25")
	t.Setenv("OTEL_SERVICE_NAME", "icon-build")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Trace.Exporter != "stdout" {
		t.Fatalf("expected stdout exporter, got %s", cfg.Trace.Exporter)
	}
	if cfg.Trace.ServiceName != "icon-build" {
		t.Fatalf("expected service name icon-build, got %s", cfg.Trace.ServiceName)
	}
	if !cfg.Storage.Enabled() || cfg.Storage.Bucket != "icons" {
		t.Fatalf("expected bucket icons, got %q", cfg.Storage.Bucket)
	}
	if cfg.Webhook.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.Webhook.Timeout)
	}
	if cfg.Webhook.MaxAttempts != 3 {
		t.Fatalf("expected fallback attempts on bad value, got %d", cfg.Webhook.MaxAttempts)
	}
	if cfg.Resample.UnsharpAmount != 1.25 {
		t.Fatalf("expected unsharp amount 1.25, got %v", cfg.Resample.UnsharpAmount)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ENLARGE_METRICS_FILE", "")
	os.Unsetenv("ENLARGE_METRICS_FILE")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ENLARGE_METRICS_FILE=/tmp/enlarge.prom\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Metrics.TextfilePath != "/tmp/enlarge.prom" {
		t.Fatalf("expected metrics file from .env, got %q", cfg.Metrics.TextfilePath)
	}
}
