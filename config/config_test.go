package config

import (
	"os"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, pattern, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad(t *testing.T) {
	configContent := `
server:
  port: 9090
  rate_limit: 30
auth:
  jwt_secret: "test-secret"
  token_expire_hours: 48
upload:
  max_file_size: 1048576
  max_files: 3
  allowed_types: ["application/pdf"]
  step_percent: 25
  step_delay: 50ms
  processing_delay: 1s
log:
  level: "debug"
  format: "json"
  file: "/tmp/invoicedesk.log"
store:
  max_invoices: 50
users:
  - id: "9"
    email: "tester@example.com"
    password: "testpass"
    name: "Tester"
    role: "accountant"
`
	cfg, err := Load(writeTempConfig(t, "config-*.yaml", configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit != 30 {
		t.Errorf("Expected rate_limit 30, got %d", cfg.Server.RateLimit)
	}
	if cfg.Auth.TokenExpireHours != 48 {
		t.Errorf("Expected token_expire_hours 48, got %d", cfg.Auth.TokenExpireHours)
	}
	if cfg.Upload.MaxFileSize != 1048576 {
		t.Errorf("Expected max_file_size 1048576, got %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.MaxFiles != 3 {
		t.Errorf("Expected max_files 3, got %d", cfg.Upload.MaxFiles)
	}
	if len(cfg.Upload.AllowedTypes) != 1 || cfg.Upload.AllowedTypes[0] != "application/pdf" {
		t.Errorf("Expected allowed_types [application/pdf], got %v", cfg.Upload.AllowedTypes)
	}
	if cfg.Upload.StepPercent != 25 {
		t.Errorf("Expected step_percent 25, got %d", cfg.Upload.StepPercent)
	}
	if cfg.Upload.StepDelay != 50*time.Millisecond {
		t.Errorf("Expected step_delay 50ms, got %v", cfg.Upload.StepDelay)
	}
	if cfg.Upload.ProcessingDelay != time.Second {
		t.Errorf("Expected processing_delay 1s, got %v", cfg.Upload.ProcessingDelay)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
	if cfg.Log.File != "/tmp/invoicedesk.log" {
		t.Errorf("Expected log file, got %s", cfg.Log.File)
	}
	if cfg.Store.MaxInvoices != 50 {
		t.Errorf("Expected max_invoices 50, got %d", cfg.Store.MaxInvoices)
	}
	if len(cfg.Users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(cfg.Users))
	}
	if cfg.Users[0].Email != "tester@example.com" {
		t.Errorf("Expected email tester@example.com, got %s", cfg.Users[0].Email)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "config-defaults-*.yaml", "auth:\n  jwt_secret: \"s\"\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.TokenExpireHours != 24 {
		t.Errorf("Expected default token_expire_hours 24, got %d", cfg.Auth.TokenExpireHours)
	}
	if cfg.Upload.MaxFileSize != 10*1024*1024 {
		t.Errorf("Expected default max_file_size 10MiB, got %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.MaxFiles != 10 {
		t.Errorf("Expected default max_files 10, got %d", cfg.Upload.MaxFiles)
	}
	if cfg.Upload.StepPercent != 10 {
		t.Errorf("Expected default step_percent 10, got %d", cfg.Upload.StepPercent)
	}
	if cfg.Upload.StepDelay != 200*time.Millisecond {
		t.Errorf("Expected default step_delay 200ms, got %v", cfg.Upload.StepDelay)
	}
	if cfg.Upload.ProcessingDelay != 2*time.Second {
		t.Errorf("Expected default processing_delay 2s, got %v", cfg.Upload.ProcessingDelay)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Expected default log format text, got %s", cfg.Log.Format)
	}
	if len(cfg.Users) != 3 {
		t.Errorf("Expected 3 default users, got %d", len(cfg.Users))
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Expected default metrics path /metrics, got %s", cfg.Metrics.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INVOICEDESK_PORT", "7070")
	t.Setenv("INVOICEDESK_JWT_SECRET", "from-env")
	t.Setenv("INVOICEDESK_LOG_LEVEL", "WARN")

	cfg, err := Load(writeTempConfig(t, "config-env-*.yaml", "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Expected jwt secret from env, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Log.Level)
	}
}

func TestLoadInvalidEnvPort(t *testing.T) {
	t.Setenv("INVOICEDESK_PORT", "not-a-port")

	_, err := Load(writeTempConfig(t, "config-badenv-*.yaml", "server:\n  port: 9090\n"))
	if err == nil {
		t.Error("Expected error for invalid INVOICEDESK_PORT")
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTempConfig(t, "config-invalid-*.yaml", "invalid: yaml: content:"))
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestFindUser(t *testing.T) {
	cfg := &Config{Users: DefaultUsers()}

	user := cfg.FindUser("admin@example.com")
	if user == nil {
		t.Fatal("Expected to find admin@example.com")
	}
	if user.Role != "admin" {
		t.Errorf("Expected role admin, got %s", user.Role)
	}

	// Email lookup ignores case
	if cfg.FindUser("Uploader@Example.com") == nil {
		t.Error("Expected case-insensitive match")
	}

	if cfg.FindUser("nonexistent@example.com") != nil {
		t.Error("Expected nil for non-existent user")
	}
}
