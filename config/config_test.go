package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSlotRetries != 3 || cfg.PolicyMaxChars != 2000 || cfg.DefaultWindowDays != 30 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.HasLLM() {
		t.Errorf("no API key configured but HasLLM is true")
	}
	if cfg.SessionTTL() != time.Hour {
		t.Errorf("ttl = %v", cfg.SessionTTL())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.json")
	content := `{"addr":":9090","policy_path":"/etc/policy.md","max_slot_retries":5,"llm":{"model":"gpt-4o"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RETURNAGENT_MAX_SLOT_RETRIES", "4")
	t.Setenv("RETURNAGENT_LLM_API_KEY", "sk-test")
	t.Setenv("RETURNAGENT_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.PolicyPath != "/etc/policy.md" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.MaxSlotRetries != 4 || !cfg.HasLLM() {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("level = %v", level)
	}
	if cfg.OrdersPath != "./data/orders" {
		t.Errorf("default lost: %q", cfg.OrdersPath)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RETURNAGENT_ORDERS_DB=./orders.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set; t.Setenv
	// restores the original value after the unset below
	t.Setenv("RETURNAGENT_ORDERS_DB", "")
	os.Unsetenv("RETURNAGENT_ORDERS_DB")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OrdersDB != "./orders.db" {
		t.Errorf("orders db = %q", cfg.OrdersDB)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte("{"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Errorf("expected error for malformed file")
	}
	t.Setenv("RETURNAGENT_MAX_SLOT_RETRIES", "0")
	if _, err := Load(""); err == nil {
		t.Errorf("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty policy path", func(c *Config) { c.PolicyPath = "" }},
		{"no orders source", func(c *Config) { c.OrdersPath = ""; c.OrdersDB = "" }},
		{"zero policy chars", func(c *Config) { c.PolicyMaxChars = 0 }},
		{"zero window", func(c *Config) { c.DefaultWindowDays = 0 }},
		{"negative ttl", func(c *Config) { c.SessionTTLMinutes = -1 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
