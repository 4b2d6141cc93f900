// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
)

const envPrefix = "RETURNAGENT_"

// Config holds all application configuration.
type Config struct {
	Addr      string `json:"addr"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// OrdersPath is a markdown file or directory of order records.
	OrdersPath string `json:"orders_path"`
	// OrdersDB is the SQLite order store; empty keeps orders in memory.
	OrdersDB string `json:"orders_db"`

	PolicyPath        string `json:"policy_path"`
	PolicyMaxChars    int    `json:"policy_max_chars"`
	DefaultWindowDays int    `json:"default_window_days"`

	MaxSlotRetries    int `json:"max_slot_retries"`
	SessionTTLMinutes int `json:"session_ttl_minutes"`
	HistorySize       int `json:"history_size"`

	LLM LLMConfig `json:"llm"`
}

type LLMConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
	Lang    string `json:"lang"`
}

func Default() *Config {
	return &Config{
		Addr:              ":8080",
		LogLevel:          "info",
		LogFormat:         "text",
		OrdersPath:        "./data/orders",
		PolicyPath:        "./data/return_policy.md",
		PolicyMaxChars:    2000,
		DefaultWindowDays: 30,
		MaxSlotRetries:    3,
		SessionTTLMinutes: 60,
		HistorySize:       50,
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
			Lang:  "English",
		},
	}
}

// Load reads .env, then the optional JSON file at path, then RETURNAGENT_*
// environment variables, each overriding the previous source.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := sonic.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("ADDR", c.Addr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.OrdersPath = getEnv("ORDERS_PATH", c.OrdersPath)
	c.OrdersDB = getEnv("ORDERS_DB", c.OrdersDB)
	c.PolicyPath = getEnv("POLICY_PATH", c.PolicyPath)
	c.PolicyMaxChars = getEnvInt("POLICY_MAX_CHARS", c.PolicyMaxChars)
	c.DefaultWindowDays = getEnvInt("DEFAULT_WINDOW_DAYS", c.DefaultWindowDays)
	c.MaxSlotRetries = getEnvInt("MAX_SLOT_RETRIES", c.MaxSlotRetries)
	c.SessionTTLMinutes = getEnvInt("SESSION_TTL_MINUTES", c.SessionTTLMinutes)
	c.HistorySize = getEnvInt("HISTORY_SIZE", c.HistorySize)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Lang = getEnv("LLM_LANG", c.LLM.Lang)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path cannot be empty")
	}
	if c.OrdersPath == "" && c.OrdersDB == "" {
		return fmt.Errorf("orders_path or orders_db must be set")
	}
	if c.PolicyMaxChars <= 0 {
		return fmt.Errorf("policy_max_chars must be > 0")
	}
	if c.DefaultWindowDays <= 0 {
		return fmt.Errorf("default_window_days must be > 0")
	}
	if c.MaxSlotRetries <= 0 {
		return fmt.Errorf("max_slot_retries must be > 0")
	}
	if c.SessionTTLMinutes < 0 {
		return fmt.Errorf("session_ttl_minutes must be >= 0")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return level, nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// HasLLM reports whether a chat model can be configured.
func (c *Config) HasLLM() bool {
	return c.LLM.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
