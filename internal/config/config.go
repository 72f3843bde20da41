// Package config loads the runtime configuration from environment
// variables (usually populated from a .env file by the entrypoint).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete runtime configuration.
type Config struct {
	// Kite credentials
	APIKey      string
	APISecret   string
	AccessToken string

	// Core exit parameters
	MaxLoss      decimal.Decimal // positive loss threshold in INR
	PollInterval time.Duration
	MarketClose  string // HH:MM local to Timezone
	Timezone     string
	Exchanges    []string

	// Behavior flags
	DryRun      bool
	Debug       bool
	ForceLogin  bool
	OrderStream bool // subscribe to the order-update WebSocket

	// Timing knobs (defaults match the production retry policy)
	Cooldown    time.Duration
	StopTimeout time.Duration
	RetryDelay  time.Duration
	SettleDelay time.Duration

	// Infrastructure
	DatabasePath   string // sqlite path or postgres:// DSN; empty disables persistence
	LogDir         string
	TelegramToken  string
	TelegramChatID int64
	MetricsAddr    string // e.g. ":9109"; empty disables the metrics listener
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:      os.Getenv("KITE_API_KEY"),
		APISecret:   os.Getenv("KITE_API_SECRET"),
		AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),

		MaxLoss:      getEnvDecimal("MAX_LOSS", decimal.Zero),
		PollInterval: getEnvDuration("POLL_INTERVAL", 10*time.Second),
		MarketClose:  getEnv("MARKET_CLOSE", "15:30"),
		Timezone:     getEnv("TIMEZONE", "Asia/Kolkata"),
		Exchanges:    splitExchanges(getEnv("EXCHANGES", "NFO,BFO")),

		DryRun:      getEnvBool("DRY_RUN", false),
		Debug:       getEnvBool("DEBUG", false),
		ForceLogin:  getEnvBool("FORCE_LOGIN", false),
		OrderStream: getEnvBool("ORDER_STREAM", false),

		Cooldown:    getEnvDuration("EXIT_COOLDOWN", 30*time.Second),
		StopTimeout: getEnvDuration("STOP_TIMEOUT", 30*time.Second),
		RetryDelay:  getEnvDuration("RETRY_DELAY", 1*time.Second),
		SettleDelay: getEnvDuration("SETTLE_DELAY", 2*time.Second),

		DatabasePath:  getEnv("DATABASE_PATH", "data/exitwave.db"),
		LogDir:        getEnv("LOG_DIR", "logs"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("KITE_API_KEY and KITE_API_SECRET are required")
	}
	if cfg.MaxLoss.Sign() <= 0 {
		return nil, fmt.Errorf("MAX_LOSS must be a positive number (e.g. MAX_LOSS=5000)")
	}
	if _, _, err := ParseMarketClose(cfg.MarketClose); err != nil {
		return nil, err
	}
	if len(cfg.Exchanges) == 0 {
		return nil, fmt.Errorf("EXCHANGES must name at least one venue")
	}

	return cfg, nil
}

// ParseMarketClose parses an HH:MM cutoff string.
func ParseMarketClose(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid MARKET_CLOSE %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid MARKET_CLOSE hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid MARKET_CLOSE minute in %q", s)
	}
	return hour, minute, nil
}

func splitExchanges(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		e = strings.ToUpper(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
