package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	applog "wenxuji/internal/log"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendMemory, BackendSQLite}

type Config struct {
	// HTTP Server
	Port               string `env:"PORT" envDefault:"8081"`
	MaxUploadBytes     int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	CurrencySymbol     string `env:"CURRENCY_SYMBOL" envDefault:"¥"`

	// Storage
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/wenxuji.db"`
	LedgerKey    string `env:"LEDGER_KEY" envDefault:"wenxuji_transactions"`
	AdviceKey    string `env:"ADVICE_KEY" envDefault:"wenxuji_advice"`

	// AI
	GeminiAPIKey          string        `env:"GEMINI_API_KEY"`
	GeminiModel           string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	AITimeout             time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	AdviceCacheTTL        time.Duration `env:"ADVICE_CACHE_TTL" envDefault:"10m"`
	AdviceMaxTransactions int           `env:"ADVICE_MAX_TRANSACTIONS" envDefault:"50"`

	// AMQP, disabled when the URL is empty
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"wenxuji"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"ledger_events"`

	// Google Sheets export
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" envDefault:"Ledger"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.LedgerKey == "" {
		errors = append(errors, "ledger key cannot be empty")
	}
	if c.AdviceKey == "" {
		errors = append(errors, "advice key cannot be empty")
	} else if c.AdviceKey == c.LedgerKey {
		errors = append(errors, fmt.Sprintf("advice key '%s' must differ from the ledger key", c.AdviceKey))
	}

	if c.AITimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be positive", c.AITimeout))
	} else if c.AITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be at most 5 minutes", c.AITimeout))
	}
	if c.AdviceCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid advice cache TTL %v: must not be negative", c.AdviceCacheTTL))
	}
	if c.AdviceMaxTransactions < 1 || c.AdviceMaxTransactions > 500 {
		errors = append(errors, fmt.Sprintf("invalid advice max transactions %d: must be between 1 and 500", c.AdviceMaxTransactions))
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload bytes %d: must be at least 1024", c.MaxUploadBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.CurrencySymbol == "" {
		errors = append(errors, "currency symbol cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	return joinErrors(errors)
}

// ValidateWorker adds the requirements of the advice worker: events, a
// shared slot and a model to ask.
func (c *Config) ValidateWorker() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.DataBackend != BackendSQLite {
		errors = append(errors, fmt.Sprintf("worker requires the sqlite backend, got '%s'", c.DataBackend))
	}
	if c.GeminiAPIKey == "" {
		errors = append(errors, "GEMINI_API_KEY is required for the worker")
	}
	return joinErrors(errors)
}

// ValidateExport adds the Google Sheets requirements of the exporter.
func (c *Config) ValidateExport() error {
	var errors []string
	if err := c.Validate(); err != nil {
		errors = append(errors, strings.TrimPrefix(err.Error(), "configuration validation failed:\n- "))
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for export")
	}
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for export")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return joinErrors(errors)
}

// AIEnabled reports whether extraction and advice can reach a model.
func (c *Config) AIEnabled() bool {
	return c.GeminiAPIKey != ""
}

// EventsEnabled reports whether ledger events are published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	l, err := applog.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel)
	}
	return l, nil
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
