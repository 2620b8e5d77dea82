package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	DataBackend  string
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Evaluation
	EvaluationMode   string
	BudgetMonthMatch string

	// Auth
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string

	// Analytics cache
	AnalyticsCacheSize int
	AnalyticsCacheTTL  time.Duration

	RateLimitPerMinute   int
	IPRateLimitPerMinute int

	// Worker
	MetricsPort string

	// Google Sheets report export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

var (
	validBackends    = []string{"memory", "sqlite"}
	validModes       = []string{"inline", "queue"}
	validMonthMatch  = []string{"exact", "floor"}
	validLogLevels   = []string{"debug", "info", "warn", "error"}
	validLogFormats  = []string{"text", "json", "tint"}
	minJWTSecretSize = 16
)

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetwatch.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetwatch"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_evaluations"),

		EvaluationMode:   getEnv("EVALUATION_MODE", "inline"),
		BudgetMonthMatch: getEnv("BUDGET_MONTH_MATCH", "exact"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		AnalyticsCacheSize: getEnvInt("ANALYTICS_CACHE_SIZE", 256),
		AnalyticsCacheTTL:  getEnvDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),

		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		IPRateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_IP_PER_MINUTE", 300),

		MetricsPort: getEnv("METRICS_PORT", "9091"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}

	return cfg
}

// SheetsEnabled reports whether Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate checks the configuration of the API server.
func (c *Config) Validate() error {
	errors := c.validateShared()
	errors = append(errors, validatePort("port", c.Port)...)

	if len(c.JWTSecret) < minJWTSecretSize {
		errors = append(errors, fmt.Sprintf("JWT secret must be at least %d characters", minJWTSecretSize))
	}

	if c.AnalyticsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid analytics cache size %d: must be at least 1", c.AnalyticsCacheSize))
	}
	if c.AnalyticsCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid analytics cache TTL %v: must be at least 1 second", c.AnalyticsCacheTTL))
	} else if c.AnalyticsCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid analytics cache TTL %v: must be at most 24 hours", c.AnalyticsCacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.IPRateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid per-IP rate limit %d: must be at least 1 request per minute", c.IPRateLimitPerMinute))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	return joinErrors(errors)
}

// ValidateWorker checks the configuration of the evaluation worker. The
// worker verifies no tokens and serves no API, but needs the queue and a
// store shared with the server.
func (c *Config) ValidateWorker() error {
	errors := c.validateShared()
	errors = append(errors, validatePort("metrics port", c.MetricsPort)...)

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required to run the evaluation worker")
	}
	if c.DataBackend != "sqlite" {
		errors = append(errors, fmt.Sprintf("data backend '%s' is not shared across processes: the worker needs 'sqlite'", c.DataBackend))
	}

	return joinErrors(errors)
}

func (c *Config) validateShared() []string {
	var errors []string

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
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

	if !slices.Contains(validModes, c.EvaluationMode) {
		errors = append(errors, fmt.Sprintf("invalid evaluation mode '%s': must be one of %v", c.EvaluationMode, validModes))
	} else if c.EvaluationMode == "queue" && c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required when evaluation mode is 'queue'")
	}

	if !slices.Contains(validMonthMatch, c.BudgetMonthMatch) {
		errors = append(errors, fmt.Sprintf("invalid budget month match '%s': must be one of %v", c.BudgetMonthMatch, validMonthMatch))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	return errors
}

func validatePort(name, value string) []string {
	port, err := strconv.Atoi(value)
	if err != nil {
		return []string{fmt.Sprintf("invalid %s '%s': must be a number", name, value)}
	}
	if port < 1 || port > 65535 {
		return []string{fmt.Sprintf("invalid %s %d: must be between 1 and 65535", name, port)}
	}
	return nil
}

func joinErrors(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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
