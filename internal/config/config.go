package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ndewijer/investment-ledger/internal/ledger"
	"github.com/ndewijer/investment-ledger/internal/portfolio"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	CORS       CORSConfig
	Engine     ledger.Config
	Aggregator AggregatorConfig
	Schedule   ScheduleConfig
	Log        LogConfig
	Auth       AuthConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// AggregatorConfig holds the portfolio aggregation options.
type AggregatorConfig struct {
	QuarterLagDays int
	YearLagDays    int
	// Workers bounds how many assets are prepared concurrently.
	Workers int
}

// ScheduleConfig holds the background refresh schedule. An empty Refresh disables it.
type ScheduleConfig struct {
	Refresh string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // json or console
}

// AuthConfig holds the credentials guarding mutating routes.
type AuthConfig struct {
	APIKey       string
	TimeTokenTTL time.Duration
}

// Load reads configuration from environment variables and .env file.
// Malformed numbers and out-of-range engine options are rejected.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var errs []string
	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	floatEnv := func(key string, def float64) float64 {
		v, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/investment_ledger.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Engine: ledger.Config{
			Solver: ledger.Solver{
				MaxIterations: intEnv("SOLVER_MAX_ITERATIONS", ledger.DefaultMaxIterations),
				StepSize:      floatEnv("SOLVER_STEP_SIZE", ledger.DefaultStepSize),
				Tolerance:     floatEnv("SOLVER_TOLERANCE", ledger.DefaultTolerance),
			},
			RoundingDigits: intEnv("LEDGER_ROUNDING_DIGITS", ledger.DefaultRoundingDigits),
		},
		Aggregator: AggregatorConfig{
			QuarterLagDays: intEnv("AGGREGATE_QUARTER_LAG_DAYS", portfolio.DefaultQuarterLagDays),
			YearLagDays:    intEnv("AGGREGATE_YEAR_LAG_DAYS", portfolio.DefaultYearLagDays),
			Workers:        intEnv("AGGREGATE_WORKERS", 4),
		},
		Schedule: ScheduleConfig{
			Refresh: os.Getenv("SCHEDULE_REFRESH"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: os.Getenv("INTERNAL_API_KEY"),
		},
	}
	if _, set := os.LookupEnv("SCHEDULE_REFRESH"); !set {
		config.Schedule.Refresh = "@every 1h"
	}

	ttl, err := time.ParseDuration(getEnv("TIME_TOKEN_TTL", "5m"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("TIME_TOKEN_TTL: %v", err))
	}
	config.Auth.TimeTokenTTL = ttl

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// Validate rejects out-of-range options.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	if c.Aggregator.QuarterLagDays < 0 || c.Aggregator.QuarterLagDays > 92 {
		return fmt.Errorf("invalid configuration: AGGREGATE_QUARTER_LAG_DAYS must be within [0, 92]")
	}
	if c.Aggregator.YearLagDays < 0 || c.Aggregator.YearLagDays > 366 {
		return fmt.Errorf("invalid configuration: AGGREGATE_YEAR_LAG_DAYS must be within [0, 366]")
	}
	if c.Aggregator.Workers < 1 {
		return fmt.Errorf("invalid configuration: AGGREGATE_WORKERS must be at least 1")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid configuration: LOG_FORMAT must be json or console")
	}
	if c.Auth.TimeTokenTTL <= 0 {
		return fmt.Errorf("invalid configuration: TIME_TOKEN_TTL must be positive")
	}
	return nil
}

// AggregateOptions returns the aggregator options for this configuration.
func (c *Config) AggregateOptions() portfolio.Options {
	opts := portfolio.DefaultOptions()
	opts.Solver = c.Engine.Solver
	opts.QuarterLagDays = c.Aggregator.QuarterLagDays
	opts.YearLagDays = c.Aggregator.YearLagDays
	return opts
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
