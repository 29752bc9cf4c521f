package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	Parser   ParserConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "postgres" or "sqlite"
	URL              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds daemon configuration
type ServerConfig struct {
	GRPCAddr       string
	MetricsAddr    string
	WatchDir       string
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	HeicConverter string
	TessdataDir   string
	Timeout        time.Duration
	CommandTimeout time.Duration
}

// ParserConfig holds extraction engine and persistence defaults
type ParserConfig struct {
	ReviewThreshold float64
	DefaultCurrency string
}

// LoadEnvFile preloads variables from path without overriding ones already
// set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapError(err, "load "+path)
	}
	return nil
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			URL:              getEnv("DB_URL", "file:receipts.db?_pragma=foreign_keys(1)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
			WatchDir:       getEnv("WATCH_DIR", ""),
			Workers:        getEnvAsInt("WORKERS", 4),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		OCR: OCRConfig{
			HeicConverter:  getEnv("HEIC_CONVERTER", "magick"),
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			Timeout:        getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
			CommandTimeout: getEnvAsDuration("OCR_COMMAND_TIMEOUT", 45*time.Second),
		},
		Parser: ParserConfig{
			ReviewThreshold: getEnvAsFloat("REVIEW_THRESHOLD", 0.7),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.URL == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	if t := c.Parser.ReviewThreshold; t <= 0 || t > 1 {
		return NewAppError("CONFIG_ERROR", "REVIEW_THRESHOLD must be in (0, 1]", ErrInvalidInput)
	}
	if CurrencyCode("DEFAULT_CURRENCY", c.Parser.DefaultCurrency) != nil {
		return NewAppError("CONFIG_ERROR", "DEFAULT_CURRENCY must be an ISO 4217 code", ErrInvalidInput)
	}
	return nil
}
