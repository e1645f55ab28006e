package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/INDA25PlusPlus/nhg-net/internal/transport"
)

type Config struct {
	// Peer
	PeerRole    string        `env:"PEER_ROLE" default:"listen"`
	PeerAddr    string        `env:"PEER_ADDR" default:"127.0.0.1:6969"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" default:"10s"`

	// Inbound frame limiter
	FrameRateLimit float64 `env:"FRAME_RATE_LIMIT" default:"10"`
	FrameRateBurst int     `env:"FRAME_RATE_BURST" default:"20"`

	// Bridge
	DirectApply        bool `env:"DIRECT_APPLY" default:"false"` // apply inbound moves on the receive goroutine, no inbound queue
	QueueHighWatermark int  `env:"QUEUE_HIGH_WATERMARK" default:"64"`

	// Optional history (empty = disabled)
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Optional status server (empty = disabled)
	StatusAddr string `env:"STATUS_ADDR"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// a missing .env is fine, system env vars still apply
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env file: %v\n", err)
	}

	config := &Config{}

	// Peer
	if err := loadEnvString(&config.PeerRole, "PEER_ROLE", "listen"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.PeerAddr, "PEER_ADDR", "127.0.0.1:6969"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.DialTimeout, "DIAL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	// Limiter
	if err := loadEnvFloat(&config.FrameRateLimit, "FRAME_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.FrameRateBurst, "FRAME_RATE_BURST", 20); err != nil {
		return nil, err
	}

	// Bridge
	if err := loadEnvBool(&config.DirectApply, "DIRECT_APPLY", false); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.QueueHighWatermark, "QUEUE_HIGH_WATERMARK", 64); err != nil {
		return nil, err
	}

	// History
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}

	// Status
	if err := loadEnvString(&config.StatusAddr, "STATUS_ADDR", ""); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	// same names the command line accepts, aliases included
	if _, err := transport.ParseRole(c.PeerRole); err != nil {
		errors = append(errors, fmt.Sprintf("PEER_ROLE must be listen or connect: %v", err))
	}
	if _, _, err := net.SplitHostPort(c.PeerAddr); err != nil {
		errors = append(errors, fmt.Sprintf("PEER_ADDR must be host:port: %v", err))
	}
	if c.DialTimeout < 0 {
		errors = append(errors, "DIAL_TIMEOUT must not be negative")
	}
	if c.FrameRateLimit > 0 && c.FrameRateBurst < 1 {
		errors = append(errors, "FRAME_RATE_BURST must be at least 1 when FRAME_RATE_LIMIT is set")
	}
	if c.QueueHighWatermark < 1 {
		errors = append(errors, "QUEUE_HIGH_WATERMARK must be at least 1")
	}
	if c.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(c.StatusAddr); err != nil {
			errors = append(errors, fmt.Sprintf("STATUS_ADDR must be host:port: %v", err))
		}
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, info when unknown
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HistoryEnabled is true when any external move log is configured
func (c *Config) HistoryEnabled() bool {
	return c.RedisURL != "" || c.DatabaseURL != ""
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
