package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"dmriqc/internal/errors"
)

// Collision policies applied when two inputs resolve to the same subject key
const (
	CollisionError         = "error"
	CollisionLastWriteWins = "last-write-wins"
)

// Default values used when neither flags nor environment override them
const (
	DefaultWorkers      = 1
	DefaultStdThreshold = 2.0
	DefaultCollision    = CollisionError
)

// Config holds the settings shared by every report generator
type Config struct {
	Workers      int     `validate:"min=1"`
	StdThreshold float64 `validate:"gt=0"`
	OnCollision  string  `validate:"oneof=error last-write-wins"`
	WriteXLSX    bool
	LogLevel     string `validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Workers:      getEnvIntOrDefault("QC_NB_THREADS", DefaultWorkers),
		StdThreshold: getEnvFloatOrDefault("QC_STD_THRESHOLD", DefaultStdThreshold),
		OnCollision:  strings.ToLower(getEnvOrDefault("QC_ON_COLLISION", DefaultCollision)),
		WriteXLSX:    getEnvBoolOrDefault("QC_XLSX", false),
		LogLevel:     strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ConfigInvalid(err.Error()), "configuration validation failed")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
