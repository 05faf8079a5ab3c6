// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultDataDir  = "./qusic-data"
	DefaultStore    = "file"
	DefaultLogLevel = "info"
	DefaultHTTPAddr = ":8077"
)

// Config holds application configuration
type Config struct {
	DataDir   string
	Store     string
	DBPath    string
	LogLevel  string
	LogPretty bool
	HTTPAddr  string
}

// Load reads .env files (if present) then the environment. Variables already
// set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else {
		for _, file := range envFiles {
			if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("load %s: %w", file, err)
			}
		}
	}

	cfg := &Config{
		DataDir:   getEnv("QUSIC_DATA_DIR", DefaultDataDir),
		Store:     strings.ToLower(getEnv("QUSIC_STORE", DefaultStore)),
		DBPath:    getEnv("QUSIC_DB_PATH", ""),
		LogLevel:  getEnv("QUSIC_LOG_LEVEL", DefaultLogLevel),
		LogPretty: getEnvAsBool("QUSIC_LOG_PRETTY", false),
		HTTPAddr:  getEnv("QUSIC_HTTP_ADDR", DefaultHTTPAddr),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Store {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("QUSIC_STORE must be memory, file or sqlite, got %q", c.Store)
	}
	if c.Store != "memory" && strings.TrimSpace(c.DataDir) == "" && c.DBPath == "" {
		return fmt.Errorf("QUSIC_DATA_DIR is required for the %s store", c.Store)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("QUSIC_HTTP_ADDR is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
