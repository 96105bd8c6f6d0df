// Package config loads bridge-host configuration from environment variables
// (with optional .env file) and the YAML module policy.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bridge host daemon.
type Config struct {
	// Admin API
	BindAddr string

	// Logging
	LogLevel string
	LogFile  string

	// Bridge behavior
	DefaultTimeoutMS int
	RootURL          string
	RootTitle        string
	ModulePolicyPath string

	// Surface backend: "cdp" drives Chromium pages, "ws" trusts an external
	// embedder that dials in over WebSocket.
	Mode       string
	CDPAddress string
	CDPPort    int
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:         getEnvOrDefault("BRIDGE_BIND_ADDR", "127.0.0.1:8420"),
		LogLevel:         strings.ToLower(getEnvOrDefault("BRIDGE_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("BRIDGE_LOG_FILE", "logs/bridge_host.log"),
		DefaultTimeoutMS: getEnvIntOrDefault("BRIDGE_DEFAULT_TIMEOUT_MS", 30000),
		RootURL:          getEnvOrDefault("BRIDGE_ROOT_URL", "about:blank"),
		RootTitle:        getEnvOrDefault("BRIDGE_ROOT_TITLE", "root"),
		ModulePolicyPath: getEnvOrDefault("BRIDGE_MODULE_POLICY", ""),
		Mode:             strings.ToLower(getEnvOrDefault("BRIDGE_MODE", "cdp")),
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
	}
	if cfg.DefaultTimeoutMS < 1000 {
		cfg.DefaultTimeoutMS = 1000
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the remote allocator.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
