package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string

	// JWTSecret verifies bearer tokens issued by the staff-management system.
	JWTSecret string

	// AuditQueueSize bounds the in-flight audit entries awaiting persistence.
	AuditQueueSize int

	// AuditRetentionDays sets the default TTL applied to new audit entries.
	AuditRetentionDays int

	// AlertURLs are shoutrrr destinations notified on critical audit entries.
	AlertURLs []string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:        getEnv("SD_ENV", "development"),
		HTTPPort:           getEnv("SD_HTTP_PORT", "8080"),
		DatabasePath:       getEnv("SD_DB_PATH", filepath.Join("data", "staffdeck.db")),
		JWTSecret:          getEnv("SD_JWT_SECRET", ""),
		AuditQueueSize:     getEnvInt("SD_AUDIT_QUEUE_SIZE", 1024),
		AuditRetentionDays: getEnvInt("SD_AUDIT_RETENTION_DAYS", 365),
		AlertURLs:          getEnvList("SD_ALERT_URLS"),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}

	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
