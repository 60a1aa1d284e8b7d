// Package config loads server settings from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	Port         string
	DatabaseURL  string
	AuthTokenKey []byte
	CORSOrigins  []string

	// OperatorIDs may start and stop the warning monitor.
	OperatorIDs []string

	MonitorInterval  time.Duration
	MonitorAutostart bool
	DedupeWindow     time.Duration
	PushGatewayURL   string
	PushGatewayKey   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel slog.Level
}

// Load reads the environment. AUTH_TOKEN_KEY is only required when
// requireAuthKey is set, so tools that never validate tokens can share it.
func Load(requireAuthKey bool) (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", "postgres://babytracker:@localhost:5432/babytracker?sslmode=disable"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "*")),
		OperatorIDs:      splitList(getEnv("OPERATOR_USER_IDS", "")),
		MonitorInterval:  getEnvDuration("MONITOR_INTERVAL", 60*time.Second),
		MonitorAutostart: getEnvBool("MONITOR_AUTOSTART", true),
		DedupeWindow:     getEnvDuration("NOTIFICATION_DEDUPE_WINDOW", 60*time.Minute),
		PushGatewayURL:   getEnv("PUSH_GATEWAY_URL", ""),
		PushGatewayKey:   getEnv("PUSH_GATEWAY_KEY", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		LogLevel:         parseLevel(getEnv("LOG_LEVEL", "info")),
	}

	authTokenKey := getEnv("AUTH_TOKEN_KEY", "")
	if authTokenKey == "" {
		if requireAuthKey {
			return nil, errors.New("AUTH_TOKEN_KEY environment variable is required")
		}
		return cfg, nil
	}

	key, err := base64.StdEncoding.DecodeString(authTokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode AUTH_TOKEN_KEY: %w", err)
	}
	cfg.AuthTokenKey = key
	return cfg, nil
}

// AllowedOrigin is the single origin websocket upgrades are checked against.
func (c *Config) AllowedOrigin() string {
	if len(c.CORSOrigins) == 1 {
		return c.CORSOrigins[0]
	}
	return "*"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
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

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
