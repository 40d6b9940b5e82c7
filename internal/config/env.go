// Package config loads process configuration from the environment,
// with an optional local .env overlay for development.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnv overlays .env / .env.dev on top of the process environment,
// if present. Missing files are not an error.
func LoadEnv(logger *logrus.Logger) {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("no local env files loaded; relying on process environment")
		return
	}
	logger.Debugf("loaded env files: %s", strings.Join(loaded, ", "))
}

// GetEnv returns the named environment variable, or defaultValue if unset.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt is GetEnv for integers.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvFloat is GetEnv for floating-point values.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// RequireEnv fetches a variable and terminates the process if it is
// unset, for configuration that has no safe default.
func RequireEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		logrus.Fatalf("environment variable %s is required but not set", key)
	}
	return value
}

// GetLogLevel derives the logrus level from LOG_LEVEL.
func GetLogLevel() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
