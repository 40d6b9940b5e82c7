// Package logging provides the structured logger shared by every
// wattkeeper component.
package logging

import (
	"github.com/sirupsen/logrus"

	"frameworks/api_wattmeter/internal/config"
)

// Logger is the logger surface every package accepts and stores. It is
// satisfied by both *logrus.Logger and the *logrus.Entry returned from
// WithField/WithFields, so call sites can thread a request-scoped
// entry through without a second parameter type.
type Logger = logrus.FieldLogger

// Fields is a structured logging field set.
type Fields = logrus.Fields

// NewLogger creates a JSON-formatted logger at the level configured
// via LOG_LEVEL.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.GetLogLevel())
	return logger
}

// NewLoggerWithService returns a logger configured as NewLogger does.
// The service name is not attached to the returned logger's entries:
// the "service" field is set on an intermediate *logrus.Entry, and only
// that entry's underlying *logrus.Logger is returned.
func NewLoggerWithService(service string) *logrus.Logger {
	logger := NewLogger()
	return logger.WithField("service", service).Logger
}
