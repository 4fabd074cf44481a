package services

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// ProductionLogger writes structured entries through zerolog.
type ProductionLogger struct {
	logger zerolog.Logger
}

// NewProductionLogger creates a logger that tags every entry with service.
// structured selects JSON output; otherwise entries are formatted for a
// terminal.
func NewProductionLogger(w io.Writer, service string, level zerolog.Level, structured bool) *ProductionLogger {
	if !structured {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return &ProductionLogger{
		logger: zerolog.New(w).Level(level).With().Timestamp().Str("service", service).Logger(),
	}
}

// With returns a child logger that adds keysAndValues to every entry.
func (p *ProductionLogger) With(keysAndValues ...interface{}) *ProductionLogger {
	return &ProductionLogger{logger: p.logger.With().Fields(keysAndValues).Logger()}
}

func (p *ProductionLogger) Info(msg string, keysAndValues ...interface{}) {
	p.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (p *ProductionLogger) Error(msg string, keysAndValues ...interface{}) {
	p.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (p *ProductionLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (p *ProductionLogger) Warn(msg string, keysAndValues ...interface{}) {
	p.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}

// ParseLevel maps LOG_LEVEL values onto zerolog levels, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Environment-based logger factory
func NewLogger(service, level, env string) Logger {
	if os.Getenv("GO_ENV") == "test" {
		return &NoOpLogger{}
	}
	return NewProductionLogger(os.Stdout, service, ParseLevel(level), strings.EqualFold(env, "production"))
}
