// Package logger provides structured logging for docdeps
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with docdeps-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for terminals
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a level name onto a zerolog level, defaulting to info
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger.
// Output defaults to stderr; stdout carries the dependency listing.
func NewLogger(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "docdeps").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// GrpcLogger returns a logger scoped to one RPC. fullMethod is the
// "/package.Service/Method" path gRPC reports.
func (l *Logger) GrpcLogger(fullMethod string) *Logger {
	service, method := fullMethod, ""
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		service, method = strings.TrimPrefix(fullMethod[:i], "/"), fullMethod[i+1:]
	}
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "grpc").
			Str("grpc_service", service).
			Str("grpc_method", method).
			Logger(),
	}
}

// CorpusLogger returns a logger for corpus loading and reloads
func (l *Logger) CorpusLogger(path string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "corpus").
			Str("path", path).
			Logger(),
	}
}

// ResolverLogger returns a logger scoped to one resolution
func (l *Logger) ResolverLogger(seed string, category string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "resolver").
			Str("seed", seed).
			Str("category", category).
			Logger(),
	}
}

// LogGrpcRequest logs a finished RPC on a GrpcLogger
func (l *Logger) LogGrpcRequest(duration time.Duration, err error) {
	if err != nil {
		l.zlog.Error().Dur("duration_ms", duration).Err(err).Msg("gRPC request failed")
		return
	}
	l.zlog.Debug().Dur("duration_ms", duration).Msg("gRPC request completed")
}

// LogCorpusLoad logs a corpus load or reload
func (l *Logger) LogCorpusLoad(path string, duration time.Duration, docCount int, err error) {
	event := l.zlog.Debug().
		Str("component", "corpus").
		Str("path", path).
		Dur("duration_ms", duration).
		Int("document_count", docCount)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "corpus").
			Str("path", path).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("Corpus load completed")
}

// LogResolution logs a completed resolution
func (l *Logger) LogResolution(seed, category string, duration time.Duration, depCount int, err error) {
	event := l.zlog.Debug().
		Str("component", "resolver").
		Str("seed", seed).
		Str("category", category).
		Dur("duration_ms", duration).
		Int("dependency_count", depCount)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "resolver").
			Str("seed", seed).
			Str("category", category).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("Resolution completed")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port int, corpusPath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Str("corpus", corpusPath).
		Msg("docdeps server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("docdeps server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("docdeps server shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
