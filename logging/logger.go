// Package logging is the small logging surface the solvers depend on. Solvers
// take a Logger through their options; nothing here is process-wide state.
package logging

import (
	"io"
	"log/slog"
	"os"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal interface used by the solvers
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// SlogAdapter wraps *slog.Logger to implement Logger
type SlogAdapter struct {
	*slog.Logger
}

func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }
func (s *SlogAdapter) Info(msg string, args ...any)  { s.Logger.Info(msg, args...) }
func (s *SlogAdapter) Warn(msg string, args ...any)  { s.Logger.Warn(msg, args...) }
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }
func (s *SlogAdapter) With(args ...any) Logger       { return &SlogAdapter{Logger: s.Logger.With(args...)} }

func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

type Config struct {
	Level  LogLevel
	Format string // json or text
	Output io.Writer
}

// NewSlogLogger builds a text or json slog handler writing to cfg.Output (stderr when nil)
func NewSlogLogger(cfg Config) Logger {
	var (
		out     = cfg.Output
		opts    = &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
		handler slog.Handler
	)
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// Verbose maps the solvers' verbosity flag onto a level
func Verbose(verbose bool) LogLevel {
	if verbose {
		return LogLevelDebug
	}
	return LogLevelInfo
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NoOp discards everything
type NoOp struct{}

func (NoOp) Debug(string, ...any) {}
func (NoOp) Info(string, ...any)  {}
func (NoOp) Warn(string, ...any)  {}
func (NoOp) Error(string, ...any) {}
func (n NoOp) With(...any) Logger { return n }

// OrNoOp lets option structs leave the logger unset
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOp{}
	}
	return l
}
