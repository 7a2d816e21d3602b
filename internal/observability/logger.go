package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds the process logger from configuration. Unknown levels
// fall back to info rather than failing startup.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat
	if zerolog.TimeFieldFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	return ctx.Logger().Level(level)
}

// parseLevel maps a config string onto a zerolog level, defaulting to info.
// zerolog.ParseLevel rejects "warning" and the empty string, both of which
// appear in real configs, so the aliases are handled here.
func parseLevel(level string) zerolog.Level {
	l := strings.ToLower(level)
	if l == "warning" {
		return zerolog.WarnLevel
	}
	parsed, err := zerolog.ParseLevel(l)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// WithPipelineContext adds the workflow and stage fields every pipeline log
// line carries.
func WithPipelineContext(logger zerolog.Logger, workflowID, stage string) zerolog.Logger {
	return logger.With().
		Str("workflow_id", workflowID).
		Str("stage", stage).
		Logger()
}
