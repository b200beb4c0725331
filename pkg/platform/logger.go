// Package platform holds process-wide plumbing shared by the CLI and the
// HTTP server: logging setup, environment lookup and API key checks.
package platform

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFormat selects the log encoding.
type LogFormat string

const (
	LogFormatConsole LogFormat = "console"
	LogFormatJSON    LogFormat = "json"
)

// InitLogger configures the global zerolog logger to write to w, normally
// stderr so stdout stays free for command output.
func InitLogger(w io.Writer, level string, format LogFormat) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	out := w
	switch format {
	case LogFormatConsole, "":
		out = zerolog.ConsoleWriter{Out: w}
	case LogFormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	log.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return log.Logger, nil
}

// ParseLogLevel maps a level name onto zerolog; empty means info.
func ParseLogLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}
