package outcome

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// LevelCritical sits above [slog.LevelError] the way CRITICAL sits above ERROR
// in the server's logging module.
const LevelCritical = slog.LevelError + 4

// ErrUnknownLevel is returned for a level name that is not recognized.
var ErrUnknownLevel = errors.New("unknown log level")

// ParseLevel maps a record level name onto a [slog.Level], case-insensitively.
// DEBUG, INFO, WARNING/WARN, ERROR, and CRITICAL/FATAL are recognized.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
}

// LevelName returns the record level name for lvl.
func LevelName(lvl slog.Level) string {
	switch {
	case lvl >= LevelCritical:
		return "CRITICAL"
	case lvl >= slog.LevelError:
		return "ERROR"
	case lvl >= slog.LevelWarn:
		return "WARNING"
	case lvl >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
