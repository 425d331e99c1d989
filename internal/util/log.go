package util

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Level is the severity attached to log lines, including the ones the
// coordinator forwards to the UI.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelSuccess:
		return "SUCCESS"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Log writes a message at the given level.
func Log(level Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	switch level {
	case LevelDebug:
		pterm.DefaultLogger.Debug(msg)
	case LevelWarning:
		pterm.DefaultLogger.Warn(msg)
	case LevelError:
		pterm.DefaultLogger.Error(msg)
	default:
		pterm.DefaultLogger.Info(msg)
	}
}

// Leveled logging functions backed by pterm.DefaultLogger (stderr).

func LogDebug(format string, args ...interface{})   { Log(LevelDebug, format, args...) }
func LogInfo(format string, args ...interface{})    { Log(LevelInfo, format, args...) }
func LogSuccess(format string, args ...interface{}) { Log(LevelSuccess, format, args...) }
func LogWarning(format string, args ...interface{}) { Log(LevelWarning, format, args...) }
func LogError(format string, args ...interface{})   { Log(LevelError, format, args...) }

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// SetLogOutput redirects log output, e.g. to io.Discard in tests.
func SetLogOutput(w io.Writer) {
	pterm.DefaultLogger.Writer = w
}
