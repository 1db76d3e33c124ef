package logger

import (
	"github.com/fatih/color" // Import the fatih/color package for colored console output
)

// Define colorized printing functions for different log levels using fatih/color.
// These are package-level variables holding functions that behave like fmt.Printf,
// but with text colored appropriately for the log level.

// Info logs informational messages in green color.
// Used for progress of an install: probing, resolving, downloading, placing.
var Info = color.New(color.FgGreen).PrintfFunc()

// Warn logs warning messages in bright magenta color.
// Used for recoverable conditions such as a retried download or a bin dir missing from PATH.
var Warn = color.New(color.FgHiMagenta).PrintfFunc()

// Error logs error messages in red color.
// Used when an install step fails and the outcome carries an error kind.
var Error = color.New(color.FgRed).PrintfFunc()

// Debug logs debug messages in cyan color if enabled, otherwise is a no-op.
// It starts out as a no-op so packages can log before Init runs (tests, early config loading).
var Debug = func(format string, a ...any) {}

// debugEnabled mirrors the last value passed to Init.
var debugEnabled bool

// Init initializes the logger package, specifically enabling or disabling debug logging.
// Parameters:
// - enableDebug: boolean flag to turn debug messages on or off.
// When enabled, Debug will print messages in cyan color.
// When disabled, Debug will be a no-op function that silently ignores debug logs.
func Init(enableDebug bool) {
	debugEnabled = enableDebug
	if enableDebug {
		Debug = color.New(color.FgCyan).PrintfFunc()
	} else {
		Debug = func(format string, a ...any) {}
	}
}

// DebugEnabled reports whether debug output is switched on.
// Placers use it to decide whether to stream child process output verbatim.
func DebugEnabled() bool {
	return debugEnabled
}
