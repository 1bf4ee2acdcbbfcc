// SPDX-License-Identifier: MPL-2.0

// Package logging holds the process-wide logger used by discovery and
// dispatch. The --debug flag raises the level and enables caller reporting.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: false,
	Level:           log.WarnLevel,
	Prefix:          "krail",
})

// SetDebug switches the global log level between warn and debug.
func SetDebug(enabled bool) {
	if enabled {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	} else {
		logger.SetLevel(log.WarnLevel)
		logger.SetReportCaller(false)
	}
}

// Logger returns the shared logger.
func Logger() *log.Logger {
	return logger
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Warnf logs a formatted warning.
func Warnf(format string, args ...any) {
	logger.Warnf(format, args...)
}
