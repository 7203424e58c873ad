// Adapted from kraftkit.sh's log package (BSD-3-Clause, Copyright (c)
// 2022 Unikraft GmbH and The KraftKit Authors).
package log

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggerType controls how log statements are output
type LoggerType uint

// Logger types
const (
	QUIET LoggerType = iota
	BASIC
	FANCY
	JSON
)

func LoggerTypeFromString(name string) LoggerType {
	name = strings.ToLower(name)
	switch name {
	case "quiet":
		return QUIET
	case "basic":
		return BASIC
	case "fancy":
		return FANCY
	case "json":
		return JSON
	default:
		return BASIC
	}
}

func LoggerTypeToString(t LoggerType) string {
	switch t {
	case QUIET:
		return "quiet"
	case BASIC:
		return "basic"
	case FANCY:
		return "fancy"
	case JSON:
		return "json"
	default:
		return "basic"
	}
}

// Configure sets logger's output and formatter for t, the way the
// -log-format flag (toolup-init) and TOOLUP_LOG_FORMAT (toolup) select
// between a quiet proxy invocation, a plain pipe-friendly log, a
// TTY-colored one, or machine-readable JSON.
func Configure(logger *logrus.Logger, t LoggerType) {
	switch t {
	case QUIET:
		logger.SetOutput(io.Discard)
	case JSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	case FANCY:
		logger.SetFormatter(&TextFormatter{ForceFormatting: true})
	default:
		logger.SetFormatter(&TextFormatter{})
	}
}
