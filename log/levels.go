// Adapted from kraftkit.sh's log package (BSD-3-Clause, Copyright (c)
// 2022 Unikraft GmbH and The KraftKit Authors).
package log

import "github.com/sirupsen/logrus"

// Levels returns a map of log level string names to their constant equivalent.
func Levels() map[string]logrus.Level {
	return map[string]logrus.Level{
		"panic":   logrus.PanicLevel,
		"fatal":   logrus.FatalLevel,
		"error":   logrus.ErrorLevel,
		"warning": logrus.WarnLevel,
		"warn":    logrus.WarnLevel,
		"info":    logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"trace":   logrus.TraceLevel,
	}
}

// ParseLevel resolves name (case-sensitive, as accepted by the -log-level
// flag and the TOOLUP_LOG environment variable) against Levels, reporting
// whether it matched.
func ParseLevel(name string) (logrus.Level, bool) {
	level, ok := Levels()[name]
	return level, ok
}
