// Adapted from kraftkit.sh's log package (BSD-3-Clause, Copyright (c)
// 2022 Unikraft GmbH and The KraftKit Authors): the context-scoped logger
// here carries a *logrus.Entry rather than a bare *logrus.Logger, so a
// toolchain descriptor attached once by WithToolchain tags every log call
// beneath it without every call site repeating the field.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

var (
	// G is an alias for FromContext.
	//
	// We may want to define this locally to a package to get package tagged log
	// messages.
	G = FromContext

	// L is the global logger.
	L = logrus.StandardLogger()
)

// contextKey is used to retrieve the logger from the context.
type contextKey struct{}

// WithLogger returns a new context carrying logger, with no fields
// preset.
func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logrus.NewEntry(logger))
}

// FromContext returns the logger set in the context, or an entry over the
// global logger if none was set.
func FromContext(ctx context.Context) *logrus.Entry {
	e, ok := ctx.Value(contextKey{}).(*logrus.Entry)
	if !ok || e == nil {
		return logrus.NewEntry(L)
	}

	return e
}

// WithToolchain returns a context whose logger tags every entry with the
// toolchain descriptor an operation is acting on, so a run touching several
// toolchains (an install driven by ExtraTargets, say) doesn't need every
// log call site along the way to attach it by hand.
func WithToolchain(ctx context.Context, descriptor string) context.Context {
	return context.WithValue(ctx, contextKey{}, FromContext(ctx).WithField("toolchain", descriptor))
}
