// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2022, Unikraft GmbH and The KraftKit Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package notify carries the single-consumer event sink that every core
// subsystem reports through, adapted from the teacher's context-scoped
// logger pattern (kraftkit.sh/log) and grounded on the event taxonomy of
// rust-install's notify.rs / dist/notifications.rs / utils/notifications.rs.
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"toolup.sh/log"
)

// Level mirrors the teacher's logrus levels rather than introducing a
// parallel enum; Event.Level() maps directly onto them.
type Level = logrus.Level

// Event is the sum type over every notification a core subsystem can raise.
// Implementations are unexported marker methods so that only this package's
// concrete event types satisfy the interface.
type Event interface {
	fmt.Stringer
	Level() Level
	event()
}

// Sink is the single-consumer callback every subsystem accepts. A nil Sink
// is valid and simply discards events.
type Sink func(Event)

// Emit calls sink if it is non-nil.
func (s Sink) Emit(e Event) {
	if s != nil {
		s(e)
	}
}

// ToLogger adapts a Sink to also mirror each event into the context logger
// at the event's own level, the way the teacher's archive/manifest packages
// log through log.G(ctx) directly rather than a separate event bus.
func ToLogger(ctx context.Context, next Sink) Sink {
	logger := log.G(ctx)
	return func(e Event) {
		entry := logger.WithField("event", fmt.Sprintf("%T", e))
		switch e.Level() {
		case logrus.TraceLevel:
			entry.Trace(e.String())
		case logrus.DebugLevel:
			entry.Debug(e.String())
		case logrus.WarnLevel:
			entry.Warn(e.String())
		case logrus.ErrorLevel:
			entry.Error(e.String())
		default:
			entry.Info(e.String())
		}
		next.Emit(e)
	}
}
