// Copyright 2024 Rational Boxes
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log wraps zerolog behind a small Logger type so the engine
// never imports zerolog directly outside this package. The process
// builds one Logger with New (or Nop in tests) and hands it to the tenant
// manager, which derives a child Logger bound with a "tenant" field for
// each tenant's components.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the logging sink threaded through every component.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing to w in console (dev) or JSON (prod) mode.
func New(w io.Writer, mode string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	out := w
	if mode != "json" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	zl := zerolog.New(out).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards everything, for tests that don't
// care about log output.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child Logger tagged with an additional string field,
// e.g. l.With("component", "fsengine").With("tenant", "acme").
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Info logs an informational event with optional key/value pairs
// (alternating string key, string value).
func (l *Logger) Info(msg string, kv ...string) {
	l.event(l.zl.Info(), msg, kv)
}

// Warn logs a warning event.
func (l *Logger) Warn(msg string, kv ...string) {
	l.event(l.zl.Warn(), msg, kv)
}

// Error logs an error, attaching err under the "error" field.
func (l *Logger) Error(err error, msg string, kv ...string) {
	ev := l.zl.Error()
	if err != nil {
		ev = ev.Str("error", err.Error())
	}
	l.event(ev, msg, kv)
}

func (l *Logger) event(ev *zerolog.Event, msg string, kv []string) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Str(kv[i], kv[i+1])
	}
	ev.Msg(msg)
}
