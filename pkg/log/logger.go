// Copyright The NRI Plugins Authors. All Rights Reserved.
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

// Package log implements the leveled, per-source logger used throughout
// the scheduler core. It is a thin wrapper around the standard library's
// os.Stderr writer, with a global default level and a per-source debug
// override map that can be toggled at runtime via Configure or the
// LOGGER_DEBUG environment variable.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Level is a logging severity.
type Level int

const (
	// LevelDebug is for verbose, source-scoped diagnostic output.
	LevelDebug Level = iota
	// LevelInfo is for routine operational notices.
	LevelInfo
	// LevelWarn is for recoverable anomalies.
	LevelWarn
	// LevelError is for failures that abort the current operation.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarn:
		return "W"
	case LevelError:
		return "E"
	}
	return "?"
}

// Logger is the logging interface handed out to packages.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Error(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(format string, args ...interface{})
	Source() string
	DebugEnabled() bool
}

// logger is the concrete, source-scoped Logger implementation.
type logger struct {
	source string
}

var _ Logger = logger{}

// logging is the package-wide logger state, protected by its mutex.
type logging struct {
	sync.Mutex
	level  Level
	prefix bool
	dbg    srcmap
}

var (
	log    = &logging{level: DefaultLevel}
	deflog = logger{source: "default"}
)

// NewLogger returns a Logger scoped to the given source name. The source
// name is used both in log line prefixes (when enabled) and as the key
// for per-source debug overrides.
func NewLogger(source string) Logger {
	return logger{source: source}
}

// Get is an alias for NewLogger, kept for callers that prefer brevity.
func Get(source string) Logger {
	return NewLogger(source)
}

// Default returns the logger used before any source-specific logger has
// been created, and by the package's own diagnostics.
func Default() Logger {
	return deflog
}

// SetLevel sets the global logging severity threshold.
func SetLevel(l Level) {
	log.Lock()
	defer log.Unlock()
	log.level = l
}

func (log *logging) setDbgMap(m srcmap) {
	log.Lock()
	defer log.Unlock()
	log.dbg = m
}

func (log *logging) setPrefix(on bool) {
	log.Lock()
	defer log.Unlock()
	log.prefix = on
}

func (log *logging) debugEnabled(source string) bool {
	log.Lock()
	defer log.Unlock()
	if log.level == LevelDebug {
		return true
	}
	if log.dbg == nil {
		return false
	}
	if on, ok := log.dbg[source]; ok {
		return on
	}
	if on, ok := log.dbg["*"]; ok {
		return on
	}
	return false
}

func (l logger) Source() string { return l.source }

func (l logger) DebugEnabled() bool {
	return log.debugEnabled(l.source)
}

func (l logger) Debug(format string, args ...interface{}) {
	if l.DebugEnabled() {
		l.emit(LevelDebug, format, args...)
	}
}

func (l logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, format, args...)
}

func (l logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, format, args...)
}

func (l logger) Warnf(format string, args ...interface{}) {
	l.Warn(format, args...)
}

func (l logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, format, args...)
}

func (l logger) Errorf(format string, args ...interface{}) {
	l.Error(format, args...)
}

func (l logger) Fatal(format string, args ...interface{}) {
	l.emit(LevelError, format, args...)
	os.Exit(1)
}

func (l logger) emit(level Level, format string, args ...interface{}) {
	log.Lock()
	skip := level < log.level
	prefix := log.prefix
	log.Unlock()

	if skip {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if prefix {
		fmt.Fprintf(os.Stderr, "%s %s [%s] %s\n",
			time.Now().Format(time.RFC3339Nano), level, l.source, msg)
	} else {
		fmt.Fprintf(os.Stderr, "%s [%s] %s\n", level, l.source, msg)
	}
}

// loggerError formats an error scoped to this package.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("log: "+format, args...)
}
