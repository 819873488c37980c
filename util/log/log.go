// Copyright 2020 - present Alex Dukhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package log is the process-wide structured logger, a thin façade
// over zap. Everything logs through the package-level functions so
// tests can swap the backing logger.
package log

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.SugaredLogger]

func init() {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if os.Getenv("ISOMORPHICDB_VERBOSE") != "" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	logger.Store(l.Sugar())
}

// SetLogger replaces the backing logger, returning the previous one.
// Intended for tests.
func SetLogger(l *zap.SugaredLogger) *zap.SugaredLogger {
	return logger.Swap(l)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	logger.Load().Infof(format, args...)
}

// Warningf logs at warn level.
func Warningf(format string, args ...interface{}) {
	logger.Load().Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	logger.Load().Errorf(format, args...)
}

// Fatalf logs at fatal level and terminates the process.
func Fatalf(format string, args ...interface{}) {
	logger.Load().Fatalf(format, args...)
}

// V reports whether verbose (debug) logging is enabled.
func V() bool {
	return logger.Load().Desugar().Core().Enabled(zapcore.DebugLevel)
}

// Verbosef logs at debug level.
func Verbosef(format string, args ...interface{}) {
	logger.Load().Debugf(format, args...)
}

// Flush forces buffered log entries out. Safe to call at process exit.
func Flush() {
	_ = logger.Load().Sync()
}
