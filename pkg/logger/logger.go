// Copyright 2025 PackWatch Authors
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

// Package logger provides structured logging for all PackWatch components,
// backed by logrus with a JSON formatter.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields represents a map of structured logging fields
type Fields map[string]any

// Logger is the logging interface shared by all components
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(msg string, fields ...Fields)
	Fatal(msg string, fields ...Fields)

	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger

	SetLevel(level string)
}

type logrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

var (
	globalLogger *logrusLogger
	once         sync.Once
)

// Init initializes the global logger instance. Level and format can be
// overridden through PACKWATCH_LOG_LEVEL and PACKWATCH_LOG_FORMAT.
func Init() {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})

		if level := os.Getenv("PACKWATCH_LOG_LEVEL"); level != "" {
			if parsed, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
				l.SetLevel(parsed)
			}
		}
		if format := os.Getenv("PACKWATCH_LOG_FORMAT"); strings.EqualFold(format, "text") {
			l.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05.000",
			})
		}

		globalLogger = &logrusLogger{
			logger: l,
			entry:  logrus.NewEntry(l),
		}
	})
}

// GetLogger returns the global logger instance
func GetLogger() Logger {
	if globalLogger == nil {
		Init()
	}
	return globalLogger
}

// SetLevel changes the global log level at runtime, used by config hot reload
func SetLevel(level string) {
	GetLogger().SetLevel(level)
}

func (l *logrusLogger) log(level logrus.Level, msg string, fields []Fields) {
	entry := l.entry
	for _, f := range fields {
		entry = entry.WithFields(logrus.Fields(f))
	}
	entry.Log(level, msg)
}

func (l *logrusLogger) Debug(msg string, fields ...Fields) {
	l.log(logrus.DebugLevel, msg, fields)
}

func (l *logrusLogger) Info(msg string, fields ...Fields) {
	l.log(logrus.InfoLevel, msg, fields)
}

func (l *logrusLogger) Warn(msg string, fields ...Fields) {
	l.log(logrus.WarnLevel, msg, fields)
}

func (l *logrusLogger) Error(msg string, fields ...Fields) {
	l.log(logrus.ErrorLevel, msg, fields)
}

func (l *logrusLogger) Fatal(msg string, fields ...Fields) {
	entry := l.entry
	for _, f := range fields {
		entry = entry.WithFields(logrus.Fields(f))
	}
	entry.Fatal(msg)
}

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{
		logger: l.logger,
		entry:  l.entry.WithField(key, value),
	}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{
		logger: l.logger,
		entry:  l.entry.WithFields(logrus.Fields(fields)),
	}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{
		logger: l.logger,
		entry:  l.entry.WithError(err),
	}
}

func (l *logrusLogger) SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.logger.SetLevel(parsed)
}
