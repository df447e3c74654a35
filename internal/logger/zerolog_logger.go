// Copyright 2025 Forge Authors
// SPDX-License-Identifier: Apache-2.0
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

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger wraps zerolog for our logging needs
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a new zerolog-based logger
func NewZerologLogger(config *Config) (*ZerologLogger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := parseZerologLevel(config.Level)

	var writer io.Writer
	switch config.Output {
	case "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	case "file":
		if config.FilePath == "" {
			return nil, fmt.Errorf("file_path required when output is 'file'")
		}
		dir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	default:
		writer = os.Stderr
	}

	if config.Format == "text" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
			NoColor:    config.Output == "file",
		}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)

	return &ZerologLogger{logger: logger}, nil
}

// parseZerologLevel converts our LogLevel to zerolog.Level
func parseZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Implementation of our Logger interface

func (l *ZerologLogger) Trace(msg string, fields ...Field) {
	l.addFields(l.logger.Trace(), fields...).Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, fields ...Field) {
	l.addFields(l.logger.Debug(), fields...).Msg(msg)
}

func (l *ZerologLogger) Info(msg string, fields ...Field) {
	l.addFields(l.logger.Info(), fields...).Msg(msg)
}

func (l *ZerologLogger) Warn(msg string, fields ...Field) {
	l.addFields(l.logger.Warn(), fields...).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields ...Field) {
	l.addFields(l.logger.Error(), fields...).Msg(msg)
}

func (l *ZerologLogger) WithFields(fields ...Field) Logger {
	ctx := l.logger.With()
	for _, field := range fields {
		ctx = l.addFieldToContext(ctx, field)
	}
	return &ZerologLogger{logger: ctx.Logger()}
}

func (l *ZerologLogger) WithComponent(component string) Logger {
	return &ZerologLogger{logger: l.logger.With().Str("component", component).Logger()}
}

// addFields adds fields to a zerolog event
func (l *ZerologLogger) addFields(event *zerolog.Event, fields ...Field) *zerolog.Event {
	for _, field := range fields {
		event = l.addFieldToEvent(event, field)
	}
	return event
}

func (l *ZerologLogger) addFieldToEvent(event *zerolog.Event, field Field) *zerolog.Event {
	switch v := field.Value.(type) {
	case string:
		return event.Str(field.Key, v)
	case int:
		return event.Int(field.Key, v)
	case int64:
		return event.Int64(field.Key, v)
	case float64:
		return event.Float64(field.Key, v)
	case bool:
		return event.Bool(field.Key, v)
	case error:
		return event.Err(v)
	case time.Duration:
		return event.Dur(field.Key, v)
	case time.Time:
		return event.Time(field.Key, v)
	default:
		return event.Interface(field.Key, v)
	}
}

func (l *ZerologLogger) addFieldToContext(ctx zerolog.Context, field Field) zerolog.Context {
	switch v := field.Value.(type) {
	case string:
		return ctx.Str(field.Key, v)
	case int:
		return ctx.Int(field.Key, v)
	case int64:
		return ctx.Int64(field.Key, v)
	case float64:
		return ctx.Float64(field.Key, v)
	case bool:
		return ctx.Bool(field.Key, v)
	case error:
		return ctx.Err(v)
	case time.Duration:
		return ctx.Dur(field.Key, v)
	case time.Time:
		return ctx.Time(field.Key, v)
	default:
		return ctx.Interface(field.Key, v)
	}
}
