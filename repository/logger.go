/*
 * Copyright 2026 unistore-io.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"fmt"

	"github.com/unistore-io/unistore/utils"
)

// Logger is the minimal leveled logging contract the adapters depend on.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// NewLogger returns the default Logger for the given component name, backed
// by the shared logrus registry.
func NewLogger(name string) Logger {
	return &defaultLogger{logger: utils.NewLogger(name)}
}

type defaultLogger struct {
	logger *utils.Logger
}

func (l *defaultLogger) Debug(msg string, fields ...any) { l.logger.Debug(msg + formatFields(fields)) }
func (l *defaultLogger) Info(msg string, fields ...any)  { l.logger.Info(msg + formatFields(fields)) }
func (l *defaultLogger) Warn(msg string, fields ...any)  { l.logger.Warn(msg + formatFields(fields)) }
func (l *defaultLogger) Error(msg string, fields ...any) { l.logger.Error(msg + formatFields(fields)) }

func formatFields(fields []any) string {
	if len(fields) == 0 {
		return ""
	}
	out := " "
	for i := 0; i+1 < len(fields); i += 2 {
		out += fmt.Sprintf("%v=%v ", fields[i], fields[i+1])
	}
	return out
}
