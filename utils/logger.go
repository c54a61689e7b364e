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

// Package utils holds the shared logrus logger registry. Every component
// gets a named logger with a stable prefix so multi-store processes can tune
// levels per component.
package utils

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is an alias so callers do not import logrus directly.
type Logger = logrus.Logger

var (
	defaultConsoleLevel = logrus.InfoLevel
	loggerRegistryMu    sync.RWMutex
	loggerRegistry      = map[string]*logrus.Logger{}
	consoleLogFormat    = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
)

// EnvDefaultString returns the environment value for key, or fallback when
// unset or blank.
func EnvDefaultString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// EnvDefaultBool returns the environment value for key parsed as a boolean,
// or fallback when unset.
func EnvDefaultBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

type prefixedFormatter struct {
	prefix string
	json   bool
}

func (f *prefixedFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if f.json {
		return (&logrus.JSONFormatter{}).Format(e)
	}
	ts := e.Time.Format("2006-01-02 15:04:05.000")
	return []byte(fmt.Sprintf("%s [%s] %-5s %s\n",
		ts, f.prefix, strings.ToUpper(e.Level.String()), e.Message)), nil
}

// NewLogger returns the registered logger for the prefix, creating it on
// first use. The level comes from LOG_LEVEL unless overridden later via
// SetLoggerLevel.
func NewLogger(prefix string) *logrus.Logger {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()

	if l, ok := loggerRegistry[prefix]; ok {
		return l
	}
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(parseLevel(EnvDefaultString("LOG_LEVEL", ""), defaultConsoleLevel))
	l.SetFormatter(&prefixedFormatter{prefix: prefix, json: consoleLogFormat == "json"})
	loggerRegistry[prefix] = l
	return l
}

// SetLoggerLevel adjusts the level of the named logger, creating the logger
// when it does not exist yet.
func SetLoggerLevel(prefix, level string) {
	l := NewLogger(prefix)
	l.SetLevel(parseLevel(level, defaultConsoleLevel))
}

func parseLevel(s string, fallback logrus.Level) logrus.Level {
	if s == "" {
		return fallback
	}
	lv, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return fallback
	}
	return lv
}
