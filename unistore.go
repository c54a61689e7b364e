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

// Package unistore provides one repository abstraction over two structurally
// different storage engines: a document store (MongoDB) and relational
// databases (postgres, mysql, sqlite). The facade selects the backend
// adapter from configuration; from there, application code performs CRUD,
// pagination, bulk mutation, and transactional work through the same
// repository contract regardless of the engine underneath.
package unistore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unistore-io/unistore/mongodb"
	"github.com/unistore-io/unistore/relational"
	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

// PoolConfig passes pool sizing through to the backend driver; the driver
// owns the pool.
type PoolConfig struct {
	Min              int `yaml:"min" json:"min"`
	Max              int `yaml:"max" json:"max"`
	IdleTimeoutMs    int `yaml:"idle_timeout_ms" json:"idleTimeoutMs"`
	AcquireTimeoutMs int `yaml:"acquire_timeout_ms" json:"acquireTimeoutMs"`
}

// Config selects and configures one backend.
type Config struct {
	// Type is the backend discriminant: mongo, postgres, mysql, or sqlite.
	Type             string     `yaml:"type" json:"type"`
	ConnectionString string     `yaml:"connection_string" json:"connectionString"`
	// Database names the logical database; document backend only.
	Database       string     `yaml:"database" json:"database"`
	Pool           PoolConfig `yaml:"pool" json:"pool"`
	EnableQueryLog bool       `yaml:"enable_query_log" json:"enableQueryLog"`
}

// New constructs the adapter for the configured backend type without
// connecting it. Call Connect on the returned store before use.
func New(cfg *Config) (repository.Store, error) {
	if cfg == nil {
		return nil, types.NewValidationError("config", "configuration cannot be empty")
	}
	switch cfg.Type {
	case "mongo", "mongodb":
		return mongodb.NewAdapter(&mongodb.Config{
			ConnectionString: cfg.ConnectionString,
			Database:         cfg.Database,
			MinPoolSize:      uint64(max(cfg.Pool.Min, 0)),
			MaxPoolSize:      uint64(max(cfg.Pool.Max, 0)),
			MaxConnIdleTime:  time.Duration(cfg.Pool.IdleTimeoutMs) * time.Millisecond,
			ConnectTimeout:   time.Duration(cfg.Pool.AcquireTimeoutMs) * time.Millisecond,
		})
	case "postgres", "postgresql", "mysql", "sqlite", "sqlite3":
		return relational.NewAdapter(&relational.Config{
			Type:             cfg.Type,
			ConnectionString: cfg.ConnectionString,
			MinConns:         cfg.Pool.Min,
			MaxConns:         cfg.Pool.Max,
			IdleTimeout:      time.Duration(cfg.Pool.IdleTimeoutMs) * time.Millisecond,
			AcquireTimeout:   time.Duration(cfg.Pool.AcquireTimeoutMs) * time.Millisecond,
			EnableQueryLog:   cfg.EnableQueryLog,
		})
	default:
		return nil, types.NewValidationError("type", "unsupported backend type %q", cfg.Type)
	}
}

// Open is New followed by Connect.
func Open(ctx context.Context, cfg *Config) (repository.Store, error) {
	store, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadConfig reads a YAML configuration file and applies environment
// overrides (DB_TYPE, DB_CONNECTION_STRING, DB_NAME).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if v := os.Getenv("DB_TYPE"); v != "" {
		cfg.Type = v
	}
	if v := os.Getenv("DB_CONNECTION_STRING"); v != "" {
		cfg.ConnectionString = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database = v
	}
	return &cfg, nil
}
