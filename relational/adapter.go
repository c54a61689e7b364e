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

package relational

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

const healthCheckTimeout = 5 * time.Second

// Config describes the SQL connection and pool tuning. The driver owns the
// pool; these values are passed through to database/sql untouched.
type Config struct {
	Type             string        `yaml:"type" json:"type"` // postgres, mysql, sqlite
	ConnectionString string        `yaml:"connection_string" json:"connection_string"`
	MinConns         int           `yaml:"min_conns" json:"min_conns"`
	MaxConns         int           `yaml:"max_conns" json:"max_conns"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	EnableQueryLog   bool          `yaml:"enable_query_log" json:"enable_query_log"`
	SlowQueryTime    time.Duration `yaml:"slow_query_time" json:"slow_query_time"`
}

func defaultConfig() *Config {
	return &Config{
		MinConns:        2,
		MaxConns:        20,
		IdleTimeout:     time.Minute * 30,
		AcquireTimeout:  time.Second * 10,
		ConnMaxLifetime: time.Hour,
	}
}

// Adapter owns one SQL connection pool and hands out repositories and
// transactions bound to it. It implements repository.Store.
type Adapter struct {
	config *Config
	logger repository.Logger

	mu        sync.RWMutex
	db        *bun.DB
	sqlDB     *sql.DB
	connected bool
	lastError error
}

// NewAdapter validates the configuration and returns an unconnected adapter.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, types.NewValidationError("config", "relational configuration cannot be empty")
	}
	switch cfg.Type {
	case "postgres", "postgresql", "mysql", "sqlite", "sqlite3":
	default:
		return nil, types.NewValidationError("type", "unsupported relational backend type %q", cfg.Type)
	}
	merged := *defaultConfig()
	merged.Type = cfg.Type
	merged.ConnectionString = cfg.ConnectionString
	merged.EnableQueryLog = cfg.EnableQueryLog
	if cfg.MinConns > 0 {
		merged.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		merged.MaxConns = cfg.MaxConns
	}
	if cfg.IdleTimeout > 0 {
		merged.IdleTimeout = cfg.IdleTimeout
	}
	if cfg.AcquireTimeout > 0 {
		merged.AcquireTimeout = cfg.AcquireTimeout
	}
	if cfg.ConnMaxLifetime > 0 {
		merged.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.SlowQueryTime > 0 {
		merged.SlowQueryTime = cfg.SlowQueryTime
	}
	overrideFromEnv(&merged)

	if merged.ConnectionString == "" {
		return nil, types.NewValidationError("connection_string", "connection string is required")
	}
	return &Adapter{
		config: &merged,
		logger: repository.NewLogger("RELATIONAL"),
	}, nil
}

// overrideFromEnv applies environment overrides for deploy-time secrets.
func overrideFromEnv(cfg *Config) {
	if dsn := os.Getenv("DB_CONNECTION_STRING"); dsn != "" {
		cfg.ConnectionString = dsn
	}
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConns = n
		}
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinConns = n
		}
	}
	if v := os.Getenv("DB_ENABLE_QUERY_LOG"); v != "" {
		cfg.EnableQueryLog = v == "true" || v == "1"
	}
}

// Type returns the configured dialect name.
func (a *Adapter) Type() string { return a.config.Type }

// SetLogger replaces the adapter logger.
func (a *Adapter) SetLogger(logger repository.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = logger
}

// Connect opens the pool and verifies it with a ping. A second call while
// connected is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected && a.db != nil {
		return nil
	}

	sqlDB, db, err := a.open()
	if err != nil {
		a.lastError = err
		return fmt.Errorf("open %s connection: %w", a.config.Type, err)
	}

	sqlDB.SetMaxIdleConns(a.config.MinConns)
	sqlDB.SetMaxOpenConns(a.config.MaxConns)
	sqlDB.SetConnMaxIdleTime(a.config.IdleTimeout)
	sqlDB.SetConnMaxLifetime(a.config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, a.config.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		a.lastError = err
		return fmt.Errorf("connection test failed: %w", err)
	}

	a.sqlDB, a.db = sqlDB, db
	a.connected = true
	a.lastError = nil
	a.logger.Info("database connected", "type", a.config.Type)
	return nil
}

func (a *Adapter) open() (*sql.DB, *bun.DB, error) {
	var sqlDB *sql.DB
	var db *bun.DB
	var err error

	switch a.config.Type {
	case "postgres", "postgresql":
		sqlDB, err = sql.Open("postgres", a.config.ConnectionString)
		if err == nil {
			db = bun.NewDB(sqlDB, pgdialect.New())
		}
	case "mysql":
		sqlDB, err = sql.Open("mysql", a.config.ConnectionString)
		if err == nil {
			db = bun.NewDB(sqlDB, mysqldialect.New())
		}
	case "sqlite", "sqlite3":
		sqlDB, err = sql.Open(sqliteshim.ShimName, a.config.ConnectionString)
		if err == nil {
			db = bun.NewDB(sqlDB, sqlitedialect.New())
		}
	}
	if err != nil {
		return nil, nil, err
	}

	if a.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if a.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{
			slowTime: a.config.SlowQueryTime,
			logger:   a.logger,
		})
	}
	return sqlDB, db, nil
}

// Disconnect closes the pool. Operations after Disconnect fail with a
// "not connected" error.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db, a.sqlDB = nil, nil
	a.connected = false
	if err != nil {
		a.logger.Error("failed to close database connection", "error", err)
		return err
	}
	a.logger.Info("database connection closed")
	return nil
}

func (a *Adapter) bunDB() (*bun.DB, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, fmt.Errorf("relational adapter is not connected")
	}
	return a.db, nil
}

// DB exposes the underlying bun handle for schema setup and raw access.
func (a *Adapter) DB() *bun.DB {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

// Ping issues a round trip on the pool.
func (a *Adapter) Ping(ctx context.Context) error {
	db, err := a.bunDB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// HealthCheck pings the backend and reports status; it never returns an
// error. Pool statistics ride along in Details.
func (a *Adapter) HealthCheck(ctx context.Context) *repository.HealthStatus {
	status := &repository.HealthStatus{
		Type:    a.config.Type,
		Details: map[string]any{},
	}

	db, err := a.bunDB()
	if err != nil {
		status.Details["error"] = err.Error()
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err = db.PingContext(pingCtx)
	status.ResponseTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		status.Details["error"] = err.Error()
		a.mu.Lock()
		a.lastError = err
		a.mu.Unlock()
		return status
	}
	status.Healthy = true

	a.mu.RLock()
	sqlDB := a.sqlDB
	a.mu.RUnlock()
	if sqlDB != nil {
		stats := sqlDB.Stats()
		status.Details["open_conns"] = stats.OpenConnections
		status.Details["in_use"] = stats.InUse
		status.Details["idle"] = stats.Idle
		status.Details["wait_count"] = stats.WaitCount
		status.Details["max_open_conns"] = stats.MaxOpenConnections
	}
	return status
}

// CreateRepository returns a repository bound to the ambient pool.
func (a *Adapter) CreateRepository(opts repository.Options) (repository.Repository, error) {
	db, err := a.bunDB()
	if err != nil {
		return nil, err
	}
	return newRepository(db, db.Dialect().Features(), opts, a.logger, false)
}
