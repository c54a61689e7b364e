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

package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

const healthCheckTimeout = 5 * time.Second

// Config describes the MongoDB connection and pool tuning. Pool sizing is
// passed through to the driver, which owns the pool.
type Config struct {
	ConnectionString string        `yaml:"connection_string" json:"connection_string"`
	Database         string        `yaml:"database" json:"database"`
	MinPoolSize      uint64        `yaml:"min_pool_size" json:"min_pool_size"`
	MaxPoolSize      uint64        `yaml:"max_pool_size" json:"max_pool_size"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time" json:"max_conn_idle_time"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// Adapter owns one MongoDB client for the process lifetime and hands out
// repositories and transactions bound to it. It implements repository.Store.
type Adapter struct {
	config *Config
	logger repository.Logger

	mu        sync.RWMutex
	client    *mongo.Client
	db        *mongo.Database
	connected bool
}

// NewAdapter validates the configuration and returns an unconnected adapter.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, types.NewValidationError("config", "mongodb configuration cannot be empty")
	}
	merged := *cfg
	if uri := os.Getenv("DB_CONNECTION_STRING"); uri != "" {
		merged.ConnectionString = uri
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		merged.Database = name
	}
	if merged.ConnectionString == "" {
		return nil, types.NewValidationError("connection_string", "connection string is required")
	}
	if merged.Database == "" {
		return nil, types.NewValidationError("database", "database name is required")
	}
	if merged.ConnectTimeout <= 0 {
		merged.ConnectTimeout = 10 * time.Second
	}
	return &Adapter{
		config: &merged,
		logger: repository.NewLogger("MONGODB"),
	}, nil
}

// Type returns the backend type discriminant.
func (a *Adapter) Type() string { return "mongo" }

// SetLogger replaces the adapter logger.
func (a *Adapter) SetLogger(logger repository.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = logger
}

// Connect establishes the client and verifies it with a primary ping. A
// second call while connected is a no-op.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected && a.client != nil {
		return nil
	}

	clientOpts := options.Client().
		ApplyURI(a.config.ConnectionString).
		SetConnectTimeout(a.config.ConnectTimeout)
	if a.config.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(a.config.MinPoolSize)
	}
	if a.config.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(a.config.MaxPoolSize)
	}
	if a.config.MaxConnIdleTime > 0 {
		clientOpts.SetMaxConnIdleTime(a.config.MaxConnIdleTime)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return fmt.Errorf("open mongodb connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, a.config.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("connection test failed: %w", err)
	}

	a.client = client
	a.db = client.Database(a.config.Database)
	a.connected = true
	a.logger.Info("database connected", "type", "mongo", "database", a.config.Database)
	return nil
}

// Disconnect releases the client. Operations after Disconnect fail with a
// "not connected" error.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	err := a.client.Disconnect(ctx)
	a.client, a.db = nil, nil
	a.connected = false
	if err != nil {
		a.logger.Error("failed to close mongodb connection", "error", err)
		return err
	}
	a.logger.Info("mongodb connection closed")
	return nil
}

func (a *Adapter) handles() (*mongo.Client, *mongo.Database, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil, nil, fmt.Errorf("mongodb adapter is not connected")
	}
	return a.client, a.db, nil
}

// Database exposes the underlying handle for collection setup and raw
// access.
func (a *Adapter) Database() *mongo.Database {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.db
}

// Ping issues a primary round trip.
func (a *Adapter) Ping(ctx context.Context) error {
	client, _, err := a.handles()
	if err != nil {
		return err
	}
	return client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings the backend and reports status; it never returns an
// error.
func (a *Adapter) HealthCheck(ctx context.Context) *repository.HealthStatus {
	status := &repository.HealthStatus{
		Type:    "mongo",
		Details: map[string]any{},
	}

	client, _, err := a.handles()
	if err != nil {
		status.Details["error"] = err.Error()
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err = client.Ping(pingCtx, readpref.Primary())
	status.ResponseTimeMs = time.Since(start).Milliseconds()

	if err != nil {
		status.Details["error"] = err.Error()
		return status
	}
	status.Healthy = true
	status.Details["database"] = a.config.Database
	return status
}

// CreateRepository returns a repository bound to the ambient client.
func (a *Adapter) CreateRepository(opts repository.Options) (repository.Repository, error) {
	_, db, err := a.handles()
	if err != nil {
		return nil, err
	}
	return newRepository(db, opts, a.logger, false)
}
