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
	"context"
	"database/sql"
	"time"

	"github.com/unistore-io/unistore/types"
)

// CrudRepository defines the single-record operations shared by every
// backend. Single-record reads return (nil, nil) when nothing matches;
// "not found" is never an error at this layer.
type CrudRepository interface {
	// Create persists data and returns the stored entity including its
	// generated identifier. BeforeCreate may replace the payload; AfterCreate
	// is side-effect only.
	Create(ctx context.Context, data types.Entity) (types.Entity, error)

	// FindByID returns the entity with the given primary key, or nil.
	FindByID(ctx context.Context, id any) (types.Entity, error)

	// FindOne returns the first entity matching the filter, or nil.
	FindOne(ctx context.Context, filter types.Filter) (types.Entity, error)

	// UpdateByID applies update to the matching entity and returns the
	// updated record, or nil when the id matched no live record.
	UpdateByID(ctx context.Context, id any, update types.Entity) (types.Entity, error)

	// DeleteByID removes the record, or marks it deleted when soft delete is
	// enabled. Reports whether a record was affected.
	DeleteByID(ctx context.Context, id any) (bool, error)
}

// QueryRepository defines multi-record reads and aggregate probes.
type QueryRepository interface {
	// FindAll returns every entity matching the filter, in backend order
	// unless sort rules are given.
	FindAll(ctx context.Context, filter types.Filter, sort ...types.Sort) ([]types.Entity, error)

	// FindPage executes a count plus a windowed fetch and returns the page.
	FindPage(ctx context.Context, req types.PageRequest) (*types.PageResult, error)

	// Count returns the number of matching entities.
	Count(ctx context.Context, filter types.Filter) (int64, error)

	// Exists reports whether at least one entity matches. Implementations
	// use a limit-1 probe, not a count.
	Exists(ctx context.Context, filter types.Filter) (bool, error)

	// Distinct returns the unique values of one field among the matches.
	Distinct(ctx context.Context, field string, filter types.Filter) ([]any, error)

	// Select returns matching entities projected to the requested fields.
	Select(ctx context.Context, filter types.Filter, fields []string) ([]types.Entity, error)
}

// BulkRepository defines the bulk mutation variants. UpdateMany and
// DeleteMany return the affected-record count, not the records.
type BulkRepository interface {
	InsertMany(ctx context.Context, rows []types.Entity) ([]types.Entity, error)
	UpdateMany(ctx context.Context, filter types.Filter, update types.Entity) (int64, error)
	DeleteMany(ctx context.Context, filter types.Filter) (int64, error)

	// Upsert updates the first record matching filter, or creates a new one
	// from the filter's literal keys merged with data.
	Upsert(ctx context.Context, filter types.Filter, data types.Entity) (types.Entity, error)
}

// SoftDeleteRepository defines the soft-delete family. Every method fails
// with a ValidationError when the repository was created without
// Options.SoftDelete.
type SoftDeleteRepository interface {
	SoftDelete(ctx context.Context, id any) (bool, error)
	SoftDeleteMany(ctx context.Context, filter types.Filter) (int64, error)

	// Restore clears the soft-delete mark so default reads see the record
	// again.
	Restore(ctx context.Context, id any) (bool, error)
	RestoreMany(ctx context.Context, filter types.Filter) (int64, error)

	// FindWithDeleted matches against the raw filter, bypassing the
	// repository's default filter entirely.
	FindWithDeleted(ctx context.Context, filter types.Filter) ([]types.Entity, error)
}

// Repository is the unified contract implemented by both backends.
type Repository interface {
	CrudRepository
	QueryRepository
	BulkRepository
	SoftDeleteRepository
}

// TxContext is the scoped repository factory available inside one
// WithTransaction callback. Repositories it creates are bound to the open
// transaction handle; the context must not be retained after the callback
// returns.
type TxContext interface {
	CreateRepository(opts Options) (Repository, error)
}

// TxOptions tunes one WithTransaction call.
type TxOptions struct {
	// MaxRetries is the number of additional attempts after the first when
	// the failure is classified as transient. Zero disables retries.
	MaxRetries int

	// RetryDelay is the constant wait between attempts.
	RetryDelay time.Duration

	// Backoff, when set, computes the wait before retry attempt (1-based)
	// from the base delay, replacing the constant policy.
	Backoff func(attempt int, base time.Duration) time.Duration

	// Isolation applies to the relational backend only.
	Isolation sql.IsolationLevel

	// MaxCommitTime applies to the document backend only.
	MaxCommitTime time.Duration
}

// Delay returns the wait before the given 1-based retry attempt.
func (o TxOptions) Delay(attempt int) time.Duration {
	if o.Backoff != nil {
		return o.Backoff(attempt, o.RetryDelay)
	}
	return o.RetryDelay
}

// HealthStatus is the result of a Store health check. HealthCheck never
// fails; connectivity problems are reported through Healthy and Details.
type HealthStatus struct {
	Healthy        bool           `json:"healthy"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	Type           string         `json:"type"`
	Details        map[string]any `json:"details"`
}

// Store is a backend adapter: it owns one physical connection (or pool) for
// the process lifetime and hands out lightweight repositories bound either
// to the ambient connection or to a transaction.
type Store interface {
	// Connect establishes the physical connection. Calling it while already
	// connected is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Subsequent operations fail with a
	// clear error instead of hanging.
	Disconnect(ctx context.Context) error

	// Ping issues a lightweight round trip to the backend.
	Ping(ctx context.Context) error

	// HealthCheck measures a ping and reports status without ever failing.
	HealthCheck(ctx context.Context) *HealthStatus

	// CreateRepository validates opts and returns a repository bound to the
	// ambient connection.
	CreateRepository(opts Options) (Repository, error)

	// WithTransaction runs fn inside one backend transaction: commit on nil
	// return, abort on error, full begin-callback-commit retry on transient
	// failures up to opts.MaxRetries additional attempts. The ctx passed to
	// fn carries the transaction where the backend requires it and must be
	// used for every operation inside the callback.
	WithTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx TxContext) error) error

	// Type returns the configured backend type.
	Type() string
}
