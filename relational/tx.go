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
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/unistore-io/unistore/repository"
)

// txContext binds repositories to one open transaction. It is valid only
// for the duration of the WithTransaction callback that received it.
type txContext struct {
	tx       bun.Tx
	features feature.Feature
	logger   repository.Logger
}

var _ repository.TxContext = (*txContext)(nil)

func (c *txContext) CreateRepository(opts repository.Options) (repository.Repository, error) {
	return newRepository(c.tx, c.features, opts, c.logger, true)
}

// WithTransaction runs fn inside a SQL transaction: commit on nil return,
// rollback on error. When the failure is transient (serialization failure,
// deadlock, lost connection) and opts.MaxRetries allows, the whole
// begin-callback-commit cycle repeats after opts.Delay; validation and
// constraint errors propagate immediately.
func (a *Adapter) WithTransaction(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context, tx repository.TxContext) error) error {
	db, err := a.bunDB()
	if err != nil {
		return err
	}

	attempts := opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, opts.Delay(attempt-1)); err != nil {
				return err
			}
			a.logger.Warn("retrying transaction after transient failure",
				"attempt", attempt, "error", lastErr)
		}

		err := a.runTxOnce(ctx, db, opts, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
	}
	return lastErr
}

func (a *Adapter) runTxOnce(ctx context.Context, db *bun.DB, opts repository.TxOptions, fn func(ctx context.Context, tx repository.TxContext) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tc := &txContext{tx: tx, features: db.Dialect().Features(), logger: a.logger}
	if err := fn(ctx, tc); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			a.logger.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			a.logger.Error("rollback after failed commit failed", "error", rbErr)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
