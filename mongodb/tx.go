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
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unistore-io/unistore/repository"
)

// txContext builds repositories that ride the session carried by the
// callback's context. It is valid only for the duration of one
// WithTransaction callback.
type txContext struct {
	db     *mongo.Database
	logger repository.Logger
}

var _ repository.TxContext = (*txContext)(nil)

func (c *txContext) CreateRepository(opts repository.Options) (repository.Repository, error) {
	return newRepository(c.db, opts, c.logger, true)
}

// WithTransaction runs fn inside one MongoDB transaction: commit on nil
// return, abort on error. The ctx handed to fn is a session context and must
// be used for every operation inside the callback. When the failure carries
// a transient transaction label (or is a write conflict) and opts.MaxRetries
// allows, the whole begin-callback-commit cycle repeats after opts.Delay.
func (a *Adapter) WithTransaction(ctx context.Context, opts repository.TxOptions, fn func(ctx context.Context, tx repository.TxContext) error) error {
	client, db, err := a.handles()
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

		err := a.runTxOnce(ctx, client, db, opts, fn)
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

func (a *Adapter) runTxOnce(ctx context.Context, client *mongo.Client, db *mongo.Database, opts repository.TxOptions, fn func(ctx context.Context, tx repository.TxContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction()
	if opts.MaxCommitTime > 0 {
		mct := opts.MaxCommitTime
		txnOpts.SetMaxCommitTime(&mct)
	}
	if err := sess.StartTransaction(txnOpts); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tc := &txContext{db: db, logger: a.logger}
	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := fn(sc, tc); err != nil {
			if abortErr := sess.AbortTransaction(sc); abortErr != nil {
				a.logger.Error("transaction abort failed", "error", abortErr)
			}
			return err
		}
		if err := sess.CommitTransaction(sc); err != nil {
			if abortErr := sess.AbortTransaction(sc); abortErr != nil {
				a.logger.Error("abort after failed commit failed", "error", abortErr)
			}
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
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
