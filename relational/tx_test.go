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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

// mockAdapter wires a sqlmock-backed bun.DB into an adapter so the
// begin/rollback/commit choreography can be asserted without a server.
func mockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Adapter{
		config:    &Config{Type: "postgres"},
		logger:    repository.NewLogger("RELATIONAL"),
		db:        db,
		sqlDB:     sqlDB,
		connected: true,
	}, mock
}

func TestWithTransactionCommit(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	err := a.WithTransaction(ctx, repository.TxOptions{}, func(ctx context.Context, tx repository.TxContext) error {
		repo, err := tx.CreateRepository(repository.Options{Table: "users"})
		if err != nil {
			return err
		}
		_, err = repo.Create(ctx, types.Entity{"name": "paula"})
		return err
	})
	require.NoError(t, err)

	repo := newUserRepo(t, a)
	n, err := repo.Count(ctx, types.Filter{"name": "paula"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestWithTransactionRollback(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	boom := errors.New("business rule failed")
	err := a.WithTransaction(ctx, repository.TxOptions{}, func(ctx context.Context, tx repository.TxContext) error {
		repo, err := tx.CreateRepository(repository.Options{Table: "users"})
		if err != nil {
			return err
		}
		if _, err := repo.Create(ctx, types.Entity{"name": "quinn"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	repo := newUserRepo(t, a)
	n, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "rollback must discard the insert")
}

func TestWithTransactionPageInsideTx(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	err := a.WithTransaction(ctx, repository.TxOptions{}, func(ctx context.Context, tx repository.TxContext) error {
		repo, err := tx.CreateRepository(repository.Options{Table: "users"})
		if err != nil {
			return err
		}
		for i := 0; i < 5; i++ {
			if _, err := repo.Create(ctx, types.Entity{"age": i}); err != nil {
				return err
			}
		}
		// uncommitted rows are visible inside the transaction
		page, err := repo.FindPage(ctx, types.PageRequest{Limit: 3})
		if err != nil {
			return err
		}
		assert.Len(t, page.Data, 3)
		assert.EqualValues(t, 5, page.Total)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTransactionRetriesTransientFailure(t *testing.T) {
	a, mock := mockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	transient := errors.New("pq: could not serialize access due to concurrent update (SQLSTATE 40001)")
	err := a.WithTransaction(context.Background(),
		repository.TxOptions{MaxRetries: 2, RetryDelay: time.Millisecond},
		func(ctx context.Context, tx repository.TxContext) error {
			attempts++
			if attempts == 1 {
				return transient
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionExhaustsRetries(t *testing.T) {
	a, mock := mockAdapter(t)

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	attempts := 0
	transient := errors.New("deadlock detected")
	err := a.WithTransaction(context.Background(),
		repository.TxOptions{MaxRetries: 2, RetryDelay: time.Millisecond},
		func(ctx context.Context, tx repository.TxContext) error {
			attempts++
			return transient
		})
	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, attempts, "first attempt plus two retries")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionNoRetryOnValidation(t *testing.T) {
	a, mock := mockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := a.WithTransaction(context.Background(),
		repository.TxOptions{MaxRetries: 5, RetryDelay: time.Millisecond},
		func(ctx context.Context, tx repository.TxContext) error {
			attempts++
			return types.NewValidationError("age", "unknown filter operator")
		})
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))
	assert.Equal(t, 1, attempts, "validation errors must not retry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionBackoff(t *testing.T) {
	a, mock := mockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	var waits []int
	attempts := 0
	err := a.WithTransaction(context.Background(),
		repository.TxOptions{
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
			Backoff: func(attempt int, base time.Duration) time.Duration {
				waits = append(waits, attempt)
				return base
			},
		},
		func(ctx context.Context, tx repository.TxContext) error {
			attempts++
			if attempts == 1 {
				return errors.New("database is locked")
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, waits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionContextCancelDuringRetryWait(t *testing.T) {
	a, mock := mockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	err := a.WithTransaction(ctx,
		repository.TxOptions{MaxRetries: 3, RetryDelay: time.Minute},
		func(ctx context.Context, tx repository.TxContext) error {
			cancel()
			return errors.New("deadlock detected")
		})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionNotConnected(t *testing.T) {
	a, err := NewAdapter(&Config{Type: "sqlite", ConnectionString: "file::memory:"})
	require.NoError(t, err)

	err = a.WithTransaction(context.Background(), repository.TxOptions{},
		func(ctx context.Context, tx repository.TxContext) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
