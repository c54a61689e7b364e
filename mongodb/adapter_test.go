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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

func TestNewAdapterValidation(t *testing.T) {
	_, err := NewAdapter(nil)
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	_, err = NewAdapter(&Config{Database: "app"})
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	_, err = NewAdapter(&Config{ConnectionString: "mongodb://localhost:27017"})
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))

	a, err := NewAdapter(&Config{ConnectionString: "mongodb://localhost:27017", Database: "app"})
	require.NoError(t, err)
	assert.Equal(t, "mongo", a.Type())
}

func TestNewAdapterEnvOverride(t *testing.T) {
	t.Setenv("DB_CONNECTION_STRING", "mongodb://override:27017")
	t.Setenv("DB_NAME", "override_db")

	a, err := NewAdapter(&Config{ConnectionString: "mongodb://file:27017", Database: "file_db"})
	require.NoError(t, err)
	assert.Equal(t, "mongodb://override:27017", a.config.ConnectionString)
	assert.Equal(t, "override_db", a.config.Database)
}

func TestOperationsBeforeConnect(t *testing.T) {
	a, err := NewAdapter(&Config{ConnectionString: "mongodb://localhost:27017", Database: "app"})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, a.Ping(ctx))

	_, err = a.CreateRepository(repository.Options{Collection: "users"})
	assert.Error(t, err)

	err = a.WithTransaction(ctx, repository.TxOptions{},
		func(ctx context.Context, tx repository.TxContext) error { return nil })
	assert.Error(t, err)

	status := a.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "mongo", status.Type)
	assert.Contains(t, status.Details, "error")

	// disconnecting an unconnected adapter is a no-op
	assert.NoError(t, a.Disconnect(ctx))
}

func TestAdapterLifecycle(t *testing.T) {
	a := testDatabase(t)
	ctx := context.Background()

	require.NoError(t, a.Ping(ctx))
	require.NoError(t, a.Connect(ctx), "connect while connected is a no-op")

	status := a.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, "mongo", status.Type)

	require.NoError(t, a.Disconnect(ctx))
	assert.Error(t, a.Ping(ctx))
}
