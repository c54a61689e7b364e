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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/unistore-io/unistore/repository"
	"github.com/unistore-io/unistore/types"
)

func TestNewRepositoryRequiresCollection(t *testing.T) {
	_, err := newRepository(nil, repository.Options{}, repository.NewLogger("MONGODB"), false)
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))
}

func TestNormalizeID(t *testing.T) {
	r := &mongoRepository{opts: repository.Options{Collection: "users"}}

	oid := primitive.NewObjectID()
	got := r.normalizeID(oid.Hex())
	assert.Equal(t, oid, got, "hex strings convert to ObjectID for _id lookups")

	assert.Equal(t, "not-an-object-id", r.normalizeID("not-an-object-id"))
	assert.Equal(t, 42, r.normalizeID(42))

	// custom primary keys pass through untouched
	r = &mongoRepository{opts: repository.Options{Collection: "users", PrimaryKey: "sku"}}
	assert.Equal(t, oid.Hex(), r.normalizeID(oid.Hex()))
}

// testDatabase connects to the server named by MONGODB_TEST_URI and returns
// an adapter scoped to a throwaway database. Skipped when the variable is
// unset.
func testDatabase(t *testing.T) *Adapter {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	a, err := NewAdapter(&Config{
		ConnectionString: uri,
		Database:         fmt.Sprintf("unistore_test_%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))
	t.Cleanup(func() {
		_ = a.Database().Drop(context.Background())
		_ = a.Disconnect(context.Background())
	})
	return a
}

func TestMongoCrudRoundTrip(t *testing.T) {
	a := testDatabase(t)
	ctx := context.Background()

	repo, err := a.CreateRepository(repository.Options{Collection: "users"})
	require.NoError(t, err)

	created, err := repo.Create(ctx, types.Entity{"name": "alice", "age": 30})
	require.NoError(t, err)
	require.NotNil(t, created["_id"])

	found, err := repo.FindByID(ctx, created["_id"])
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "alice", found["name"])

	updated, err := repo.UpdateByID(ctx, created["_id"], types.Entity{"age": 31})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.EqualValues(t, 31, updated["age"])

	deleted, err := repo.DeleteByID(ctx, created["_id"])
	require.NoError(t, err)
	assert.True(t, deleted)

	missing, err := repo.FindByID(ctx, created["_id"])
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMongoFindPage(t *testing.T) {
	a := testDatabase(t)
	ctx := context.Background()

	repo, err := a.CreateRepository(repository.Options{Collection: "items"})
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		_, err := repo.Create(ctx, types.Entity{"seq": i})
		require.NoError(t, err)
	}

	page, err := repo.FindPage(ctx, types.PageRequest{
		Page:  2,
		Limit: 10,
		Sort:  []types.Sort{{Field: "seq"}},
	})
	require.NoError(t, err)
	assert.Len(t, page.Data, 10)
	assert.EqualValues(t, 25, page.Total)
	assert.Equal(t, 3, page.Pages)
	assert.EqualValues(t, 10, page.Data[0]["seq"])
}

func TestMongoSoftDelete(t *testing.T) {
	a := testDatabase(t)
	ctx := context.Background()

	repo, err := a.CreateRepository(repository.Options{
		Collection: "docs",
		SoftDelete: true,
	})
	require.NoError(t, err)

	created, err := repo.Create(ctx, types.Entity{"title": "draft"})
	require.NoError(t, err)

	ok, err := repo.SoftDelete(ctx, created["_id"])
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := repo.FindByID(ctx, created["_id"])
	require.NoError(t, err)
	assert.Nil(t, found)

	rows, err := repo.FindWithDeleted(ctx, types.Filter{"title": "draft"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	ok, err = repo.Restore(ctx, created["_id"])
	require.NoError(t, err)
	assert.True(t, ok)

	found, err = repo.FindByID(ctx, created["_id"])
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestMongoDistinctAndSelect(t *testing.T) {
	a := testDatabase(t)
	ctx := context.Background()

	repo, err := a.CreateRepository(repository.Options{Collection: "tags"})
	require.NoError(t, err)

	for _, row := range []types.Entity{
		{"name": "a", "kind": "x"},
		{"name": "b", "kind": "x"},
		{"name": "c", "kind": "y"},
	} {
		_, err := repo.Create(ctx, row)
		require.NoError(t, err)
	}

	vals, err := repo.Distinct(ctx, "kind", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"x", "y"}, vals)

	rows, err := repo.Select(ctx, types.Filter{"kind": "x"}, []string{"name"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Contains(t, row, "name")
		assert.NotContains(t, row, "kind")
	}
}
