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

	"github.com/unistore-io/unistore/types"
)

// Default field names used when the corresponding Options field is empty.
const (
	DefaultCreatedAtField  = "created_at"
	DefaultUpdatedAtField  = "updated_at"
	DefaultSoftDeleteField = "deleted_at"
)

// Hooks are the lifecycle extension points invoked around repository
// mutations, in a fixed order: Before* runs first and may abort the
// operation; After* runs once the backend write succeeded. BeforeCreate and
// BeforeUpdate may replace the payload by returning a new entity. After*
// hooks are side-effect only, but a non-nil error still aborts the enclosing
// operation or transaction.
type Hooks struct {
	BeforeCreate func(ctx context.Context, data types.Entity) (types.Entity, error)
	AfterCreate  func(ctx context.Context, created types.Entity) error
	BeforeUpdate func(ctx context.Context, update types.Entity) (types.Entity, error)
	AfterUpdate  func(ctx context.Context, updated types.Entity) error
	BeforeDelete func(ctx context.Context, id any) error
	AfterDelete  func(ctx context.Context, id any, deleted bool) error
}

// Options binds a repository to its backend location and configures the
// orthogonal behaviors layered on top: default filter, column whitelist,
// timestamps, soft delete, and hooks. Table/PrimaryKey/Columns apply to the
// relational backend; Collection applies to the document backend; the
// adapter consuming the options validates the fields it requires.
type Options struct {
	// Table is the relational table name. Required by the relational
	// adapter.
	Table string

	// PrimaryKey is the identifier column. Defaults to "id" on the
	// relational backend and "_id" on the document backend.
	PrimaryKey string

	// Columns is the relational column whitelist. When non-empty, every
	// column referenced by a caller-supplied filter, sort, projection, or
	// update payload must appear in it. Empty means unrestricted.
	Columns []string

	// Collection is the document collection name. Required by the document
	// adapter.
	Collection string

	// DefaultFilter is merged into every read and mutation match. Its keys
	// win over caller-supplied keys unless AllowFilterOverride is set.
	DefaultFilter types.Filter

	// AllowFilterOverride lets a caller-supplied filter key replace the same
	// key of the default filter. Off by default: the default filter is a
	// guard, not an override point.
	AllowFilterOverride bool

	// Timestamps injects CreatedAtField on create and UpdatedAtField on
	// update.
	Timestamps     bool
	CreatedAtField string
	UpdatedAtField string

	// SoftDelete turns DeleteByID/DeleteMany into timestamp marks on
	// SoftDeleteField and enables the soft-delete operation family. Reads
	// exclude marked records unless FindWithDeleted is used.
	SoftDelete      bool
	SoftDeleteField string

	Hooks Hooks
}

// PrimaryKeyOr returns the configured primary key or the backend default.
func (o Options) PrimaryKeyOr(def string) string {
	if o.PrimaryKey != "" {
		return o.PrimaryKey
	}
	return def
}

// CreatedAtOr returns the creation timestamp field name.
func (o Options) CreatedAtOr() string {
	if o.CreatedAtField != "" {
		return o.CreatedAtField
	}
	return DefaultCreatedAtField
}

// UpdatedAtOr returns the update timestamp field name.
func (o Options) UpdatedAtOr() string {
	if o.UpdatedAtField != "" {
		return o.UpdatedAtField
	}
	return DefaultUpdatedAtField
}

// SoftDeleteFieldOr returns the soft-delete mark field name.
func (o Options) SoftDeleteFieldOr() string {
	if o.SoftDeleteField != "" {
		return o.SoftDeleteField
	}
	return DefaultSoftDeleteField
}

// GuardFilter is the filter merged into every query: the configured default
// filter plus, when soft delete is enabled, the not-deleted exclusion.
func (o Options) GuardFilter() types.Filter {
	guard := o.DefaultFilter.Clone()
	if o.SoftDelete {
		guard[o.SoftDeleteFieldOr()] = types.Ops{types.OpIsNull: true}
	}
	return guard
}

// EffectiveFilter merges the caller filter with the guard filter.
// withDeleted bypasses the guard entirely (FindWithDeleted semantics). On a
// key conflict the guard wins unless AllowFilterOverride is set.
func (o Options) EffectiveFilter(filter types.Filter, withDeleted bool) types.Filter {
	if withDeleted {
		return filter.Clone()
	}
	guard := o.GuardFilter()
	if o.AllowFilterOverride {
		return guard.Merge(filter)
	}
	return filter.Clone().Merge(guard)
}

// LiteralValues extracts the equality keys of a filter, dropping operator
// sets. Upsert uses them as the seed of a newly created record.
func LiteralValues(filter types.Filter) types.Entity {
	out := types.Entity{}
	for k, v := range filter {
		if _, isOps := types.OpsOf(v); isOps {
			continue
		}
		out[k] = v
	}
	return out
}

// CloneEntity returns a shallow copy so hook and timestamp injection never
// mutate the caller's map.
func CloneEntity(e types.Entity) types.Entity {
	out := make(types.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
