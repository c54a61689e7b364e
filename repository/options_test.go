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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistore-io/unistore/types"
)

func TestOptionsFieldDefaults(t *testing.T) {
	var o Options
	assert.Equal(t, "id", o.PrimaryKeyOr("id"))
	assert.Equal(t, DefaultCreatedAtField, o.CreatedAtOr())
	assert.Equal(t, DefaultUpdatedAtField, o.UpdatedAtOr())
	assert.Equal(t, DefaultSoftDeleteField, o.SoftDeleteFieldOr())

	o = Options{PrimaryKey: "uuid", CreatedAtField: "ctime", UpdatedAtField: "mtime", SoftDeleteField: "removed_at"}
	assert.Equal(t, "uuid", o.PrimaryKeyOr("id"))
	assert.Equal(t, "ctime", o.CreatedAtOr())
	assert.Equal(t, "mtime", o.UpdatedAtOr())
	assert.Equal(t, "removed_at", o.SoftDeleteFieldOr())
}

func TestGuardFilter(t *testing.T) {
	o := Options{DefaultFilter: types.Filter{"tenant": "acme"}}
	guard := o.GuardFilter()
	assert.Equal(t, types.Filter{"tenant": "acme"}, guard)

	o.SoftDelete = true
	guard = o.GuardFilter()
	assert.Equal(t, "acme", guard["tenant"])
	assert.Equal(t, types.Ops{types.OpIsNull: true}, guard[DefaultSoftDeleteField])

	// the guard is built fresh each time; mutating it must not leak back
	guard["tenant"] = "other"
	assert.Equal(t, "acme", o.DefaultFilter["tenant"])
}

func TestEffectiveFilterGuardWins(t *testing.T) {
	o := Options{DefaultFilter: types.Filter{"tenant": "acme"}}

	eff := o.EffectiveFilter(types.Filter{"tenant": "evil", "status": "active"}, false)
	assert.Equal(t, "acme", eff["tenant"], "caller must not override the guard by default")
	assert.Equal(t, "active", eff["status"])
}

func TestEffectiveFilterAllowOverride(t *testing.T) {
	o := Options{DefaultFilter: types.Filter{"tenant": "acme"}, AllowFilterOverride: true}

	eff := o.EffectiveFilter(types.Filter{"tenant": "beta"}, false)
	assert.Equal(t, "beta", eff["tenant"])

	eff = o.EffectiveFilter(nil, false)
	assert.Equal(t, "acme", eff["tenant"], "guard still applies when the caller says nothing")
}

func TestEffectiveFilterWithDeletedBypassesGuard(t *testing.T) {
	o := Options{
		DefaultFilter: types.Filter{"tenant": "acme"},
		SoftDelete:    true,
	}

	eff := o.EffectiveFilter(types.Filter{"status": "archived"}, true)
	assert.Equal(t, types.Filter{"status": "archived"}, eff)
	assert.NotContains(t, eff, "tenant")
	assert.NotContains(t, eff, DefaultSoftDeleteField)
}

func TestLiteralValues(t *testing.T) {
	seed := LiteralValues(types.Filter{
		"email": "a@b.c",
		"age":   types.Ops{types.OpGte: 18},
		"role":  map[string]any{types.OpNe: "admin"},
	})
	require.Equal(t, types.Entity{"email": "a@b.c"}, seed)
}

func TestCloneEntityIsolation(t *testing.T) {
	src := types.Entity{"name": "a"}
	dst := CloneEntity(src)
	dst["name"] = "b"
	assert.Equal(t, "a", src["name"])
}

func TestTxOptionsDelay(t *testing.T) {
	o := TxOptions{RetryDelay: 50 * time.Millisecond}
	assert.Equal(t, 50*time.Millisecond, o.Delay(1))
	assert.Equal(t, 50*time.Millisecond, o.Delay(3))

	o.Backoff = func(attempt int, base time.Duration) time.Duration {
		return base * time.Duration(attempt)
	}
	assert.Equal(t, 50*time.Millisecond, o.Delay(1))
	assert.Equal(t, 150*time.Millisecond, o.Delay(3))
}
