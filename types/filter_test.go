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

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterClone(t *testing.T) {
	f := Filter{"status": "active", "age": Ops{OpGte: 18}}
	c := f.Clone()

	require.Equal(t, f, c)

	c["status"] = "inactive"
	assert.Equal(t, "active", f["status"], "clone must not share the top-level map")
}

func TestFilterCloneNil(t *testing.T) {
	var f Filter
	c := f.Clone()

	require.NotNil(t, c)
	assert.Empty(t, c)

	c["k"] = 1 // must be writable
	assert.Len(t, c, 1)
}

func TestFilterMergeOverlayWins(t *testing.T) {
	base := Filter{"tenant": "a", "status": "active"}
	merged := base.Merge(Filter{"tenant": "b", "age": Ops{OpLt: 30}})

	assert.Equal(t, "b", merged["tenant"])
	assert.Equal(t, "active", merged["status"])
	assert.Equal(t, Ops{OpLt: 30}, merged["age"])

	// inputs untouched
	assert.Equal(t, "a", base["tenant"])
	assert.Len(t, base, 2)
}

func TestOpsOf(t *testing.T) {
	ops, ok := OpsOf(Ops{OpGt: 1})
	require.True(t, ok)
	assert.Equal(t, 1, ops[OpGt])

	ops, ok = OpsOf(map[string]any{OpNe: "x"})
	require.True(t, ok)
	assert.Equal(t, "x", ops[OpNe])

	_, ok = OpsOf("plain value")
	assert.False(t, ok)

	_, ok = OpsOf(nil)
	assert.False(t, ok)
}
