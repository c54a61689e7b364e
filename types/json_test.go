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

func TestJSONObjectRoundTrip(t *testing.T) {
	obj := JSONObject{"theme": "dark", "limits": map[string]interface{}{"rps": float64(10)}}

	v, err := obj.Value()
	require.NoError(t, err)

	var scanned JSONObject
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, obj, scanned)

	// string sources from TEXT columns work too
	var fromString JSONObject
	require.NoError(t, fromString.Scan(`{"a":1}`))
	assert.Equal(t, float64(1), fromString["a"])
}

func TestJSONObjectScanNil(t *testing.T) {
	var obj JSONObject
	require.NoError(t, obj.Scan(nil))
	require.NotNil(t, obj)
	assert.Empty(t, obj)

	assert.Error(t, obj.Scan(42))
}

func TestJSONArrayRoundTrip(t *testing.T) {
	arr := JSONArray{{"k": "v"}}

	v, err := arr.Value()
	require.NoError(t, err)

	var scanned JSONArray
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, arr, scanned)

	var nilArr JSONArray
	nv, err := nilArr.Value()
	require.NoError(t, err)
	assert.Nil(t, nv)
}
