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

// Entity is an opaque record: a mapping from field name to value. No schema
// is enforced at this layer; the backend (table definition, collection
// validator) owns validation of the shape.
type Entity = map[string]any

// Filter maps field names to match conditions. A plain value matches by
// equality. An Ops value (or a plain map) applies the named operators to the
// field instead.
type Filter map[string]any

// Ops is an operator set applied to a single field, e.g.
// Filter{"age": Ops{OpGte: 18, OpLt: 65}}. The operator key set is closed:
// translators reject unknown keys with a ValidationError before any query is
// issued.
type Ops map[string]any

// Operator keys accepted inside an Ops value.
const (
	OpGt        = "gt"
	OpGte       = "gte"
	OpLt        = "lt"
	OpLte       = "lte"
	OpNe        = "ne"
	OpIn        = "in"
	OpNin       = "nin"
	OpLike      = "like"
	OpIsNull    = "isNull"
	OpIsNotNull = "isNotNull"
)

// Clone returns a shallow copy of the filter. A nil filter clones to an
// empty, non-nil filter so callers can merge into it.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns a new filter containing every key of f plus every key of
// overlay; overlay keys win on conflict.
func (f Filter) Merge(overlay Filter) Filter {
	out := f.Clone()
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// OpsOf reports whether the filter value for a field is an operator set and
// returns it as a plain map when it is.
func OpsOf(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Ops:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// Sort describes one ordering rule for list and page queries.
type Sort struct {
	Field string
	Desc  bool
}
