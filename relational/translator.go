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
	"reflect"
	"sort"

	"github.com/uptrace/bun"

	"github.com/unistore-io/unistore/types"
)

// whereClause is one rendered predicate with its bind arguments.
type whereClause struct {
	expr string
	args []any
}

// translator renders abstract filters into bun WHERE clauses for one table
// binding and enforces the column whitelist over every caller-referenced
// column. A non-empty whitelist is extended with the columns the repository
// itself manages (primary key, timestamps, soft-delete mark) so internal
// predicates never trip the guard.
type translator struct {
	columns map[string]struct{}
}

func newTranslator(columns []string, implicit ...string) *translator {
	t := &translator{}
	if len(columns) == 0 {
		return t
	}
	t.columns = make(map[string]struct{}, len(columns)+len(implicit))
	for _, c := range columns {
		t.columns[c] = struct{}{}
	}
	for _, c := range implicit {
		t.columns[c] = struct{}{}
	}
	return t
}

// CheckColumn fails with a ValidationError when the whitelist is non-empty
// and does not contain col.
func (t *translator) CheckColumn(col string) error {
	if t.columns == nil {
		return nil
	}
	if _, ok := t.columns[col]; !ok {
		return types.NewValidationError(col, "column is not in the allowed column set")
	}
	return nil
}

// CheckColumns validates a projection field list.
func (t *translator) CheckColumns(cols []string) error {
	for _, c := range cols {
		if err := t.CheckColumn(c); err != nil {
			return err
		}
	}
	return nil
}

// CheckSort validates the columns referenced by sort rules.
func (t *translator) CheckSort(rules []types.Sort) error {
	for _, s := range rules {
		if err := t.CheckColumn(s.Field); err != nil {
			return err
		}
	}
	return nil
}

// Translate converts the abstract filter into WHERE clauses. It fails before
// producing any clause when a column is outside the whitelist or an operator
// key is unknown. Fields are processed in lexical order so the generated SQL
// is deterministic.
func (t *translator) Translate(filter types.Filter) ([]whereClause, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	fields := make([]string, 0, len(filter))
	for f := range filter {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	clauses := make([]whereClause, 0, len(filter))
	for _, field := range fields {
		if err := t.CheckColumn(field); err != nil {
			return nil, err
		}
		v := filter[field]
		if ops, isOps := types.OpsOf(v); isOps {
			cs, err := translateOps(field, ops)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, cs...)
			continue
		}
		if v == nil {
			clauses = append(clauses, whereClause{"? IS NULL", []any{bun.Ident(field)}})
			continue
		}
		clauses = append(clauses, whereClause{"? = ?", []any{bun.Ident(field), v}})
	}
	return clauses, nil
}

func translateOps(field string, ops map[string]any) ([]whereClause, error) {
	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]whereClause, 0, len(ops))
	for _, op := range keys {
		v := ops[op]
		switch op {
		case types.OpGt:
			clauses = append(clauses, whereClause{"? > ?", []any{bun.Ident(field), v}})
		case types.OpGte:
			clauses = append(clauses, whereClause{"? >= ?", []any{bun.Ident(field), v}})
		case types.OpLt:
			clauses = append(clauses, whereClause{"? < ?", []any{bun.Ident(field), v}})
		case types.OpLte:
			clauses = append(clauses, whereClause{"? <= ?", []any{bun.Ident(field), v}})
		case types.OpNe:
			clauses = append(clauses, whereClause{"? <> ?", []any{bun.Ident(field), v}})
		case types.OpIn:
			clauses = append(clauses, whereClause{"? IN (?)", []any{bun.Ident(field), bun.In(valueSlice(v))}})
		case types.OpNin:
			clauses = append(clauses, whereClause{"? NOT IN (?)", []any{bun.Ident(field), bun.In(valueSlice(v))}})
		case types.OpLike:
			// LOWER/LIKE keeps the predicate case-insensitive on every
			// supported dialect; ILIKE is postgres-only.
			clauses = append(clauses, whereClause{"LOWER(?) LIKE LOWER(?)", []any{bun.Ident(field), v}})
		case types.OpIsNull:
			clauses = append(clauses, nullClause(field, asBool(v)))
		case types.OpIsNotNull:
			clauses = append(clauses, nullClause(field, !asBool(v)))
		default:
			return nil, types.NewValidationError(field, "unknown filter operator %q", op)
		}
	}
	return clauses, nil
}

func nullClause(field string, isNull bool) whereClause {
	if isNull {
		return whereClause{"? IS NULL", []any{bun.Ident(field)}}
	}
	return whereClause{"? IS NOT NULL", []any{bun.Ident(field)}}
}

// asBool treats anything other than explicit false as true; the null
// predicates carry their meaning in the key, the value only flips it.
func asBool(v any) bool {
	b, ok := v.(bool)
	return !ok || b
}

// valueSlice normalizes the operand of a set-membership operator to []any.
// A non-slice operand becomes a single-element set.
func valueSlice(v any) []any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
