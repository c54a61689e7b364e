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
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/unistore-io/unistore/types"
)

// translateFilter converts an abstract filter into a native bson document.
// Literal values become equality matches; operator sets map onto the
// corresponding $-operators. Unknown operator keys fail with a
// ValidationError before anything reaches the server.
func translateFilter(filter types.Filter) (bson.M, error) {
	out := bson.M{}
	for field, v := range filter {
		if ops, isOps := types.OpsOf(v); isOps {
			doc, err := translateOps(field, ops)
			if err != nil {
				return nil, err
			}
			out[field] = doc
			continue
		}
		out[field] = v
	}
	return out, nil
}

func translateOps(field string, ops map[string]any) (bson.M, error) {
	doc := bson.M{}
	for op, v := range ops {
		switch op {
		case types.OpGt:
			doc["$gt"] = v
		case types.OpGte:
			doc["$gte"] = v
		case types.OpLt:
			doc["$lt"] = v
		case types.OpLte:
			doc["$lte"] = v
		case types.OpNe:
			doc["$ne"] = v
		case types.OpIn:
			doc["$in"] = valueSlice(v)
		case types.OpNin:
			doc["$nin"] = valueSlice(v)
		case types.OpLike:
			doc["$regex"] = likePattern(fmt.Sprintf("%v", v))
			doc["$options"] = "i"
		case types.OpIsNull:
			if asBool(v) {
				doc["$eq"] = nil
			} else {
				doc["$ne"] = nil
			}
		case types.OpIsNotNull:
			if asBool(v) {
				doc["$ne"] = nil
			} else {
				doc["$eq"] = nil
			}
		default:
			return nil, types.NewValidationError(field, "unknown filter operator %q", op)
		}
	}
	return doc, nil
}

// likePattern turns a SQL-style pattern into a regular expression:
// % matches any run of characters, _ matches one; everything else is
// literal. Patterns without wildcards match as substrings.
func likePattern(pattern string) string {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, "%", ".*")
	quoted = strings.ReplaceAll(quoted, "_", ".")
	return quoted
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return !ok || b
}

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

// sortDoc renders sort rules in the order given; mongo sorts by document
// key order, so a bson.D is required.
func sortDoc(rules []types.Sort) bson.D {
	doc := make(bson.D, 0, len(rules))
	for _, s := range rules {
		dir := 1
		if s.Desc {
			dir = -1
		}
		doc = append(doc, bson.E{Key: s.Field, Value: dir})
	}
	return doc
}
