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
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/unistore-io/unistore/types"
)

// writeConflictCode is the server error code for a write-write conflict
// inside a transaction.
const writeConflictCode = 112

// IsRetryable reports whether the error is a transient transaction failure
// that is safe to retry on a fresh session: the server's transient labels,
// an unknown commit result, or a write conflict. Validation and duplicate
// key errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil || types.IsValidationError(err) {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return false
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") ||
			se.HasErrorLabel("UnknownTransactionCommitResult") {
			return true
		}
		return se.HasErrorCode(writeConflictCode)
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.HasErrorLabel("TransientTransactionError") ||
			ce.HasErrorLabel("UnknownTransactionCommitResult") ||
			ce.Code == writeConflictCode
	}
	return false
}

// IsDuplicateKey reports the server's duplicate-key error (code 11000).
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
