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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/unistore-io/unistore/types"
)

func TestIsRetryable(t *testing.T) {
	transient := mongo.CommandError{
		Code:    251,
		Message: "transaction aborted",
		Labels:  []string{"TransientTransactionError"},
	}
	assert.True(t, IsRetryable(transient))

	unknownCommit := mongo.CommandError{
		Code:   64,
		Labels: []string{"UnknownTransactionCommitResult"},
	}
	assert.True(t, IsRetryable(unknownCommit))

	writeConflict := mongo.CommandError{Code: writeConflictCode, Message: "WriteConflict"}
	assert.True(t, IsRetryable(writeConflict))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("network down")))
	assert.False(t, IsRetryable(types.NewValidationError("age", "unknown filter operator")))
	assert.False(t, IsRetryable(mongo.CommandError{Code: 2, Message: "BadValue"}))
}

func TestIsRetryableWrapped(t *testing.T) {
	inner := mongo.CommandError{Code: 112, Labels: []string{"TransientTransactionError"}}
	wrapped := fmt.Errorf("commit transaction: %w", inner)
	assert.True(t, IsRetryable(wrapped))
}

func TestDuplicateKeyNotRetryable(t *testing.T) {
	dup := mongo.CommandError{Code: 11000, Message: "E11000 duplicate key error"}
	assert.True(t, IsDuplicateKey(dup))
	assert.False(t, IsRetryable(dup))
}
