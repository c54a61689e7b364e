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
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/unistore-io/unistore/types"
)

// SQLErrorClass groups driver errors into the categories callers react to.
// Driver errors themselves are always propagated unmodified; classification
// only informs retry and conflict handling.
type SQLErrorClass int

const (
	UnknownErr SQLErrorClass = iota
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckViolationErr
	SerializationErr
	DeadlockErr
	ConnectionErr
)

// Classify maps a driver error onto a SQLErrorClass, checking typed driver
// errors first and falling back to SQLSTATE substrings so it works across
// postgres, mysql, and sqlite.
func Classify(err error) SQLErrorClass {
	if err == nil {
		return UnknownErr
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "23505":
			return DuplicateKeyErr
		case "23502":
			return NotNullViolationErr
		case "23503":
			return ForeignKeyViolationErr
		case "23514":
			return CheckViolationErr
		case "40001":
			return SerializationErr
		case "40P01":
			return DeadlockErr
		case "08006", "08001", "08004":
			return ConnectionErr
		}
		return UnknownErr
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return DuplicateKeyErr
		case 1048:
			return NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return ForeignKeyViolationErr
		case 3819:
			return CheckViolationErr
		case 1213:
			return DeadlockErr
		case 1205:
			return SerializationErr
		}
		return UnknownErr
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "sqlstate 40001"),
		strings.Contains(s, "serialization failure"),
		strings.Contains(s, "could not serialize access"):
		return SerializationErr
	case strings.Contains(s, "sqlstate 40p01"),
		strings.Contains(s, "deadlock detected"),
		strings.Contains(s, "database is locked"),
		strings.Contains(s, "database table is locked"):
		return DeadlockErr
	case strings.Contains(s, "duplicate key value"),
		strings.Contains(s, "unique constraint failed"),
		strings.Contains(s, "sqlstate 23505"):
		return DuplicateKeyErr
	case strings.Contains(s, "sqlstate 23502"),
		strings.Contains(s, "not null constraint failed"),
		strings.Contains(s, "not-null constraint"):
		return NotNullViolationErr
	case strings.Contains(s, "sqlstate 23503"),
		strings.Contains(s, "foreign key constraint"):
		return ForeignKeyViolationErr
	case strings.Contains(s, "sqlstate 23514"),
		strings.Contains(s, "check constraint"):
		return CheckViolationErr
	case strings.Contains(s, "sqlstate 08006"),
		strings.Contains(s, "sqlstate 08001"),
		strings.Contains(s, "sqlstate 08004"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "connection reset"):
		return ConnectionErr
	}
	return UnknownErr
}

// IsRetryable reports whether the error is a transient failure that is safe
// to retry in a fresh transaction. Validation and constraint failures are
// never retryable.
func IsRetryable(err error) bool {
	if err == nil || types.IsValidationError(err) {
		return false
	}
	switch Classify(err) {
	case SerializationErr, DeadlockErr, ConnectionErr:
		return true
	default:
		return false
	}
}

// IsDuplicateKey reports a unique-constraint violation.
func IsDuplicateKey(err error) bool {
	return Classify(err) == DuplicateKeyErr
}
