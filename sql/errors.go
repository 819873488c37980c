// Copyright 2020 - present Alex Dukhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package sql

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// PG error codes from:
// http://www.postgresql.org/docs/13/errcodes-appendix.html
//
// The set is closed: every user-facing error the engine produces maps to
// exactly one of these codes, and the mapping is stable across runs so
// black-box comparison against a reference server can key on it.
const (
	// CodeSyntaxError represents errors from the SQL parser.
	CodeSyntaxError string = "42601"
	// CodeUndefinedSchemaError is returned when a statement references a
	// schema that does not exist.
	CodeUndefinedSchemaError string = "3F000"
	// CodeUndefinedTableError is returned when a statement references a
	// table that does not exist.
	CodeUndefinedTableError string = "42P01"
	// CodeUndefinedColumnError is returned when an expression references
	// a column not present in the queried tables.
	CodeUndefinedColumnError string = "42703"
	// CodeDuplicateSchemaError is returned by CREATE SCHEMA on an
	// existing schema.
	CodeDuplicateSchemaError string = "42P06"
	// CodeDuplicateTableError is returned by CREATE TABLE on an existing
	// table.
	CodeDuplicateTableError string = "42P07"
	// CodeSchemaNotEmptyError is returned by DROP SCHEMA without CASCADE
	// on a schema that still holds tables.
	CodeSchemaNotEmptyError string = "2BP01"
	// CodeDatatypeMismatchError is returned when an expression's type
	// cannot be used in the required context.
	CodeDatatypeMismatchError string = "42804"
	// CodeCannotCoerceError is returned when no implicit cast path exists
	// between two operand types.
	CodeCannotCoerceError string = "42846"
	// CodeUndefinedFunctionError is returned when no operator
	// implementation exists for an operator symbol and operand signature.
	CodeUndefinedFunctionError string = "42883"
	// CodeIndeterminateDatatypeError is returned when a parameter's type
	// cannot be inferred from its context.
	CodeIndeterminateDatatypeError string = "42P18"
	// CodeNotNullViolationError is returned when a write would store NULL
	// into a NOT NULL column.
	CodeNotNullViolationError string = "23502"
	// CodeStringDataRightTruncationError is returned when a string value
	// exceeds the declared width of its target column.
	CodeStringDataRightTruncationError string = "22001"
	// CodeNumericValueOutOfRangeError is returned when a numeric value
	// does not fit the target type.
	CodeNumericValueOutOfRangeError string = "22003"
	// CodeInvalidTextRepresentationError is returned when a literal or
	// parameter cannot be parsed as its target type.
	CodeInvalidTextRepresentationError string = "22P02"
	// CodeDivisionByZeroError is returned on division or modulo by zero.
	CodeDivisionByZeroError string = "22012"
	// CodeProtocolViolationError is returned on malformed extended-query
	// sequences, e.g. Bind with the wrong number of parameter values.
	CodeProtocolViolationError string = "08P01"
	// CodeInvalidSQLStatementNameError is returned when Bind, Describe or
	// Execute references an unknown prepared statement.
	CodeInvalidSQLStatementNameError string = "26000"
	// CodeInvalidCursorNameError is returned when Describe or Execute
	// references an unknown portal.
	CodeInvalidCursorNameError string = "34000"
	// CodeDuplicateCursorError is returned when Bind would overwrite an
	// existing named portal.
	CodeDuplicateCursorError string = "42P03"
	// CodeDuplicatePreparedStatementError is returned when Parse would
	// overwrite an existing named prepared statement.
	CodeDuplicatePreparedStatementError string = "42P05"
	// CodeFeatureNotSupportedError is returned for syntax the engine
	// recognizes but does not implement.
	CodeFeatureNotSupportedError string = "0A000"
	// CodeInternalError is the catch-all for internal defects. It is
	// never produced by well-formed client input.
	CodeInternalError string = "XX000"
)

// ErrorWithPGCode represents errors that carry a stable error code to the
// client.
type ErrorWithPGCode interface {
	error
	Code() string
}

var _ ErrorWithPGCode = &Error{}

// Error is the concrete user-facing SQL error. Statement compilation and
// execution return *Error for every failure caused by client input;
// anything else escaping the executor is an internal defect and is
// reported as CodeInternalError.
type Error struct {
	code string
	msg  string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.msg }

// Code returns the five-character PostgreSQL error code.
func (e *Error) Code() string { return e.code }

// NewError builds a coded error from one of the Code constants.
func NewError(code, format string, args ...interface{}) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

func newError(code, format string, args ...interface{}) *Error {
	return NewError(code, format, args...)
}

func syntaxError(err error) *Error {
	return &Error{code: CodeSyntaxError, msg: err.Error()}
}

func undefinedColumnError(name string) *Error {
	return newError(CodeUndefinedColumnError, "column %q does not exist", name)
}

func typeMismatchError(expected parser.ColumnType, got parser.ColumnType) *Error {
	return newError(CodeDatatypeMismatchError,
		"expected expression of type %s, but it has type %s", expected, got)
}

func cannotCoerceError(from, to parser.ColumnType) *Error {
	return newError(CodeCannotCoerceError, "cannot cast type %s to %s", from, to)
}

func undefinedFunctionError(sig string) *Error {
	return newError(CodeUndefinedFunctionError, "operator does not exist: %s", sig)
}

func notNullViolationError(column string) *Error {
	return newError(CodeNotNullViolationError,
		"null value in column %q violates not-null constraint", column)
}

// convertCatalogError attaches the client-visible error code matching a
// catalog namespace error. Unknown errors pass through untouched and end
// up reported as internal.
func convertCatalogError(err error) error {
	if err == nil {
		return nil
	}
	var cErr *catalog.Error
	if !errors.As(err, &cErr) {
		return err
	}
	code := CodeInternalError
	switch cErr.Kind {
	case catalog.SchemaAlreadyExists:
		code = CodeDuplicateSchemaError
	case catalog.SchemaDoesNotExist:
		code = CodeUndefinedSchemaError
	case catalog.TableAlreadyExists:
		code = CodeDuplicateTableError
	case catalog.TableDoesNotExist:
		code = CodeUndefinedTableError
	case catalog.SchemaIsNotEmpty:
		code = CodeSchemaNotEmptyError
	}
	return &Error{code: code, msg: cErr.Error()}
}

// sqlError extracts the user-facing error from err, or wraps err as an
// internal error. Internal invariant violations keep their assertion
// details in the message but always surface as CodeInternalError.
func sqlError(err error) *Error {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr
	}
	if converted := convertCatalogError(err); converted != err {
		return converted.(*Error)
	}
	return &Error{code: CodeInternalError, msg: err.Error()}
}
