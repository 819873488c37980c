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
	"strconv"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// ResultColumn describes one column of a row set: the label presented
// to the client and the resolved type.
type ResultColumn struct {
	Name string
	Typ  parser.ColumnType
}

// Result is the outcome of executing one statement: a schema change
// acknowledgement, an affected-row count, or an ordered row set with
// column descriptors. A Result with a non-nil Err carries no payload.
type Result struct {
	Err error

	Type parser.StatementType
	// Tag is the command tag prefix, e.g. "SELECT" or "CREATE SCHEMA".
	Tag string

	// RowsAffected is set for RowsAffected results.
	RowsAffected int

	// Columns and Rows are set for Rows results.
	Columns []ResultColumn
	Rows    []parser.DTuple

	// Suspended reports that a row-limited portal execution stopped
	// before exhausting the portal.
	Suspended bool
}

// CommandTag renders the complete wire command tag for the result.
func (r Result) CommandTag() string {
	switch r.Type {
	case parser.Rows:
		return r.Tag + " " + strconv.Itoa(len(r.Rows))
	case parser.RowsAffected:
		if r.Tag == "INSERT" {
			// The INSERT tag carries a legacy OID column.
			return "INSERT 0 " + strconv.Itoa(r.RowsAffected)
		}
		return r.Tag + " " + strconv.Itoa(r.RowsAffected)
	}
	return r.Tag
}

func makeErrResult(err error) Result {
	return Result{Err: sqlError(err)}
}
