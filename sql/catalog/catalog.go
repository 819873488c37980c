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

// Package catalog defines the schema and row storage interface consumed
// by the query-processing core, together with an in-memory
// implementation backed by an ordered btree row store.
//
// The catalog is the only resource shared between sessions. It
// serializes conflicting schema changes internally; the SQL layer only
// layers per-statement atomicity on top of the batch mutation
// primitives.
package catalog

import (
	"context"
	"fmt"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// ColumnDescriptor describes one column of a table.
type ColumnDescriptor struct {
	Name    string
	Type    parser.ColumnType
	NotNull bool
}

// TableDescriptor describes a table: its location in the namespace and
// its ordered column set.
type TableDescriptor struct {
	Schema  string
	Name    string
	Columns []ColumnDescriptor
}

// FindColumn returns the ordinal position of the named column, or -1.
func (d *TableDescriptor) FindColumn(name string) int {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// RowID identifies a stored row within its table for the duration of the
// row's life. IDs are never reused.
type RowID uint64

// Cursor is a lazy row iterator. Next returns the next row or ok=false
// once the cursor is exhausted. A cursor observes the table as of its
// creation; it never rewinds.
type Cursor interface {
	Next(ctx context.Context) (id RowID, row parser.DTuple, ok bool, err error)
}

// Catalog is the storage collaborator of the execution core. All row
// mutation methods are atomic: they apply every row of the batch or
// none.
type Catalog interface {
	CreateSchema(name string, ifNotExists bool) error
	DropSchema(name string, ifExists, cascade bool) error
	LookupSchema(name string) bool

	CreateTable(desc TableDescriptor, ifNotExists bool) error
	DropTable(schema, table string, ifExists bool) error
	LookupTable(schema, table string) (*TableDescriptor, error)

	Scan(ctx context.Context, schema, table string) (Cursor, error)
	Insert(ctx context.Context, schema, table string, rows []parser.DTuple) (int, error)
	Update(ctx context.Context, schema, table string, rows map[RowID]parser.DTuple) (int, error)
	Delete(ctx context.Context, schema, table string, ids []RowID) (int, error)
}

// ErrorKind discriminates catalog errors so the SQL layer can attach
// stable client-visible error codes.
type ErrorKind int

// The catalog error kinds.
const (
	SchemaAlreadyExists ErrorKind = iota
	SchemaDoesNotExist
	TableAlreadyExists
	TableDoesNotExist
	SchemaIsNotEmpty
)

// Error is a namespace error returned by catalog operations.
type Error struct {
	Kind   ErrorKind
	Object string
}

func (e *Error) Error() string {
	switch e.Kind {
	case SchemaAlreadyExists:
		return fmt.Sprintf("schema %q already exists", e.Object)
	case SchemaDoesNotExist:
		return fmt.Sprintf("schema %q does not exist", e.Object)
	case TableAlreadyExists:
		return fmt.Sprintf("table %q already exists", e.Object)
	case TableDoesNotExist:
		return fmt.Sprintf("table %q does not exist", e.Object)
	case SchemaIsNotEmpty:
		return fmt.Sprintf("schema %q is not empty", e.Object)
	}
	return fmt.Sprintf("catalog error on %q", e.Object)
}
