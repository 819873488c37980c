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

package catalog

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// DefaultSchema is the schema unqualified table names resolve to.
const DefaultSchema = "public"

type memRow struct {
	id  RowID
	row parser.DTuple
}

func memRowLess(a, b memRow) bool {
	return a.id < b.id
}

type memTable struct {
	desc TableDescriptor
	rows *btree.BTreeG[memRow]
}

type memSchema struct {
	tables map[string]*memTable
}

// MemCatalog is an in-memory Catalog. A single mutex linearizes all
// namespace changes and row mutations, which is what gives two racing
// CREATE SCHEMA statements exactly one winner. Scans iterate over a
// copy-on-write clone of the row tree, so they stay lazy without
// holding the lock.
type MemCatalog struct {
	mu      sync.RWMutex
	schemas map[string]*memSchema
	nextID  RowID
}

var _ Catalog = (*MemCatalog)(nil)

// NewMem returns an empty in-memory catalog holding only the default
// "public" schema.
func NewMem() *MemCatalog {
	return &MemCatalog{
		schemas: map[string]*memSchema{
			DefaultSchema: {tables: map[string]*memTable{}},
		},
	}
}

// CreateSchema implements the Catalog interface.
func (c *MemCatalog) CreateSchema(name string, ifNotExists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.schemas[name]; ok {
		if ifNotExists {
			return nil
		}
		return &Error{Kind: SchemaAlreadyExists, Object: name}
	}
	c.schemas[name] = &memSchema{tables: map[string]*memTable{}}
	return nil
}

// DropSchema implements the Catalog interface.
func (c *MemCatalog) DropSchema(name string, ifExists, cascade bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schemas[name]
	if !ok {
		if ifExists {
			return nil
		}
		return &Error{Kind: SchemaDoesNotExist, Object: name}
	}
	if len(s.tables) > 0 && !cascade {
		return &Error{Kind: SchemaIsNotEmpty, Object: name}
	}
	delete(c.schemas, name)
	return nil
}

// LookupSchema implements the Catalog interface.
func (c *MemCatalog) LookupSchema(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.schemas[name]
	return ok
}

// CreateTable implements the Catalog interface.
func (c *MemCatalog) CreateTable(desc TableDescriptor, ifNotExists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schemas[desc.Schema]
	if !ok {
		return &Error{Kind: SchemaDoesNotExist, Object: desc.Schema}
	}
	if _, ok := s.tables[desc.Name]; ok {
		if ifNotExists {
			return nil
		}
		return &Error{Kind: TableAlreadyExists, Object: desc.Schema + "." + desc.Name}
	}
	s.tables[desc.Name] = &memTable{
		desc: desc,
		rows: btree.NewG(8, memRowLess),
	}
	return nil
}

// DropTable implements the Catalog interface.
func (c *MemCatalog) DropTable(schema, table string, ifExists bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schemas[schema]
	if !ok {
		if ifExists {
			return nil
		}
		return &Error{Kind: SchemaDoesNotExist, Object: schema}
	}
	if _, ok := s.tables[table]; !ok {
		if ifExists {
			return nil
		}
		return &Error{Kind: TableDoesNotExist, Object: schema + "." + table}
	}
	delete(s.tables, table)
	return nil
}

// LookupTable implements the Catalog interface.
func (c *MemCatalog) LookupTable(schema, table string) (*TableDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, err := c.lookupTableLocked(schema, table)
	if err != nil {
		return nil, err
	}
	desc := t.desc
	return &desc, nil
}

func (c *MemCatalog) lookupTableLocked(schema, table string) (*memTable, error) {
	s, ok := c.schemas[schema]
	if !ok {
		return nil, &Error{Kind: SchemaDoesNotExist, Object: schema}
	}
	t, ok := s.tables[table]
	if !ok {
		return nil, &Error{Kind: TableDoesNotExist, Object: schema + "." + table}
	}
	return t, nil
}

// memCursor iterates a copy-on-write clone of a table's row tree. Each
// Next re-seeks past the last returned id, so the cursor never rewinds
// and never materializes the table.
type memCursor struct {
	tree *btree.BTreeG[memRow]
	next RowID
}

// Next implements the Cursor interface.
func (cur *memCursor) Next(ctx context.Context) (RowID, parser.DTuple, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, false, err
	}
	var found *memRow
	cur.tree.AscendGreaterOrEqual(memRow{id: cur.next}, func(r memRow) bool {
		found = &r
		return false
	})
	if found == nil {
		return 0, nil, false, nil
	}
	cur.next = found.id + 1
	return found.id, found.row, true, nil
}

// Scan implements the Catalog interface.
func (c *MemCatalog) Scan(ctx context.Context, schema, table string) (Cursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, err := c.lookupTableLocked(schema, table)
	if err != nil {
		return nil, err
	}
	return &memCursor{tree: t.rows.Clone()}, nil
}

// Insert implements the Catalog interface.
func (c *MemCatalog) Insert(ctx context.Context, schema, table string, rows []parser.DTuple) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookupTableLocked(schema, table)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		c.nextID++
		t.rows.ReplaceOrInsert(memRow{id: c.nextID, row: row})
	}
	return len(rows), nil
}

// Update implements the Catalog interface.
func (c *MemCatalog) Update(ctx context.Context, schema, table string, rows map[RowID]parser.DTuple) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookupTableLocked(schema, table)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, row := range rows {
		if _, ok := t.rows.Get(memRow{id: id}); ok {
			t.rows.ReplaceOrInsert(memRow{id: id, row: row})
			n++
		}
	}
	return n, nil
}

// Delete implements the Catalog interface.
func (c *MemCatalog) Delete(ctx context.Context, schema, table string, ids []RowID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.lookupTableLocked(schema, table)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, ok := t.rows.Delete(memRow{id: id}); ok {
			n++
		}
	}
	return n, nil
}
