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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

func testTableDesc(schema, name string) TableDescriptor {
	return TableDescriptor{
		Schema: schema,
		Name:   name,
		Columns: []ColumnDescriptor{
			{Name: "id", Type: parser.TypeInt, NotNull: true},
			{Name: "v", Type: parser.TypeVarChar(10)},
		},
	}
}

func TestMemNamespace(t *testing.T) {
	c := NewMem()

	require.True(t, c.LookupSchema(DefaultSchema))
	require.False(t, c.LookupSchema("sales"))

	require.NoError(t, c.CreateSchema("sales", false))
	err := c.CreateSchema("sales", false)
	require.Error(t, err)
	require.Equal(t, SchemaAlreadyExists, err.(*Error).Kind)
	require.NoError(t, c.CreateSchema("sales", true))

	require.NoError(t, c.CreateTable(testTableDesc("sales", "orders"), false))
	err = c.CreateTable(testTableDesc("sales", "orders"), false)
	require.Error(t, err)
	require.Equal(t, TableAlreadyExists, err.(*Error).Kind)
	require.NoError(t, c.CreateTable(testTableDesc("sales", "orders"), true))

	err = c.CreateTable(testTableDesc("nosuch", "t"), false)
	require.Error(t, err)
	require.Equal(t, SchemaDoesNotExist, err.(*Error).Kind)

	desc, err := c.LookupTable("sales", "orders")
	require.NoError(t, err)
	require.Len(t, desc.Columns, 2)
	require.Equal(t, 1, desc.FindColumn("v"))
	require.Equal(t, -1, desc.FindColumn("nope"))

	// A populated schema refuses to drop without cascade.
	err = c.DropSchema("sales", false, false)
	require.Error(t, err)
	require.Equal(t, SchemaIsNotEmpty, err.(*Error).Kind)
	require.NoError(t, c.DropSchema("sales", false, true))
	require.False(t, c.LookupSchema("sales"))

	err = c.DropSchema("sales", false, false)
	require.Equal(t, SchemaDoesNotExist, err.(*Error).Kind)
	require.NoError(t, c.DropSchema("sales", true, false))

	err = c.DropTable(DefaultSchema, "nope", false)
	require.Equal(t, TableDoesNotExist, err.(*Error).Kind)
	require.NoError(t, c.DropTable(DefaultSchema, "nope", true))
}

func TestMemRowLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewMem()
	require.NoError(t, c.CreateTable(testTableDesc(DefaultSchema, "t"), false))

	n, err := c.Insert(ctx, DefaultSchema, "t", []parser.DTuple{
		{parser.DInt(1), parser.DString("one")},
		{parser.DInt(2), parser.DString("two")},
		{parser.DInt(3), parser.DString("three")},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	collect := func(cur Cursor) []parser.DTuple {
		var rows []parser.DTuple
		for {
			_, row, ok, err := cur.Next(ctx)
			require.NoError(t, err)
			if !ok {
				return rows
			}
			rows = append(rows, row)
		}
	}

	cur, err := c.Scan(ctx, DefaultSchema, "t")
	require.NoError(t, err)
	rows := collect(cur)
	require.Len(t, rows, 3)
	// Insertion order is preserved by the monotonic row ids.
	require.Equal(t, parser.DString("one"), rows[0][1])
	require.Equal(t, parser.DString("three"), rows[2][1])

	// A cursor observes the table as of its creation.
	stale, err := c.Scan(ctx, DefaultSchema, "t")
	require.NoError(t, err)
	var ids []RowID
	oldRows := map[RowID]parser.DTuple{}
	cur, err = c.Scan(ctx, DefaultSchema, "t")
	require.NoError(t, err)
	for {
		id, row, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, id)
		oldRows[id] = row
	}

	n, err = c.Update(ctx, DefaultSchema, "t", map[RowID]parser.DTuple{
		ids[0]: {parser.DInt(10), parser.DString("ten")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = c.Delete(ctx, DefaultSchema, "t", ids[1:2])
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Equal(t, oldRows[ids[0]], collect(stale)[0],
		"snapshot cursor observed a later write")

	cur, err = c.Scan(ctx, DefaultSchema, "t")
	require.NoError(t, err)
	rows = collect(cur)
	require.Len(t, rows, 2)
	require.Equal(t, parser.DString("ten"), rows[0][1])

	// Deleting an already deleted row counts zero.
	n, err = c.Delete(ctx, DefaultSchema, "t", ids[1:2])
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestMemCursorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewMem()
	require.NoError(t, c.CreateTable(testTableDesc(DefaultSchema, "t"), false))
	_, err := c.Insert(ctx, DefaultSchema, "t", []parser.DTuple{{parser.DInt(1), parser.DNull}})
	require.NoError(t, err)

	cur, err := c.Scan(ctx, DefaultSchema, "t")
	require.NoError(t, err)
	cancel()
	_, _, _, err = cur.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// TestMemConcurrentCreateSchema races identical CREATE SCHEMA calls;
// exactly one must win.
func TestMemConcurrentCreateSchema(t *testing.T) {
	c := NewMem()
	const goroutines = 16
	errs := make([]error, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.CreateSchema("race", false)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.Equal(t, SchemaAlreadyExists, err.(*Error).Kind)
		}
	}
	require.Equal(t, 1, winners)
}
