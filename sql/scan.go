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
	"context"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// scanNode reads a table through a catalog cursor and applies the
// filter conjuncts pushed down into the scan. The cursor is opened on
// the first Next call so that an unexecuted plan touches no data.
type scanNode struct {
	cat     catalog.Catalog
	name    parser.TableName
	desc    *catalog.TableDescriptor
	filter  exprNode
	evalCtx *evalContext

	cursor  catalog.Cursor
	columns []ResultColumn
	rowID   catalog.RowID
	row     parser.DTuple
	err     error
}

func newScanNode(cat catalog.Catalog, src *tableSource, evalCtx *evalContext) *scanNode {
	n := &scanNode{
		cat:     cat,
		name:    src.name,
		desc:    src.desc,
		filter:  src.filter,
		evalCtx: evalCtx,
	}
	for _, col := range src.desc.Columns {
		n.columns = append(n.columns, ResultColumn{Name: col.Name, Typ: col.Type})
	}
	return n
}

func (n *scanNode) Columns() []ResultColumn { return n.columns }

func (n *scanNode) Values() parser.DTuple { return n.row }

func (n *scanNode) Next(ctx context.Context) (bool, error) {
	if n.err != nil {
		return false, n.err
	}
	if n.cursor == nil {
		cursor, err := n.cat.Scan(ctx, n.name.Schema, n.name.Table)
		if err != nil {
			n.err = convertCatalogError(err)
			return false, n.err
		}
		n.cursor = cursor
	}
	for {
		id, row, ok, err := n.cursor.Next(ctx)
		if err != nil {
			n.err = convertCatalogError(err)
			return false, n.err
		}
		if !ok {
			return false, nil
		}
		n.rowID, n.row = id, row
		passes, err := passesFilter(n.filter, n.evalCtx, n.row)
		if err != nil {
			n.err = err
			return false, err
		}
		if passes {
			return true, nil
		}
	}
}
