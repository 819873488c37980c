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

// updateTemplate is a compiled UPDATE: the validated target table, one
// typed assignment per SET clause, and the optional row filter. SET
// expressions and the filter both see the old row values.
type updateTemplate struct {
	catalog catalog.Catalog
	name    parser.TableName
	desc    *catalog.TableDescriptor
	// assignments[i] writes exprs[i] into table ordinal targets[i].
	targets []int
	exprs   []exprNode
	filter  exprNode
}

// StatementType implements the compiledStatement interface.
func (*updateTemplate) StatementType() parser.StatementType { return parser.RowsAffected }

// Columns implements the compiledStatement interface.
func (*updateTemplate) Columns() []ResultColumn { return nil }

// Tag implements the compiledStatement interface.
func (*updateTemplate) Tag() string { return "UPDATE" }

func (p *planner) compileUpdate(n *parser.Update) (*updateTemplate, error) {
	desc, err := p.lookupTable(n.Table)
	if err != nil {
		return nil, err
	}
	t := &updateTemplate{
		catalog: p.catalog,
		name:    resolveTableName(n.Table),
		desc:    desc,
	}
	sc := scopeFromTable(desc)

	for _, set := range n.Exprs {
		idx := desc.FindColumn(set.Name)
		if idx == -1 {
			return nil, undefinedColumnError(set.Name)
		}
		e, err := compileExpr(set.Expr, sc, desc.Columns[idx].Type, &p.params)
		if err != nil {
			return nil, err
		}
		t.targets = append(t.targets, idx)
		t.exprs = append(t.exprs, e)
	}

	if n.Where != nil {
		filter, err := compileBoolExpr(n.Where, sc, &p.params)
		if err != nil {
			return nil, err
		}
		t.filter = filter
	}
	if err := checkCompiled(append([]exprNode{t.filter}, t.exprs...)...); err != nil {
		return nil, err
	}
	return t, nil
}

// exec scans the table, evaluates every assignment against each
// matching row, validates the new rows, then applies them in one
// atomic catalog batch. A failure on any row updates nothing.
func (t *updateTemplate) exec(ctx context.Context, evalCtx *evalContext) (int, error) {
	cursor, err := t.catalog.Scan(ctx, t.name.Schema, t.name.Table)
	if err != nil {
		return 0, convertCatalogError(err)
	}
	updated := make(map[catalog.RowID]parser.DTuple)
	for {
		id, row, ok, err := cursor.Next(ctx)
		if err != nil {
			return 0, convertCatalogError(err)
		}
		if !ok {
			break
		}
		passes, err := passesFilter(t.filter, evalCtx, row)
		if err != nil {
			return 0, err
		}
		if !passes {
			continue
		}
		// SET expressions see the old row values.
		evalCtx.row = row
		newRow := append(parser.DTuple(nil), row...)
		for i, e := range t.exprs {
			v, err := e.eval(evalCtx)
			if err != nil {
				return 0, err
			}
			newRow[t.targets[i]] = v
		}
		for i, col := range t.desc.Columns {
			if col.NotNull && newRow[i] == parser.DNull {
				return 0, notNullViolationError(col.Name)
			}
		}
		updated[id] = newRow
	}
	n, err := t.catalog.Update(ctx, t.name.Schema, t.name.Table, updated)
	if err != nil {
		return 0, convertCatalogError(err)
	}
	return n, nil
}
