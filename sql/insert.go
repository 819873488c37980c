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

// insertTemplate is a compiled INSERT: the validated target table, the
// target column ordinals, and the typed value expressions for each row.
type insertTemplate struct {
	catalog catalog.Catalog
	name    parser.TableName
	desc    *catalog.TableDescriptor
	// targets[i] is the table ordinal the i-th value of each row feeds.
	targets []int
	rows    [][]exprNode
}

// StatementType implements the compiledStatement interface.
func (*insertTemplate) StatementType() parser.StatementType { return parser.RowsAffected }

// Columns implements the compiledStatement interface.
func (*insertTemplate) Columns() []ResultColumn { return nil }

// Tag implements the compiledStatement interface.
func (*insertTemplate) Tag() string { return "INSERT" }

func (p *planner) compileInsert(n *parser.Insert) (*insertTemplate, error) {
	desc, err := p.lookupTable(n.Table)
	if err != nil {
		return nil, err
	}
	t := &insertTemplate{
		catalog: p.catalog,
		name:    resolveTableName(n.Table),
		desc:    desc,
	}

	if len(n.Columns) == 0 {
		for i := range desc.Columns {
			t.targets = append(t.targets, i)
		}
	} else {
		for _, name := range n.Columns {
			idx := desc.FindColumn(name)
			if idx == -1 {
				return nil, undefinedColumnError(name)
			}
			t.targets = append(t.targets, idx)
		}
	}

	for _, row := range n.Rows {
		if len(row) != len(t.targets) {
			return nil, newError(CodeSyntaxError,
				"INSERT has %d expressions but %d target columns", len(row), len(t.targets))
		}
		compiled := make([]exprNode, len(row))
		for i, e := range row {
			colType := desc.Columns[t.targets[i]].Type
			c, err := compileExpr(e, &scope{}, colType, &p.params)
			if err != nil {
				return nil, err
			}
			compiled[i] = c
		}
		t.rows = append(t.rows, compiled)
	}
	if err := checkCompiledRows(t.rows); err != nil {
		return nil, err
	}
	return t, nil
}

// exec evaluates and validates every row, then writes them in one
// atomic catalog batch. A failure on any row inserts nothing.
func (t *insertTemplate) exec(ctx context.Context, evalCtx *evalContext) (int, error) {
	rows := make([]parser.DTuple, 0, len(t.rows))
	for _, exprs := range t.rows {
		row := make(parser.DTuple, len(t.desc.Columns))
		for i := range row {
			row[i] = parser.DNull
		}
		for i, e := range exprs {
			v, err := e.eval(evalCtx)
			if err != nil {
				return 0, err
			}
			row[t.targets[i]] = v
		}
		for i, col := range t.desc.Columns {
			if col.NotNull && row[i] == parser.DNull {
				return 0, notNullViolationError(col.Name)
			}
		}
		rows = append(rows, row)
	}
	n, err := t.catalog.Insert(ctx, t.name.Schema, t.name.Table, rows)
	if err != nil {
		return 0, convertCatalogError(err)
	}
	return n, nil
}

func checkCompiledRows(rows [][]exprNode) error {
	for _, row := range rows {
		if err := checkCompiled(row...); err != nil {
			return err
		}
	}
	return nil
}
