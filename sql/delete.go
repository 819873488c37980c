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

// deleteTemplate is a compiled DELETE: the validated target table and
// the optional row filter.
type deleteTemplate struct {
	catalog catalog.Catalog
	name    parser.TableName
	filter  exprNode
}

// StatementType implements the compiledStatement interface.
func (*deleteTemplate) StatementType() parser.StatementType { return parser.RowsAffected }

// Columns implements the compiledStatement interface.
func (*deleteTemplate) Columns() []ResultColumn { return nil }

// Tag implements the compiledStatement interface.
func (*deleteTemplate) Tag() string { return "DELETE" }

func (p *planner) compileDelete(n *parser.Delete) (*deleteTemplate, error) {
	desc, err := p.lookupTable(n.Table)
	if err != nil {
		return nil, err
	}
	t := &deleteTemplate{
		catalog: p.catalog,
		name:    resolveTableName(n.Table),
	}
	if n.Where != nil {
		filter, err := compileBoolExpr(n.Where, scopeFromTable(desc), &p.params)
		if err != nil {
			return nil, err
		}
		t.filter = filter
	}
	if err := checkCompiled(t.filter); err != nil {
		return nil, err
	}
	return t, nil
}

// exec collects the ids of every matching row, then removes them in one
// atomic catalog batch.
func (t *deleteTemplate) exec(ctx context.Context, evalCtx *evalContext) (int, error) {
	cursor, err := t.catalog.Scan(ctx, t.name.Schema, t.name.Table)
	if err != nil {
		return 0, convertCatalogError(err)
	}
	var ids []catalog.RowID
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
		if passes {
			ids = append(ids, id)
		}
	}
	n, err := t.catalog.Delete(ctx, t.name.Schema, t.name.Table, ids)
	if err != nil {
		return 0, convertCatalogError(err)
	}
	return n, nil
}
