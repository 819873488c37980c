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

	"github.com/cockroachdb/errors"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// planner combines session state and catalog access with the logic for
// compiling a single SQL statement. A planner is created per statement
// compilation; it owns the statement's parameter registry.
type planner struct {
	catalog catalog.Catalog
	session *Session
	params  paramRegistry
}

// compiledStatement is a fully compiled statement template: every
// expression it holds is typed and operator-resolved, every relation
// reference validated. Binding parameter values to a template yields an
// executable portal.
type compiledStatement interface {
	// StatementType reports the result shape the statement produces.
	StatementType() parser.StatementType
	// Columns returns the result column descriptors, nil for
	// non-row-returning statements.
	Columns() []ResultColumn
	// Tag returns the command tag prefix, e.g. "SELECT".
	Tag() string
}

// compile turns one parsed statement into a compiled template. hints
// seeds parameter types from the wire Parse message.
func (p *planner) compile(stmt parser.Statement, hints []parser.ColumnType) (compiledStatement, error) {
	p.params.applyHints(hints)
	switch n := stmt.(type) {
	case *parser.CreateSchema, *parser.DropSchema, *parser.CreateTable, *parser.DropTable:
		return p.compileSchemaChange(stmt)
	case *parser.Insert:
		return p.compileInsert(n)
	case *parser.Update:
		return p.compileUpdate(n)
	case *parser.Delete:
		return p.compileDelete(n)
	case *parser.Select:
		return p.compileSelect(n)
	}
	return nil, newError(CodeFeatureNotSupportedError, "unsupported statement: %T", stmt)
}

// lookupTable validates a table reference against the catalog.
func (p *planner) lookupTable(name parser.TableName) (*catalog.TableDescriptor, error) {
	name = resolveTableName(name)
	desc, err := p.catalog.LookupTable(name.Schema, name.Table)
	if err != nil {
		return nil, convertCatalogError(err)
	}
	return desc, nil
}

// planNode is one operator of a read execution pipeline. Rows are
// pulled lazily: Next advances to the next row, whose values stay valid
// until the following Next call. A plan node never rewinds.
type planNode interface {
	// Columns returns the column descriptors. The length of the returned
	// slice equals the length of the tuple returned by Values.
	Columns() []ResultColumn
	// Next advances to the next row, returning false at the end of the
	// row stream or on error.
	Next(ctx context.Context) (bool, error)
	// Values returns the values of the current row.
	Values() parser.DTuple
}

var _ planNode = &scanNode{}
var _ planNode = &filterNode{}
var _ planNode = &renderNode{}
var _ planNode = &sortNode{}
var _ planNode = &joinNode{}
var _ planNode = &valuesNode{}
var _ planNode = &limitNode{}

// checkCompiled asserts that an expression survived the pipeline fully
// typed before it is admitted into a plan.
func checkCompiled(exprs ...exprNode) error {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if err := checkFullyTyped(e); err != nil {
			return err
		}
	}
	return nil
}

// splitConjuncts flattens the top-level AND chain of a compiled filter.
func splitConjuncts(n exprNode, out []exprNode) []exprNode {
	if and, ok := n.(*andNode); ok {
		out = splitConjuncts(and.left, out)
		return splitConjuncts(and.right, out)
	}
	return append(out, n)
}

// joinConjuncts rebuilds a filter from conjuncts, or nil when empty.
func joinConjuncts(conjuncts []exprNode) exprNode {
	var out exprNode
	for _, c := range conjuncts {
		if out == nil {
			out = c
		} else {
			out = &andNode{left: out, right: c}
		}
	}
	return out
}

// columnSpan returns the half-open ordinal range of columns referenced
// by a compiled expression, or ok=false if it references none.
func columnSpan(n exprNode) (lo, hi int, ok bool) {
	lo, hi = -1, -1
	walkExpr(n, func(node exprNode) {
		if col, isCol := node.(*columnNode); isCol {
			if lo == -1 || col.idx < lo {
				lo = col.idx
			}
			if col.idx+1 > hi {
				hi = col.idx + 1
			}
		}
	})
	return lo, hi, lo != -1
}

// rebindColumns shifts every column ordinal in a compiled expression by
// -offset, rebasing it from a combined scope onto a single table scope.
func rebindColumns(n exprNode, offset int) {
	walkExpr(n, func(node exprNode) {
		if col, ok := node.(*columnNode); ok {
			col.idx -= offset
		}
	})
}

// evalRowLimit evaluates a LIMIT expression to a non-negative count.
func evalRowLimit(e exprNode, ctx *evalContext) (int64, error) {
	v, err := e.eval(ctx)
	if err != nil {
		return 0, err
	}
	if v == parser.DNull {
		return -1, nil
	}
	i, ok := v.(parser.DInt)
	if !ok {
		return 0, typeMismatchError(parser.TypeBigInt, e.resolvedType())
	}
	if i < 0 {
		return 0, newError(CodeDatatypeMismatchError, "LIMIT must not be negative")
	}
	return int64(i), nil
}

// errInternal converts a stray panic value during plan execution into
// an assertion failure.
func errInternal(r interface{}) error {
	if err, ok := r.(error); ok {
		return errors.AssertionFailedf("internal error: %v", err)
	}
	return errors.AssertionFailedf("internal error: %v", r)
}
