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

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// tableSource is one FROM relation of a compiled read statement,
// together with the filter conjuncts pushed down into its scan. Pushed
// filter ordinals are local to the table's own columns.
type tableSource struct {
	name   parser.TableName
	desc   *catalog.TableDescriptor
	filter exprNode
	// offset of this table's first column in the combined scope.
	offset int
}

// sortSpec orders the plan's output by one render column.
type sortSpec struct {
	renderIdx int
	desc      bool
}

// selectTemplate is the compiled form of a SELECT: validated sources,
// typed filter and projection expressions, and the physical operator
// order. Binding parameters to the template yields a runnable plan.
type selectTemplate struct {
	catalog catalog.Catalog

	sources    []tableSource
	joinFilter exprNode

	renders []exprNode
	columns []ResultColumn
	// renders[:numVisible] are client-visible; the tail holds hidden
	// sort columns.
	numVisible int

	ordering []sortSpec
	limit    exprNode
}

// StatementType implements the compiledStatement interface.
func (*selectTemplate) StatementType() parser.StatementType { return parser.Rows }

// Columns implements the compiledStatement interface.
func (t *selectTemplate) Columns() []ResultColumn {
	return t.columns[:t.numVisible]
}

// Tag implements the compiledStatement interface.
func (*selectTemplate) Tag() string { return "SELECT" }

// compileSelect compiles a SELECT statement into a template. The
// physical operator order is fixed: scan (with pushed filters), nested
// loop joins in FROM order, remaining filter, project, sort, limit.
func (p *planner) compileSelect(n *parser.Select) (*selectTemplate, error) {
	t := &selectTemplate{catalog: p.catalog}

	// Validate sources and assemble the combined scope.
	sc := &scope{}
	for _, from := range n.From {
		desc, err := p.lookupTable(from)
		if err != nil {
			return nil, err
		}
		t.sources = append(t.sources, tableSource{
			name:   resolveTableName(from),
			desc:   desc,
			offset: len(sc.cols),
		})
		sc.addTable(desc)
	}

	// Projection list.
	for _, sel := range n.Exprs {
		if sel.Star {
			if len(t.sources) == 0 {
				return nil, newError(CodeSyntaxError,
					"SELECT * with no tables specified is not valid")
			}
			for i, col := range sc.cols {
				t.renders = append(t.renders, &columnNode{name: col.name, idx: i, typ: col.typ})
				t.columns = append(t.columns, ResultColumn{Name: col.name, Typ: col.typ})
			}
			continue
		}
		e, err := compileExpr(sel.Expr, sc, parser.ColumnType{}, &p.params)
		if err != nil {
			return nil, err
		}
		name := sel.As
		if name == "" {
			if qname, ok := sel.Expr.(*parser.QualifiedName); ok {
				name = qname.Column
			} else {
				name = sel.Expr.String()
			}
		}
		t.renders = append(t.renders, e)
		t.columns = append(t.columns, ResultColumn{Name: name, Typ: e.resolvedType()})
	}
	t.numVisible = len(t.renders)

	// Filter: push single-relation conjuncts into their scans, keep the
	// rest for evaluation above the join.
	if n.Where != nil {
		filter, err := compileBoolExpr(n.Where, sc, &p.params)
		if err != nil {
			return nil, err
		}
		var joinConj []exprNode
		for _, conj := range splitConjuncts(filter, nil) {
			src := t.sourceForConjunct(conj)
			if src == nil {
				joinConj = append(joinConj, conj)
				continue
			}
			rebindColumns(conj, src.offset)
			if src.filter == nil {
				src.filter = conj
			} else {
				src.filter = &andNode{left: src.filter, right: conj}
			}
		}
		t.joinFilter = joinConjuncts(joinConj)
	}

	// ORDER BY resolves against the projection first: by position, by
	// output label, and finally as an arbitrary expression over the
	// sources, appended as a hidden render column.
	for _, order := range n.OrderBy {
		idx, err := t.resolveOrderTarget(order.Expr, sc, &p.params)
		if err != nil {
			return nil, err
		}
		t.ordering = append(t.ordering, sortSpec{renderIdx: idx, desc: order.Desc})
	}

	if n.Limit != nil {
		e, err := compileExpr(n.Limit, sc, parser.TypeBigInt, &p.params)
		if err != nil {
			return nil, err
		}
		t.limit = e
	}

	if err := checkCompiled(append([]exprNode{t.joinFilter, t.limit}, t.renders...)...); err != nil {
		return nil, err
	}
	return t, nil
}

// sourceForConjunct returns the single source whose columns cover the
// conjunct, or nil when the conjunct spans tables or references none.
func (t *selectTemplate) sourceForConjunct(conj exprNode) *tableSource {
	if len(t.sources) == 1 {
		return &t.sources[0]
	}
	lo, hi, ok := columnSpan(conj)
	if !ok {
		return nil
	}
	for i := range t.sources {
		src := &t.sources[i]
		if lo >= src.offset && hi <= src.offset+len(src.desc.Columns) {
			return src
		}
	}
	return nil
}

func (t *selectTemplate) resolveOrderTarget(e parser.Expr, sc *scope, params *paramRegistry) (int, error) {
	// Positional reference: ORDER BY 2.
	if num, ok := e.(*parser.NumVal); ok {
		pos, err := strconv.Atoi(num.S)
		if err != nil || pos < 1 || pos > t.numVisible {
			return 0, newError(CodeUndefinedColumnError,
				"ORDER BY position %s is not in select list", num.S)
		}
		return pos - 1, nil
	}
	// Output label reference.
	if qname, ok := e.(*parser.QualifiedName); ok && qname.Table == "" {
		for i := 0; i < t.numVisible; i++ {
			if t.columns[i].Name == qname.Column {
				return i, nil
			}
		}
	}
	// Arbitrary expression over the sources, as a hidden sort column.
	compiled, err := compileExpr(e, sc, parser.ColumnType{}, params)
	if err != nil {
		return 0, err
	}
	t.renders = append(t.renders, compiled)
	t.columns = append(t.columns, ResultColumn{Name: e.String(), Typ: compiled.resolvedType()})
	return len(t.renders) - 1, nil
}

// newPlan instantiates the physical operator chain for one execution.
// The chain pulls rows lazily from the catalog; nothing is
// materialized before the first output row except inside sort, which
// cannot emit until its input is exhausted.
func (t *selectTemplate) newPlan(evalCtx *evalContext) planNode {
	var plan planNode
	if len(t.sources) == 0 {
		plan = &valuesNode{rows: []parser.DTuple{{}}}
	} else {
		plan = newScanNode(t.catalog, &t.sources[0], evalCtx)
		for i := 1; i < len(t.sources); i++ {
			src := &t.sources[i]
			plan = &joinNode{
				left: plan,
				newRight: func() planNode {
					return newScanNode(t.catalog, src, evalCtx)
				},
			}
		}
	}
	if t.joinFilter != nil {
		plan = &filterNode{source: plan, filter: t.joinFilter, evalCtx: evalCtx}
	}
	plan = &renderNode{
		source:  plan,
		renders: t.renders,
		columns: t.columns,
		evalCtx: evalCtx,
	}
	if len(t.ordering) > 0 {
		plan = &sortNode{source: plan, ordering: t.ordering, visible: t.numVisible}
	}
	if t.limit != nil {
		plan = &limitNode{source: plan, limit: t.limit, evalCtx: evalCtx}
	}
	return plan
}
