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

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// passesFilter evaluates a filter expression against a row. A NULL
// filter result excludes the row, same as false.
func passesFilter(filter exprNode, evalCtx *evalContext, row parser.DTuple) (bool, error) {
	if filter == nil {
		return true, nil
	}
	evalCtx.row = row
	v, err := filter.eval(evalCtx)
	if err != nil {
		return false, err
	}
	b, ok := v.(parser.DBool)
	return ok && bool(b), nil
}

// valuesNode emits a fixed set of rows. A FROM-less SELECT runs over a
// single empty row.
type valuesNode struct {
	columns []ResultColumn
	rows    []parser.DTuple
	next    int
}

func (n *valuesNode) Columns() []ResultColumn { return n.columns }

func (n *valuesNode) Values() parser.DTuple {
	return n.rows[n.next-1]
}

func (n *valuesNode) Next(context.Context) (bool, error) {
	if n.next >= len(n.rows) {
		return false, nil
	}
	n.next++
	return true, nil
}

// filterNode discards source rows that fail the filter. It carries the
// conjuncts that could not be pushed down into a single scan.
type filterNode struct {
	source  planNode
	filter  exprNode
	evalCtx *evalContext
}

func (n *filterNode) Columns() []ResultColumn { return n.source.Columns() }

func (n *filterNode) Values() parser.DTuple { return n.source.Values() }

func (n *filterNode) Next(ctx context.Context) (bool, error) {
	for {
		ok, err := n.source.Next(ctx)
		if !ok || err != nil {
			return ok, err
		}
		passes, err := passesFilter(n.filter, n.evalCtx, n.source.Values())
		if err != nil {
			return false, err
		}
		if passes {
			return true, nil
		}
	}
}

// renderNode evaluates the projection expressions over each source row.
// Its output may carry hidden sort columns past the visible prefix;
// sortNode strips them.
type renderNode struct {
	source  planNode
	renders []exprNode
	columns []ResultColumn
	evalCtx *evalContext
	row     parser.DTuple
}

func (n *renderNode) Columns() []ResultColumn { return n.columns }

func (n *renderNode) Values() parser.DTuple { return n.row }

func (n *renderNode) Next(ctx context.Context) (bool, error) {
	ok, err := n.source.Next(ctx)
	if !ok || err != nil {
		return ok, err
	}
	n.evalCtx.row = n.source.Values()
	row := make(parser.DTuple, len(n.renders))
	for i, render := range n.renders {
		v, err := render.eval(n.evalCtx)
		if err != nil {
			return false, err
		}
		row[i] = v
	}
	n.row = row
	return true, nil
}

// limitNode stops the row stream after a fixed number of rows. The
// limit expression is evaluated once, on the first Next call.
type limitNode struct {
	source  planNode
	limit   exprNode
	evalCtx *evalContext

	evaluated bool
	remaining int64
}

func (n *limitNode) Columns() []ResultColumn { return n.source.Columns() }

func (n *limitNode) Values() parser.DTuple { return n.source.Values() }

func (n *limitNode) Next(ctx context.Context) (bool, error) {
	if !n.evaluated {
		v, err := evalRowLimit(n.limit, n.evalCtx)
		if err != nil {
			return false, err
		}
		n.evaluated = true
		n.remaining = v
	}
	if n.remaining <= 0 {
		return false, nil
	}
	ok, err := n.source.Next(ctx)
	if !ok || err != nil {
		return ok, err
	}
	n.remaining--
	return true, nil
}
