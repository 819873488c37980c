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
	"github.com/cockroachdb/errors"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// exprNode is one node of the query expression tree. The same tree moves
// through the compilation pipeline: structural construction leaves types
// unresolved, type inference fills them in, coercion inserts cast nodes,
// and operator binding attaches the evaluation functions. After the
// pipeline succeeds every node carries exactly one resolved type.
type exprNode interface {
	// resolvedType returns the node's type. Kind is UnknownType until
	// inference has visited the node.
	resolvedType() parser.ColumnType
	// eval computes the node's value against the current row context.
	// It must only be called on a fully compiled tree.
	eval(ctx *evalContext) (parser.Datum, error)
}

// evalContext carries the per-row state needed to evaluate a compiled
// expression: the current input row and the portal's bound parameters.
type evalContext struct {
	row  parser.DTuple
	args parser.DTuple
}

// constNode is a literal. Inference turns the untyped literal text into
// a datum and a concrete type.
type constNode struct {
	// raw is the syntax-tree literal, kept until inference.
	raw parser.Expr
	val parser.Datum
	typ parser.ColumnType
}

func (n *constNode) resolvedType() parser.ColumnType { return n.typ }

func (n *constNode) eval(*evalContext) (parser.Datum, error) {
	if n.typ.Kind == parser.UnknownType {
		return nil, errors.AssertionFailedf("constant %s evaluated before inference", n.raw)
	}
	return n.val, nil
}

// columnNode is a reference to a column of the statement's input row,
// resolved against the catalog during construction.
type columnNode struct {
	name string
	idx  int
	typ  parser.ColumnType
}

func (n *columnNode) resolvedType() parser.ColumnType { return n.typ }

func (n *columnNode) eval(ctx *evalContext) (parser.Datum, error) {
	if n.idx >= len(ctx.row) {
		return nil, errors.AssertionFailedf("column %q ordinal %d outside row of %d values",
			n.name, n.idx, len(ctx.row))
	}
	return ctx.row[n.idx], nil
}

// paramNode is a positional parameter placeholder. Its type is derived
// from the operator or assignment context it appears in; a placeholder
// left untyped after inference fails compilation.
type paramNode struct {
	idx int // zero-based
	typ parser.ColumnType
}

func (n *paramNode) resolvedType() parser.ColumnType { return n.typ }

func (n *paramNode) eval(ctx *evalContext) (parser.Datum, error) {
	if n.idx >= len(ctx.args) {
		return nil, errors.AssertionFailedf("parameter $%d has no bound value", n.idx+1)
	}
	return ctx.args[n.idx], nil
}

// binaryNode is an arithmetic or string operator. fn is bound exactly
// once, during operator resolution; evaluation never re-dispatches on
// operand types.
type binaryNode struct {
	op          parser.BinaryOp
	left, right exprNode
	typ         parser.ColumnType
	fn          *binOpImpl
}

func (n *binaryNode) resolvedType() parser.ColumnType { return n.typ }

func (n *binaryNode) eval(ctx *evalContext) (parser.Datum, error) {
	if n.fn == nil {
		return nil, errors.AssertionFailedf("operator %s evaluated before resolution", n.op)
	}
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == parser.DNull || r == parser.DNull {
		return parser.DNull, nil
	}
	return n.fn.fn(l, r)
}

// cmpNode is a comparison. Like binaryNode, its implementation is bound
// once during operator resolution.
type cmpNode struct {
	op          parser.ComparisonOp
	left, right exprNode
	fn          *cmpOpImpl
}

func (n *cmpNode) resolvedType() parser.ColumnType { return parser.TypeBool }

func (n *cmpNode) eval(ctx *evalContext) (parser.Datum, error) {
	if n.fn == nil {
		return nil, errors.AssertionFailedf("comparison %s evaluated before resolution", n.op)
	}
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == parser.DNull || r == parser.DNull {
		return parser.DNull, nil
	}
	return n.fn.fn(l, r)
}

// andNode, orNode and notNode implement boolean connectives with SQL
// three-valued NULL handling.
type andNode struct {
	left, right exprNode
}

func (n *andNode) resolvedType() parser.ColumnType { return parser.TypeBool }

func (n *andNode) eval(ctx *evalContext) (parser.Datum, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == parser.DBool(false) {
		return parser.DBool(false), nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if r == parser.DBool(false) {
		return parser.DBool(false), nil
	}
	if l == parser.DNull || r == parser.DNull {
		return parser.DNull, nil
	}
	return parser.DBool(true), nil
}

type orNode struct {
	left, right exprNode
}

func (n *orNode) resolvedType() parser.ColumnType { return parser.TypeBool }

func (n *orNode) eval(ctx *evalContext) (parser.Datum, error) {
	l, err := n.left.eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == parser.DBool(true) {
		return parser.DBool(true), nil
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return nil, err
	}
	if r == parser.DBool(true) {
		return parser.DBool(true), nil
	}
	if l == parser.DNull || r == parser.DNull {
		return parser.DNull, nil
	}
	return parser.DBool(false), nil
}

type notNode struct {
	input exprNode
}

func (n *notNode) resolvedType() parser.ColumnType { return parser.TypeBool }

func (n *notNode) eval(ctx *evalContext) (parser.Datum, error) {
	v, err := n.input.eval(ctx)
	if err != nil {
		return nil, err
	}
	if v == parser.DNull {
		return parser.DNull, nil
	}
	b, ok := v.(parser.DBool)
	if !ok {
		return nil, errors.AssertionFailedf("NOT applied to %s", v.Type())
	}
	return !b, nil
}

// castNode is an implicit cast inserted by the coercion stage. One node
// represents one hop of the cast chain.
type castNode struct {
	input exprNode
	typ   parser.ColumnType
}

func (n *castNode) resolvedType() parser.ColumnType { return n.typ }

func (n *castNode) eval(ctx *evalContext) (parser.Datum, error) {
	v, err := n.input.eval(ctx)
	if err != nil {
		return nil, err
	}
	if v == parser.DNull {
		return parser.DNull, nil
	}
	return performCast(v, n.input.resolvedType(), n.typ)
}

// walkExpr visits every node of an expression tree in depth-first order.
func walkExpr(n exprNode, visit func(exprNode)) {
	visit(n)
	switch t := n.(type) {
	case *binaryNode:
		walkExpr(t.left, visit)
		walkExpr(t.right, visit)
	case *cmpNode:
		walkExpr(t.left, visit)
		walkExpr(t.right, visit)
	case *andNode:
		walkExpr(t.left, visit)
		walkExpr(t.right, visit)
	case *orNode:
		walkExpr(t.left, visit)
		walkExpr(t.right, visit)
	case *notNode:
		walkExpr(t.input, visit)
	case *castNode:
		walkExpr(t.input, visit)
	}
}
