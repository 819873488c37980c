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
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// The compilation pipeline for expressions runs in four stages:
//
//  1. buildExpr translates the syntax tree into expression nodes,
//     resolving column references against the statement's scope. No
//     type work happens here.
//  2. inferTypes resolves types bottom-up: literals directly, parameter
//     placeholders from the operator or assignment context they appear
//     in, operator nodes from their children.
//  3. coerce makes differing operand types compatible by inserting
//     implicit cast chains found in the compatibility graph.
//  4. resolveOperators binds each operator node to its implementation
//     in the registry, keyed by symbol and operand signature, and
//     verifies the tree is fully typed.

// scopeColumn is one column visible to expressions of a statement.
type scopeColumn struct {
	table string
	name  string
	typ   parser.ColumnType
}

// scope is the ordered set of input columns for expression resolution.
type scope struct {
	cols []scopeColumn
}

func scopeFromTable(desc *catalog.TableDescriptor) *scope {
	sc := &scope{}
	sc.addTable(desc)
	return sc
}

func (sc *scope) addTable(desc *catalog.TableDescriptor) {
	for _, col := range desc.Columns {
		sc.cols = append(sc.cols, scopeColumn{table: desc.Name, name: col.Name, typ: col.Type})
	}
}

// resolve finds the ordinal of a column reference. Ambiguous and
// unknown references are user errors.
func (sc *scope) resolve(ref *parser.QualifiedName) (int, error) {
	found := -1
	for i, col := range sc.cols {
		if col.name != ref.Column {
			continue
		}
		if ref.Table != "" && col.table != ref.Table {
			continue
		}
		if found != -1 {
			return 0, newError(CodeUndefinedColumnError,
				"column reference %q is ambiguous", ref.String())
		}
		found = i
	}
	if found == -1 {
		return 0, undefinedColumnError(ref.String())
	}
	return found, nil
}

// paramRegistry tracks parameter placeholders across all expressions of
// one statement so every occurrence of $n shares a single node and
// every placeholder ends the pipeline with exactly one type.
type paramRegistry struct {
	params []*paramNode
}

// node returns the shared node for the one-based placeholder index,
// growing the registry as needed.
func (r *paramRegistry) node(idx int) *paramNode {
	for idx > len(r.params) {
		r.params = append(r.params, &paramNode{idx: len(r.params)})
	}
	return r.params[idx-1]
}

// applyHints seeds parameter types from the Parse message's type hints.
func (r *paramRegistry) applyHints(hints []parser.ColumnType) {
	for i, hint := range hints {
		if hint.Kind == parser.UnknownType {
			continue
		}
		r.node(i + 1).typ = hint
	}
}

// types returns the inferred type of every placeholder. A placeholder
// whose type is still unresolved is an inference failure.
func (r *paramRegistry) types() ([]parser.ColumnType, error) {
	out := make([]parser.ColumnType, len(r.params))
	for i, p := range r.params {
		if p.typ.Kind == parser.UnknownType {
			return nil, newError(CodeIndeterminateDatatypeError,
				"could not determine data type of parameter $%d", i+1)
		}
		out[i] = p.typ
	}
	return out, nil
}

// buildExpr is stage 1: structural translation of a syntax expression.
func buildExpr(e parser.Expr, sc *scope, params *paramRegistry) (exprNode, error) {
	switch t := e.(type) {
	case *parser.NumVal, *parser.StrVal, *parser.BoolVal, *parser.NullVal:
		return &constNode{raw: e}, nil
	case *parser.ValArg:
		return params.node(t.Idx), nil
	case *parser.QualifiedName:
		idx, err := sc.resolve(t)
		if err != nil {
			return nil, err
		}
		return &columnNode{name: t.String(), idx: idx, typ: sc.cols[idx].typ}, nil
	case *parser.BinaryExpr:
		left, err := buildExpr(t.Left, sc, params)
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(t.Right, sc, params)
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: t.Op, left: left, right: right}, nil
	case *parser.ComparisonExpr:
		left, err := buildExpr(t.Left, sc, params)
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(t.Right, sc, params)
		if err != nil {
			return nil, err
		}
		return &cmpNode{op: t.Op, left: left, right: right}, nil
	case *parser.AndExpr:
		left, err := buildExpr(t.Left, sc, params)
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(t.Right, sc, params)
		if err != nil {
			return nil, err
		}
		return &andNode{left: left, right: right}, nil
	case *parser.OrExpr:
		left, err := buildExpr(t.Left, sc, params)
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(t.Right, sc, params)
		if err != nil {
			return nil, err
		}
		return &orNode{left: left, right: right}, nil
	case *parser.NotExpr:
		input, err := buildExpr(t.Expr, sc, params)
		if err != nil {
			return nil, err
		}
		return &notNode{input: input}, nil
	case *parser.ParenExpr:
		return buildExpr(t.Expr, sc, params)
	}
	return nil, errors.AssertionFailedf("unknown expression node %T", e)
}

// inferTypes is stage 2: bottom-up type resolution. desired carries the
// surrounding context's type, used for literals that adapt (NULL) and
// for parameter placeholders.
func inferTypes(n exprNode, desired parser.ColumnType) error {
	switch t := n.(type) {
	case *constNode:
		return inferConst(t, desired)
	case *paramNode:
		if t.typ.Kind == parser.UnknownType && desired.Kind != parser.UnknownType {
			t.typ = desired
		}
		return nil
	case *columnNode:
		return nil
	case *binaryNode:
		if err := inferOperands(t.left, t.right, desired); err != nil {
			return err
		}
		// Provisional result type; operator resolution replaces it with
		// the registry implementation's result type.
		if common, ok := commonType(t.left.resolvedType().Kind, t.right.resolvedType().Kind); ok {
			t.typ = parser.ColumnType{Kind: common}
		}
		if t.op == parser.Concat {
			t.typ = parser.TypeVarChar(0)
		}
		return nil
	case *cmpNode:
		return inferOperands(t.left, t.right, parser.ColumnType{})
	case *andNode:
		if err := inferTypes(t.left, parser.TypeBool); err != nil {
			return err
		}
		return inferTypes(t.right, parser.TypeBool)
	case *orNode:
		if err := inferTypes(t.left, parser.TypeBool); err != nil {
			return err
		}
		return inferTypes(t.right, parser.TypeBool)
	case *notNode:
		return inferTypes(t.input, parser.TypeBool)
	case *castNode:
		return inferTypes(t.input, t.typ)
	}
	return errors.AssertionFailedf("unknown expression node %T", n)
}

// inferOperands resolves the two sides of an operator. A placeholder on
// one side takes its type from the other, known-typed side.
func inferOperands(left, right exprNode, desired parser.ColumnType) error {
	if err := inferTypes(left, desired); err != nil {
		return err
	}
	rightDesired := left.resolvedType()
	if rightDesired.Kind == parser.UnknownType {
		rightDesired = desired
	}
	if err := inferTypes(right, rightDesired); err != nil {
		return err
	}
	// Second chance for the left side: "$1 = col" resolves the
	// placeholder from the right operand.
	if left.resolvedType().Kind == parser.UnknownType {
		return inferTypes(left, right.resolvedType())
	}
	return nil
}

func inferConst(n *constNode, desired parser.ColumnType) error {
	if n.typ.Kind != parser.UnknownType {
		return nil
	}
	switch t := n.raw.(type) {
	case *parser.NumVal:
		if i, err := strconv.ParseInt(t.S, 10, 64); err == nil {
			n.val = parser.DInt(i)
			switch {
			case i >= math.MinInt32 && i <= math.MaxInt32:
				n.typ = parser.TypeInt
			default:
				n.typ = parser.TypeBigInt
			}
			return nil
		}
		d, err := decimal.NewFromString(t.S)
		if err != nil {
			return newError(CodeInvalidTextRepresentationError,
				"invalid numeric literal %q", t.S)
		}
		n.val = parser.DDecimal{Decimal: d}
		n.typ = parser.TypeDecimal
		return nil
	case *parser.StrVal:
		n.val = parser.DString(t.S)
		n.typ = parser.TypeVarChar(0)
		return nil
	case *parser.BoolVal:
		n.val = parser.DBool(t.Val)
		n.typ = parser.TypeBool
		return nil
	case *parser.NullVal:
		n.val = parser.DNull
		if desired.Kind != parser.UnknownType {
			n.typ = desired
		} else {
			n.typ = parser.TypeVarChar(0)
		}
		return nil
	}
	return errors.AssertionFailedf("unknown literal node %T", n.raw)
}

// coerce is stage 3: it rewrites the tree so that every operator's
// operands share one type, inserting implicit cast chains. Boolean
// connectives require bool operands outright.
func coerce(n exprNode) (exprNode, error) {
	switch t := n.(type) {
	case *constNode, *columnNode, *paramNode:
		return n, nil
	case *binaryNode:
		left, err := coerce(t.left)
		if err != nil {
			return nil, err
		}
		right, err := coerce(t.right)
		if err != nil {
			return nil, err
		}
		t.left, t.right, _, err = coerceBinaryOperands(left, right)
		if err != nil {
			return nil, err
		}
		return t, nil
	case *cmpNode:
		left, err := coerce(t.left)
		if err != nil {
			return nil, err
		}
		right, err := coerce(t.right)
		if err != nil {
			return nil, err
		}
		t.left, t.right, _, err = coerceBinaryOperands(left, right)
		if err != nil {
			return nil, err
		}
		return t, nil
	case *andNode:
		var err error
		if t.left, err = coerceBool(t.left); err != nil {
			return nil, err
		}
		if t.right, err = coerceBool(t.right); err != nil {
			return nil, err
		}
		return t, nil
	case *orNode:
		var err error
		if t.left, err = coerceBool(t.left); err != nil {
			return nil, err
		}
		if t.right, err = coerceBool(t.right); err != nil {
			return nil, err
		}
		return t, nil
	case *notNode:
		var err error
		if t.input, err = coerceBool(t.input); err != nil {
			return nil, err
		}
		return t, nil
	case *castNode:
		var err error
		if t.input, err = coerce(t.input); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, errors.AssertionFailedf("unknown expression node %T", n)
}

func coerceBool(n exprNode) (exprNode, error) {
	n, err := coerce(n)
	if err != nil {
		return nil, err
	}
	typ := n.resolvedType()
	if typ.Kind == parser.Bool {
		return n, nil
	}
	// A string constant in boolean context parses as a bool literal.
	if c, ok := n.(*constNode); ok && typ.Family() == parser.StringFamily {
		return &castNode{input: c, typ: parser.TypeBool}, nil
	}
	return nil, typeMismatchError(parser.TypeBool, typ)
}

// resolveOperators is stage 4: every operator node's symbol plus its
// resolved operand signature is looked up in the registry and the
// implementation cached on the node.
func resolveOperators(n exprNode) error {
	switch t := n.(type) {
	case *constNode, *columnNode, *paramNode:
		return nil
	case *binaryNode:
		if err := resolveOperators(t.left); err != nil {
			return err
		}
		if err := resolveOperators(t.right); err != nil {
			return err
		}
		impl, err := lookupBinOp(t.op, t.left.resolvedType())
		if err != nil {
			return err
		}
		t.fn = impl
		t.typ = impl.result
		return nil
	case *cmpNode:
		if err := resolveOperators(t.left); err != nil {
			return err
		}
		if err := resolveOperators(t.right); err != nil {
			return err
		}
		impl, err := lookupCmpOp(t.op, t.left.resolvedType())
		if err != nil {
			return err
		}
		t.fn = impl
		return nil
	case *andNode:
		if err := resolveOperators(t.left); err != nil {
			return err
		}
		return resolveOperators(t.right)
	case *orNode:
		if err := resolveOperators(t.left); err != nil {
			return err
		}
		return resolveOperators(t.right)
	case *notNode:
		return resolveOperators(t.input)
	case *castNode:
		return resolveOperators(t.input)
	}
	return errors.AssertionFailedf("unknown expression node %T", n)
}

// checkFullyTyped enforces the pipeline's closing invariant: a compiled
// tree carries exactly one resolved type on every node. A violation is
// an implementation defect, not a user error.
func checkFullyTyped(n exprNode) error {
	var failed error
	walkExpr(n, func(node exprNode) {
		if failed == nil && node.resolvedType().Kind == parser.UnknownType {
			failed = errors.AssertionFailedf("expression node %T left untyped by compilation", node)
		}
	})
	return failed
}

// compileExpr runs the full expression pipeline.
func compileExpr(e parser.Expr, sc *scope, desired parser.ColumnType, params *paramRegistry) (exprNode, error) {
	n, err := buildExpr(e, sc, params)
	if err != nil {
		return nil, err
	}
	if err := inferTypes(n, desired); err != nil {
		return nil, err
	}
	if desired.Kind != parser.UnknownType {
		if n, err = coerceAssign(n, desired); err != nil {
			return nil, err
		}
	}
	if n, err = coerce(n); err != nil {
		return nil, err
	}
	if err := resolveOperators(n); err != nil {
		return nil, err
	}
	return n, nil
}

// compileBoolExpr compiles a filter expression, requiring a boolean
// result.
func compileBoolExpr(e parser.Expr, sc *scope, params *paramRegistry) (exprNode, error) {
	n, err := buildExpr(e, sc, params)
	if err != nil {
		return nil, err
	}
	if err := inferTypes(n, parser.TypeBool); err != nil {
		return nil, err
	}
	if n, err = coerceBool(n); err != nil {
		return nil, err
	}
	if err := resolveOperators(n); err != nil {
		return nil, err
	}
	return n, nil
}

// resolveTableName fills in the default schema for unqualified table
// references. Name folding already happened in the scanner.
func resolveTableName(name parser.TableName) parser.TableName {
	if name.Schema == "" {
		name.Schema = catalog.DefaultSchema
	}
	name.Table = strings.ToLower(name.Table)
	return name
}
