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

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// The implicit-cast compatibility graph. A directed edge means the
// source type may be implicitly widened to the destination without a
// runtime failure. Costs are uniform, so the minimal-cost chain is the
// shortest path; paths between every pair are precomputed at init.
var castEdges = map[parser.TypeKind][]parser.TypeKind{
	parser.SmallInt: {parser.Int},
	parser.Int:      {parser.BigInt},
	parser.BigInt:   {parser.Decimal},
	parser.Decimal:  {parser.Double},
	parser.Real:     {parser.Double},
	parser.Char:     {parser.VarChar},
}

var castKinds = []parser.TypeKind{
	parser.Bool, parser.SmallInt, parser.Int, parser.BigInt,
	parser.Real, parser.Double, parser.Decimal, parser.Char, parser.VarChar,
}

// castPaths[from][to] holds the implicit widening chain from one kind to
// another, excluding the source and including the destination. A missing
// entry means no implicit cast exists.
var castPaths = func() map[parser.TypeKind]map[parser.TypeKind][]parser.TypeKind {
	paths := make(map[parser.TypeKind]map[parser.TypeKind][]parser.TypeKind, len(castKinds))
	for _, from := range castKinds {
		// Breadth-first walk gives minimal-cost chains under uniform
		// edge costs.
		dist := map[parser.TypeKind][]parser.TypeKind{from: {}}
		queue := []parser.TypeKind{from}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range castEdges[cur] {
				if _, seen := dist[next]; seen {
					continue
				}
				chain := append(append([]parser.TypeKind{}, dist[cur]...), next)
				dist[next] = chain
				queue = append(queue, next)
			}
		}
		delete(dist, from)
		paths[from] = dist
	}
	return paths
}()

// castPath returns the implicit cast chain from one kind to another, or
// ok=false when the graph has no path.
func castPath(from, to parser.TypeKind) ([]parser.TypeKind, bool) {
	if from == to {
		return nil, true
	}
	chain, ok := castPaths[from][to]
	return chain, ok
}

// commonType finds the cheapest type both operand kinds implicitly reach.
// Ties are broken in favor of the type closest to the left operand.
func commonType(left, right parser.TypeKind) (parser.TypeKind, bool) {
	if left == right {
		return left, true
	}
	best := parser.UnknownType
	bestCost, bestLeftCost := math.MaxInt, math.MaxInt
	for _, candidate := range castKinds {
		lp, lok := castPath(left, candidate)
		rp, rok := castPath(right, candidate)
		if !lok || !rok {
			continue
		}
		cost := len(lp) + len(rp)
		if cost < bestCost || (cost == bestCost && len(lp) < bestLeftCost) {
			best, bestCost, bestLeftCost = candidate, cost, len(lp)
		}
	}
	return best, best != parser.UnknownType
}

// insertCasts wraps expr with one castNode per hop of the implicit chain
// to the target type. The caller must have verified the path exists.
func insertCasts(expr exprNode, target parser.ColumnType) exprNode {
	from := expr.resolvedType()
	if from.Kind == target.Kind {
		return expr
	}
	chain, ok := castPath(from.Kind, target.Kind)
	if !ok {
		panic(errors.AssertionFailedf("no cast path from %s to %s", from, target))
	}
	for i, kind := range chain {
		typ := parser.ColumnType{Kind: kind}
		if i == len(chain)-1 {
			typ = target
		}
		expr = &castNode{input: expr, typ: typ}
	}
	return expr
}

// coerceBinaryOperands makes the two operand types of an operator
// compatible, inserting implicit casts where the compatibility graph
// allows. The returned type is the common operand type.
func coerceBinaryOperands(left, right exprNode) (exprNode, exprNode, parser.ColumnType, error) {
	lt, rt := left.resolvedType(), right.resolvedType()
	common, ok := commonType(lt.Kind, rt.Kind)
	if !ok {
		return nil, nil, parser.ColumnType{}, cannotCoerceError(lt, rt)
	}
	target := parser.ColumnType{Kind: common}
	if lt.Kind == common {
		target = lt
	} else if rt.Kind == common {
		target = rt
	}
	return insertCasts(left, target), insertCasts(right, target), target, nil
}

// coerceAssign coerces expr for assignment to a column of the given
// type. Assignment context is more permissive than operator context:
// it additionally allows narrowing within a numeric family and parsing
// string constants, both checked at evaluation time.
func coerceAssign(expr exprNode, target parser.ColumnType) (exprNode, error) {
	from := expr.resolvedType()
	if from.Kind == target.Kind {
		if target.Family() == parser.StringFamily && target.Width > 0 {
			// Re-check the declared width even for same-kind strings.
			return &castNode{input: expr, typ: target}, nil
		}
		return expr, nil
	}
	if _, ok := castPath(from.Kind, target.Kind); ok {
		return insertCasts(expr, target), nil
	}
	// Narrowing assignment within the numeric families, with a runtime
	// range check.
	if isNumericFamily(from.Family()) && isNumericFamily(target.Family()) {
		return &castNode{input: expr, typ: target}, nil
	}
	// String constants adapt to any target that can parse them.
	if c, ok := expr.(*constNode); ok && from.Family() == parser.StringFamily {
		return &castNode{input: c, typ: target}, nil
	}
	if from.Family() == target.Family() {
		return &castNode{input: expr, typ: target}, nil
	}
	return nil, cannotCoerceError(from, target)
}

func isNumericFamily(f parser.TypeFamily) bool {
	return f == parser.IntFamily || f == parser.FloatFamily || f == parser.DecimalFamily
}

var intRanges = map[parser.TypeKind][2]int64{
	parser.SmallInt: {math.MinInt16, math.MaxInt16},
	parser.Int:      {math.MinInt32, math.MaxInt32},
	parser.BigInt:   {math.MinInt64, math.MaxInt64},
}

// performCast converts a datum from one scalar type to another. It
// implements both the widening casts of the compatibility graph and the
// checked narrowing casts of assignment context.
func performCast(v parser.Datum, from, to parser.ColumnType) (parser.Datum, error) {
	switch to.Family() {
	case parser.IntFamily:
		i, err := datumToInt(v, to)
		if err != nil {
			return nil, err
		}
		return i, nil

	case parser.FloatFamily:
		var f float64
		switch t := v.(type) {
		case parser.DFloat:
			f = float64(t)
		case parser.DInt:
			f = float64(t)
		case parser.DDecimal:
			f, _ = t.Decimal.Float64()
		case parser.DString:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
			if err != nil {
				return nil, newError(CodeInvalidTextRepresentationError,
					"invalid input syntax for type %s: %q", to, string(t))
			}
			f = parsed
		default:
			return nil, errors.AssertionFailedf("unhandled cast from %s to %s", from, to)
		}
		if to.Kind == parser.Real {
			if f > math.MaxFloat32 || f < -math.MaxFloat32 {
				return nil, newError(CodeNumericValueOutOfRangeError, "%s out of range", to)
			}
			// real keeps single precision.
			f = float64(float32(f))
		}
		return parser.DFloat(f), nil

	case parser.DecimalFamily:
		switch t := v.(type) {
		case parser.DDecimal:
			return t, nil
		case parser.DInt:
			return parser.DDecimal{Decimal: decimal.NewFromInt(int64(t))}, nil
		case parser.DFloat:
			return parser.DDecimal{Decimal: decimal.NewFromFloat(float64(t))}, nil
		case parser.DString:
			d, err := decimal.NewFromString(strings.TrimSpace(string(t)))
			if err != nil {
				return nil, newError(CodeInvalidTextRepresentationError,
					"invalid input syntax for type %s: %q", to, string(t))
			}
			return parser.DDecimal{Decimal: d}, nil
		}

	case parser.BoolFamily:
		switch t := v.(type) {
		case parser.DBool:
			return t, nil
		case parser.DString:
			switch strings.ToLower(strings.TrimSpace(string(t))) {
			case "t", "true", "yes", "y", "on", "1":
				return parser.DBool(true), nil
			case "f", "false", "no", "n", "off", "0":
				return parser.DBool(false), nil
			}
			return nil, newError(CodeInvalidTextRepresentationError,
				"invalid input syntax for type bool: %q", string(t))
		}

	case parser.StringFamily:
		s, ok := v.(parser.DString)
		if !ok {
			s = parser.DString(v.String())
		}
		if to.Width > 0 && len(s) > to.Width {
			if to.Kind == parser.Char && len(strings.TrimRight(string(s), " ")) <= to.Width {
				return s[:to.Width], nil
			}
			return nil, newError(CodeStringDataRightTruncationError,
				"value too long for type %s", to)
		}
		if to.Kind == parser.Char && to.Width > 0 && len(s) < to.Width {
			// char(n) is blank-padded.
			return s + parser.DString(strings.Repeat(" ", to.Width-len(s))), nil
		}
		return s, nil
	}
	return nil, errors.AssertionFailedf("unhandled cast from %s to %s", from, to)
}

// The int64 bounds as decimals, for pre-truncation range checks.
var (
	minInt64Decimal = decimal.NewFromInt(math.MinInt64)
	maxInt64Decimal = decimal.NewFromInt(math.MaxInt64)
)

func datumToInt(v parser.Datum, to parser.ColumnType) (parser.Datum, error) {
	outOfRange := func() error {
		return newError(CodeNumericValueOutOfRangeError, "%s out of range", to)
	}
	var i int64
	switch t := v.(type) {
	case parser.DInt:
		i = int64(t)
	case parser.DFloat:
		f := math.Round(float64(t))
		// float64(MaxInt64) rounds up to 2^63, one past the last
		// representable value.
		if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, outOfRange()
		}
		i = int64(f)
	case parser.DDecimal:
		d := t.Decimal.Round(0)
		if d.Cmp(minInt64Decimal) < 0 || d.Cmp(maxInt64Decimal) > 0 {
			return nil, outOfRange()
		}
		i = d.IntPart()
	case parser.DString:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, outOfRange()
			}
			return nil, newError(CodeInvalidTextRepresentationError,
				"invalid input syntax for type %s: %q", to, string(t))
		}
		i = parsed
	default:
		return nil, errors.AssertionFailedf("unhandled cast from %s to %s", v.Type(), to)
	}
	r := intRanges[to.Kind]
	if i < r[0] || i > r[1] {
		return nil, outOfRange()
	}
	return parser.DInt(i), nil
}
