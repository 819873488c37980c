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
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// The operator registry. Operator resolution looks an implementation up
// by (operator symbol, common operand kind) exactly once per expression
// node during compilation; row evaluation then calls the bound function
// directly.

type binOpSig struct {
	op      parser.BinaryOp
	operand parser.TypeKind
}

type binOpImpl struct {
	result parser.ColumnType
	fn     func(left, right parser.Datum) (parser.Datum, error)
}

type cmpOpImpl struct {
	fn func(left, right parser.Datum) (parser.Datum, error)
}

var binOps = map[binOpSig]*binOpImpl{}

// lookupBinOp resolves a binary operator implementation for the given
// operand kind.
func lookupBinOp(op parser.BinaryOp, operand parser.ColumnType) (*binOpImpl, error) {
	if impl, ok := binOps[binOpSig{op: op, operand: operand.Kind}]; ok {
		return impl, nil
	}
	return nil, undefinedFunctionError(
		fmt.Sprintf("%s %s %s", operand, op, operand))
}

// lookupCmpOp resolves a comparison operator implementation. All scalar
// types are comparable within their own kind through datum ordering.
func lookupCmpOp(op parser.ComparisonOp, operand parser.ColumnType) (*cmpOpImpl, error) {
	var want int
	var invert bool
	switch op {
	case parser.EQ:
		want = 0
	case parser.NE:
		want, invert = 0, true
	case parser.LT:
		want = -1
	case parser.GE:
		want, invert = -1, true
	case parser.GT:
		want = 1
	case parser.LE:
		want, invert = 1, true
	default:
		return nil, undefinedFunctionError(
			fmt.Sprintf("%s %s %s", operand, op, operand))
	}
	return &cmpOpImpl{fn: func(l, r parser.Datum) (parser.Datum, error) {
		res := l.Compare(r) == want
		if invert {
			res = !res
		}
		return parser.DBool(res), nil
	}}, nil
}

func registerIntOps(kind parser.TypeKind) {
	typ := parser.ColumnType{Kind: kind}
	outOfRange := func() error {
		return newError(CodeNumericValueOutOfRangeError, "%s out of range", typ)
	}
	checked := func(i int64) (parser.Datum, error) {
		r := intRanges[kind]
		if i < r[0] || i > r[1] {
			return nil, outOfRange()
		}
		return parser.DInt(i), nil
	}
	binOps[binOpSig{parser.Plus, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			a, b := int64(l.(parser.DInt)), int64(r.(parser.DInt))
			if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
				return nil, outOfRange()
			}
			return checked(a + b)
		}}
	binOps[binOpSig{parser.Minus, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			a, b := int64(l.(parser.DInt)), int64(r.(parser.DInt))
			if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
				return nil, outOfRange()
			}
			return checked(a - b)
		}}
	binOps[binOpSig{parser.Mult, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			a, b := int64(l.(parser.DInt)), int64(r.(parser.DInt))
			// The quotient check below cannot represent these two cases.
			if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
				return nil, outOfRange()
			}
			res := a * b
			if a != 0 && res/a != b {
				return nil, outOfRange()
			}
			return checked(res)
		}}
	binOps[binOpSig{parser.Div, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			a, b := int64(l.(parser.DInt)), int64(r.(parser.DInt))
			if b == 0 {
				return nil, newError(CodeDivisionByZeroError, "division by zero")
			}
			if a == math.MinInt64 && b == -1 {
				return nil, outOfRange()
			}
			return checked(a / b)
		}}
	binOps[binOpSig{parser.Mod, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			a, b := int64(l.(parser.DInt)), int64(r.(parser.DInt))
			if b == 0 {
				return nil, newError(CodeDivisionByZeroError, "division by zero")
			}
			return checked(a % b)
		}}
}

func registerFloatOps(kind parser.TypeKind) {
	typ := parser.ColumnType{Kind: kind}
	binOps[binOpSig{parser.Plus, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			return l.(parser.DFloat) + r.(parser.DFloat), nil
		}}
	binOps[binOpSig{parser.Minus, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			return l.(parser.DFloat) - r.(parser.DFloat), nil
		}}
	binOps[binOpSig{parser.Mult, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			return l.(parser.DFloat) * r.(parser.DFloat), nil
		}}
	binOps[binOpSig{parser.Div, kind}] = &binOpImpl{result: typ,
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			if r.(parser.DFloat) == 0 {
				return nil, newError(CodeDivisionByZeroError, "division by zero")
			}
			return l.(parser.DFloat) / r.(parser.DFloat), nil
		}}
}

func registerDecimalOps() {
	typ := parser.TypeDecimal
	wrap := func(f func(l, r decimal.Decimal) (decimal.Decimal, error)) func(parser.Datum, parser.Datum) (parser.Datum, error) {
		return func(l, r parser.Datum) (parser.Datum, error) {
			res, err := f(l.(parser.DDecimal).Decimal, r.(parser.DDecimal).Decimal)
			if err != nil {
				return nil, err
			}
			return parser.DDecimal{Decimal: res}, nil
		}
	}
	binOps[binOpSig{parser.Plus, parser.Decimal}] = &binOpImpl{result: typ,
		fn: wrap(func(l, r decimal.Decimal) (decimal.Decimal, error) { return l.Add(r), nil })}
	binOps[binOpSig{parser.Minus, parser.Decimal}] = &binOpImpl{result: typ,
		fn: wrap(func(l, r decimal.Decimal) (decimal.Decimal, error) { return l.Sub(r), nil })}
	binOps[binOpSig{parser.Mult, parser.Decimal}] = &binOpImpl{result: typ,
		fn: wrap(func(l, r decimal.Decimal) (decimal.Decimal, error) { return l.Mul(r), nil })}
	binOps[binOpSig{parser.Div, parser.Decimal}] = &binOpImpl{result: typ,
		fn: wrap(func(l, r decimal.Decimal) (decimal.Decimal, error) {
			if r.IsZero() {
				return decimal.Decimal{}, newError(CodeDivisionByZeroError, "division by zero")
			}
			return l.DivRound(r, 16), nil
		})}
	binOps[binOpSig{parser.Mod, parser.Decimal}] = &binOpImpl{result: typ,
		fn: wrap(func(l, r decimal.Decimal) (decimal.Decimal, error) {
			if r.IsZero() {
				return decimal.Decimal{}, newError(CodeDivisionByZeroError, "division by zero")
			}
			return l.Mod(r), nil
		})}
}

func registerStringOps(kind parser.TypeKind) {
	binOps[binOpSig{parser.Concat, kind}] = &binOpImpl{result: parser.TypeVarChar(0),
		fn: func(l, r parser.Datum) (parser.Datum, error) {
			return l.(parser.DString) + r.(parser.DString), nil
		}}
}

func init() {
	registerIntOps(parser.SmallInt)
	registerIntOps(parser.Int)
	registerIntOps(parser.BigInt)
	registerFloatOps(parser.Real)
	registerFloatOps(parser.Double)
	registerDecimalOps()
	registerStringOps(parser.Char)
	registerStringOps(parser.VarChar)
}
