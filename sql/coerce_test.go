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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// errCode extracts the five-character code from a coded error, failing
// the test if err carries no code.
func errCode(t *testing.T, err error) string {
	t.Helper()
	var coded ErrorWithPGCode
	require.True(t, errors.As(err, &coded), "expected coded error, got %+v", err)
	return coded.Code()
}

func TestCastPath(t *testing.T) {
	testCases := []struct {
		from, to parser.TypeKind
		chain    []parser.TypeKind
		ok       bool
	}{
		{parser.SmallInt, parser.SmallInt, nil, true},
		{parser.SmallInt, parser.Int, []parser.TypeKind{parser.Int}, true},
		{parser.SmallInt, parser.Double,
			[]parser.TypeKind{parser.Int, parser.BigInt, parser.Decimal, parser.Double}, true},
		{parser.Int, parser.Decimal, []parser.TypeKind{parser.BigInt, parser.Decimal}, true},
		{parser.Real, parser.Double, []parser.TypeKind{parser.Double}, true},
		{parser.Char, parser.VarChar, []parser.TypeKind{parser.VarChar}, true},

		// Narrowing and cross-family chains do not exist implicitly.
		{parser.VarChar, parser.Char, nil, false},
		{parser.BigInt, parser.Int, nil, false},
		{parser.Double, parser.Decimal, nil, false},
		{parser.Double, parser.Real, nil, false},
		{parser.Bool, parser.Int, nil, false},
		{parser.VarChar, parser.Bool, nil, false},
	}
	for _, tc := range testCases {
		chain, ok := castPath(tc.from, tc.to)
		require.Equal(t, tc.ok, ok, "%s -> %s", tc.from, tc.to)
		require.Equal(t, tc.chain, chain, "%s -> %s", tc.from, tc.to)
	}
}

func TestCommonType(t *testing.T) {
	testCases := []struct {
		left, right parser.TypeKind
		common      parser.TypeKind
		ok          bool
	}{
		{parser.Int, parser.Int, parser.Int, true},
		{parser.SmallInt, parser.BigInt, parser.BigInt, true},
		{parser.Int, parser.Decimal, parser.Decimal, true},
		{parser.Int, parser.Double, parser.Double, true},
		{parser.BigInt, parser.Real, parser.Double, true},
		{parser.Real, parser.Decimal, parser.Double, true},
		{parser.Char, parser.VarChar, parser.VarChar, true},

		{parser.Bool, parser.Int, parser.UnknownType, false},
		{parser.Bool, parser.VarChar, parser.UnknownType, false},
		{parser.VarChar, parser.Decimal, parser.UnknownType, false},
	}
	for _, tc := range testCases {
		common, ok := commonType(tc.left, tc.right)
		require.Equal(t, tc.ok, ok, "%s + %s", tc.left, tc.right)
		require.Equal(t, tc.common, common, "%s + %s", tc.left, tc.right)
		// The result must not depend on operand order.
		flipped, _ := commonType(tc.right, tc.left)
		require.Equal(t, common, flipped, "%s + %s flipped", tc.left, tc.right)
	}
}

func TestPerformCast(t *testing.T) {
	dec := func(s string) parser.Datum {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		return parser.DDecimal{Decimal: d}
	}
	str := func(s string) parser.Datum { return parser.DString(s) }

	testCases := []struct {
		v    parser.Datum
		from parser.ColumnType
		to   parser.ColumnType
		want parser.Datum
		code string
	}{
		// Text parsing, as used for literals and bound parameters.
		{str(" 42 "), parser.TypeVarChar(0), parser.TypeInt, parser.DInt(42), ""},
		{str("-7"), parser.TypeVarChar(0), parser.TypeSmallInt, parser.DInt(-7), ""},
		{str("abc"), parser.TypeVarChar(0), parser.TypeInt, nil, "22P02"},
		{str("2.5x"), parser.TypeVarChar(0), parser.TypeDouble, nil, "22P02"},
		{str("2.5"), parser.TypeVarChar(0), parser.TypeDouble, parser.DFloat(2.5), ""},
		{str("12.5000"), parser.TypeVarChar(0), parser.TypeDecimal, dec("12.5000"), ""},
		{str("12.5x"), parser.TypeVarChar(0), parser.TypeDecimal, nil, "22P02"},
		{str("on"), parser.TypeVarChar(0), parser.TypeBool, parser.DBool(true), ""},
		{str("FALSE"), parser.TypeVarChar(0), parser.TypeBool, parser.DBool(false), ""},
		{str("maybe"), parser.TypeVarChar(0), parser.TypeBool, nil, "22P02"},

		// Integer range checks.
		{parser.DInt(40000), parser.TypeInt, parser.TypeSmallInt, nil, "22003"},
		{parser.DInt(-33000), parser.TypeInt, parser.TypeSmallInt, nil, "22003"},
		{str("3000000000"), parser.TypeVarChar(0), parser.TypeInt, nil, "22003"},
		{parser.DInt(32767), parser.TypeInt, parser.TypeSmallInt, parser.DInt(32767), ""},

		// Values beyond the int64 range must not wrap around.
		{str("9223372036854775808"), parser.TypeVarChar(0), parser.TypeBigInt, nil, "22003"},
		{dec("1e300"), parser.TypeDecimal, parser.TypeBigInt, nil, "22003"},
		{dec("-1e300"), parser.TypeDecimal, parser.TypeBigInt, nil, "22003"},
		{parser.DFloat(1e300), parser.TypeDouble, parser.TypeBigInt, nil, "22003"},
		{parser.DFloat(-1e300), parser.TypeDouble, parser.TypeBigInt, nil, "22003"},

		// real holds single precision only.
		{parser.DFloat(1e300), parser.TypeDouble, parser.TypeReal, nil, "22003"},
		{parser.DFloat(-1e300), parser.TypeDouble, parser.TypeReal, nil, "22003"},
		{parser.DFloat(0.1), parser.TypeDouble, parser.TypeReal,
			parser.DFloat(float64(float32(0.1))), ""},

		// Numeric conversions round to the nearest integer.
		{parser.DFloat(2.6), parser.TypeDouble, parser.TypeInt, parser.DInt(3), ""},
		{parser.DFloat(2.0), parser.TypeDouble, parser.TypeInt, parser.DInt(2), ""},
		{dec("2.4"), parser.TypeDecimal, parser.TypeBigInt, parser.DInt(2), ""},
		{parser.DInt(7), parser.TypeInt, parser.TypeDouble, parser.DFloat(7), ""},
		{parser.DInt(7), parser.TypeInt, parser.TypeDecimal, dec("7"), ""},

		// String targets render any datum and honor declared widths.
		{parser.DBool(true), parser.TypeBool, parser.TypeVarChar(0), str("t"), ""},
		{parser.DInt(1), parser.TypeInt, parser.TypeVarChar(5), str("1"), ""},
		{str("hello!"), parser.TypeVarChar(0), parser.TypeVarChar(5), nil, "22001"},
		{str("hello"), parser.TypeVarChar(0), parser.TypeChar(3), nil, "22001"},
		// char(n) strips trailing blanks before the width check and
		// blank-pads short values.
		{str("hi "), parser.TypeVarChar(0), parser.TypeChar(2), str("hi"), ""},
		{str("hi"), parser.TypeVarChar(0), parser.TypeChar(5), str("hi   "), ""},
	}
	for _, tc := range testCases {
		got, err := performCast(tc.v, tc.from, tc.to)
		if tc.code != "" {
			require.Error(t, err, "%s::%s", tc.v, tc.to)
			require.Equal(t, tc.code, errCode(t, err), "%s::%s", tc.v, tc.to)
			continue
		}
		require.NoError(t, err, "%s::%s", tc.v, tc.to)
		require.Equal(t, tc.want.Type(), got.Type(), "%s::%s", tc.v, tc.to)
		require.Zero(t, tc.want.Compare(got), "%s::%s: got %s, want %s", tc.v, tc.to, got, tc.want)
	}
}

func TestCoerceAssignRejectsCrossFamily(t *testing.T) {
	// A non-constant string expression cannot be assigned to a numeric
	// column; only constants adapt by parsing.
	col := &columnNode{name: "s", typ: parser.TypeVarChar(0)}
	_, err := coerceAssign(col, parser.TypeInt)
	require.Equal(t, CodeCannotCoerceError, errCode(t, err))

	// A string constant can.
	c := &constNode{val: parser.DString("42"), typ: parser.TypeVarChar(0)}
	expr, err := coerceAssign(c, parser.TypeInt)
	require.NoError(t, err)
	v, err := expr.eval(&evalContext{})
	require.NoError(t, err)
	require.Equal(t, parser.DInt(42), v)
}
