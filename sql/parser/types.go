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

package parser

import "fmt"

// TypeKind enumerates the scalar SQL types the engine understands. The
// zero value is reserved so that an unset ColumnType is distinguishable
// from a resolved one.
type TypeKind int

// The supported scalar type kinds.
const (
	UnknownType TypeKind = iota
	Bool
	SmallInt
	Int
	BigInt
	Real
	Double
	Decimal
	Char
	VarChar
)

// TypeFamily groups scalar kinds that share comparison and coercion
// behavior.
type TypeFamily int

// The type families.
const (
	UnknownFamily TypeFamily = iota
	BoolFamily
	IntFamily
	FloatFamily
	DecimalFamily
	StringFamily
)

// ColumnType describes the declared type of a column or the resolved type
// of an expression. Width is only meaningful for Char and VarChar, where
// it carries the declared character length.
type ColumnType struct {
	Kind  TypeKind
	Width int
}

// Convenience constructors mirroring the SQL names.
var (
	TypeBool     = ColumnType{Kind: Bool}
	TypeSmallInt = ColumnType{Kind: SmallInt}
	TypeInt      = ColumnType{Kind: Int}
	TypeBigInt   = ColumnType{Kind: BigInt}
	TypeReal     = ColumnType{Kind: Real}
	TypeDouble   = ColumnType{Kind: Double}
	TypeDecimal  = ColumnType{Kind: Decimal}
)

// TypeChar returns a char(width) column type. A zero width defaults to 1,
// matching PostgreSQL.
func TypeChar(width int) ColumnType {
	if width == 0 {
		width = 1
	}
	return ColumnType{Kind: Char, Width: width}
}

// TypeVarChar returns a varchar(width) column type. A zero width means
// unbounded.
func TypeVarChar(width int) ColumnType {
	return ColumnType{Kind: VarChar, Width: width}
}

// Family returns the type family of the column type.
func (t ColumnType) Family() TypeFamily {
	switch t.Kind {
	case Bool:
		return BoolFamily
	case SmallInt, Int, BigInt:
		return IntFamily
	case Real, Double:
		return FloatFamily
	case Decimal:
		return DecimalFamily
	case Char, VarChar:
		return StringFamily
	}
	return UnknownFamily
}

func (t ColumnType) String() string {
	switch t.Kind {
	case Bool:
		return "bool"
	case SmallInt:
		return "smallint"
	case Int:
		return "integer"
	case BigInt:
		return "bigint"
	case Real:
		return "real"
	case Double:
		return "double precision"
	case Decimal:
		return "numeric"
	case Char:
		return fmt.Sprintf("char(%d)", t.Width)
	case VarChar:
		if t.Width == 0 {
			return "varchar"
		}
		return fmt.Sprintf("varchar(%d)", t.Width)
	}
	return "unknown"
}

// ColumnTypeFromName maps a SQL type name (already lowercased by the
// scanner) to a ColumnType. The boolean result reports whether the name
// was recognized.
func ColumnTypeFromName(name string, width int) (ColumnType, bool) {
	switch name {
	case "bool", "boolean":
		return TypeBool, true
	case "smallint", "int2":
		return TypeSmallInt, true
	case "int", "integer", "int4":
		return TypeInt, true
	case "bigint", "int8":
		return TypeBigInt, true
	case "real", "float4":
		return TypeReal, true
	case "double precision", "float8":
		return TypeDouble, true
	case "numeric", "decimal":
		return TypeDecimal, true
	case "char", "character":
		return TypeChar(width), true
	case "varchar", "character varying", "text":
		return TypeVarChar(width), true
	}
	return ColumnType{}, false
}
