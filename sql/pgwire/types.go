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

package pgwire

import (
	"github.com/lib/pq/oid"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// pgType is the wire description of one column type: the OID and the
// fixed binary size, -1 for variable-length types. All values travel
// in the text format.
type pgType struct {
	oid  oid.Oid
	size int16
}

// typeForColumn maps a resolved column type to its wire description.
func typeForColumn(typ parser.ColumnType) pgType {
	switch typ.Kind {
	case parser.Bool:
		return pgType{oid.T_bool, 1}
	case parser.SmallInt:
		return pgType{oid.T_int2, 2}
	case parser.Int:
		return pgType{oid.T_int4, 4}
	case parser.BigInt:
		return pgType{oid.T_int8, 8}
	case parser.Real:
		return pgType{oid.T_float4, 4}
	case parser.Double:
		return pgType{oid.T_float8, 8}
	case parser.Decimal:
		return pgType{oid.T_numeric, -1}
	case parser.Char:
		return pgType{oid.T_bpchar, -1}
	}
	// Untyped output columns (e.g. a bare NULL projection) travel as
	// varchar.
	return pgType{oid.T_varchar, -1}
}

// hintForOID maps a Parse-message parameter type annotation to a type
// hint for compilation. OID zero and unrecognized OIDs leave the
// parameter to inference.
func hintForOID(o oid.Oid) parser.ColumnType {
	switch o {
	case oid.T_bool:
		return parser.TypeBool
	case oid.T_int2:
		return parser.TypeSmallInt
	case oid.T_int4:
		return parser.TypeInt
	case oid.T_int8:
		return parser.TypeBigInt
	case oid.T_float4:
		return parser.TypeReal
	case oid.T_float8:
		return parser.TypeDouble
	case oid.T_numeric:
		return parser.TypeDecimal
	case oid.T_bpchar:
		return parser.TypeChar(0)
	case oid.T_varchar, oid.T_text:
		return parser.TypeVarChar(0)
	}
	return parser.ColumnType{}
}

// writeDatum appends one value to a DataRow message in the text
// format: an int32 byte length followed by the bytes, -1 for NULL.
func (b *writeBuffer) writeDatum(v parser.Datum) {
	if v == parser.DNull {
		b.putInt32(-1)
		return
	}
	s := v.String()
	b.putInt32(int32(len(s)))
	b.WriteString(s)
}
