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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DNull is the NULL Datum.
var DNull Datum = dNull{}

// A Datum holds a runtime SQL value: bool, int64, float64, decimal or
// string. NULL is the singleton DNull.
type Datum interface {
	// Type returns the SQL name of the datum's runtime type.
	Type() string
	// Compare returns -1 if the receiver is less than other, 0 if the
	// receiver is equal to other and +1 if the receiver is greater than
	// other. NULL compares less than any non-NULL value.
	Compare(other Datum) int
	String() string
}

// DTuple is an ordered list of datums: one table or result row.
type DTuple []Datum

func (d DTuple) String() string {
	var buf strings.Builder
	buf.WriteByte('(')
	for i, v := range d {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// DBool is the boolean Datum.
type DBool bool

// Type implements the Datum interface.
func (d DBool) Type() string {
	return "bool"
}

// Compare implements the Datum interface.
func (d DBool) Compare(other Datum) int {
	if other == DNull {
		return 1
	}
	v, ok := other.(DBool)
	if !ok {
		panic(fmt.Sprintf("unsupported comparison: %s to %s", d.Type(), other.Type()))
	}
	if !bool(d) && bool(v) {
		return -1
	}
	if bool(d) && !bool(v) {
		return 1
	}
	return 0
}

func (d DBool) String() string {
	// PostgreSQL renders booleans as single characters.
	if d {
		return "t"
	}
	return "f"
}

// DInt is the integer Datum. All three integer widths share this runtime
// representation; width constraints are enforced during coercion.
type DInt int64

// Type implements the Datum interface.
func (d DInt) Type() string {
	return "int"
}

// Compare implements the Datum interface.
func (d DInt) Compare(other Datum) int {
	if other == DNull {
		return 1
	}
	v, ok := other.(DInt)
	if !ok {
		panic(fmt.Sprintf("unsupported comparison: %s to %s", d.Type(), other.Type()))
	}
	if d < v {
		return -1
	}
	if d > v {
		return 1
	}
	return 0
}

func (d DInt) String() string {
	return strconv.FormatInt(int64(d), 10)
}

// DFloat is the float Datum, shared by real and double precision.
type DFloat float64

// Type implements the Datum interface.
func (d DFloat) Type() string {
	return "float"
}

// Compare implements the Datum interface.
func (d DFloat) Compare(other Datum) int {
	if other == DNull {
		return 1
	}
	v, ok := other.(DFloat)
	if !ok {
		panic(fmt.Sprintf("unsupported comparison: %s to %s", d.Type(), other.Type()))
	}
	if d < v {
		return -1
	}
	if d > v {
		return 1
	}
	return 0
}

func (d DFloat) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}

// DDecimal is the arbitrary-precision numeric Datum.
type DDecimal struct {
	decimal.Decimal
}

// Type implements the Datum interface.
func (d DDecimal) Type() string {
	return "decimal"
}

// Compare implements the Datum interface.
func (d DDecimal) Compare(other Datum) int {
	if other == DNull {
		return 1
	}
	v, ok := other.(DDecimal)
	if !ok {
		panic(fmt.Sprintf("unsupported comparison: %s to %s", d.Type(), other.Type()))
	}
	return d.Cmp(v.Decimal)
}

func (d DDecimal) String() string {
	return d.Decimal.String()
}

// DString is the string Datum, shared by char and varchar.
type DString string

// Type implements the Datum interface.
func (d DString) Type() string {
	return "string"
}

// Compare implements the Datum interface.
func (d DString) Compare(other Datum) int {
	if other == DNull {
		return 1
	}
	v, ok := other.(DString)
	if !ok {
		panic(fmt.Sprintf("unsupported comparison: %s to %s", d.Type(), other.Type()))
	}
	if d < v {
		return -1
	}
	if d > v {
		return 1
	}
	return 0
}

func (d DString) String() string {
	return string(d)
}

type dNull struct{}

// Type implements the Datum interface.
func (dNull) Type() string {
	return "NULL"
}

// Compare implements the Datum interface.
func (dNull) Compare(other Datum) int {
	if other == DNull {
		return 0
	}
	return -1
}

func (dNull) String() string {
	return "NULL"
}
