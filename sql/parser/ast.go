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
	"strings"
)

// StatementType is the kind of result a statement produces.
type StatementType int

const (
	// DDL indicates a schema change acknowledgement.
	DDL StatementType = iota
	// RowsAffected indicates an affected-row count.
	RowsAffected
	// Rows indicates an ordered row set with column descriptors.
	Rows
)

// Statement is the interface implemented by all syntax-tree statement
// nodes.
type Statement interface {
	fmt.Stringer
	StatementType() StatementType
}

// StatementList is a list of statements, as produced for a simple-query
// batch.
type StatementList []Statement

func (l StatementList) String() string {
	var buf strings.Builder
	for i, s := range l {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(s.String())
	}
	return buf.String()
}

// formatIdent renders an identifier, quoting it whenever the bare form
// would not scan back to the same name.
func formatIdent(s string) string {
	if identNeedsQuoting(s) {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func identNeedsQuoting(s string) bool {
	if s == "" || reservedWords[s] {
		return true
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r == '_':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return true
		}
	}
	return false
}

// TableName is a possibly qualified table reference. An empty Schema is
// resolved to the session search path during analysis.
type TableName struct {
	Schema string
	Table  string
}

func (t TableName) String() string {
	if t.Schema == "" {
		return formatIdent(t.Table)
	}
	return formatIdent(t.Schema) + "." + formatIdent(t.Table)
}

// ColumnTableDef is one column definition in CREATE TABLE.
type ColumnTableDef struct {
	Name    string
	Type    ColumnType
	NotNull bool
}

func (d ColumnTableDef) String() string {
	s := formatIdent(d.Name) + " " + d.Type.String()
	if d.NotNull {
		s += " NOT NULL"
	}
	return s
}

// CreateSchema represents a CREATE SCHEMA statement.
type CreateSchema struct {
	Schema      string
	IfNotExists bool
}

// StatementType implements the Statement interface.
func (*CreateSchema) StatementType() StatementType { return DDL }

func (n *CreateSchema) String() string {
	s := "CREATE SCHEMA "
	if n.IfNotExists {
		s += "IF NOT EXISTS "
	}
	return s + formatIdent(n.Schema)
}

// DropSchema represents a DROP SCHEMA statement.
type DropSchema struct {
	Schemas  []string
	IfExists bool
	Cascade  bool
}

// StatementType implements the Statement interface.
func (*DropSchema) StatementType() StatementType { return DDL }

func (n *DropSchema) String() string {
	s := "DROP SCHEMA "
	if n.IfExists {
		s += "IF EXISTS "
	}
	names := make([]string, len(n.Schemas))
	for i, name := range n.Schemas {
		names[i] = formatIdent(name)
	}
	s += strings.Join(names, ", ")
	if n.Cascade {
		s += " CASCADE"
	}
	return s
}

// CreateTable represents a CREATE TABLE statement.
type CreateTable struct {
	Table       TableName
	Defs        []ColumnTableDef
	IfNotExists bool
}

// StatementType implements the Statement interface.
func (*CreateTable) StatementType() StatementType { return DDL }

func (n *CreateTable) String() string {
	s := "CREATE TABLE "
	if n.IfNotExists {
		s += "IF NOT EXISTS "
	}
	defs := make([]string, len(n.Defs))
	for i, d := range n.Defs {
		defs[i] = d.String()
	}
	return s + n.Table.String() + " (" + strings.Join(defs, ", ") + ")"
}

// DropTable represents a DROP TABLE statement.
type DropTable struct {
	Tables   []TableName
	IfExists bool
}

// StatementType implements the Statement interface.
func (*DropTable) StatementType() StatementType { return DDL }

func (n *DropTable) String() string {
	s := "DROP TABLE "
	if n.IfExists {
		s += "IF EXISTS "
	}
	names := make([]string, len(n.Tables))
	for i, t := range n.Tables {
		names[i] = t.String()
	}
	return s + strings.Join(names, ", ")
}

// Insert represents an INSERT statement.
type Insert struct {
	Table   TableName
	Columns []string
	Rows    [][]Expr
}

// StatementType implements the Statement interface.
func (*Insert) StatementType() StatementType { return RowsAffected }

func (n *Insert) String() string {
	var buf strings.Builder
	buf.WriteString("INSERT INTO ")
	buf.WriteString(n.Table.String())
	if len(n.Columns) > 0 {
		buf.WriteString(" (")
		for i, col := range n.Columns {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(formatIdent(col))
		}
		buf.WriteByte(')')
	}
	buf.WriteString(" VALUES ")
	for i, row := range n.Rows {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('(')
		for j, e := range row {
			if j > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(e.String())
		}
		buf.WriteByte(')')
	}
	return buf.String()
}

// UpdateExpr is one SET assignment in UPDATE.
type UpdateExpr struct {
	Name string
	Expr Expr
}

func (u UpdateExpr) String() string {
	return formatIdent(u.Name) + " = " + u.Expr.String()
}

// Update represents an UPDATE statement.
type Update struct {
	Table TableName
	Exprs []UpdateExpr
	Where Expr
}

// StatementType implements the Statement interface.
func (*Update) StatementType() StatementType { return RowsAffected }

func (n *Update) String() string {
	sets := make([]string, len(n.Exprs))
	for i, u := range n.Exprs {
		sets[i] = u.String()
	}
	s := "UPDATE " + n.Table.String() + " SET " + strings.Join(sets, ", ")
	if n.Where != nil {
		s += " WHERE " + n.Where.String()
	}
	return s
}

// Delete represents a DELETE statement.
type Delete struct {
	Table TableName
	Where Expr
}

// StatementType implements the Statement interface.
func (*Delete) StatementType() StatementType { return RowsAffected }

func (n *Delete) String() string {
	s := "DELETE FROM " + n.Table.String()
	if n.Where != nil {
		s += " WHERE " + n.Where.String()
	}
	return s
}

// SelectExpr is one item of the SELECT projection list.
type SelectExpr struct {
	Expr Expr
	As   string
	Star bool
}

func (e SelectExpr) String() string {
	if e.Star {
		return "*"
	}
	if e.As != "" {
		return e.Expr.String() + " AS " + formatIdent(e.As)
	}
	return e.Expr.String()
}

// OrderBy is one ORDER BY item.
type OrderBy struct {
	Expr Expr
	Desc bool
}

func (o OrderBy) String() string {
	if o.Desc {
		return o.Expr.String() + " DESC"
	}
	return o.Expr.String()
}

// Select represents a SELECT statement.
type Select struct {
	Exprs   []SelectExpr
	From    []TableName
	Where   Expr
	OrderBy []OrderBy
	Limit   Expr
}

// StatementType implements the Statement interface.
func (*Select) StatementType() StatementType { return Rows }

func (n *Select) String() string {
	var buf strings.Builder
	buf.WriteString("SELECT ")
	for i, e := range n.Exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.String())
	}
	if len(n.From) > 0 {
		buf.WriteString(" FROM ")
		for i, t := range n.From {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(t.String())
		}
	}
	if n.Where != nil {
		buf.WriteString(" WHERE ")
		buf.WriteString(n.Where.String())
	}
	if len(n.OrderBy) > 0 {
		buf.WriteString(" ORDER BY ")
		for i, o := range n.OrderBy {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(o.String())
		}
	}
	if n.Limit != nil {
		buf.WriteString(" LIMIT ")
		buf.WriteString(n.Limit.String())
	}
	return buf.String()
}

// Expr is the interface implemented by all syntax-tree expression nodes.
type Expr interface {
	fmt.Stringer
	expr()
}

func (*NumVal) expr()         {}
func (*StrVal) expr()         {}
func (*BoolVal) expr()        {}
func (*NullVal) expr()        {}
func (*ValArg) expr()         {}
func (*QualifiedName) expr()  {}
func (*BinaryExpr) expr()     {}
func (*ComparisonExpr) expr() {}
func (*AndExpr) expr()        {}
func (*OrExpr) expr()         {}
func (*NotExpr) expr()        {}
func (*ParenExpr) expr()      {}

// NumVal is a numeric literal, kept as the original text until type
// inference decides its concrete type.
type NumVal struct {
	S string
}

func (n *NumVal) String() string { return n.S }

// StrVal is a string literal.
type StrVal struct {
	S string
}

func (n *StrVal) String() string { return "'" + strings.ReplaceAll(n.S, "'", "''") + "'" }

// BoolVal is a boolean literal.
type BoolVal struct {
	Val bool
}

func (n *BoolVal) String() string {
	if n.Val {
		return "true"
	}
	return "false"
}

// NullVal is the NULL literal.
type NullVal struct{}

func (*NullVal) String() string { return "NULL" }

// ValArg is a positional parameter placeholder ($1, $2, ...). Idx is
// one-based.
type ValArg struct {
	Idx int
}

func (n *ValArg) String() string { return fmt.Sprintf("$%d", n.Idx) }

// QualifiedName is a possibly qualified column reference.
type QualifiedName struct {
	Table  string
	Column string
}

func (n *QualifiedName) String() string {
	if n.Table == "" {
		return formatIdent(n.Column)
	}
	return formatIdent(n.Table) + "." + formatIdent(n.Column)
}

// BinaryOp is a binary arithmetic or string operator.
type BinaryOp int

// The supported binary operators.
const (
	Plus BinaryOp = iota
	Minus
	Mult
	Div
	Mod
	Concat
)

func (op BinaryOp) String() string {
	switch op {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Mult:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	case Concat:
		return "||"
	}
	return "?"
}

// BinaryExpr is a binary operator expression.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) String() string {
	return n.Left.String() + " " + n.Op.String() + " " + n.Right.String()
}

// ComparisonOp is a comparison operator.
type ComparisonOp int

// The supported comparison operators.
const (
	EQ ComparisonOp = iota
	NE
	LT
	LE
	GT
	GE
)

func (op ComparisonOp) String() string {
	switch op {
	case EQ:
		return "="
	case NE:
		return "<>"
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	}
	return "?"
}

// ComparisonExpr is a comparison expression.
type ComparisonExpr struct {
	Op    ComparisonOp
	Left  Expr
	Right Expr
}

func (n *ComparisonExpr) String() string {
	return n.Left.String() + " " + n.Op.String() + " " + n.Right.String()
}

// AndExpr is a conjunction.
type AndExpr struct {
	Left  Expr
	Right Expr
}

func (n *AndExpr) String() string {
	return n.Left.String() + " AND " + n.Right.String()
}

// OrExpr is a disjunction.
type OrExpr struct {
	Left  Expr
	Right Expr
}

func (n *OrExpr) String() string {
	return n.Left.String() + " OR " + n.Right.String()
}

// NotExpr is a negation.
type NotExpr struct {
	Expr Expr
}

func (n *NotExpr) String() string {
	return "NOT " + n.Expr.String()
}

// ParenExpr is a parenthesized expression, kept so statements print the
// way they were written.
type ParenExpr struct {
	Expr Expr
}

func (n *ParenExpr) String() string {
	return "(" + n.Expr.String() + ")"
}
