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
	"strconv"

	"github.com/cockroachdb/errors"
)

// reservedWords may not be used as bare column aliases.
var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "order": true, "by": true,
	"limit": true, "as": true, "and": true, "or": true, "not": true,
	"null": true, "true": true, "false": true, "insert": true, "into": true,
	"values": true, "update": true, "set": true, "delete": true,
	"create": true, "drop": true, "schema": true, "table": true,
	"asc": true, "desc": true, "cascade": true, "if": true, "exists": true,
}

// Parser turns SQL text into a statement list. The zero value is ready to
// use.
type Parser struct {
	toks []token
	pos  int
}

// Parse parses sql and returns the list of statements it contains, in
// order. Empty statements (stray semicolons) are dropped.
func Parse(sql string) (StatementList, error) {
	var p Parser
	return p.Parse(sql)
}

// ParseOne parses a sql string expected to hold exactly one statement.
// An empty string yields a nil statement and no error, matching the
// protocol's empty-query behavior.
func ParseOne(sql string) (Statement, error) {
	stmts, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	switch len(stmts) {
	case 0:
		return nil, nil
	case 1:
		return stmts[0], nil
	}
	return nil, errors.Newf("expected 1 statement, but found %d", len(stmts))
}

// Parse parses the sql and returns a list of statements.
func (p *Parser) Parse(sql string) (StatementList, error) {
	var s scanner
	s.init(sql)
	p.toks = p.toks[:0]
	p.pos = 0
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		p.toks = append(p.toks, tok)
		if tok.typ == tokEOF {
			break
		}
	}

	var stmts StatementList
	for {
		for p.peekSym(";") {
			p.advance()
		}
		if p.peek().typ == tokEOF {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if !p.peekSym(";") && p.peek().typ != tokEOF {
			return nil, p.unexpected()
		}
	}
}

func (p *Parser) peek() token {
	return p.toks[p.pos]
}

func (p *Parser) advance() token {
	tok := p.toks[p.pos]
	if tok.typ != tokEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) peekSym(sym string) bool {
	tok := p.peek()
	return tok.typ == tokSymbol && tok.s == sym
}

func (p *Parser) peekKeyword(kw string) bool {
	tok := p.peek()
	return tok.typ == tokIdent && !tok.quoted && tok.s == kw
}

func (p *Parser) maybeKeyword(kw string) bool {
	if p.peekKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.maybeKeyword(kw) {
		return p.unexpected()
	}
	return nil
}

func (p *Parser) expectSym(sym string) error {
	if !p.peekSym(sym) {
		return p.unexpected()
	}
	p.advance()
	return nil
}

func (p *Parser) unexpected() error {
	tok := p.peek()
	if tok.typ == tokEOF {
		return errors.New("syntax error: unexpected end of statement")
	}
	return errors.Newf("syntax error at or near %q", tok.s)
}

func (p *Parser) parseIdent() (string, error) {
	tok := p.peek()
	if tok.typ != tokIdent {
		return "", p.unexpected()
	}
	if !tok.quoted && reservedWords[tok.s] {
		return "", p.unexpected()
	}
	p.advance()
	return tok.s, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.maybeKeyword("create"):
		switch {
		case p.maybeKeyword("schema"):
			return p.parseCreateSchema()
		case p.maybeKeyword("table"):
			return p.parseCreateTable()
		}
		return nil, p.unexpected()
	case p.maybeKeyword("drop"):
		switch {
		case p.maybeKeyword("schema"):
			return p.parseDropSchema()
		case p.maybeKeyword("table"):
			return p.parseDropTable()
		}
		return nil, p.unexpected()
	case p.maybeKeyword("insert"):
		return p.parseInsert()
	case p.maybeKeyword("update"):
		return p.parseUpdate()
	case p.maybeKeyword("delete"):
		return p.parseDelete()
	case p.maybeKeyword("select"):
		return p.parseSelect()
	}
	return nil, p.unexpected()
}

// parseIfNotExists consumes an optional IF NOT EXISTS clause.
func (p *Parser) parseIfNotExists() (bool, error) {
	if !p.maybeKeyword("if") {
		return false, nil
	}
	if err := p.expectKeyword("not"); err != nil {
		return false, err
	}
	if err := p.expectKeyword("exists"); err != nil {
		return false, err
	}
	return true, nil
}

// parseIfExists consumes an optional IF EXISTS clause.
func (p *Parser) parseIfExists() (bool, error) {
	if !p.maybeKeyword("if") {
		return false, nil
	}
	if err := p.expectKeyword("exists"); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Parser) parseCreateSchema() (Statement, error) {
	ifNotExists, err := p.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &CreateSchema{Schema: name, IfNotExists: ifNotExists}, nil
}

func (p *Parser) parseDropSchema() (Statement, error) {
	ifExists, err := p.parseIfExists()
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if !p.peekSym(",") {
			break
		}
		p.advance()
	}
	cascade := p.maybeKeyword("cascade")
	return &DropSchema{Schemas: names, IfExists: ifExists, Cascade: cascade}, nil
}

func (p *Parser) parseTableName() (TableName, error) {
	first, err := p.parseIdent()
	if err != nil {
		return TableName{}, err
	}
	if !p.peekSym(".") {
		return TableName{Table: first}, nil
	}
	p.advance()
	second, err := p.parseIdent()
	if err != nil {
		return TableName{}, err
	}
	return TableName{Schema: first, Table: second}, nil
}

func (p *Parser) parseColumnType() (ColumnType, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ColumnType{}, err
	}
	// Two-word type names.
	if name == "double" && p.maybeKeyword("precision") {
		name = "double precision"
	} else if name == "character" && p.maybeKeyword("varying") {
		name = "character varying"
	}
	width := 0
	if p.peekSym("(") {
		p.advance()
		tok := p.peek()
		if tok.typ != tokNumber {
			return ColumnType{}, p.unexpected()
		}
		w, err := strconv.Atoi(tok.s)
		if err != nil || w <= 0 {
			return ColumnType{}, errors.Newf("invalid type width %q", tok.s)
		}
		p.advance()
		if err := p.expectSym(")"); err != nil {
			return ColumnType{}, err
		}
		width = w
	}
	typ, ok := ColumnTypeFromName(name, width)
	if !ok {
		return ColumnType{}, errors.Newf("type %q does not exist", name)
	}
	return typ, nil
}

func (p *Parser) parseCreateTable() (Statement, error) {
	ifNotExists, err := p.parseIfNotExists()
	if err != nil {
		return nil, err
	}
	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	if err := p.expectSym("("); err != nil {
		return nil, err
	}
	var defs []ColumnTableDef
	for {
		colName, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		typ, err := p.parseColumnType()
		if err != nil {
			return nil, err
		}
		def := ColumnTableDef{Name: colName, Type: typ}
		if p.maybeKeyword("not") {
			if err := p.expectKeyword("null"); err != nil {
				return nil, err
			}
			def.NotNull = true
		}
		defs = append(defs, def)
		if p.peekSym(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSym(")"); err != nil {
		return nil, err
	}
	return &CreateTable{Table: name, Defs: defs, IfNotExists: ifNotExists}, nil
}

func (p *Parser) parseDropTable() (Statement, error) {
	ifExists, err := p.parseIfExists()
	if err != nil {
		return nil, err
	}
	var tables []TableName
	for {
		name, err := p.parseTableName()
		if err != nil {
			return nil, err
		}
		tables = append(tables, name)
		if !p.peekSym(",") {
			break
		}
		p.advance()
	}
	return &DropTable{Tables: tables, IfExists: ifExists}, nil
}

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("into"); err != nil {
		return nil, err
	}
	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	n := &Insert{Table: name}
	if p.peekSym("(") {
		p.advance()
		for {
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			n.Columns = append(n.Columns, col)
			if p.peekSym(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectSym(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("values"); err != nil {
		return nil, err
	}
	for {
		if err := p.expectSym("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.peekSym(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectSym(")"); err != nil {
			return nil, err
		}
		n.Rows = append(n.Rows, row)
		if !p.peekSym(",") {
			break
		}
		p.advance()
	}
	return n, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("set"); err != nil {
		return nil, err
	}
	n := &Update{Table: name}
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSym("="); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Exprs = append(n.Exprs, UpdateExpr{Name: col, Expr: e})
		if !p.peekSym(",") {
			break
		}
		p.advance()
	}
	if p.maybeKeyword("where") {
		if n.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	name, err := p.parseTableName()
	if err != nil {
		return nil, err
	}
	n := &Delete{Table: name}
	if p.maybeKeyword("where") {
		if n.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	n := &Select{}
	for {
		if p.peekSym("*") {
			p.advance()
			n.Exprs = append(n.Exprs, SelectExpr{Star: true})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel := SelectExpr{Expr: e}
			if p.maybeKeyword("as") {
				as, err := p.parseIdent()
				if err != nil {
					return nil, err
				}
				sel.As = as
			} else if tok := p.peek(); tok.typ == tokIdent && (tok.quoted || !reservedWords[tok.s]) {
				p.advance()
				sel.As = tok.s
			}
			n.Exprs = append(n.Exprs, sel)
		}
		if !p.peekSym(",") {
			break
		}
		p.advance()
	}
	if p.maybeKeyword("from") {
		for {
			name, err := p.parseTableName()
			if err != nil {
				return nil, err
			}
			n.From = append(n.From, name)
			if !p.peekSym(",") {
				break
			}
			p.advance()
		}
	}
	if p.maybeKeyword("where") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Where = e
	}
	if p.maybeKeyword("order") {
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			o := OrderBy{Expr: e}
			if p.maybeKeyword("desc") {
				o.Desc = true
			} else {
				p.maybeKeyword("asc")
			}
			n.OrderBy = append(n.OrderBy, o)
			if !p.peekSym(",") {
				break
			}
			p.advance()
		}
	}
	if p.maybeKeyword("limit") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Limit = e
	}
	return n, nil
}

// Expression grammar, loosest binding first:
//
//	expr    : andExpr (OR andExpr)*
//	andExpr : notExpr (AND notExpr)*
//	notExpr : NOT notExpr | cmpExpr
//	cmpExpr : addExpr ((= | <> | != | < | <= | > | >=) addExpr)?
//	addExpr : mulExpr ((+ | - | ||) mulExpr)*
//	mulExpr : unary ((* | / | %) unary)*
//	unary   : (+ | -) unary | primary
func (p *Parser) parseExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.maybeKeyword("or") {
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for p.maybeKeyword("and") {
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNotExpr() (Expr, error) {
	if p.maybeKeyword("not") {
		e, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: e}, nil
	}
	return p.parseCmpExpr()
}

var cmpOps = map[string]ComparisonOp{
	"=": EQ, "<>": NE, "!=": NE, "<": LT, "<=": LE, ">": GT, ">=": GE,
}

func (p *Parser) parseCmpExpr() (Expr, error) {
	left, err := p.parseAddExpr()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.typ == tokSymbol {
		if op, ok := cmpOps[tok.s]; ok {
			p.advance()
			right, err := p.parseAddExpr()
			if err != nil {
				return nil, err
			}
			return &ComparisonExpr{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseAddExpr() (Expr, error) {
	left, err := p.parseMulExpr()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.peekSym("+"):
			op = Plus
		case p.peekSym("-"):
			op = Minus
		case p.peekSym("||"):
			op = Concat
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMulExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMulExpr() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.peekSym("*"):
			op = Mult
		case p.peekSym("/"):
			op = Div
		case p.peekSym("%"):
			op = Mod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.peekSym("+") {
		p.advance()
		return p.parseUnary()
	}
	if p.peekSym("-") {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negation into numeric literals so that "-5" stays a single
		// untyped constant; anything else becomes 0 - x.
		if num, ok := e.(*NumVal); ok {
			return &NumVal{S: "-" + num.S}, nil
		}
		return &BinaryExpr{Op: Minus, Left: &NumVal{S: "0"}, Right: e}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.typ {
	case tokNumber:
		p.advance()
		return &NumVal{S: tok.s}, nil
	case tokString:
		p.advance()
		return &StrVal{S: tok.s}, nil
	case tokParam:
		p.advance()
		idx, err := strconv.Atoi(tok.s)
		if err != nil || idx <= 0 {
			return nil, errors.Newf("invalid parameter index %q", tok.s)
		}
		return &ValArg{Idx: idx}, nil
	case tokIdent:
		if !tok.quoted {
			switch tok.s {
			case "true":
				p.advance()
				return &BoolVal{Val: true}, nil
			case "false":
				p.advance()
				return &BoolVal{Val: false}, nil
			case "null":
				p.advance()
				return &NullVal{}, nil
			}
		}
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if p.peekSym(".") {
			p.advance()
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			return &QualifiedName{Table: name, Column: col}, nil
		}
		return &QualifiedName{Column: name}, nil
	case tokSymbol:
		if tok.s == "(" {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSym(")"); err != nil {
				return nil, err
			}
			return &ParenExpr{Expr: e}, nil
		}
	}
	return nil, p.unexpected()
}
