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
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokString
	tokNumber
	tokParam
	tokSymbol
)

type token struct {
	typ tokenType
	// s holds the identifier (lowercased unless quoted), string literal
	// body, number text, parameter index text or symbol.
	s      string
	quoted bool
	pos    int
}

// scanner splits SQL text into tokens. Identifiers are folded to lower
// case unless double-quoted, matching PostgreSQL.
type scanner struct {
	in  string
	pos int
}

func (s *scanner) init(sql string) {
	s.in = sql
	s.pos = 0
}

func (s *scanner) errorf(format string, args ...interface{}) error {
	return errors.Newf("syntax error at or near position %d: "+format,
		append([]interface{}{s.pos}, args...)...)
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.in) {
		c := s.in[s.pos]
		if c == '-' && s.pos+1 < len(s.in) && s.in[s.pos+1] == '-' {
			// Line comment.
			for s.pos < len(s.in) && s.in[s.pos] != '\n' {
				s.pos++
			}
			continue
		}
		if !unicode.IsSpace(rune(c)) {
			return
		}
		s.pos++
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentBody(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// next returns the next token. tokEOF is returned at the end of the
// input; further calls keep returning tokEOF.
func (s *scanner) next() (token, error) {
	s.skipSpace()
	if s.pos >= len(s.in) {
		return token{typ: tokEOF, pos: s.pos}, nil
	}
	start := s.pos
	c := s.in[s.pos]

	switch {
	case isIdentStart(c):
		for s.pos < len(s.in) && isIdentBody(s.in[s.pos]) {
			s.pos++
		}
		return token{typ: tokIdent, s: strings.ToLower(s.in[start:s.pos]), pos: start}, nil

	case c == '"':
		s.pos++
		for s.pos < len(s.in) && s.in[s.pos] != '"' {
			s.pos++
		}
		if s.pos >= len(s.in) {
			return token{}, s.errorf("unterminated quoted identifier")
		}
		s.pos++
		return token{typ: tokIdent, s: s.in[start+1 : s.pos-1], quoted: true, pos: start}, nil

	case c == '\'':
		s.pos++
		var buf strings.Builder
		for s.pos < len(s.in) {
			if s.in[s.pos] == '\'' {
				if s.pos+1 < len(s.in) && s.in[s.pos+1] == '\'' {
					buf.WriteByte('\'')
					s.pos += 2
					continue
				}
				s.pos++
				return token{typ: tokString, s: buf.String(), pos: start}, nil
			}
			buf.WriteByte(s.in[s.pos])
			s.pos++
		}
		return token{}, s.errorf("unterminated string literal")

	case isDigit(c) || (c == '.' && s.pos+1 < len(s.in) && isDigit(s.in[s.pos+1])):
		seenDot := false
		seenExp := false
		for s.pos < len(s.in) {
			c := s.in[s.pos]
			if isDigit(c) {
				s.pos++
				continue
			}
			if c == '.' && !seenDot && !seenExp {
				seenDot = true
				s.pos++
				continue
			}
			if (c == 'e' || c == 'E') && !seenExp && s.pos+1 < len(s.in) {
				next := s.in[s.pos+1]
				if isDigit(next) || next == '+' || next == '-' {
					seenExp = true
					s.pos += 2
					continue
				}
			}
			break
		}
		return token{typ: tokNumber, s: s.in[start:s.pos], pos: start}, nil

	case c == '$':
		s.pos++
		if s.pos >= len(s.in) || !isDigit(s.in[s.pos]) {
			return token{}, s.errorf("invalid parameter placeholder")
		}
		for s.pos < len(s.in) && isDigit(s.in[s.pos]) {
			s.pos++
		}
		return token{typ: tokParam, s: s.in[start+1 : s.pos], pos: start}, nil
	}

	// Multi-character symbols first.
	for _, sym := range []string{"<=", ">=", "<>", "!=", "||"} {
		if strings.HasPrefix(s.in[s.pos:], sym) {
			s.pos += 2
			return token{typ: tokSymbol, s: sym, pos: start}, nil
		}
	}
	switch c {
	case '(', ')', ',', ';', '=', '<', '>', '+', '-', '*', '/', '%', '.':
		s.pos++
		return token{typ: tokSymbol, s: string(c), pos: start}, nil
	}
	return token{}, s.errorf("unexpected character %q", c)
}
