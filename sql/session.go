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
	"context"

	"github.com/google/uuid"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// Session is the per-connection execution state: the registries of
// prepared statements and portals, and the error latch of the extended
// query protocol. A session is confined to its connection goroutine;
// the catalog is the only state shared between sessions.
type Session struct {
	ID uuid.UUID

	catalog  catalog.Catalog
	prepared map[string]*PreparedStatement
	portals  map[string]*Portal

	// inError latches after a failed extended-protocol step. While set,
	// the session discards extended messages until Sync.
	inError bool
}

// NewSession returns a fresh session against the catalog.
func NewSession(cat catalog.Catalog) *Session {
	return &Session{
		ID:       uuid.New(),
		catalog:  cat,
		prepared: make(map[string]*PreparedStatement),
		portals:  make(map[string]*Portal),
	}
}

// InError reports whether the session is discarding extended-protocol
// messages.
func (s *Session) InError() bool { return s.inError }

// SetInError latches the session's error state.
func (s *Session) SetInError() { s.inError = true }

// Sync ends an extended-protocol batch: the error latch is cleared and
// the session accepts messages again.
func (s *Session) Sync() { s.inError = false }

// compileOne parses and compiles a single statement. An empty
// statement compiles to nil.
func (s *Session) compileOne(sql string, hints []parser.ColumnType) (compiledStatement, []parser.ColumnType, error) {
	stmt, err := parser.ParseOne(sql)
	if err != nil {
		return nil, nil, syntaxError(err)
	}
	if stmt == nil {
		return nil, nil, nil
	}
	p := planner{catalog: s.catalog, session: s}
	compiled, err := p.compile(stmt, hints)
	if err != nil {
		return nil, nil, err
	}
	paramTypes, err := p.params.types()
	if err != nil {
		return nil, nil, err
	}
	return compiled, paramTypes, nil
}

// Parse compiles sql under the given statement name. The unnamed
// statement is silently replaced; replacing a named statement is an
// error. hints seeds parameter types from the client's type
// annotations; unresolved placeholders fail compilation.
func (s *Session) Parse(name, sql string, hints []parser.ColumnType) error {
	if name != "" {
		if _, ok := s.prepared[name]; ok {
			return newError(CodeDuplicatePreparedStatementError,
				"prepared statement %q already exists", name)
		}
	}
	compiled, paramTypes, err := s.compileOne(sql, hints)
	if err != nil {
		return err
	}
	s.prepared[name] = &PreparedStatement{
		Name:       name,
		SQL:        sql,
		compiled:   compiled,
		paramTypes: paramTypes,
	}
	return nil
}

// Bind binds args to a prepared statement, creating a portal. args are
// the textual parameter values, nil for NULL; each is converted to the
// statement's resolved parameter type. The unnamed portal is silently
// replaced; replacing a named portal is an error.
func (s *Session) Bind(portalName, stmtName string, args []*string) error {
	ps, ok := s.prepared[stmtName]
	if !ok {
		return newError(CodeInvalidSQLStatementNameError,
			"prepared statement %q does not exist", stmtName)
	}
	if portalName != "" {
		if _, ok := s.portals[portalName]; ok {
			return newError(CodeDuplicateCursorError, "cursor %q already exists", portalName)
		}
	}
	if len(args) != len(ps.paramTypes) {
		return newError(CodeProtocolViolationError,
			"bind message supplies %d parameters, but prepared statement %q requires %d",
			len(args), stmtName, len(ps.paramTypes))
	}
	values := make(parser.DTuple, len(args))
	for i, arg := range args {
		if arg == nil {
			values[i] = parser.DNull
			continue
		}
		v, err := performCast(parser.DString(*arg), parser.TypeVarChar(0), ps.paramTypes[i])
		if err != nil {
			return err
		}
		values[i] = v
	}
	s.portals[portalName] = &Portal{
		Name:    portalName,
		Stmt:    ps,
		evalCtx: evalContext{args: values},
	}
	return nil
}

// LookupStatement returns the named prepared statement for Describe.
func (s *Session) LookupStatement(name string) (*PreparedStatement, error) {
	ps, ok := s.prepared[name]
	if !ok {
		return nil, newError(CodeInvalidSQLStatementNameError,
			"prepared statement %q does not exist", name)
	}
	return ps, nil
}

// LookupPortal returns the named portal for Describe.
func (s *Session) LookupPortal(name string) (*Portal, error) {
	portal, ok := s.portals[name]
	if !ok {
		return nil, newError(CodeInvalidCursorNameError, "cursor %q does not exist", name)
	}
	return portal, nil
}

// ExecutePortal runs the named portal, returning at most maxRows rows
// for row-returning statements; zero means no limit. A suspended
// portal resumes on the next ExecutePortal call.
func (s *Session) ExecutePortal(ctx context.Context, name string, maxRows int) Result {
	portal, err := s.LookupPortal(name)
	if err != nil {
		return makeErrResult(err)
	}
	return portal.Execute(ctx, maxRows)
}

// CloseStatement drops the named prepared statement. Closing an
// unknown name is not an error. Portals bound from the statement
// survive until closed themselves.
func (s *Session) CloseStatement(name string) {
	delete(s.prepared, name)
}

// ClosePortal drops the named portal. Closing an unknown name is not
// an error.
func (s *Session) ClosePortal(name string) {
	delete(s.portals, name)
}
