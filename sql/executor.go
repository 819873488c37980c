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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
	"github.com/omofolarin/isomorphicdb/util/log"
	"github.com/omofolarin/isomorphicdb/util/metric"
)

// An Executor executes SQL statements against a catalog. It is shared
// by every session of the server; per-session state lives in Session.
// Every entry point converts panics into coded internal errors so a
// defect in one statement never takes down the connection, let alone
// the server.
type Executor struct {
	catalog catalog.Catalog

	statementCount *prometheus.CounterVec
	errorCount     prometheus.Counter
}

// NewExecutor creates an executor on the catalog, registering its
// metrics on the registry.
func NewExecutor(cat catalog.Catalog, reg *metric.Registry) *Executor {
	return &Executor{
		catalog: cat,
		statementCount: reg.CounterVec("statements_total",
			"Statements executed, by command tag.", "tag"),
		errorCount: reg.Counter("statement_errors_total",
			"Statements that returned a coded error."),
	}
}

// NewSession creates a session bound to this executor's catalog.
func (e *Executor) NewSession() *Session {
	return NewSession(e.catalog)
}

// Parse compiles sql into the session's named prepared statement.
func (e *Executor) Parse(s *Session, name, sql string, hints []parser.ColumnType) (err error) {
	defer e.recoverError(&err)
	return s.Parse(name, sql, hints)
}

// Bind binds textual parameter values to a prepared statement,
// creating a portal in the session.
func (e *Executor) Bind(s *Session, portalName, stmtName string, args []*string) (err error) {
	defer e.recoverError(&err)
	return s.Bind(portalName, stmtName, args)
}

// ExecutePortal runs a session portal with a row limit.
func (e *Executor) ExecutePortal(ctx context.Context, s *Session, name string, maxRows int) (res Result) {
	defer e.recoverResult(&res)
	res = s.ExecutePortal(ctx, name, maxRows)
	e.record(res)
	return res
}

// ExecuteStatements runs a simple-query batch: every statement of sql
// in order, stopping after the first error. Each statement is atomic;
// statements before a failure stay applied. The results carry one
// entry per executed statement, the last possibly an error.
func (e *Executor) ExecuteStatements(ctx context.Context, s *Session, sql string) (results []Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("session %s: panic during %q: %v", s.ID, sql, r)
			results = append(results, makeErrResult(errInternal(r)))
		}
	}()
	stmts, err := parser.Parse(sql)
	if err != nil {
		res := makeErrResult(syntaxError(err))
		e.record(res)
		return []Result{res}
	}
	for _, stmt := range stmts {
		res := e.executeOne(ctx, s, stmt)
		e.record(res)
		results = append(results, res)
		if res.Err != nil {
			break
		}
	}
	return results
}

// executeOne compiles and runs one statement of a simple-query batch
// through a transient unnamed portal.
func (e *Executor) executeOne(ctx context.Context, s *Session, stmt parser.Statement) Result {
	p := planner{catalog: s.catalog, session: s}
	compiled, err := p.compile(stmt, nil)
	if err != nil {
		return makeErrResult(err)
	}
	// The simple protocol carries no parameter values.
	if len(p.params.params) > 0 {
		return makeErrResult(newError(CodeSyntaxError, "there is no parameter $1"))
	}
	portal := Portal{Stmt: &PreparedStatement{compiled: compiled}}
	return portal.Execute(ctx, 0)
}

func (e *Executor) record(res Result) {
	if res.Err != nil {
		e.errorCount.Inc()
		return
	}
	tag := res.Tag
	if tag == "" {
		tag = "EMPTY"
	}
	e.statementCount.WithLabelValues(tag).Inc()
}

func (e *Executor) recoverError(err *error) {
	if r := recover(); r != nil {
		log.Errorf("panic during statement processing: %v", r)
		*err = errInternal(r)
	}
}

func (e *Executor) recoverResult(res *Result) {
	if r := recover(); r != nil {
		log.Errorf("panic during portal execution: %v", r)
		*res = makeErrResult(errInternal(r))
	}
}
