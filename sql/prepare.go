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

	"github.com/cockroachdb/errors"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// PreparedStatement is a named compiled statement template held by a
// session. It outlives any portal bound from it and can be bound any
// number of times. An empty statement (compiled == nil) is legal; it
// only ever produces empty results.
type PreparedStatement struct {
	Name string
	SQL  string

	compiled   compiledStatement
	paramTypes []parser.ColumnType
}

// ParamTypes returns the resolved type of each positional parameter.
func (ps *PreparedStatement) ParamTypes() []parser.ColumnType { return ps.paramTypes }

// Columns returns the result column descriptors of the statement, nil
// for non-row-returning statements.
func (ps *PreparedStatement) Columns() []ResultColumn {
	if ps.compiled == nil {
		return nil
	}
	return ps.compiled.Columns()
}

// Portal is a prepared statement bound to concrete parameter values.
// For row-returning statements the portal owns the running plan, which
// survives row-limited executions: a suspended portal resumes from
// where the previous execution stopped.
type Portal struct {
	Name string
	Stmt *PreparedStatement

	evalCtx evalContext
	plan    planNode
	done    bool
}

// Execute runs the portal. maxRows limits the number of rows returned
// by a single call for row-returning statements; zero means no limit.
// A call that stops at the limit leaves the portal resumable and marks
// the result suspended.
func (portal *Portal) Execute(ctx context.Context, maxRows int) Result {
	if portal.Stmt.compiled == nil {
		return Result{}
	}
	switch t := portal.Stmt.compiled.(type) {
	case *schemaChangeTemplate:
		if err := t.exec(); err != nil {
			return makeErrResult(err)
		}
		return Result{Type: parser.DDL, Tag: t.Tag()}

	case *insertTemplate:
		return portal.execRowsAffected(t.Tag(), func() (int, error) {
			return t.exec(ctx, &portal.evalCtx)
		})
	case *updateTemplate:
		return portal.execRowsAffected(t.Tag(), func() (int, error) {
			return t.exec(ctx, &portal.evalCtx)
		})
	case *deleteTemplate:
		return portal.execRowsAffected(t.Tag(), func() (int, error) {
			return t.exec(ctx, &portal.evalCtx)
		})

	case *selectTemplate:
		return portal.execRows(ctx, t, maxRows)
	}
	return makeErrResult(errors.AssertionFailedf("unknown statement template %T", portal.Stmt.compiled))
}

func (portal *Portal) execRowsAffected(tag string, exec func() (int, error)) Result {
	if portal.done {
		return Result{Type: parser.RowsAffected, Tag: tag}
	}
	portal.done = true
	n, err := exec()
	if err != nil {
		return makeErrResult(err)
	}
	return Result{Type: parser.RowsAffected, Tag: tag, RowsAffected: n}
}

func (portal *Portal) execRows(ctx context.Context, t *selectTemplate, maxRows int) Result {
	if portal.done {
		return Result{Type: parser.Rows, Tag: t.Tag(), Columns: t.Columns()}
	}
	if portal.plan == nil {
		portal.plan = t.newPlan(&portal.evalCtx)
	}
	result := Result{Type: parser.Rows, Tag: t.Tag(), Columns: t.Columns()}
	for maxRows == 0 || len(result.Rows) < maxRows {
		ok, err := portal.plan.Next(ctx)
		if err != nil {
			portal.done = true
			return makeErrResult(err)
		}
		if !ok {
			portal.done = true
			return result
		}
		result.Rows = append(result.Rows, append(parser.DTuple(nil), portal.plan.Values()...))
	}
	result.Suspended = true
	return result
}
