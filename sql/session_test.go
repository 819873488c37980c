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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

func strPtr(s string) *string { return &s }

func TestSessionParseBindExecute(t *testing.T) {
	e, s := newTestExecutor()
	ctx := context.Background()
	mustExec(t, e, s, "CREATE TABLE t (a int, b varchar(10))")

	// Parameter types come from the target columns.
	require.NoError(t, s.Parse("ins", "INSERT INTO t VALUES ($1, $2)", nil))
	ps, err := s.LookupStatement("ins")
	require.NoError(t, err)
	require.Equal(t, []parser.ColumnType{parser.TypeInt, parser.TypeVarChar(10)}, ps.ParamTypes())
	require.Nil(t, ps.Columns())

	require.NoError(t, s.Bind("", "ins", []*string{strPtr("5"), strPtr("hello")}))
	res := e.ExecutePortal(ctx, s, "", 0)
	require.NoError(t, res.Err)
	require.Equal(t, "INSERT 0 1", res.CommandTag())

	// nil argument binds NULL.
	require.NoError(t, s.Bind("", "ins", []*string{strPtr("6"), nil}))
	res = e.ExecutePortal(ctx, s, "", 0)
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.RowsAffected)

	require.NoError(t, s.Parse("sel", "SELECT a, b FROM t WHERE a = $1", nil))
	ps, err = s.LookupStatement("sel")
	require.NoError(t, err)
	require.Equal(t, []parser.ColumnType{parser.TypeInt}, ps.ParamTypes())
	require.Len(t, ps.Columns(), 2)
	require.Equal(t, "a", ps.Columns()[0].Name)

	require.NoError(t, s.Bind("", "sel", []*string{strPtr("6")}))
	res = e.ExecutePortal(ctx, s, "", 0)
	require.NoError(t, res.Err)
	require.Equal(t, [][]string{{"6", "NULL"}}, rowStrings(res))
}

func TestSessionParameterInference(t *testing.T) {
	_, s := newTestExecutor()

	// Inferred from the sibling operand.
	require.NoError(t, s.Parse("p1", "SELECT $1 + 1", nil))
	ps, err := s.LookupStatement("p1")
	require.NoError(t, err)
	require.Equal(t, []parser.ColumnType{parser.TypeInt}, ps.ParamTypes())

	// A client type hint wins over inference.
	require.NoError(t, s.Parse("p2", "SELECT $1 + 1", []parser.ColumnType{parser.TypeDecimal}))
	ps, err = s.LookupStatement("p2")
	require.NoError(t, err)
	require.Equal(t, []parser.ColumnType{parser.TypeDecimal}, ps.ParamTypes())

	// A bare placeholder has no context to infer from.
	err = s.Parse("p3", "SELECT $1", nil)
	require.Error(t, err)
	require.Equal(t, CodeIndeterminateDatatypeError, errCode(t, err))

	// Unless the client hints its type.
	require.NoError(t, s.Parse("p3", "SELECT $1", []parser.ColumnType{parser.TypeVarChar(0)}))
	require.NoError(t, s.Bind("", "p3", []*string{strPtr("x")}))
	res := s.ExecutePortal(context.Background(), "", 0)
	require.NoError(t, res.Err)
	require.Equal(t, [][]string{{"x"}}, rowStrings(res))
}

func TestSessionDuplicateNames(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE t (a int)")

	require.NoError(t, s.Parse("q", "SELECT a FROM t", nil))
	err := s.Parse("q", "SELECT 1", nil)
	require.Error(t, err)
	require.Equal(t, CodeDuplicatePreparedStatementError, errCode(t, err))

	// The unnamed statement is silently replaced.
	require.NoError(t, s.Parse("", "SELECT 1", nil))
	require.NoError(t, s.Parse("", "SELECT 2", nil))

	require.NoError(t, s.Bind("c", "q", nil))
	err = s.Bind("c", "q", nil)
	require.Error(t, err)
	require.Equal(t, CodeDuplicateCursorError, errCode(t, err))

	// The unnamed portal is silently replaced.
	require.NoError(t, s.Bind("", "q", nil))
	require.NoError(t, s.Bind("", "q", nil))

	// Closed names can be reused.
	s.ClosePortal("c")
	require.NoError(t, s.Bind("c", "q", nil))
	s.CloseStatement("q")
	require.NoError(t, s.Parse("q", "SELECT 1", nil))
}

func TestSessionLookupErrors(t *testing.T) {
	_, s := newTestExecutor()

	err := s.Bind("", "missing", nil)
	require.Equal(t, CodeInvalidSQLStatementNameError, errCode(t, err))

	_, err = s.LookupStatement("missing")
	require.Equal(t, CodeInvalidSQLStatementNameError, errCode(t, err))

	_, err = s.LookupPortal("missing")
	require.Equal(t, CodeInvalidCursorNameError, errCode(t, err))

	res := s.ExecutePortal(context.Background(), "missing", 0)
	require.Error(t, res.Err)
	require.Equal(t, CodeInvalidCursorNameError, errCode(t, res.Err))

	// Closing unknown names is not an error.
	s.CloseStatement("missing")
	s.ClosePortal("missing")
}

func TestSessionBindValueErrors(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE t (a int)")
	require.NoError(t, s.Parse("q", "SELECT a FROM t WHERE a = $1", nil))

	err := s.Bind("", "q", nil)
	require.Equal(t, CodeProtocolViolationError, errCode(t, err))

	err = s.Bind("", "q", []*string{strPtr("1"), strPtr("2")})
	require.Equal(t, CodeProtocolViolationError, errCode(t, err))

	err = s.Bind("", "q", []*string{strPtr("abc")})
	require.Equal(t, CodeInvalidTextRepresentationError, errCode(t, err))
}

func TestSessionPortalSurvivesCloseStatement(t *testing.T) {
	e, s := newTestExecutor()
	ctx := context.Background()
	mustExec(t, e, s, "CREATE TABLE t (a int); INSERT INTO t VALUES (1)")

	require.NoError(t, s.Parse("q", "SELECT a FROM t", nil))
	require.NoError(t, s.Bind("c", "q", nil))
	s.CloseStatement("q")

	res := s.ExecutePortal(ctx, "c", 0)
	require.NoError(t, res.Err)
	require.Equal(t, [][]string{{"1"}}, rowStrings(res))
}

func TestSessionPortalSuspension(t *testing.T) {
	e, s := newTestExecutor()
	ctx := context.Background()
	mustExec(t, e, s, "CREATE TABLE t (a int); INSERT INTO t VALUES (1), (2), (3)")

	require.NoError(t, s.Parse("q", "SELECT a FROM t ORDER BY a", nil))
	require.NoError(t, s.Bind("c", "q", nil))

	res := s.ExecutePortal(ctx, "c", 2)
	require.NoError(t, res.Err)
	require.True(t, res.Suspended)
	require.Equal(t, [][]string{{"1"}, {"2"}}, rowStrings(res))

	// The portal resumes where the previous execution stopped.
	res = s.ExecutePortal(ctx, "c", 2)
	require.NoError(t, res.Err)
	require.False(t, res.Suspended)
	require.Equal(t, [][]string{{"3"}}, rowStrings(res))

	// An exhausted portal yields empty results.
	res = s.ExecutePortal(ctx, "c", 2)
	require.NoError(t, res.Err)
	require.False(t, res.Suspended)
	require.Empty(t, res.Rows)
	require.Equal(t, "SELECT 0", res.CommandTag())
}

func TestSessionWritePortalExecutesOnce(t *testing.T) {
	e, s := newTestExecutor()
	ctx := context.Background()
	mustExec(t, e, s, "CREATE TABLE t (a int)")

	require.NoError(t, s.Parse("ins", "INSERT INTO t VALUES (1)", nil))
	require.NoError(t, s.Bind("c", "ins", nil))

	res := s.ExecutePortal(ctx, "c", 0)
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.RowsAffected)

	// Re-executing a completed write portal applies nothing.
	res = s.ExecutePortal(ctx, "c", 0)
	require.NoError(t, res.Err)
	require.Zero(t, res.RowsAffected)

	sel := mustExec(t, e, s, "SELECT a FROM t")
	require.Len(t, sel.Rows, 1)
}

func TestSessionEmptyStatement(t *testing.T) {
	_, s := newTestExecutor()

	require.NoError(t, s.Parse("", "", nil))
	ps, err := s.LookupStatement("")
	require.NoError(t, err)
	require.Nil(t, ps.Columns())
	require.Empty(t, ps.ParamTypes())

	require.NoError(t, s.Bind("", "", nil))
	res := s.ExecutePortal(context.Background(), "", 0)
	require.NoError(t, res.Err)
	require.Empty(t, res.CommandTag())
}

func TestSessionErrorLatch(t *testing.T) {
	_, s := newTestExecutor()
	require.False(t, s.InError())
	s.SetInError()
	require.True(t, s.InError())
	s.Sync()
	require.False(t, s.InError())
}
