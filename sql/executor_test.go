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

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/util/metric"
)

func newTestExecutor() (*Executor, *Session) {
	e := NewExecutor(catalog.NewMem(), metric.NewRegistry())
	return e, e.NewSession()
}

// mustExec runs a simple-query batch and requires every statement to
// succeed, returning the last result.
func mustExec(t *testing.T, e *Executor, s *Session, sql string) Result {
	t.Helper()
	results := e.ExecuteStatements(context.Background(), s, sql)
	require.NotEmpty(t, results)
	for _, res := range results {
		require.NoError(t, res.Err, "%s", sql)
	}
	return results[len(results)-1]
}

// execErr runs a single statement and returns the code of its error.
func execErr(t *testing.T, e *Executor, s *Session, sql string) string {
	t.Helper()
	results := e.ExecuteStatements(context.Background(), s, sql)
	require.NotEmpty(t, results)
	last := results[len(results)-1]
	require.Error(t, last.Err, "%s", sql)
	return errCode(t, last.Err)
}

// rowStrings renders a result's rows for comparison.
func rowStrings(res Result) [][]string {
	var out [][]string
	for _, row := range res.Rows {
		r := make([]string, len(row))
		for i, v := range row {
			r[i] = v.String()
		}
		out = append(out, r)
	}
	return out
}

func TestExecutorSchemaStatements(t *testing.T) {
	e, s := newTestExecutor()

	testCases := []struct {
		sql  string
		tag  string
		code string
	}{
		{"CREATE SCHEMA app", "CREATE SCHEMA", ""},
		{"CREATE SCHEMA app", "", "42P06"},
		{"CREATE SCHEMA IF NOT EXISTS app", "CREATE SCHEMA", ""},
		{"CREATE TABLE app.t (a int)", "CREATE TABLE", ""},
		{"CREATE TABLE app.t (a int)", "", "42P07"},
		{"CREATE TABLE IF NOT EXISTS app.t (b bool)", "CREATE TABLE", ""},
		{"CREATE TABLE missing.t (a int)", "", "3F000"},
		{"DROP SCHEMA app", "", "2BP01"},
		{"DROP TABLE app.gone", "", "42P01"},
		{"DROP TABLE IF EXISTS app.gone", "DROP TABLE", ""},
		{"DROP TABLE app.t", "DROP TABLE", ""},
		{"DROP SCHEMA app", "DROP SCHEMA", ""},
		{"DROP SCHEMA app", "", "3F000"},
		{"DROP SCHEMA IF EXISTS app", "DROP SCHEMA", ""},
		{"CREATE SCHEMA full2; CREATE TABLE full2.t (a int); DROP SCHEMA full2 CASCADE", "DROP SCHEMA", ""},
	}
	for _, tc := range testCases {
		if tc.code != "" {
			require.Equal(t, tc.code, execErr(t, e, s, tc.sql), "%s", tc.sql)
			continue
		}
		res := mustExec(t, e, s, tc.sql)
		require.Equal(t, tc.tag, res.CommandTag(), "%s", tc.sql)
	}
}

func TestExecutorRowLifecycle(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE books (id smallint, title varchar(20), year int)")

	res := mustExec(t, e, s,
		"INSERT INTO books VALUES (1, 'war and peace', 1869), (2, 'iliad', -750), (3, 'ulysses', 1922)")
	require.Equal(t, "INSERT 0 3", res.CommandTag())

	res = mustExec(t, e, s, "SELECT title, year FROM books WHERE year > 0 ORDER BY year DESC")
	require.Equal(t, "SELECT 2", res.CommandTag())
	require.Equal(t, []string{"title", "year"}, []string{res.Columns[0].Name, res.Columns[1].Name})
	require.Equal(t, [][]string{
		{"ulysses", "1922"},
		{"war and peace", "1869"},
	}, rowStrings(res))

	res = mustExec(t, e, s, "UPDATE books SET year = year + 1 WHERE id < 3")
	require.Equal(t, "UPDATE 2", res.CommandTag())

	res = mustExec(t, e, s, "SELECT year FROM books ORDER BY id")
	require.Equal(t, [][]string{{"1870"}, {"-749"}, {"1922"}}, rowStrings(res))

	res = mustExec(t, e, s, "DELETE FROM books WHERE year < 1900")
	require.Equal(t, "DELETE 2", res.CommandTag())

	res = mustExec(t, e, s, "SELECT id FROM books")
	require.Equal(t, [][]string{{"3"}}, rowStrings(res))

	res = mustExec(t, e, s, "DELETE FROM books")
	require.Equal(t, "DELETE 1", res.CommandTag())
	res = mustExec(t, e, s, "SELECT id FROM books")
	require.Empty(t, res.Rows)
}

func TestExecutorExpressions(t *testing.T) {
	e, s := newTestExecutor()

	testCases := []struct {
		sql  string
		want [][]string
	}{
		{"SELECT 1 + 2 * 3", [][]string{{"7"}}},
		{"SELECT -3 % 2, 7 / 2", [][]string{{"-1", "3"}}},
		{"SELECT 1.5 + 2", [][]string{{"3.5"}}},
		{"SELECT 'foo' || 'bar'", [][]string{{"foobar"}}},
		{"SELECT 1 < 2 AND NOT FALSE", [][]string{{"t"}}},
		{"SELECT 1 = NULL", [][]string{{"NULL"}}},
		{"SELECT TRUE OR NULL, TRUE AND NULL", [][]string{{"t", "NULL"}}},
		{"SELECT FALSE AND NULL", [][]string{{"f"}}},
	}
	for _, tc := range testCases {
		res := mustExec(t, e, s, tc.sql)
		require.Equal(t, tc.want, rowStrings(res), "%s", tc.sql)
	}
}

func TestExecutorIntegerOverflow(t *testing.T) {
	e, s := newTestExecutor()

	// Arithmetic past the int64 range reports an error instead of
	// wrapping around.
	for _, sql := range []string{
		"SELECT 9223372036854775807 + 1",
		"SELECT -9223372036854775808 - 1",
		"SELECT 4611686018427387904 * 2",
		"SELECT -9223372036854775808 * -1",
		"SELECT -9223372036854775808 / -1",
	} {
		require.Equal(t, "22003", execErr(t, e, s, sql), "%s", sql)
	}
	res := mustExec(t, e, s, "SELECT 9223372036854775806 + 1")
	require.Equal(t, [][]string{{"9223372036854775807"}}, rowStrings(res))

	// Same for values stored into a column narrower than the literal.
	mustExec(t, e, s, "CREATE TABLE n (b bigint, r real)")
	require.Equal(t, "22003", execErr(t, e, s, "INSERT INTO n (b) VALUES (1e300)"))
	require.Equal(t, "22003", execErr(t, e, s, "INSERT INTO n (b) VALUES (9223372036854775808)"))
	require.Equal(t, "22003", execErr(t, e, s, "INSERT INTO n (r) VALUES (1e300)"))
	res = mustExec(t, e, s, "SELECT b FROM n")
	require.Empty(t, res.Rows)
}

func TestExecutorCharPadding(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE codes (c char(4))")
	mustExec(t, e, s, "INSERT INTO codes VALUES ('ab')")

	res := mustExec(t, e, s, "SELECT c FROM codes")
	require.Equal(t, [][]string{{"ab  "}}, rowStrings(res))
}

func TestExecutorInsertIsAtomic(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE t (a int, b int NOT NULL)")

	// The second row violates the constraint; the first must not land.
	require.Equal(t, "23502",
		execErr(t, e, s, "INSERT INTO t VALUES (1, 1), (2, NULL)"))
	res := mustExec(t, e, s, "SELECT a FROM t")
	require.Empty(t, res.Rows)

	// Same for a value outside the column range.
	require.Equal(t, "22003",
		execErr(t, e, s, "INSERT INTO t (a, b) VALUES (1, 1), (2, 3000000000)"))
	res = mustExec(t, e, s, "SELECT a FROM t")
	require.Empty(t, res.Rows)
}

func TestExecutorJoin(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, `
CREATE TABLE authors (id int, name varchar(10));
CREATE TABLE books (author_id int, title varchar(20));
INSERT INTO authors VALUES (1, 'tolstoy'), (2, 'homer');
INSERT INTO books VALUES (1, 'war and peace'), (1, 'anna karenina'), (2, 'iliad')`)

	res := mustExec(t, e, s, `
SELECT name, title FROM authors, books
WHERE authors.id = books.author_id AND authors.id = 1
ORDER BY title`)
	require.Equal(t, [][]string{
		{"tolstoy", "anna karenina"},
		{"tolstoy", "war and peace"},
	}, rowStrings(res))
}

func TestExecutorOrderByAndLimit(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, `
CREATE TABLE t (a int, b int);
INSERT INTO t VALUES (1, 30), (2, 10), (3, 20)`)

	// ORDER BY by position, by output label and by an expression not in
	// the select list.
	res := mustExec(t, e, s, "SELECT a FROM t ORDER BY 1 DESC")
	require.Equal(t, [][]string{{"3"}, {"2"}, {"1"}}, rowStrings(res))

	res = mustExec(t, e, s, "SELECT a AS x FROM t ORDER BY x")
	require.Equal(t, [][]string{{"1"}, {"2"}, {"3"}}, rowStrings(res))

	res = mustExec(t, e, s, "SELECT a FROM t ORDER BY b")
	require.Equal(t, [][]string{{"2"}, {"3"}, {"1"}}, rowStrings(res))
	require.Len(t, res.Columns, 1)

	res = mustExec(t, e, s, "SELECT a FROM t ORDER BY b LIMIT 2")
	require.Equal(t, [][]string{{"2"}, {"3"}}, rowStrings(res))

	require.Equal(t, "42703", execErr(t, e, s, "SELECT a FROM t ORDER BY 4"))
	require.Equal(t, "42804", execErr(t, e, s, "SELECT a FROM t LIMIT -1"))
}

func TestExecutorErrors(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE t (a int, b varchar(5))")

	testCases := []struct {
		sql  string
		code string
	}{
		{"SELEC 1", "42601"},
		{"SELECT a FROM missing", "42P01"},
		{"SELECT missing FROM t", "42703"},
		{"INSERT INTO t (a) VALUES (1, 2)", "42601"},
		{"INSERT INTO t (a, missing) VALUES (1, 2)", "42703"},
		{"INSERT INTO t VALUES (TRUE, 'x')", "42846"},
		{"INSERT INTO t VALUES (1, 'toolong')", "22001"},
		{"SELECT 1 / 0", "22012"},
		{"SELECT 1 % 0", "22012"},
		{"SELECT 1 + TRUE", "42846"},
		{"SELECT 'a' - 'b'", "42883"},
		{"SELECT a FROM t WHERE b", "42804"},
		// The simple protocol carries no parameter values.
		{"SELECT a FROM t WHERE a = $1", "42601"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.code, execErr(t, e, s, tc.sql), "%s", tc.sql)
	}
}

func TestExecutorBatchStopsAtFirstError(t *testing.T) {
	e, s := newTestExecutor()
	mustExec(t, e, s, "CREATE TABLE t (a int)")

	results := e.ExecuteStatements(context.Background(), s,
		"INSERT INTO t VALUES (1); SELECT 1 / 0; INSERT INTO t VALUES (2)")
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.Equal(t, "22012", errCode(t, results[1].Err))

	// The statement before the failure stays applied, the one after was
	// never run.
	res := mustExec(t, e, s, "SELECT a FROM t")
	require.Equal(t, [][]string{{"1"}}, rowStrings(res))
}

func TestExecutorEmptyStatement(t *testing.T) {
	e, s := newTestExecutor()
	results := e.ExecuteStatements(context.Background(), s, " -- nothing here")
	require.Empty(t, results)
}
