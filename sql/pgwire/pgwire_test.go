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

package pgwire_test

import (
	"context"
	gosql "database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/omofolarin/isomorphicdb/server"
	"github.com/omofolarin/isomorphicdb/util/leaktest"
)

// startServer brings up a server on a random port and opens a client
// connection through the stock PostgreSQL driver. The driver is asked
// to keep result rows in the text format, the only one served.
func startServer(t *testing.T) *gosql.DB {
	t.Helper()
	t.Cleanup(leaktest.AfterTest(t))

	srv := server.New(server.Config{Addr: "127.0.0.1:0"})
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)

	dsn := fmt.Sprintf(
		"postgres://app@%s/postgres?sslmode=disable&disable_prepared_binary_result=yes",
		srv.Addr())
	db, err := gosql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPGWireSimpleQuery(t *testing.T) {
	db := startServer(t)

	_, err := db.Exec("CREATE TABLE books (id int, title varchar(30), available bool)")
	require.NoError(t, err)

	res, err := db.Exec(
		"INSERT INTO books VALUES (1, 'war and peace', TRUE), (2, 'iliad', FALSE), (3, 'ulysses', TRUE)")
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 3, affected)

	rows, err := db.Query("SELECT id, title, available FROM books WHERE available ORDER BY id DESC")
	require.NoError(t, err)
	defer rows.Close()

	type book struct {
		id        int64
		title     string
		available bool
	}
	var got []book
	for rows.Next() {
		var b book
		require.NoError(t, rows.Scan(&b.id, &b.title, &b.available))
		got = append(got, b)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []book{
		{3, "ulysses", true},
		{1, "war and peace", true},
	}, got)

	res, err = db.Exec("UPDATE books SET available = FALSE WHERE id < 3")
	require.NoError(t, err)
	affected, err = res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 2, affected)
}

func TestPGWireExtendedQuery(t *testing.T) {
	db := startServer(t)

	_, err := db.Exec("CREATE TABLE t (a int, b varchar(10))")
	require.NoError(t, err)

	// Statements with arguments travel through Parse, Bind and Execute.
	_, err = db.Exec("INSERT INTO t VALUES ($1, $2)", 1, "one")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO t VALUES ($1, $2)", 2, nil)
	require.NoError(t, err)

	stmt, err := db.Prepare("SELECT b FROM t WHERE a = $1")
	require.NoError(t, err)
	defer stmt.Close()

	var b gosql.NullString
	require.NoError(t, stmt.QueryRow(1).Scan(&b))
	require.True(t, b.Valid)
	require.Equal(t, "one", b.String)

	require.NoError(t, stmt.QueryRow(2).Scan(&b))
	require.False(t, b.Valid)

	require.ErrorIs(t, stmt.QueryRow(3).Scan(&b), gosql.ErrNoRows)

	// Expressions with no table input.
	var n int64
	require.NoError(t, db.QueryRow("SELECT $1 + 2", 40).Scan(&n))
	require.EqualValues(t, 42, n)
}

func TestPGWireErrors(t *testing.T) {
	db := startServer(t)

	_, err := db.Exec("CREATE TABLE t (a int)")
	require.NoError(t, err)

	testCases := []struct {
		sql  string
		code string
	}{
		{"SELEC 1", "42601"},
		{"CREATE TABLE t (a int)", "42P07"},
		{"SELECT a FROM missing", "42P01"},
		{"SELECT 1 / 0", "22012"},
	}
	for _, tc := range testCases {
		_, err := db.Exec(tc.sql)
		require.Error(t, err, "%s", tc.sql)
		var pqErr *pq.Error
		require.ErrorAs(t, err, &pqErr, "%s", tc.sql)
		require.EqualValues(t, tc.code, pqErr.Code, "%s", tc.sql)
	}

	// Extended-path errors latch until Sync; the driver resynchronizes
	// and the connection stays usable.
	var pqErr *pq.Error
	_, err = db.Exec("SELECT a FROM missing WHERE a = $1", 1)
	require.ErrorAs(t, err, &pqErr)
	require.EqualValues(t, "42P01", pqErr.Code)

	var n int64
	require.NoError(t, db.QueryRow("SELECT 1 + 1").Scan(&n))
	require.EqualValues(t, 2, n)
}

func TestPGWireEmptyQuery(t *testing.T) {
	db := startServer(t)
	_, err := db.Exec("")
	require.NoError(t, err)
	_, err = db.Exec(";")
	require.NoError(t, err)
}
