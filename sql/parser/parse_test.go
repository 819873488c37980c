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
	"testing"
)

// TestParseRoundTrip parses a statement and compares its printed form,
// re-parsing the printed form to check the printer stays in the
// grammar.
func TestParseRoundTrip(t *testing.T) {
	testData := []struct {
		sql      string
		expected string
	}{
		{`create schema sales`, `CREATE SCHEMA sales`},
		{`CREATE SCHEMA IF NOT EXISTS sales`, `CREATE SCHEMA IF NOT EXISTS sales`},
		{`drop schema sales`, `DROP SCHEMA sales`},
		{`DROP SCHEMA IF EXISTS a, b CASCADE`, `DROP SCHEMA IF EXISTS a, b CASCADE`},
		{
			`create table sales.orders (id integer not null, total double precision, note character varying(50))`,
			`CREATE TABLE sales.orders (id integer NOT NULL, total double precision, note varchar(50))`,
		},
		{
			`CREATE TABLE IF NOT EXISTS t (c char(3), b boolean, n numeric)`,
			`CREATE TABLE IF NOT EXISTS t (c char(3), b bool, n numeric)`,
		},
		{`drop table t`, `DROP TABLE t`},
		{`DROP TABLE IF EXISTS t1, s.t2`, `DROP TABLE IF EXISTS t1, s.t2`},
		{`insert into t values (1, 'a''b', true, null)`, `INSERT INTO t VALUES (1, 'a''b', true, NULL)`},
		{`INSERT INTO t (a, b) VALUES (1, 2), (3, 4)`, `INSERT INTO t (a, b) VALUES (1, 2), (3, 4)`},
		{`insert into t values ($1, $2)`, `INSERT INTO t VALUES ($1, $2)`},
		{`update t set a = a + 1, b = 2 where id = $1`, `UPDATE t SET a = a + 1, b = 2 WHERE id = $1`},
		{`delete from t`, `DELETE FROM t`},
		{`delete from t where not (a < 5 or b >= 2)`, `DELETE FROM t WHERE NOT (a < 5 OR b >= 2)`},
		{`select * from t`, `SELECT * FROM t`},
		{`select 1`, `SELECT 1`},
		{`select 3 - 2 - 1`, `SELECT 3 - 2 - 1`},
		{`select a * -5 from t`, `SELECT a * -5 FROM t`},
		{`select a, t.b as x from s.t where a != 3 and b = 'q'`, `SELECT a, t.b AS x FROM s.t WHERE a <> 3 AND b = 'q'`},
		{`select a from t order by a desc, 2 limit 10`, `SELECT a FROM t ORDER BY a DESC, 2 LIMIT 10`},
		{`select a from t order by a asc`, `SELECT a FROM t ORDER BY a`},
		{`select t1.a, t2.b from t1, t2 where t1.id = t2.id`, `SELECT t1.a, t2.b FROM t1, t2 WHERE t1.id = t2.id`},
		{`select 'it''s' || 'here'`, `SELECT 'it''s' || 'here'`},
		{`select a % 2 = 0 from t`, `SELECT a % 2 = 0 FROM t`},
		// Unquoted identifiers fold to lower case; quoted ones keep
		// theirs and print re-quoted.
		{`SELECT A FROM T WHERE B = 1`, `SELECT a FROM t WHERE b = 1`},
		{`select "A" from t`, `SELECT "A" FROM t`},
		{`select "from" as "AS" from "table"`, `SELECT "from" AS "AS" FROM "table"`},
		{`create table s."order" ("select" integer)`, `CREATE TABLE s."order" ("select" integer)`},
		{`update t set "Mixed" = 1`, `UPDATE t SET "Mixed" = 1`},
		// Comments are whitespace.
		{"select a -- trailing\nfrom t", `SELECT a FROM t`},
	}
	for _, d := range testData {
		stmts, err := Parse(d.sql)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", d.sql, err)
			continue
		}
		if s := stmts.String(); s != d.expected {
			t.Errorf("%s: expected %q, got %q", d.sql, d.expected, s)
			continue
		}
		reparsed, err := Parse(d.expected)
		if err != nil {
			t.Errorf("%s: printed form does not re-parse: %v", d.expected, err)
			continue
		}
		if s := reparsed.String(); s != d.expected {
			t.Errorf("%s: not stable under re-parsing, got %q", d.expected, s)
		}
	}
}

func TestParseErrors(t *testing.T) {
	testData := []struct {
		sql     string
		errHint string
	}{
		{`select`, "unexpected end of statement"},
		{`select 1 +`, "unexpected end of statement"},
		{`select from t`, `at or near "from"`},
		{`create view v`, `at or near "view"`},
		{`create table t ()`, `at or near ")"`},
		{`create table t (a serial)`, `type "serial" does not exist`},
		{`create table t (a char(0))`, "invalid type width"},
		{`insert into t`, "unexpected end of statement"},
		{`update t where a = 1`, `at or near "where"`},
		{`delete t`, `at or near "t"`},
		{`select 'unterminated`, "unterminated"},
		{`select $0`, "invalid parameter index"},
		{`drop schema if not exists s`, `at or near "not"`},
	}
	for _, d := range testData {
		if _, err := Parse(d.sql); err == nil {
			t.Errorf("%s: expected error", d.sql)
		} else if !strings.Contains(err.Error(), d.errHint) {
			t.Errorf("%s: expected error containing %q, got %q", d.sql, d.errHint, err)
		}
	}
}

func TestParseMultipleStatements(t *testing.T) {
	stmts, err := Parse(`create schema s; ; select 1;`)
	if err != nil {
		t.Fatal(err)
	}
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if _, ok := stmts[0].(*CreateSchema); !ok {
		t.Errorf("expected *CreateSchema, got %T", stmts[0])
	}
	if _, ok := stmts[1].(*Select); !ok {
		t.Errorf("expected *Select, got %T", stmts[1])
	}
}

func TestParseOne(t *testing.T) {
	stmt, err := ParseOne("")
	if err != nil || stmt != nil {
		t.Fatalf("expected empty result for empty query, got %v, %v", stmt, err)
	}
	stmt, err = ParseOne("   -- comment only")
	if err != nil || stmt != nil {
		t.Fatalf("expected empty result for comment-only query, got %v, %v", stmt, err)
	}
	if _, err := ParseOne("select 1; select 2"); err == nil {
		t.Fatal("expected error for multiple statements")
	}
}
