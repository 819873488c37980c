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
	"strings"

	"github.com/omofolarin/isomorphicdb/sql/catalog"
	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// schemaChangeTemplate is a compiled DDL statement. DDL takes no
// parameters and produces no rows; compilation validates the statement
// shape and execution applies it to the catalog.
type schemaChangeTemplate struct {
	catalog catalog.Catalog
	stmt    parser.Statement
	tag     string
}

// StatementType implements the compiledStatement interface.
func (*schemaChangeTemplate) StatementType() parser.StatementType { return parser.DDL }

// Columns implements the compiledStatement interface.
func (*schemaChangeTemplate) Columns() []ResultColumn { return nil }

// Tag implements the compiledStatement interface.
func (t *schemaChangeTemplate) Tag() string { return t.tag }

func (p *planner) compileSchemaChange(stmt parser.Statement) (*schemaChangeTemplate, error) {
	t := &schemaChangeTemplate{catalog: p.catalog, stmt: stmt}
	switch n := stmt.(type) {
	case *parser.CreateSchema:
		t.tag = "CREATE SCHEMA"
	case *parser.DropSchema:
		t.tag = "DROP SCHEMA"
	case *parser.CreateTable:
		t.tag = "CREATE TABLE"
		for i, def := range n.Defs {
			for _, prev := range n.Defs[:i] {
				if prev.Name == def.Name {
					return nil, newError(CodeSyntaxError,
						"column %q specified more than once", def.Name)
				}
			}
		}
	case *parser.DropTable:
		t.tag = "DROP TABLE"
	default:
		return nil, newError(CodeFeatureNotSupportedError, "unsupported statement: %T", stmt)
	}
	return t, nil
}

// exec applies the schema change to the catalog.
func (t *schemaChangeTemplate) exec() error {
	switch n := t.stmt.(type) {
	case *parser.CreateSchema:
		if err := t.catalog.CreateSchema(strings.ToLower(n.Schema), n.IfNotExists); err != nil {
			return convertCatalogError(err)
		}
	case *parser.DropSchema:
		for _, schema := range n.Schemas {
			if err := t.catalog.DropSchema(strings.ToLower(schema), n.IfExists, n.Cascade); err != nil {
				return convertCatalogError(err)
			}
		}
	case *parser.CreateTable:
		name := resolveTableName(n.Table)
		desc := catalog.TableDescriptor{Schema: name.Schema, Name: name.Table}
		for _, def := range n.Defs {
			desc.Columns = append(desc.Columns, catalog.ColumnDescriptor{
				Name:    def.Name,
				Type:    def.Type,
				NotNull: def.NotNull,
			})
		}
		if err := t.catalog.CreateTable(desc, n.IfNotExists); err != nil {
			return convertCatalogError(err)
		}
	case *parser.DropTable:
		for _, table := range n.Tables {
			name := resolveTableName(table)
			if err := t.catalog.DropTable(name.Schema, name.Table, n.IfExists); err != nil {
				return convertCatalogError(err)
			}
		}
	}
	return nil
}
