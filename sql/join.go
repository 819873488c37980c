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

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// joinNode is a nested loop cross join. Plan nodes never rewind, so
// the inner side is re-instantiated from a factory for every outer
// row, opening a fresh catalog cursor each time. Join predicates are
// not evaluated here; they live in the filterNode above the join.
type joinNode struct {
	left     planNode
	newRight func() planNode

	right   planNode
	columns []ResultColumn
	row     parser.DTuple
}

func (n *joinNode) Columns() []ResultColumn {
	if n.columns == nil {
		n.columns = append(n.columns, n.left.Columns()...)
		n.columns = append(n.columns, n.newRight().Columns()...)
	}
	return n.columns
}

func (n *joinNode) Values() parser.DTuple { return n.row }

func (n *joinNode) Next(ctx context.Context) (bool, error) {
	for {
		if n.right == nil {
			ok, err := n.left.Next(ctx)
			if !ok || err != nil {
				return ok, err
			}
			n.right = n.newRight()
		}
		ok, err := n.right.Next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			n.right = nil
			continue
		}
		left := n.left.Values()
		right := n.right.Values()
		n.row = n.row[:0]
		n.row = append(n.row, left...)
		n.row = append(n.row, right...)
		return true, nil
	}
}
