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
	"sort"

	"github.com/omofolarin/isomorphicdb/sql/parser"
)

// sortNode orders its input. The input is drained and sorted on the
// first Next call; hidden sort columns past the visible prefix are
// stripped from the output. NULL orders before every other value.
type sortNode struct {
	source   planNode
	ordering []sortSpec
	visible  int

	sorted bool
	rows   []parser.DTuple
	next   int
	err    error
}

func (n *sortNode) Columns() []ResultColumn {
	return n.source.Columns()[:n.visible]
}

func (n *sortNode) Values() parser.DTuple {
	return n.rows[n.next-1][:n.visible]
}

func (n *sortNode) Next(ctx context.Context) (bool, error) {
	if n.err != nil {
		return false, n.err
	}
	if !n.sorted {
		for {
			ok, err := n.source.Next(ctx)
			if err != nil {
				n.err = err
				return false, err
			}
			if !ok {
				break
			}
			n.rows = append(n.rows, append(parser.DTuple(nil), n.source.Values()...))
		}
		sort.SliceStable(n.rows, func(i, j int) bool {
			return n.less(n.rows[i], n.rows[j])
		})
		n.sorted = true
	}
	if n.next >= len(n.rows) {
		return false, nil
	}
	n.next++
	return true, nil
}

func (n *sortNode) less(a, b parser.DTuple) bool {
	for _, spec := range n.ordering {
		c := a[spec.renderIdx].Compare(b[spec.renderIdx])
		if c == 0 {
			continue
		}
		if spec.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}
