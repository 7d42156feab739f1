// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfa

import (
	"github.com/awslabs/ar-go-dss/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// MarkLoopHeaders sets the LoopHeader flag of every loop entry location of c. Loops are detected per function on
// the intraprocedural graph, where calls are replaced by their summary edges. The headers of a strongly connected
// component are its nodes entered from outside the component (the function entry counts as entered). Nested loops
// are found by removing the edges back to the headers and searching the component again.
// Flags already set are kept.
func MarkLoopHeaders(c *CFA) {
	byFunction := map[string][]*Node{}
	for _, n := range c.Nodes {
		byFunction[n.Function] = append(byFunction[n.Function], n)
	}
	entries := map[*Node]bool{}
	for _, f := range c.Functions {
		entries[f.Entry] = true
	}
	for _, nodes := range byFunction {
		markHeaders(nodes, entries, map[*Edge]bool{})
	}
}

func markHeaders(nodes []*Node, entries map[*Node]bool, removed map[*Edge]bool) {
	index := make(map[*Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	g := graphutil.NewDigraph(len(nodes))
	for i, n := range nodes {
		for _, e := range n.LocalLeaving() {
			if j, ok := index[e.To]; ok && !removed[e] {
				g.AddEdge(i, j)
			}
		}
	}
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) == 1 && !g.HasEdge(comp[0], comp[0]) {
			continue
		}
		inComp := make(map[*Node]bool, len(comp))
		members := make([]*Node, len(comp))
		for i, v := range comp {
			inComp[nodes[v]] = true
			members[i] = nodes[v]
		}
		slices.SortFunc(members, func(a, b *Node) bool { return a.ID < b.ID })

		var headers []*Node
		for _, n := range members {
			if entries[n] || enteredFromOutside(n, inComp, removed) {
				headers = append(headers, n)
			}
		}
		if len(headers) == 0 {
			// a cycle not reachable from outside of itself
			headers = members[:1]
		}
		inner := make(map[*Edge]bool, len(removed))
		for e := range removed {
			inner[e] = true
		}
		for _, h := range headers {
			h.LoopHeader = true
			for _, e := range h.LocalEntering() {
				if inComp[e.From] {
					inner[e] = true
				}
			}
		}
		markHeaders(members, entries, inner)
	}
}

func enteredFromOutside(n *Node, inComp map[*Node]bool, removed map[*Edge]bool) bool {
	for _, e := range n.LocalEntering() {
		if !removed[e] && !inComp[e.From] {
			return true
		}
	}
	return false
}
