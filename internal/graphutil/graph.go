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

package graphutil

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

// Digraph is a directed graph over the vertices 0..Order()-1, used to work with existing graph libraries. It
// implements the methods to satisfy yourbasic's graph.Iterator and Gonum's graph.Directed.
type Digraph struct {
	// succ[v] lists the successors of v in insertion order, without duplicates
	succ [][]int
	// pred[v] lists the predecessors of v in insertion order, without duplicates
	pred [][]int
	// edges holds every edge (v,w) as v*order+w
	edges map[int]bool
}

// NewDigraph returns a graph of order n without edges
func NewDigraph(n int) *Digraph {
	return &Digraph{
		succ:  make([][]int, n),
		pred:  make([][]int, n),
		edges: map[int]bool{},
	}
}

// AddEdge adds the edge v -> w. Adding an existing edge is a no-op.
func (g *Digraph) AddEdge(v, w int) {
	k := v*len(g.succ) + w
	if g.edges[k] {
		return
	}
	g.edges[k] = true
	g.succ[v] = append(g.succ[v], w)
	g.pred[w] = append(g.pred[w], v)
}

// HasEdge returns true when v -> w is an edge
func (g *Digraph) HasEdge(v, w int) bool {
	if !g.valid(int64(v)) || !g.valid(int64(w)) {
		return false
	}
	return g.edges[v*len(g.succ)+w]
}

// Successors returns the successors of v. The returned slice must not be modified.
func (g *Digraph) Successors(v int) []int {
	return g.succ[v]
}

// Predecessors returns the predecessors of v. The returned slice must not be modified.
func (g *Digraph) Predecessors(v int) []int {
	return g.pred[v]
}

func (g *Digraph) valid(id int64) bool {
	return id >= 0 && id < int64(len(g.succ))
}

// Order implements the order of the graph.Iterator interface for the Digraph
func (g *Digraph) Order() int {
	return len(g.succ)
}

// Visit implements the graph.Iterator interface for the Digraph
func (g *Digraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if !g.valid(int64(v)) {
		return false
	}
	for _, w := range g.succ[v] {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (g *Digraph) Node(id int64) graph.Node {
	if !g.valid(id) {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns the set of nodes in the graph
func (g *Digraph) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.succ))
	for i := range nodes {
		nodes[i] = simple.Node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the set of nodes reachable in one step from the id
func (g *Digraph) From(id int64) graph.Nodes {
	if !g.valid(id) {
		return graph.Empty
	}
	return toNodes(g.succ[id])
}

// To returns the set of nodes that reach the id in one step
func (g *Digraph) To(id int64) graph.Nodes {
	if !g.valid(id) {
		return graph.Empty
	}
	return toNodes(g.pred[id])
}

func toNodes(ids []int) graph.Nodes {
	if len(ids) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(ids))
	for i, v := range ids {
		nodes[i] = simple.Node(v)
	}
	return iterator.NewOrderedNodes(nodes)
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (g *Digraph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns whether there is an edge from uid to vid
func (g *Digraph) HasEdgeFromTo(uid, vid int64) bool {
	return g.HasEdge(int(uid), int(vid))
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *Digraph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}
