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

// StronglyConnectedComponents is an implementation of Tarjan's strongly connected component (SCC) algorithm
// for generic nodes T.
// Successors returns a slice containing the targets of directed edges out from the given node.
// The order within an SCC is arbitrary. The SCCs are returned in reverse topological order: an SCC appears
// before every SCC that reaches it.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) (sccs [][]T) {
	t := &tarjan[T]{
		onStack:    map[T]bool{},
		index:      map[T]int{},
		lowlink:    map[T]int{},
		successors: successors,
	}
	for _, v := range nodes {
		if _, ok := t.index[v]; !ok {
			t.visit(v)
		}
	}
	return t.sccs
}

type tarjan[T comparable] struct {
	stack      []T
	onStack    map[T]bool
	index      map[T]int
	lowlink    map[T]int
	nextIndex  int
	sccs       [][]T
	successors func(T) []T
}

func (t *tarjan[T]) visit(v T) {
	t.index[v] = t.nextIndex
	t.lowlink[v] = t.nextIndex
	t.nextIndex++
	t.stack = append(t.stack, v)
	t.onStack[v] = true
	for _, w := range t.successors(v) {
		if _, ok := t.index[w]; !ok {
			t.visit(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}
	if t.lowlink[v] != t.index[v] {
		return
	}
	var scc []T
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
}

// TopologicalRank assigns a rank to every node reachable from roots such that for every edge x -> y, either
// rank(x) < rank(y), or x and y are in the same strongly connected component and have the same rank.
// Ranks are dense, starting at 0.
func TopologicalRank[T comparable](roots []T, successors func(T) []T) map[T]int {
	sccs := StronglyConnectedComponents(roots, successors)
	rank := make(map[T]int, len(sccs))
	for i, scc := range sccs {
		for _, x := range scc {
			rank[x] = len(sccs) - 1 - i
		}
	}
	return rank
}
