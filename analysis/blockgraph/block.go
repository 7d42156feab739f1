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

package blockgraph

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
	"github.com/awslabs/ar-go-dss/internal/graphutil"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// A Block is a region of the CFA analyzed as one unit. Blocks are immutable once their graph is built.
type Block struct {
	// ID is unique in the whole hierarchy of graphs: B0, B1, ... at the top level, B1.0, B1.1, ... in the nested
	// graph of B1
	ID string

	// Entry is the first location of the block. Entry is in Nodes.
	Entry *cfa.Node

	// Nodes is the set of locations of the block
	Nodes map[*cfa.Node]bool

	// Exits maps every boundary node reached by an edge leaving the block to the block starting at that node
	Exits map[*cfa.Node]*Block

	// Predecessors is the set of blocks that have this block as exit, ordered by ID
	Predecessors []*Block

	// Nested is the decomposition of a loop block's body, rooted at the block's entry. Nil for flat blocks.
	Nested *Graph

	// Loop is true when the block is the block of a loop, in which case Entry is a loop header
	Loop bool

	// Stack is the calling context of the entry of the block
	Stack CallStack

	sortedNodes []*cfa.Node
}

// Contains returns true when n is a location of the block
func (b *Block) Contains(n *cfa.Node) bool {
	return b.Nodes[n]
}

// SortedNodes returns the nodes of the block ordered by id
func (b *Block) SortedNodes() []*cfa.Node {
	return b.sortedNodes
}

// ExitNodes returns the boundary nodes of the block ordered by id
func (b *Block) ExitNodes() []*cfa.Node {
	return funcutil.SortedKeys(b.Exits, byID)
}

// Successors returns the blocks of the exits, without duplicates, ordered by ID
func (b *Block) Successors() []*Block {
	set := map[*Block]bool{}
	for _, s := range b.Exits {
		set[s] = true
	}
	return funcutil.SortedKeys(set, func(x, y *Block) bool { return x.ID < y.ID })
}

// IsRoot returns true when the block has no predecessor
func (b *Block) IsRoot() bool {
	return len(b.Predecessors) == 0
}

// Targets returns the target locations of the block
func (b *Block) Targets() []*cfa.Node {
	return funcutil.Filter(b.sortedNodes, func(n *cfa.Node) bool { return n.Target })
}

// ExitsTo returns the boundary nodes of the block leading to s, ordered by id
func (b *Block) ExitsTo(s *Block) []*cfa.Node {
	return funcutil.Filter(b.ExitNodes(), func(n *cfa.Node) bool { return b.Exits[n] == s })
}

func (b *Block) String() string {
	kind := "flat"
	if b.Loop {
		kind = "loop"
	}
	ids := funcutil.Map(b.sortedNodes, (*cfa.Node).String)
	return fmt.Sprintf("%s(%s at %s: {%s})", b.ID, kind, b.Entry, strings.Join(ids, ", "))
}

func byID(a, b *cfa.Node) bool { return a.ID < b.ID }

// Graph is a graph of blocks. Every block is reachable from Entry through exits.
type Graph struct {
	// Entry is the block of the entry location of the graph
	Entry *Block

	// Blocks lists the blocks in discovery order; Blocks[0] is Entry
	Blocks []*Block

	rank map[*Block]int
	byID map[string]*Block
}

func newGraph(blocks []*Block) *Graph {
	g := &Graph{Entry: blocks[0], Blocks: blocks, byID: map[string]*Block{}}
	for _, b := range blocks {
		g.byID[b.ID] = b
	}
	g.rank = computeRank(g)
	return g
}

// computeRank ranks the blocks by depth in the graph of the strongly connected components of the block graph:
// for every exit from x to y, either rank(x) < rank(y), or x and y are in a cycle of blocks and share a rank.
func computeRank(g *Graph) map[*Block]int {
	order := make(map[*Block]int, len(g.Blocks))
	if sorted, err := topo.Sort(g.Directed()); err == nil {
		for i, n := range sorted {
			order[g.Blocks[n.ID()]] = i
		}
	} else {
		// the block graph is cyclic, e.g. because of recursion
		order = graphutil.TopologicalRank([]*Block{g.Entry}, (*Block).Successors)
	}
	blocks := append([]*Block{}, g.Blocks...)
	slices.SortStableFunc(blocks, func(a, b *Block) bool { return order[a] < order[b] })
	depth := map[int]int{}
	for _, b := range blocks {
		for _, s := range b.Successors() {
			if order[s] != order[b] && depth[order[s]] < depth[order[b]]+1 {
				depth[order[s]] = depth[order[b]] + 1
			}
		}
	}
	rank := make(map[*Block]int, len(g.Blocks))
	for _, b := range g.Blocks {
		rank[b] = depth[order[b]]
	}
	return rank
}

// Directed returns a view of the graph where vertex i is Blocks[i]. The view implements yourbasic's graph.Iterator
// and Gonum's graph.Directed.
func (g *Graph) Directed() *graphutil.Digraph {
	index := make(map[*Block]int, len(g.Blocks))
	for i, b := range g.Blocks {
		index[b] = i
	}
	d := graphutil.NewDigraph(len(g.Blocks))
	for i, b := range g.Blocks {
		for _, s := range b.Successors() {
			d.AddEdge(i, index[s])
		}
	}
	return d
}

// Rank returns the topological rank of the block in the graph
func (g *Graph) Rank(b *Block) int {
	return g.rank[b]
}

// Block returns the block with the given id, searching nested graphs too
func (g *Graph) Block(id string) *Block {
	if b, ok := g.byID[id]; ok {
		return b
	}
	for _, b := range g.Blocks {
		if b.Nested != nil {
			if x := b.Nested.Block(id); x != nil {
				return x
			}
		}
	}
	return nil
}

// Owner returns the block of the graph containing n, or nil
func (g *Graph) Owner(n *cfa.Node) *Block {
	for _, b := range g.Blocks {
		if b.Nodes[n] {
			return b
		}
	}
	return nil
}

// Stats summarizes the shape of a graph
type Stats struct {
	Blocks     int
	LoopBlocks int
	Nodes      int
	// Depth is the nesting depth of the graph: 1 for a graph without loop blocks
	Depth int
}

// Stats returns the statistics of the graph and its nested graphs
func (g *Graph) Stats() Stats {
	s := Stats{Depth: 1}
	for _, b := range g.Blocks {
		s.Blocks++
		if b.Nested == nil {
			s.Nodes += len(b.Nodes)
			continue
		}
		s.LoopBlocks++
		ns := b.Nested.Stats()
		s.Blocks += ns.Blocks
		s.LoopBlocks += ns.LoopBlocks
		s.Depth = max(s.Depth, ns.Depth+1)
		s.Nodes += len(b.Nodes)
	}
	return s
}

// Validate checks the invariants of the graph with respect to the CFA c:
//   - every block contains its entry, and a loop block starts at a loop header and owns a nested graph rooted there,
//   - every location of a loop block other than its entry and its terminal locations can reach the entry without
//     leaving the block, under the calling context of the block,
//   - every intraprocedural or call edge leaving a block ends at a recorded exit,
//   - every exit is the entry of its block, and predecessors are consistent with exits,
//   - every block is reachable from the entry block and no node belongs to two blocks,
//   - (top-level only) every node reachable from the CFA entry belongs to a block.
func (g *Graph) Validate(c *cfa.CFA) error {
	if err := g.validate(nil); err != nil {
		return err
	}
	for _, n := range c.Reachable() {
		if g.Owner(n) == nil {
			return fmt.Errorf("node %s is reachable but in no block", n)
		}
	}
	return nil
}

func (g *Graph) validate(scope map[*cfa.Node]bool) error {
	owner := map[*cfa.Node]*Block{}
	for _, b := range g.Blocks {
		if !b.Nodes[b.Entry] {
			return fmt.Errorf("block %s does not contain its entry %s", b.ID, b.Entry)
		}
		for n := range b.Nodes {
			if o, ok := owner[n]; ok {
				return fmt.Errorf("node %s is in blocks %s and %s", n, o.ID, b.ID)
			}
			owner[n] = b
			if scope != nil && !scope[n] {
				return fmt.Errorf("node %s of block %s is outside of the scope of the graph", n, b.ID)
			}
		}
		for n, s := range b.Exits {
			if s.Entry != n {
				return fmt.Errorf("exit %s of block %s leads to block %s starting at %s", n, b.ID, s.ID, s.Entry)
			}
			if !slices.Contains(s.Predecessors, b) {
				return fmt.Errorf("block %s is not a predecessor of its exit block %s", b.ID, s.ID)
			}
		}
		for _, p := range b.Predecessors {
			if len(p.ExitsTo(b)) == 0 {
				return fmt.Errorf("block %s is a predecessor of %s without exit to it", p.ID, b.ID)
			}
		}
		if b.Loop {
			if !b.Entry.LoopHeader {
				return fmt.Errorf("loop block %s does not start at a loop header", b.ID)
			}
			if b.Nested == nil || b.Nested.Entry.Entry != b.Entry {
				return fmt.Errorf("nested graph of loop block %s is not rooted at its header", b.ID)
			}
			if err := b.checkIsolation(); err != nil {
				return err
			}
			if err := b.Nested.validate(b.Nodes); err != nil {
				return fmt.Errorf("in block %s: %w", b.ID, err)
			}
		}
	}
	// boundary edges
	for _, b := range g.Blocks {
		for n := range b.Nodes {
			for _, e := range n.Leaving {
				if b.Nodes[e.To] || (scope != nil && !scope[e.To]) {
					continue
				}
				if e.Kind == cfa.CallEdge && n.SummaryLeaving != nil && b.Nodes[n.SummaryLeaving.To] {
					// call taken through the summary edge
					continue
				}
				if e.Kind == cfa.ReturnEdge {
					// which returns are followed depends on the calling context; the return sites are covered
					// by the totality check
					continue
				}
				if _, ok := b.Exits[e.To]; !ok {
					return fmt.Errorf("edge %s -> %s leaves block %s without exit", n, e.To, b.ID)
				}
			}
		}
	}
	// reachability
	d := g.Directed()
	reached := map[*Block]bool{}
	bfs := traverse.BreadthFirst{Visit: func(n graph.Node) { reached[g.Blocks[n.ID()]] = true }}
	bfs.Walk(d, d.Node(0), nil)
	for _, b := range g.Blocks {
		if !reached[b] {
			return fmt.Errorf("block %s is not reachable from the entry block", b.ID)
		}
	}
	return nil
}

// checkIsolation checks that every non-terminal location of the loop block b reaches its entry inside b. Locations
// are explored under call stacks from the stack of the block, as the loop builder does.
func (b *Block) checkIsolation() error {
	start := stateKey(b.Entry, b.Stack)
	states := map[string]loopState{start: {b.Entry, b.Stack}}
	order := []string{start}
	preds := map[string][]string{}
	for i := 0; i < len(order); i++ {
		k := order[i]
		st := states[k]
		if i > 0 && st.n == b.Entry {
			continue
		}
		for _, step := range LeavingSteps(st.n, st.s, nil) {
			if !b.Nodes[step.To] {
				continue
			}
			nk := stateKey(step.To, step.Stack)
			preds[nk] = append(preds[nk], k)
			if _, seen := states[nk]; !seen {
				states[nk] = loopState{step.To, step.Stack}
				order = append(order, nk)
			}
		}
	}
	back := map[*cfa.Node]bool{}
	marked := map[string]bool{}
	var queue []string
	for _, k := range order {
		if states[k].n == b.Entry {
			marked[k] = true
			queue = append(queue, k)
		}
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		back[states[k].n] = true
		for _, p := range preds[k] {
			if !marked[p] {
				marked[p] = true
				queue = append(queue, p)
			}
		}
	}
	for _, n := range funcutil.SortedKeys(b.Nodes, byID) {
		if n != b.Entry && len(n.Leaving) > 0 && !back[n] {
			return fmt.Errorf("location %s of loop block %s cannot reach the loop header %s inside the block", n,
				b.ID, b.Entry)
		}
	}
	return nil
}
