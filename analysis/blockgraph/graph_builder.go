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
	"context"
	"fmt"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
	"golang.org/x/exp/slices"
)

// GraphBuilder decomposes a CFA into a graph of blocks
type GraphBuilder struct {
	cfa *cfa.CFA
	op  Operator
	log *config.LogGroup
}

// NewGraphBuilder returns a builder for the decomposition of c with the operator op. log may be nil.
func NewGraphBuilder(c *cfa.CFA, op Operator, log *config.LogGroup) *GraphBuilder {
	if op == nil {
		op = LoopHeadersOnly
	}
	return &GraphBuilder{cfa: c, op: op, log: log}
}

// Build decomposes the CFA. The result is all or nothing: when ctx is cancelled, Build returns ctx.Err() and no
// graph.
func (g *GraphBuilder) Build(ctx context.Context) (*Graph, error) {
	sc := &scope{cfa: g.cfa, op: g.op, log: g.log}
	var root Builder
	if g.cfa.Entry.LoopHeader {
		root = newLoopBuilder(sc, g.cfa.Entry, nil)
	} else {
		root = newFlatBuilder(sc, g.cfa.Entry, nil)
	}
	res, err := build(ctx, sc, root, "B")
	if err != nil {
		return nil, err
	}
	st := res.Stats()
	g.log.Debugf("block graph: %d blocks (%d loops), nesting depth %d, %d nodes", st.Blocks, st.LoopBlocks,
		st.Depth, st.Nodes)
	return res, nil
}

// build runs the builders from root until no new boundary is found, and compiles them into a graph whose block
// ids start with prefix.
func build(ctx context.Context, sc *scope, root Builder, prefix string) (*Graph, error) {
	registry := map[*cfa.Node]Builder{root.Entry(): root}
	order := []Builder{root}
	exits := map[Builder]map[*cfa.Node]Builder{}
	work := []Builder{root}
	queued := map[Builder]bool{root: true}

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := work[0]
		work = work[1:]
		queued[b] = false
		succs, err := b.Explore(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[*cfa.Node]Builder, len(succs))
		for _, s := range succs {
			existing, ok := registry[s.Entry()]
			if !ok {
				registry[s.Entry()] = s
				order = append(order, s)
				work = append(work, s)
				queued[s] = true
				out[s.Entry()] = s
				continue
			}
			out[s.Entry()] = existing
			// another path reaches the same entry: the block is shared, under the calling context common to both
			if widen(existing.base(), s.Stack()) && !queued[existing] {
				work = append(work, existing)
				queued[existing] = true
			}
		}
		exits[b] = out
	}

	reachable := reachableBuilders(root, exits)
	order = funcutil.Filter(order, func(b Builder) bool { return reachable[b] })
	order = append(order, separateSharedSinks(sc, order, registry, exits)...)

	// compile
	for i, b := range order {
		base := b.base()
		base.block = &Block{
			ID:          fmt.Sprintf("%s%d", prefix, i),
			Entry:       base.entry,
			Nodes:       base.nodes,
			Exits:       map[*cfa.Node]*Block{},
			Loop:        isLoop(b),
			Stack:       base.stack,
			sortedNodes: funcutil.SortedKeys(base.nodes, byID),
		}
	}
	for _, b := range order {
		blk := b.Block()
		for n, s := range exits[b] {
			blk.Exits[n] = s.Block()
		}
	}
	for _, b := range order {
		blk := b.Block()
		for _, s := range blk.Successors() {
			s.Predecessors = append(s.Predecessors, blk)
		}
	}
	blocks := funcutil.Map(order, Builder.Block)
	for _, blk := range blocks {
		sortBlocks(blk.Predecessors)
	}
	for _, b := range order {
		if lb, ok := b.(*LoopBuilder); ok {
			nested, err := lb.buildNested(ctx, lb.block.ID+".")
			if err != nil {
				return nil, err
			}
			lb.block.Nested = nested
		}
	}
	return newGraph(blocks), nil
}

func isLoop(b Builder) bool {
	_, ok := b.(*LoopBuilder)
	return ok
}

func sortBlocks(blocks []*Block) {
	slices.SortFunc(blocks, func(x, y *Block) bool { return x.ID < y.ID })
}

// widen generalizes the calling context of b so that it covers s. It returns true when b must be explored again.
func widen(b *builder, s CallStack) bool {
	common := CommonBottom(b.stack, s)
	if SameStack(common, b.stack) {
		return false
	}
	b.stack = common
	b.explored = false
	return true
}

func reachableBuilders(root Builder, exits map[Builder]map[*cfa.Node]Builder) map[Builder]bool {
	reached := map[Builder]bool{root: true}
	queue := []Builder{root}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range exits[b] {
			if !reached[s] {
				reached[s] = true
				queue = append(queue, s)
			}
		}
	}
	return reached
}

// separateSharedSinks gives their own block to the terminal nodes accumulated by several builders (or accumulated
// by one builder and starting another one), so that every node belongs to one block. It returns the new builders.
func separateSharedSinks(sc *scope, order []Builder, registry map[*cfa.Node]Builder,
	exits map[Builder]map[*cfa.Node]Builder) []Builder {
	claims := map[*cfa.Node][]Builder{}
	for _, b := range order {
		for n := range b.base().nodes {
			if n != b.Entry() && len(n.Leaving) == 0 {
				claims[n] = append(claims[n], b)
			}
		}
	}
	inOrder := setOfBuilders(order)
	var added []Builder
	for _, n := range funcutil.SortedKeys(claims, byID) {
		claimants := claims[n]
		owner, ok := registry[n]
		if ok && !inOrder[owner] {
			ok = false
		}
		if len(claimants) == 1 && !ok {
			continue
		}
		if !ok {
			f := newFlatBuilder(sc, n, nil)
			f.add(n)
			f.explored = true
			owner = f
			added = append(added, f)
		}
		for _, c := range claimants {
			delete(c.base().nodes, n)
			exits[c][n] = owner
		}
	}
	return added
}

func setOfBuilders(bs []Builder) map[Builder]bool {
	set := make(map[Builder]bool, len(bs))
	for _, b := range bs {
		set[b] = true
	}
	return set
}
