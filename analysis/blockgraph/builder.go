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
	"errors"
	"fmt"
	"strconv"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// ErrContract is wrapped in the panic values raised when a builder is used against its contract
var ErrContract = errors.New("block builder contract violation")

// A Builder accumulates the nodes of one block during the decomposition.
type Builder interface {
	// Entry returns the entry node of the block under construction
	Entry() *cfa.Node

	// Stack returns the calling context of the entry
	Stack() CallStack

	// Explore accumulates the nodes of the block and returns new builders for the boundaries where the block
	// stops. The result is memoized.
	Explore(ctx context.Context) ([]Builder, error)

	// Block returns the block of the builder once the graph containing it is compiled, nil before. The result is
	// memoized.
	Block() *Block

	base() *builder
}

// scope is the part of the CFA a decomposition works on
type scope struct {
	cfa *cfa.CFA
	op  Operator
	log *config.LogGroup
	// nodes restricts the decomposition; nil for the whole CFA
	nodes map[*cfa.Node]bool
	// root is the loop header of a nested decomposition, nil at the top level
	root *cfa.Node
}

func (s *scope) contains(n *cfa.Node) bool {
	return s.nodes == nil || s.nodes[n]
}

// builder holds the state common to flat and loop builders
type builder struct {
	sc       *scope
	entry    *cfa.Node
	stack    CallStack
	nodes    map[*cfa.Node]bool
	boundary map[*cfa.Node]CallStack
	// boundaryOrder is the discovery order of the boundaries
	boundaryOrder []*cfa.Node
	successors    []Builder
	explored      bool
	block         *Block
}

func (b *builder) base() *builder   { return b }
func (b *builder) Entry() *cfa.Node { return b.entry }
func (b *builder) Stack() CallStack { return b.stack }
func (b *builder) Block() *Block    { return b.block }
func (b *builder) add(n *cfa.Node)  { b.nodes[n] = true }
func (b *builder) isBoundary(n *cfa.Node) bool {
	_, ok := b.boundary[n]
	return ok
}

func (b *builder) reset() {
	b.nodes = map[*cfa.Node]bool{}
	b.boundary = map[*cfa.Node]CallStack{}
	b.boundaryOrder = nil
	b.successors = nil
	b.explored = false
}

func (b *builder) addBoundary(n *cfa.Node, s CallStack) {
	if b.isBoundary(n) {
		return
	}
	b.boundary[n] = s
	b.boundaryOrder = append(b.boundaryOrder, n)
}

// newSuccessors returns fresh builders for the boundaries: loop builders at loop headers, flat builders elsewhere.
func (b *builder) newSuccessors() []Builder {
	res := make([]Builder, 0, len(b.boundaryOrder))
	for _, n := range b.boundaryOrder {
		if n.LoopHeader {
			res = append(res, newLoopBuilder(b.sc, n, b.boundary[n]))
		} else {
			res = append(res, newFlatBuilder(b.sc, n, b.boundary[n]))
		}
	}
	return res
}

// FlatBuilder accumulates an acyclic region. It stops at loop headers, at foreign merges and where the operator
// requires.
type FlatBuilder struct {
	*builder
}

func newFlatBuilder(sc *scope, entry *cfa.Node, stack CallStack) *FlatBuilder {
	b := &FlatBuilder{&builder{sc: sc, entry: entry, stack: stack}}
	b.reset()
	return b
}

// Explore implements the Builder interface with a depth-first traversal from the entry
func (f *FlatBuilder) Explore(ctx context.Context) ([]Builder, error) {
	if f.explored {
		return f.successors, nil
	}
	f.reset()
	f.add(f.entry)
	type item struct {
		n *cfa.Node
		s CallStack
	}
	// a call to a function whose entry is already in the block goes through the summary edge
	inline := func(entry *cfa.Node) bool { return !f.nodes[entry] }
	work := []item{{f.entry, f.stack}}
	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it := work[len(work)-1]
		work = work[:len(work)-1]
		for _, step := range LeavingSteps(it.n, it.s, inline) {
			next := step.To
			if !f.sc.contains(next) || f.nodes[next] || f.isBoundary(next) {
				continue
			}
			if f.isCut(next, step.Stack) {
				f.addBoundary(next, step.Stack)
				continue
			}
			f.add(next)
			work = append(work, item{next, step.Stack})
		}
	}
	f.successors = f.newSuccessors()
	f.explored = true
	f.sc.log.Tracef("flat block at %s: %d nodes, %d boundaries", f.entry, len(f.nodes), len(f.boundaryOrder))
	return f.successors, nil
}

func (f *FlatBuilder) isCut(n *cfa.Node, s CallStack) bool {
	if n.LoopHeader {
		return true
	}
	if f.isForeignMerge(n) {
		return true
	}
	return f.sc.op.IsBlockEnd(n, s.Len())
}

// isForeignMerge returns true when n merges several paths, has successors, and some of its predecessors are not
// in the block yet
func (f *FlatBuilder) isForeignMerge(n *cfa.Node) bool {
	if len(n.Entering) <= 1 || len(n.Leaving) == 0 {
		return false
	}
	return funcutil.Exists(n.Entering, func(e *cfa.Edge) bool { return !f.nodes[e.From] })
}

// LoopBuilder accumulates the nodes of a loop: the nodes reachable from its header that can reach the header
// again, together with the terminal locations they lead to. The body is decomposed into a nested graph.
type LoopBuilder struct {
	*builder
}

func newLoopBuilder(sc *scope, entry *cfa.Node, stack CallStack) *LoopBuilder {
	b := &LoopBuilder{&builder{sc: sc, entry: entry, stack: stack}}
	b.reset()
	return b
}

type loopState struct {
	n *cfa.Node
	s CallStack
}

func stateKey(n *cfa.Node, s CallStack) string {
	return strconv.Itoa(n.ID) + "@" + StackKey(s)
}

// Explore implements the Builder interface. It panics when the entry is not a loop header.
func (l *LoopBuilder) Explore(ctx context.Context) ([]Builder, error) {
	if !l.entry.LoopHeader {
		panic(fmt.Errorf("%w: loop builder explored from %s, which is not a loop header", ErrContract, l.entry))
	}
	if l.explored {
		return l.successors, nil
	}
	l.reset()

	// forward: the calling-context-sensitive states reachable from the header inside the scope, without going
	// through the header again or through the root of the scope
	start := stateKey(l.entry, l.stack)
	states := map[string]loopState{start: {l.entry, l.stack}}
	order := []string{start}
	preds := map[string][]string{}
	for i := 0; i < len(order); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k := order[i]
		st := states[k]
		if i > 0 && (st.n == l.entry || st.n == l.sc.root) {
			continue
		}
		for _, step := range LeavingSteps(st.n, st.s, nil) {
			if !l.sc.contains(step.To) {
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

	// backward: the states that reach the header again
	inLoop := map[string]bool{}
	var queue []string
	for _, k := range order {
		if states[k].n == l.entry {
			inLoop[k] = true
			queue = append(queue, k)
		}
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		for _, p := range preds[k] {
			if !inLoop[p] {
				inLoop[p] = true
				queue = append(queue, p)
			}
		}
	}
	for _, k := range order {
		if inLoop[k] {
			l.add(states[k].n)
		}
	}

	// the successors of members are absorbed when they are terminal, boundaries otherwise
	for _, k := range order {
		if !inLoop[k] {
			continue
		}
		st := states[k]
		for _, step := range LeavingSteps(st.n, st.s, nil) {
			next := step.To
			if !l.sc.contains(next) || l.nodes[next] {
				continue
			}
			if len(next.Leaving) == 0 && next != l.sc.root {
				l.add(next)
				continue
			}
			l.addBoundary(next, step.Stack)
		}
	}
	l.successors = l.newSuccessors()
	l.explored = true
	l.sc.log.Tracef("loop block at %s: %d nodes, %d boundaries", l.entry, len(l.nodes), len(l.boundaryOrder))
	return l.successors, nil
}

// buildNested decomposes the body of the loop, restricted to the final nodes of the block
func (l *LoopBuilder) buildNested(ctx context.Context, prefix string) (*Graph, error) {
	sc := &scope{cfa: l.sc.cfa, op: l.sc.op, log: l.sc.log, nodes: l.nodes, root: l.entry}
	return build(ctx, sc, newFlatBuilder(sc, l.entry, l.stack), prefix)
}
