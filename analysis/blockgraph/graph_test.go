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

package blockgraph_test

import (
	"context"
	"testing"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/cfa/cfatest"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, p cfatest.Program, op blockgraph.Operator) *blockgraph.Graph {
	t.Helper()
	g, err := blockgraph.NewGraphBuilder(p.CFA, op, nil).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, g.Validate(p.CFA))
	return g
}

// partition returns the node names of every block of g, keyed by block id
func partition(p cfatest.Program, g *blockgraph.Graph, names ...string) map[string][]string {
	res := map[string][]string{}
	for _, b := range g.Blocks {
		res[b.ID] = []string{}
		for _, name := range names {
			if b.Contains(p.N(name)) {
				res[b.ID] = append(res[b.ID], name)
			}
		}
	}
	return res
}

func TestLoopPartition(t *testing.T) {
	p := cfatest.SafeLoop()
	g := build(t, p, nil)
	names := []string{"start", "head", "body", "end", "err"}
	want := map[string][]string{
		"B0": {"start"},
		"B1": {"head", "body", "end", "err"},
	}
	if diff := cmp.Diff(want, partition(p, g, names...)); diff != "" {
		t.Errorf("partition mismatch (-want +got):\n%s", diff)
	}
	loop := g.Block("B1")
	require.NotNil(t, loop)
	assert.True(t, loop.Loop)
	assert.Equal(t, p.N("head"), loop.Entry)
	assert.Equal(t, []*blockgraph.Block{g.Entry}, loop.Predecessors)
	assert.Equal(t, map[*cfa.Node]*blockgraph.Block{p.N("head"): loop}, g.Entry.Exits)
	assert.Empty(t, loop.Exits)
	assert.Equal(t, []*cfa.Node{p.N("err")}, loop.Targets())
	assert.Less(t, g.Rank(g.Entry), g.Rank(loop))

	require.NotNil(t, loop.Nested)
	require.Len(t, loop.Nested.Blocks, 1)
	inner := loop.Nested.Entry
	assert.Equal(t, "B1.0", inner.ID)
	assert.Equal(t, loop.Nodes, inner.Nodes)
	assert.Same(t, inner, g.Block("B1.0"))

	assert.Equal(t, blockgraph.Stats{Blocks: 3, LoopBlocks: 1, Nodes: 5, Depth: 2}, g.Stats())
}

func TestReconvergence(t *testing.T) {
	p := cfatest.Diamond()
	g := build(t, p, nil)
	require.Len(t, g.Blocks, 1)
	assert.Len(t, g.Entry.Nodes, len(p.CFA.Nodes))
	assert.True(t, g.Entry.IsRoot())
}

func TestSharedSink(t *testing.T) {
	p := cfatest.SharedTarget()
	g := build(t, p, nil)
	names := []string{"start", "pre", "head", "body", "check", "after", "err", "end"}
	want := map[string][]string{
		"B0": {"start", "pre"},
		"B1": {"after", "end"},
		"B2": {"head", "body", "check"},
		"B3": {"err"},
	}
	if diff := cmp.Diff(want, partition(p, g, names...)); diff != "" {
		t.Errorf("partition mismatch (-want +got):\n%s", diff)
	}
	sink := g.Block("B3")
	assert.Equal(t, []*blockgraph.Block{g.Block("B1"), g.Block("B2")}, sink.Predecessors)
	assert.Equal(t, []*cfa.Node{p.N("err")}, g.Block("B2").ExitsTo(sink))
	assert.Equal(t, []*blockgraph.Block{g.Block("B1"), sink}, g.Block("B2").Successors())
	assert.Len(t, g.Block("B2").Nested.Blocks, 1)
}

func TestNestedLoops(t *testing.T) {
	p := cfatest.NestedLoops()
	g := build(t, p, nil)
	require.Len(t, g.Blocks, 2)
	outer := g.Block("B1")
	require.True(t, outer.Loop)
	assert.Len(t, outer.Nodes, 6)

	nested := outer.Nested
	names := []string{"outer", "obody", "inner", "ibody", "iexit", "end"}
	want := map[string][]string{
		"B1.0": {"outer", "obody", "end"},
		"B1.1": {"inner", "ibody"},
		"B1.2": {"iexit"},
	}
	if diff := cmp.Diff(want, partition(p, nested, names...)); diff != "" {
		t.Errorf("nested partition mismatch (-want +got):\n%s", diff)
	}
	// the body of the outer loop flows back to its header
	assert.Equal(t, []*blockgraph.Block{nested.Entry}, nested.Block("B1.2").Successors())
	innerLoop := nested.Block("B1.1")
	assert.True(t, innerLoop.Loop)
	require.Len(t, innerLoop.Nested.Blocks, 1)
	assert.Equal(t, "B1.1.0", innerLoop.Nested.Entry.ID)

	assert.Equal(t, blockgraph.Stats{Blocks: 6, LoopBlocks: 2, Nodes: 7, Depth: 3}, g.Stats())
}

func TestCallInLoop(t *testing.T) {
	p := cfatest.CallInLoop()
	g := build(t, p, nil)
	require.Len(t, g.Blocks, 2)
	loop := g.Block("B1")
	for _, name := range []string{"head", "body", "step", "stepExit", "site", "end"} {
		assert.True(t, loop.Contains(p.N(name)), name)
	}
	assert.Len(t, loop.Nested.Blocks, 1)
}

// loopBlocks returns the loop blocks of g and of its nested graphs
func loopBlocks(g *blockgraph.Graph) []*blockgraph.Block {
	var res []*blockgraph.Block
	for _, b := range g.Blocks {
		if b.Loop {
			res = append(res, b)
			res = append(res, loopBlocks(b.Nested)...)
		}
	}
	return res
}

func TestLoopIsolation(t *testing.T) {
	for name, p := range map[string]cfatest.Program{
		"nested loops":  cfatest.NestedLoops(),
		"call in loop":  cfatest.CallInLoop(),
		"shared target": cfatest.SharedTarget(),
	} {
		t.Run(name, func(t *testing.T) {
			g := build(t, p, nil)
			assert.NotEmpty(t, loopBlocks(g))
		})
	}

	p := cfatest.CallInLoop()
	g := build(t, p, nil)
	loop := g.Block("B1")
	require.True(t, loop.Loop)
	// without the return site, the callee cannot flow back to the header
	delete(loop.Nodes, p.N("site"))
	assert.ErrorContains(t, g.Validate(p.CFA), "cannot reach the loop header")
}

func TestSharedCallee(t *testing.T) {
	p := cfatest.TwoCalls()
	g := build(t, p, nil)
	require.Len(t, g.Blocks, 2)
	callee := g.Block("B1")
	assert.Equal(t, p.N("inc"), callee.Entry)
	assert.Equal(t, []*cfa.Node{p.N("start")}, callee.Stack.Slice())
	// the second call is summarized since the callee is already in the block
	assert.True(t, callee.Contains(p.N("site2")))
}

func TestSharedCalleeWidening(t *testing.T) {
	p := cfatest.TwoCalls()
	g := build(t, p, blockgraph.NewOperator(p.CFA, config.BlockOptions{CallSites: true}))
	names := []string{"start", "inc", "incExit", "call2", "site2", "end", "err"}
	want := map[string][]string{
		"B0": {"start"},
		"B1": {"inc", "incExit"},
		"B2": {"call2"},
		"B3": {"site2", "end", "err"},
	}
	if diff := cmp.Diff(want, partition(p, g, names...)); diff != "" {
		t.Errorf("partition mismatch (-want +got):\n%s", diff)
	}
	callee := g.Block("B1")
	// reached from two calling contexts, the callee block has an unknown context
	assert.Zero(t, callee.Stack.Len())
	assert.Equal(t, []*blockgraph.Block{g.Block("B0"), g.Block("B2")}, callee.Predecessors)
	assert.Equal(t, g.Rank(g.Block("B1")), g.Rank(g.Block("B2")))
}

func TestRecursion(t *testing.T) {
	p := cfatest.Recursion()
	g := build(t, p, nil)
	require.Len(t, g.Blocks, 2)
	body := g.Block("B1")
	assert.Equal(t, p.N("down"), body.Entry)
	assert.True(t, body.Contains(p.N("recSite")))
	assert.True(t, body.Contains(p.N("err")))
}

func TestCutNodes(t *testing.T) {
	p := cfatest.Chain(3)
	op := blockgraph.NewOperator(p.CFA, config.BlockOptions{CutNodes: []int{p.N("n2").ID}})
	g := build(t, p, op)
	want := map[string][]string{
		"B0": {"n0", "init", "n1"},
		"B1": {"n2", "n3", "end", "err"},
	}
	names := []string{"n0", "init", "n1", "n2", "n3", "end", "err"}
	if diff := cmp.Diff(want, partition(p, g, names...)); diff != "" {
		t.Errorf("partition mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctionEntriesOperator(t *testing.T) {
	p := cfatest.CallInLoop()
	op := blockgraph.NewOperator(p.CFA, config.BlockOptions{FunctionEntries: true})
	assert.True(t, op.IsBlockEnd(p.N("step"), 1))
	assert.False(t, op.IsBlockEnd(p.N("start"), 0))
	assert.False(t, op.IsBlockEnd(p.N("body"), 0))

	g := build(t, p, op)
	loop := g.Block("B1")
	assert.True(t, loop.Contains(p.N("step")))
	nested := loop.Nested
	require.Len(t, nested.Blocks, 2)
	assert.Equal(t, p.N("step"), nested.Block("B1.1").Entry)
}

func TestMaxCallDepth(t *testing.T) {
	p := cfatest.CallInLoop()
	op := blockgraph.NewOperator(p.CFA, config.BlockOptions{MaxCallDepth: 1})
	assert.False(t, op.IsBlockEnd(p.N("step"), 1))
	assert.True(t, op.IsBlockEnd(p.N("step"), 2))
	op = blockgraph.NewOperator(p.CFA, config.BlockOptions{MaxCallDepth: -1})
	assert.False(t, op.IsBlockEnd(p.N("step"), 100))
}

func TestTotality(t *testing.T) {
	programs := map[string]cfatest.Program{
		"safe loop":     cfatest.SafeLoop(),
		"diamond":       cfatest.Diamond(),
		"chain":         cfatest.Chain(5),
		"branches":      cfatest.Branches(4),
		"nested":        cfatest.NestedLoops(),
		"two calls":     cfatest.TwoCalls(),
		"call in loop":  cfatest.CallInLoop(),
		"shared target": cfatest.SharedTarget(),
		"recursion":     cfatest.Recursion(),
	}
	operators := map[string]func(c *cfa.CFA) blockgraph.Operator{
		"loops only": func(*cfa.CFA) blockgraph.Operator { return blockgraph.LoopHeadersOnly },
		"entries and sites": func(c *cfa.CFA) blockgraph.Operator {
			return blockgraph.NewOperator(c, config.BlockOptions{FunctionEntries: true, CallSites: true})
		},
		"every node": func(*cfa.CFA) blockgraph.Operator {
			return blockgraph.OperatorFunc(func(*cfa.Node, int) bool { return true })
		},
	}
	for pname, p := range programs {
		for oname, op := range operators {
			t.Run(pname+"/"+oname, func(t *testing.T) {
				g := build(t, p, op(p.CFA))
				for _, n := range p.CFA.Reachable() {
					assert.NotNil(t, g.Owner(n), "node %s has no block", n)
				}
			})
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	p := cfatest.NestedLoops()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := blockgraph.NewGraphBuilder(p.CFA, nil, nil).Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, g)
}

func TestLoopAtProgramEntry(t *testing.T) {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	body := b.Node(main)
	b.Branch(main.Entry, formula.Gt(formula.Var("x"), formula.Const(0)), body, main.Exit)
	b.Assign(body, main.Entry, cfa.Bind("x", formula.Var("x").Sub(formula.Const(1))))
	c, err := b.Build("main")
	require.NoError(t, err)
	require.True(t, c.Entry.LoopHeader)
	p := cfatest.Program{CFA: c}
	g := build(t, p, nil)
	require.Len(t, g.Blocks, 1)
	assert.True(t, g.Entry.Loop)
	assert.Len(t, g.Entry.Nodes, 3)
}
