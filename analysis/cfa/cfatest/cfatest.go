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

// Package cfatest contains small control-flow automata shared by the tests of the analysis packages.
package cfatest

import (
	"fmt"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/formula"
)

// Program is a CFA with named locations
type Program struct {
	CFA   *cfa.CFA
	nodes map[string]*cfa.Node
}

// N returns the location with the given name. It panics if no such location exists.
func (p Program) N(name string) *cfa.Node {
	n, ok := p.nodes[name]
	if !ok {
		panic(fmt.Sprintf("no location %q", name))
	}
	return n
}

func mustBuild(b *cfa.Builder, nodes map[string]*cfa.Node) Program {
	c, err := b.Build("main")
	if err != nil {
		panic(err)
	}
	return Program{CFA: c, nodes: nodes}
}

var (
	x = formula.Var("x")
	y = formula.Var("y")
)

// CountingLoop is
//
//	x := 0
//	while x < bound { x := x + 1 }
//	assert(x == expected)
//
// with locations start, head (the loop header), body, end and err (the target). The assertion is folded into the
// exit edges of the loop, so that the loop block absorbs both terminal locations.
func CountingLoop(bound, expected int64) Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	start := main.Entry
	head, body, err := b.Node(main), b.Node(main), b.Node(main)
	end := main.Exit
	b.Assign(start, head, cfa.Bind("x", formula.Const(0)))
	b.Assume(head, body, formula.Lt(x, formula.Const(bound)))
	b.Assign(body, head, cfa.Bind("x", x.Add(formula.Const(1))))
	exit := formula.Ge(x, formula.Const(bound))
	b.Assume(head, end, formula.Conj(exit, formula.Eq(x, formula.Const(expected))))
	b.Assume(head, err, formula.Conj(exit, formula.Ne(x, formula.Const(expected))))
	b.MarkTarget(err)
	return mustBuild(b, map[string]*cfa.Node{"start": start, "head": head, "body": body, "end": end, "err": err})
}

// SafeLoop is the counting loop to 10 asserting x == 10
func SafeLoop() Program { return CountingLoop(10, 10) }

// UnsafeLoop is the counting loop to 10 asserting x == 11
func UnsafeLoop() Program { return CountingLoop(10, 11) }

// Diamond is
//
//	if x > 0 { y := 1 } else { y := 2 }
//	y := y + x
//
// with locations start, then, else, merge and end.
func Diamond() Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	start, then, els, merge := main.Entry, b.Node(main), b.Node(main), b.Node(main)
	end := main.Exit
	b.Branch(start, formula.Gt(x, formula.Const(0)), then, els)
	b.Assign(then, merge, cfa.Bind("y", formula.Const(1)))
	b.Assign(els, merge, cfa.Bind("y", formula.Const(2)))
	b.Assign(merge, end, cfa.Bind("y", y.Add(x)))
	return mustBuild(b, map[string]*cfa.Node{"start": start, "then": then, "else": els, "merge": merge, "end": end})
}

// Chain is a straight line of n increments of x starting from 0, followed by assert(x == n). Locations are n0 (the
// entry) to n<n>, then end and err.
func Chain(n int) Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	nodes := map[string]*cfa.Node{}
	cur := main.Entry
	nodes["n0"] = cur
	init := b.Node(main)
	b.Assign(cur, init, cfa.Bind("x", formula.Const(0)))
	cur = init
	for i := 1; i <= n; i++ {
		next := b.Node(main)
		b.Assign(cur, next, cfa.Bind("x", x.Add(formula.Const(1))))
		nodes[fmt.Sprintf("n%d", i)] = next
		cur = next
	}
	err := b.Node(main)
	b.Branch(cur, formula.Eq(x, formula.Const(int64(n))), main.Exit, err)
	b.MarkTarget(err)
	nodes["init"] = init
	nodes["end"] = main.Exit
	nodes["err"] = err
	return mustBuild(b, nodes)
}

// Branches is
//
//	x := *
//	if x > 5 { assert(false) } else { x := x - 1; ...; x := x - 1 }
//
// where the else branch is a line of n decrements. Locations are start, split, bad (the location before the
// failing assertion), err, good, g1..g<n> and end.
func Branches(n int) Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	nodes := map[string]*cfa.Node{"start": main.Entry}
	split, bad, err, good := b.Node(main), b.Node(main), b.Node(main), b.Node(main)
	b.Havoc(main.Entry, split, "x")
	b.Branch(split, formula.Gt(x, formula.Const(5)), bad, good)
	b.Blank(bad, err)
	b.MarkTarget(err)
	cur := good
	for i := 1; i <= n; i++ {
		next := b.Node(main)
		b.Assign(cur, next, cfa.Bind("x", x.Sub(formula.Const(1))))
		nodes[fmt.Sprintf("g%d", i)] = next
		cur = next
	}
	b.Blank(cur, main.Exit)
	nodes["split"], nodes["bad"], nodes["err"], nodes["good"], nodes["end"] = split, bad, err, good, main.Exit
	return mustBuild(b, nodes)
}

// NestedLoops is
//
//	i := 0
//	while i < 3 {
//	  j := 0
//	  while j < 3 { j := j + 1 }
//	  i := i + 1
//	}
//
// with locations start, outer, obody, inner, ibody, iexit and end.
func NestedLoops() Program {
	i, j := formula.Var("i"), formula.Var("j")
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	start, end := main.Entry, main.Exit
	outer, obody, inner, ibody, iexit := b.Node(main), b.Node(main), b.Node(main), b.Node(main), b.Node(main)
	b.Assign(start, outer, cfa.Bind("i", formula.Const(0)))
	b.Branch(outer, formula.Lt(i, formula.Const(3)), obody, end)
	b.Assign(obody, inner, cfa.Bind("j", formula.Const(0)))
	b.Branch(inner, formula.Lt(j, formula.Const(3)), ibody, iexit)
	b.Assign(ibody, inner, cfa.Bind("j", j.Add(formula.Const(1))))
	b.Assign(iexit, outer, cfa.Bind("i", i.Add(formula.Const(1))))
	return mustBuild(b, map[string]*cfa.Node{"start": start, "outer": outer, "obody": obody, "inner": inner,
		"ibody": ibody, "iexit": iexit, "end": end})
}

// TwoCalls is
//
//	func inc(a int) int { return a + 1 }
//	x := inc(0)
//	x := inc(x)
//	assert(x == 2)
//
// with locations start, call2 (the first return site and second call), site2, end, err, and inc's entry and exit
// named inc and incExit.
func TwoCalls() Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	inc := b.Func("inc", []string{"inc::a"}, "inc::r")
	b.Assign(inc.Entry, inc.Exit, cfa.Bind("inc::r", formula.Var("inc::a").Add(formula.Const(1))))
	call2 := b.Call(main.Entry, inc, []formula.Term{formula.Const(0)}, "x")
	site2 := b.Call(call2, inc, []formula.Term{x}, "x")
	err := b.Node(main)
	b.Branch(site2, formula.Eq(x, formula.Const(2)), main.Exit, err)
	b.MarkTarget(err)
	return mustBuild(b, map[string]*cfa.Node{"start": main.Entry, "call2": call2, "site2": site2, "end": main.Exit,
		"err": err, "inc": inc.Entry, "incExit": inc.Exit})
}

// CallInLoop is
//
//	func step(a int) int { return a + 2 }
//	x := 0
//	while x < 10 { x := step(x) }
//
// with locations start, head, site (the return site in the loop), end, step and stepExit.
func CallInLoop() Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	step := b.Func("step", []string{"step::a"}, "step::r")
	b.Assign(step.Entry, step.Exit, cfa.Bind("step::r", formula.Var("step::a").Add(formula.Const(2))))
	head := b.Node(main)
	body := b.Node(main)
	b.Assign(main.Entry, head, cfa.Bind("x", formula.Const(0)))
	b.Branch(head, formula.Lt(x, formula.Const(10)), body, main.Exit)
	site := b.Call(body, step, []formula.Term{x}, "x")
	b.Blank(site, head)
	return mustBuild(b, map[string]*cfa.Node{"start": main.Entry, "head": head, "body": body, "site": site,
		"end": main.Exit, "step": step.Entry, "stepExit": step.Exit})
}

// SharedTarget is
//
//	if x > 0 { while x > 0 { x := x - 1; if x == 7 { fail } } }
//	if x < -5 { fail }
//
// where both failures go to the same target location err. Other locations: start, head, body, check, after.
func SharedTarget() Program {
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	start := main.Entry
	head, body, check, after, err := b.Node(main), b.Node(main), b.Node(main), b.Node(main), b.Node(main)
	pre := b.Node(main)
	b.Branch(start, formula.Gt(x, formula.Const(0)), pre, after)
	b.Blank(pre, head)
	b.Branch(head, formula.Gt(x, formula.Const(0)), body, after)
	b.Assign(body, check, cfa.Bind("x", x.Sub(formula.Const(1))))
	b.Branch(check, formula.Eq(x, formula.Const(7)), err, head)
	b.Branch(after, formula.Lt(x, formula.Const(-5)), err, main.Exit)
	b.MarkTarget(err)
	return mustBuild(b, map[string]*cfa.Node{"start": start, "pre": pre, "head": head, "body": body,
		"check": check, "after": after, "err": err, "end": main.Exit})
}

// Recursion is
//
//	func down(a int) int { if a <= 0 { return 0 }; r := down(a - 1); return r + 1 }
//	x := down(3)
//	assert(x >= 0)
//
// with locations start, site (the return site in main), end, err, and in down: down (the entry), base, rec (the
// recursive call), recSite and downExit.
func Recursion() Program {
	a, r := formula.Var("down::a"), formula.Var("down::r")
	b := cfa.NewBuilder()
	main := b.Func("main", nil, "")
	down := b.Func("down", []string{"down::a"}, "down::r")
	base, rec := b.Node(down), b.Node(down)
	b.Branch(down.Entry, formula.Le(a, formula.Const(0)), base, rec)
	b.Assign(base, down.Exit, cfa.Bind("down::r", formula.Const(0)))
	recSite := b.Call(rec, down, []formula.Term{a.Sub(formula.Const(1))}, "down::r")
	b.Assign(recSite, down.Exit, cfa.Bind("down::r", r.Add(formula.Const(1))))
	site := b.Call(main.Entry, down, []formula.Term{formula.Const(3)}, "x")
	err := b.Node(main)
	b.Branch(site, formula.Ge(x, formula.Const(0)), main.Exit, err)
	b.MarkTarget(err)
	return mustBuild(b, map[string]*cfa.Node{"start": main.Entry, "site": site, "end": main.Exit, "err": err,
		"down": down.Entry, "base": base, "rec": rec, "recSite": recSite, "downExit": down.Exit})
}
