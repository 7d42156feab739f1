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
	"fmt"

	"github.com/awslabs/ar-go-dss/analysis/formula"
)

// A Builder constructs a CFA incrementally. The zero value is not usable; use NewBuilder.
type Builder struct {
	cfa *CFA
}

// NewBuilder returns a builder for an empty CFA
func NewBuilder() *Builder {
	return &Builder{cfa: &CFA{Functions: map[string]*Function{}}}
}

// Func declares a function with its entry and exit nodes. Declaring a function twice returns the existing one.
func (b *Builder) Func(name string, params []string, result string) *Function {
	if f, ok := b.cfa.Functions[name]; ok {
		return f
	}
	f := &Function{Name: name, Params: params, Result: result}
	f.Entry = b.Node(f)
	f.Exit = b.Node(f)
	b.cfa.Functions[name] = f
	return f
}

// Node adds a fresh node to the function
func (b *Builder) Node(f *Function) *Node {
	n := &Node{ID: len(b.cfa.Nodes), Function: f.Name}
	b.cfa.Nodes = append(b.cfa.Nodes, n)
	return n
}

func (b *Builder) edge(e *Edge) *Edge {
	if e.Kind == SummaryEdge {
		e.From.SummaryLeaving = e
		e.To.SummaryEntering = e
		return e
	}
	e.From.Leaving = append(e.From.Leaving, e)
	e.To.Entering = append(e.To.Entering, e)
	return e
}

// Blank adds an edge without effect
func (b *Builder) Blank(from, to *Node) *Edge {
	return b.edge(&Edge{Kind: BlankEdge, From: from, To: to})
}

// Assign adds a statement edge assigning the bindings in parallel
func (b *Builder) Assign(from, to *Node, bindings ...Binding) *Edge {
	return b.edge(&Edge{Kind: StatementEdge, From: from, To: to, Bindings: bindings})
}

// Havoc adds a statement edge assigning arbitrary values to the variables
func (b *Builder) Havoc(from, to *Node, vars ...string) *Edge {
	return b.edge(&Edge{Kind: StatementEdge, From: from, To: to, Havoc: vars})
}

// Assume adds an edge that can only be taken when cond holds
func (b *Builder) Assume(from, to *Node, cond formula.Formula) *Edge {
	return b.edge(&Edge{Kind: AssumeEdge, From: from, To: to, Cond: cond})
}

// Branch adds the two assume edges cond and not cond
func (b *Builder) Branch(from *Node, cond formula.Formula, then, els *Node) {
	b.Assume(from, then, cond)
	b.Assume(from, els, formula.Negate(cond))
}

// Call adds a call from the node to the callee and returns the return site. The callee parameters are bound to
// args, and when result is not empty, it receives the value of the callee result variable on return.
func (b *Builder) Call(from *Node, callee *Function, args []formula.Term, result string) *Node {
	site := b.Node(b.cfa.Functions[from.Function])
	var params []Binding
	for i, p := range callee.Params {
		if i < len(args) {
			params = append(params, Binding{Var: p, Value: args[i]})
		}
	}
	b.edge(&Edge{Kind: CallEdge, From: from, To: callee.Entry, Bindings: params, Callee: callee.Name})
	ret := &Edge{Kind: ReturnEdge, From: callee.Exit, To: site, Callee: callee.Name, CallSite: from}
	summary := &Edge{Kind: SummaryEdge, From: from, To: site, Callee: callee.Name}
	if result != "" {
		if callee.Result != "" {
			ret.Bindings = []Binding{{Var: result, Value: formula.Var(callee.Result)}}
		} else {
			ret.Havoc = []string{result}
		}
		summary.Havoc = []string{result}
	}
	b.edge(ret)
	b.edge(summary)
	return site
}

// MarkTarget flags the node as a property violation location
func (b *Builder) MarkTarget(n *Node) {
	n.Target = true
}

// Build finishes the CFA with main as entry function, detects loop headers and returns the CFA. The builder must
// not be used afterwards.
func (b *Builder) Build(main string) (*CFA, error) {
	f, ok := b.cfa.Functions[main]
	if !ok {
		return nil, fmt.Errorf("entry function %q is not declared", main)
	}
	for _, n := range b.cfa.Nodes {
		if n.IsCall() {
			if len(n.Leaving) != 1 || n.Leaving[0].Kind != CallEdge {
				return nil, fmt.Errorf("call node %s must have exactly one leaving call edge", n)
			}
		}
	}
	b.cfa.Entry = f.Entry
	MarkLoopHeaders(b.cfa)
	return b.cfa, nil
}

// Bind is a shorthand for a binding
func Bind(v string, value formula.Term) Binding {
	return Binding{Var: v, Value: value}
}
