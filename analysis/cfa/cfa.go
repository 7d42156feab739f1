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

// Package cfa defines control-flow automata: graphs whose nodes are program locations and whose edges are
// statements, assumptions and interprocedural transfers.
//
// Every function has an entry and an exit node. A call is represented by three edges: a call edge from the call
// node to the callee entry, a return edge from the callee exit to the return site, and a summary edge from the
// call node directly to the return site. Summary edges are not part of the entering and leaving edge lists of the
// nodes; they are reachable through Node.SummaryLeaving and Node.SummaryEntering.
package cfa

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// EdgeKind is the type of a CFA edge
type EdgeKind int

const (
	// BlankEdge has no effect
	BlankEdge EdgeKind = iota
	// StatementEdge assigns (in parallel) its bindings and havocs its havoc variables
	StatementEdge
	// AssumeEdge can be taken only when its condition holds
	AssumeEdge
	// CallEdge binds the callee parameters to the arguments
	CallEdge
	// ReturnEdge binds the result variable of the caller to the value returned by the callee
	ReturnEdge
	// SummaryEdge connects a call node to its return site and havocs the result variable
	SummaryEdge
)

func (k EdgeKind) String() string {
	switch k {
	case BlankEdge:
		return "blank"
	case StatementEdge:
		return "statement"
	case AssumeEdge:
		return "assume"
	case CallEdge:
		return "call"
	case ReturnEdge:
		return "return"
	case SummaryEdge:
		return "summary"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// Binding is the assignment Var := Value
type Binding struct {
	Var   string
	Value formula.Term
}

func (b Binding) String() string {
	return b.Var + " := " + b.Value.String()
}

// Node is a program location
type Node struct {
	// ID is the index of the node in the CFA
	ID int
	// Function is the name of the function containing the node
	Function string
	// LoopHeader is set on the entry locations of loops
	LoopHeader bool
	// Target marks property violation locations
	Target bool

	Entering []*Edge
	Leaving  []*Edge

	// SummaryLeaving is the summary edge of a call node, nil otherwise
	SummaryLeaving *Edge
	// SummaryEntering is the summary edge of a return site, nil otherwise
	SummaryEntering *Edge
}

func (n *Node) String() string {
	return fmt.Sprintf("N%d", n.ID)
}

// IsCall returns true when the node is the origin of a function call
func (n *Node) IsCall() bool {
	return n.SummaryLeaving != nil
}

// IsReturnSite returns true when the node is the destination of function returns
func (n *Node) IsReturnSite() bool {
	return n.SummaryEntering != nil
}

// Successors returns the destinations of the leaving edges, without duplicates
func (n *Node) Successors() []*Node {
	return uniqueNodes(funcutil.Map(n.Leaving, func(e *Edge) *Node { return e.To }))
}

// Predecessors returns the origins of the entering edges, without duplicates
func (n *Node) Predecessors() []*Node {
	return uniqueNodes(funcutil.Map(n.Entering, func(e *Edge) *Node { return e.From }))
}

// LocalLeaving returns the intraprocedural edges leaving n: the leaving edges that are not calls or returns, and
// the summary edge of a call node.
func (n *Node) LocalLeaving() []*Edge {
	var res []*Edge
	for _, e := range n.Leaving {
		if e.Kind != CallEdge && e.Kind != ReturnEdge {
			res = append(res, e)
		}
	}
	if n.SummaryLeaving != nil {
		res = append(res, n.SummaryLeaving)
	}
	return res
}

// LocalEntering returns the intraprocedural edges entering n
func (n *Node) LocalEntering() []*Edge {
	var res []*Edge
	for _, e := range n.Entering {
		if e.Kind != CallEdge && e.Kind != ReturnEdge {
			res = append(res, e)
		}
	}
	if n.SummaryEntering != nil {
		res = append(res, n.SummaryEntering)
	}
	return res
}

func uniqueNodes(nodes []*Node) []*Node {
	seen := make(map[*Node]bool, len(nodes))
	var res []*Node
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			res = append(res, n)
		}
	}
	return res
}

// Edge is a transition between two locations
type Edge struct {
	Kind     EdgeKind
	From, To *Node

	// Bindings holds the assignments of a statement edge, the parameter bindings of a call edge, and the result
	// binding of a return edge. Bindings are evaluated in parallel.
	Bindings []Binding
	// Havoc holds the variables that receive an arbitrary value
	Havoc []string
	// Cond is the condition of an assume edge
	Cond formula.Formula
	// Callee is the called function of call, return and summary edges
	Callee string
	// CallSite is the call node matching a return edge
	CallSite *Node
}

func (e *Edge) String() string {
	switch e.Kind {
	case StatementEdge:
		parts := funcutil.Map(e.Bindings, Binding.String)
		for _, v := range e.Havoc {
			parts = append(parts, v+" := *")
		}
		return strings.Join(parts, "; ")
	case AssumeEdge:
		return "[" + e.Cond.String() + "]"
	case CallEdge:
		return "call " + e.Callee + "(" + strings.Join(funcutil.Map(e.Bindings, Binding.String), ", ") + ")"
	case ReturnEdge:
		return "return from " + e.Callee
	case SummaryEdge:
		return "summary " + e.Callee
	}
	return ""
}

// Function is a function of the program
type Function struct {
	Name   string
	Entry  *Node
	Exit   *Node
	Params []string
	// Result is the variable holding the returned value in the callee, empty when the function returns nothing
	Result string
}

// CFA is a control-flow automaton of a whole program
type CFA struct {
	// Nodes is indexed by node ID
	Nodes []*Node
	// Entry is the entry node of the program
	Entry *Node
	// Functions indexes the functions by name
	Functions map[string]*Function
}

// Node returns the node with the given id, or nil
func (c *CFA) Node(id int) *Node {
	if id < 0 || id >= len(c.Nodes) {
		return nil
	}
	return c.Nodes[id]
}

// Reachable returns the nodes reachable from the entry through non-summary edges, in depth-first order
func (c *CFA) Reachable() []*Node {
	visited := map[*Node]bool{}
	var order []*Node
	stack := []*Node{c.Entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)
		succs := n.Successors()
		for i := len(succs) - 1; i >= 0; i-- {
			if !visited[succs[i]] {
				stack = append(stack, succs[i])
			}
		}
	}
	return order
}

// Targets returns the target nodes of the CFA
func (c *CFA) Targets() []*Node {
	return funcutil.Filter(c.Nodes, func(n *Node) bool { return n.Target })
}

// LoopHeaders returns the loop headers of the CFA
func (c *CFA) LoopHeaders() []*Node {
	return funcutil.Filter(c.Nodes, func(n *Node) bool { return n.LoopHeader })
}
