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
	"strconv"
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/internal/graphutil"
)

// CallStack is a persistent stack of call nodes. The nil CallStack is the empty stack, which stands for an unknown
// calling context: every return edge may be followed from it.
type CallStack = *graphutil.Stack[*cfa.Node]

// StackKey returns a string identifying the content of the stack
func StackKey(s CallStack) string {
	var b strings.Builder
	for _, n := range s.Slice() {
		b.WriteString(strconv.Itoa(n.ID))
		b.WriteByte('/')
	}
	return b.String()
}

// CommonBottom returns the longest common bottom part of both stacks
func CommonBottom(a, b CallStack) CallStack {
	for a.Len() > b.Len() {
		a = a.Pop()
	}
	for b.Len() > a.Len() {
		b = b.Pop()
	}
	for !SameStack(a, b) {
		a, b = a.Pop(), b.Pop()
	}
	return a
}

// SameStack returns true when both stacks have the same content
func SameStack(a, b CallStack) bool {
	return a == b || StackKey(a) == StackKey(b)
}

// IsActive returns true when a call to callee is on the stack
func IsActive(s CallStack, callee string) bool {
	for _, n := range s.Slice() {
		if n.SummaryLeaving != nil && n.SummaryLeaving.Callee == callee {
			return true
		}
	}
	return false
}

// Step is the result of following an edge under a call stack
type Step struct {
	Edge  *cfa.Edge
	To    *cfa.Node
	Stack CallStack
}

// LeavingSteps returns the steps from n under stack s, in edge order.
// A call edge pushes the call node, unless the callee is already active (recursion) or inline returns false for the
// callee entry, in which case the summary edge is taken instead. A return edge may be followed only when its call
// site is on top of the stack, or when the stack is empty. inline may be nil, in which case every call edge is
// followed.
func LeavingSteps(n *cfa.Node, s CallStack, inline func(entry *cfa.Node) bool) []Step {
	var steps []Step
	for _, e := range n.Leaving {
		switch e.Kind {
		case cfa.CallEdge:
			if IsActive(s, e.Callee) || (inline != nil && !inline(e.To)) {
				if n.SummaryLeaving != nil {
					steps = append(steps, Step{Edge: n.SummaryLeaving, To: n.SummaryLeaving.To, Stack: s})
				}
				continue
			}
			steps = append(steps, Step{Edge: e, To: e.To, Stack: s.Push(n)})
		case cfa.ReturnEdge:
			if top, ok := s.Peek(); ok {
				if top != e.CallSite {
					continue
				}
				steps = append(steps, Step{Edge: e, To: e.To, Stack: s.Pop()})
			} else {
				steps = append(steps, Step{Edge: e, To: e.To, Stack: s})
			}
		default:
			steps = append(steps, Step{Edge: e, To: e.To, Stack: s})
		}
	}
	return steps
}

// EnteringSteps is the backward counterpart of LeavingSteps: it returns the steps from n to the origins of its
// entering edges, where Step.To is the origin. Going back through a return edge pushes its call site, unless the
// callee is already active or inline returns false for the callee exit, in which case the summary edge entering
// n is taken instead. A call edge may be taken back only when its origin is on top of the stack, or when the
// stack is empty.
func EnteringSteps(n *cfa.Node, s CallStack, inline func(exit *cfa.Node) bool) []Step {
	var steps []Step
	summarized := false
	for _, e := range n.Entering {
		switch e.Kind {
		case cfa.ReturnEdge:
			if IsActive(s, e.Callee) || (inline != nil && !inline(e.From)) {
				if n.SummaryEntering != nil && !summarized {
					summarized = true
					steps = append(steps, Step{Edge: n.SummaryEntering, To: n.SummaryEntering.From, Stack: s})
				}
				continue
			}
			steps = append(steps, Step{Edge: e, To: e.From, Stack: s.Push(e.CallSite)})
		case cfa.CallEdge:
			if top, ok := s.Peek(); ok {
				if top != e.From {
					continue
				}
				steps = append(steps, Step{Edge: e, To: e.From, Stack: s.Pop()})
			} else {
				steps = append(steps, Step{Edge: e, To: e.From, Stack: s})
			}
		default:
			steps = append(steps, Step{Edge: e, To: e.From, Stack: s})
		}
	}
	return steps
}
