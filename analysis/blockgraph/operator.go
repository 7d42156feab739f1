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
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
)

// An Operator decides where blocks end, in addition to loop headers and foreign merges.
type Operator interface {
	// IsBlockEnd returns true when a block must stop at node n, reached at call depth depth
	IsBlockEnd(n *cfa.Node, depth int) bool
}

// OperatorFunc adapts a function to the Operator interface
type OperatorFunc func(n *cfa.Node, depth int) bool

// IsBlockEnd calls f
func (f OperatorFunc) IsBlockEnd(n *cfa.Node, depth int) bool { return f(n, depth) }

// LoopHeadersOnly is the operator that never forces a cut: blocks end only at loop headers and foreign merges.
var LoopHeadersOnly Operator = OperatorFunc(func(*cfa.Node, int) bool { return false })

// NewOperator returns the operator described by the block options for the CFA c
func NewOperator(c *cfa.CFA, opts config.BlockOptions) Operator {
	cutNodes := make(map[int]bool, len(opts.CutNodes))
	for _, id := range opts.CutNodes {
		cutNodes[id] = true
	}
	entries := map[*cfa.Node]string{}
	for name, f := range c.Functions {
		if f.Entry != c.Entry {
			entries[f.Entry] = name
		}
	}
	return OperatorFunc(func(n *cfa.Node, depth int) bool {
		if cutNodes[n.ID] {
			return true
		}
		if name, isEntry := entries[n]; isEntry && (opts.FunctionEntries || opts.MatchCutFunction(name)) {
			return true
		}
		if opts.CallSites && n.IsReturnSite() {
			return true
		}
		return opts.ExceedsMaxCallDepth(depth)
	})
}
