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

package frontend_test

import (
	"context"
	"errors"
	"go/ast"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	_ "github.com/awslabs/ar-go-dss/analysis/domain/interval"
	"github.com/awslabs/ar-go-dss/analysis/dss"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/analysis/frontend"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, file string) *cfa.CFA {
	t.Helper()
	c, err := frontend.LoadFile("testdata/"+file, nil)
	require.NoError(t, err)
	return c
}

func verify(t *testing.T, c *cfa.CFA) *dss.Report {
	t.Helper()
	cfg := config.NewDefault()
	cfg.Analysis.Scheduler = config.SchedulerSequential
	g, err := blockgraph.NewGraphBuilder(c, blockgraph.NewOperator(c, cfg.Blocks), nil).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, g.Validate(c))
	o, err := dss.NewOrchestrator(g, cfg, nil)
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	return report
}

func targets(c *cfa.CFA) []*cfa.Node {
	return funcutil.Filter(c.Nodes, func(n *cfa.Node) bool { return n.Target })
}

func TestTranslateLoop(t *testing.T) {
	c := load(t, "safe_loop.go")
	assert.Equal(t, []string{"main"}, funcutil.SortedKeys(c.Functions, func(a, b string) bool { return a < b }))
	assert.Equal(t, c.Functions["main"].Entry, c.Entry)
	assert.Len(t, targets(c), 1)
	headers := funcutil.Filter(c.Nodes, func(n *cfa.Node) bool { return n.LoopHeader })
	require.Len(t, headers, 1)
	// the loop counter is a phi assigned on the edges entering the header
	var assigned []string
	var values []formula.Term
	for _, e := range headers[0].Entering {
		for _, b := range e.Bindings {
			assigned = append(assigned, b.Var)
			values = append(values, b.Value)
		}
	}
	require.Len(t, assigned, 2)
	assert.Equal(t, assigned[0], assigned[1])
	assert.True(t, strings.HasPrefix(assigned[0], "main::t"), assigned[0])
	// one edge enters with the constant, the back edge with the register holding x + 1
	var consts, registers int
	for _, v := range values {
		if v.IsConst() {
			consts++
			continue
		}
		require.Len(t, v.Vars(), 1)
		assert.True(t, strings.HasPrefix(v.Vars()[0], "main::t"), v.Vars()[0])
		registers++
	}
	assert.Equal(t, 1, consts)
	assert.Equal(t, 1, registers)
}

func TestTranslateCalls(t *testing.T) {
	c := load(t, "calls.go")
	assert.Equal(t, []string{"abs", "main"}, funcutil.SortedKeys(c.Functions, func(a, b string) bool { return a < b }))
	abs := c.Functions["abs"]
	assert.Equal(t, []string{"abs::a"}, abs.Params)
	assert.Equal(t, "abs::ret", abs.Result)
	calls := funcutil.Filter(c.Nodes, (*cfa.Node).IsCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "abs", calls[0].SummaryLeaving.Callee)
	var havocs int
	for _, n := range c.Nodes {
		for _, e := range n.Leaving {
			havocs += len(e.Havoc)
		}
	}
	assert.Equal(t, 1, havocs)
}

func TestVerdicts(t *testing.T) {
	for _, test := range []struct {
		file   string
		status string
	}{
		{"safe_loop.go", "SAFE"},
		{"unsafe_loop.go", "UNSAFE"},
		{"calls.go", "SAFE"},
		{"nondet.go", "UNSAFE"},
	} {
		t.Run(test.file, func(t *testing.T) {
			report := verify(t, load(t, test.file))
			assert.Equal(t, test.status, report.Status())
		})
	}
}

func TestUnsupported(t *testing.T) {
	_, err := frontend.LoadFile("testdata/unsupported.go", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, frontend.ErrUnsupported))
	assert.Contains(t, err.Error(), "unsupported.go")
}

func TestMissingEntry(t *testing.T) {
	p, err := frontend.LoadProgram(nil, "", 0, []string{"testdata/safe_loop.go"})
	require.NoError(t, err)
	_, err = frontend.Translate(p, "run", nil)
	assert.Error(t, err)
}

func TestDirectives(t *testing.T) {
	p, err := frontend.LoadProgram(nil, "", 0, []string{"testdata/calls.go"})
	require.NoError(t, err)
	require.Len(t, p.Directives, 1)
	for pos, d := range p.Directives {
		assert.Equal(t, frontend.DirectiveHavoc, d.Kind)
		assert.Equal(t, 23, pos.Line)
	}

	_, ok := frontend.NewDirective(&ast.Comment{Text: "//dss:inline"})
	assert.False(t, ok)
	_, ok = frontend.NewDirective(&ast.Comment{Text: "// dss:havoc"})
	assert.False(t, ok)
	d, ok := frontend.NewDirective(&ast.Comment{Text: "//dss:havoc"})
	assert.True(t, ok)
	assert.Equal(t, frontend.DirectiveHavoc, d.Kind)
}
