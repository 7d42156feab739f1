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

package dss_test

import (
	"context"
	"testing"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa/cfatest"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	_ "github.com/awslabs/ar-go-dss/analysis/domain/explicit"
	"github.com/awslabs/ar-go-dss/analysis/domain/interval"
	"github.com/awslabs/ar-go-dss/analysis/dss"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/analysis/reach"
	"github.com/awslabs/ar-go-dss/analysis/smt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var x = formula.Var("x")

// graphOf builds the block graph of p with additional cuts at the named locations
func graphOf(t *testing.T, p cfatest.Program, cuts ...string) *blockgraph.Graph {
	t.Helper()
	var opts config.BlockOptions
	for _, c := range cuts {
		opts.CutNodes = append(opts.CutNodes, p.N(c).ID)
	}
	g, err := blockgraph.NewGraphBuilder(p.CFA, blockgraph.NewOperator(p.CFA, opts), nil).Build(context.Background())
	require.NoError(t, err)
	return g
}

type fixture struct {
	dom     domain.Plugin
	session smt.Session
	opts    config.AnalysisOptions
}

func newFixture(t *testing.T) fixture {
	opts := config.NewDefault().Analysis
	dom, err := domain.New(opts)
	require.NoError(t, err)
	return fixture{dom: dom, session: smt.NewSolver(smt.DefaultOptions()).NewSession(), opts: opts}
}

func (f fixture) forward(b *blockgraph.Block) *dss.ForwardAnalysis {
	return dss.NewForwardAnalysis(b, f.dom, f.session, f.opts, nil)
}

func (f fixture) backward(b *blockgraph.Block, root bool) *dss.BackwardAnalysis {
	return dss.NewBackwardAnalysis(b, root, f.dom, f.session, f.opts, nil)
}

func (f fixture) decode(t *testing.T, payload []byte) []interval.Box {
	t.Helper()
	s, err := f.dom.Deserialize(payload)
	require.NoError(t, err)
	return s.(interval.State).Boxes()
}

func TestForwardTargetFirst(t *testing.T) {
	p := cfatest.Branches(1)
	g := graphOf(t, p, "good")
	f := newFixture(t)
	out, err := f.forward(g.Entry).Analyze(context.Background(), formula.True, p.N("start"))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, dss.Postcondition, out[0].Kind)
	assert.True(t, out[0].Target)
	assert.Equal(t, p.N("err").ID, out[0].LocationID)
	assert.Equal(t, []interval.Box{{"x": {Lo: 6, Hi: interval.PosInf}}}, f.decode(t, out[0].Payload))

	assert.Equal(t, dss.Precondition, out[1].Kind)
	assert.Equal(t, "B0", out[1].BlockID)
	assert.Equal(t, p.N("good").ID, out[1].LocationID)
	assert.Equal(t, []interval.Box{{"x": {Lo: interval.NegInf, Hi: 5}}}, f.decode(t, out[1].Payload))
}

func TestForwardSafeBlock(t *testing.T) {
	p := cfatest.SafeLoop()
	g := graphOf(t, p)
	f := newFixture(t)
	out, err := f.forward(g.Block("B1")).Analyze(context.Background(), formula.Eq(x, formula.Const(0)), p.N("head"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBackwardAtRoot(t *testing.T) {
	p := cfatest.Branches(1)
	g := graphOf(t, p, "good")
	f := newFixture(t)
	out, err := f.backward(g.Entry, true).Analyze(context.Background(), formula.True, p.N("err"))
	require.NoError(t, err)
	assert.Equal(t, []dss.Message{dss.NewResult("B0", p.N("start").ID, dss.False)}, out)
}

func TestBackwardPostcondition(t *testing.T) {
	p := cfatest.Branches(1)
	g := graphOf(t, p, "good")
	f := newFixture(t)
	b := g.Owner(p.N("good"))
	require.NotNil(t, b)
	out, err := f.backward(b, false).Analyze(context.Background(), formula.Ge(x, formula.Const(100)), p.N("end"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, dss.Postcondition, out[0].Kind)
	assert.False(t, out[0].Target)
	assert.Equal(t, b.ID, out[0].BlockID)
	assert.Equal(t, p.N("good").ID, out[0].LocationID)
	assert.Equal(t, []interval.Box{{"x": {Lo: 101, Hi: interval.PosInf}}}, f.decode(t, out[0].Payload))
}

func TestBackwardUnreachableEntry(t *testing.T) {
	p := cfatest.SafeLoop()
	g := graphOf(t, p)
	f := newFixture(t)
	out, err := f.backward(g.Entry, true).Analyze(context.Background(), formula.Ge(x, formula.Const(5)), p.N("head"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCantContinue(t *testing.T) {
	p := cfatest.SafeLoop()
	g := graphOf(t, p)
	a := newFixture(t).forward(g.Entry)
	cant, err := a.CantContinue(context.Background(), formula.Le(x, formula.Const(5)), formula.Ge(x, formula.Const(6)))
	require.NoError(t, err)
	assert.True(t, cant)
	cant, err = a.CantContinue(context.Background(), formula.Le(x, formula.Const(5)), formula.Ge(x, formula.Const(0)))
	require.NoError(t, err)
	assert.False(t, cant)
}

func TestAnalysisErrors(t *testing.T) {
	p := cfatest.SafeLoop()
	g := graphOf(t, p)
	f := newFixture(t)
	f.opts.MaxIterations = 1
	_, err := f.forward(g.Block("B1")).Analyze(context.Background(), formula.Eq(x, formula.Const(0)), p.N("head"))
	assert.ErrorIs(t, err, dss.ErrAnalysis)
	assert.ErrorIs(t, err, reach.ErrIterationLimit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.forward(g.Block("B1")).Analyze(ctx, formula.True, p.N("head"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, dss.ErrAnalysis)
}
