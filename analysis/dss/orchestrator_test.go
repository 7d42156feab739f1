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
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa/cfatest"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/dss"
	"github.com/awslabs/ar-go-dss/analysis/reach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schedulers = []string{config.SchedulerSequential, config.SchedulerAsync}

func runDSS(t *testing.T, g *blockgraph.Graph, cfg *config.Config) *dss.Report {
	t.Helper()
	o, err := dss.NewOrchestrator(g, cfg, nil)
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	return report
}

func withScheduler(scheduler string) *config.Config {
	cfg := config.NewDefault()
	cfg.Analysis.Scheduler = scheduler
	return cfg
}

func TestSafeLoop(t *testing.T) {
	p := cfatest.SafeLoop()
	g := graphOf(t, p)
	require.Len(t, g.Blocks, 2)
	require.NotNil(t, g.Block("B1").Nested)
	require.Len(t, g.Block("B1").Nested.Blocks, 1)
	for _, scheduler := range schedulers {
		t.Run(scheduler, func(t *testing.T) {
			report := runDSS(t, g, withScheduler(scheduler))
			assert.Equal(t, dss.True, report.Verdict)
			assert.Equal(t, "SAFE", report.Status())
			assert.Nil(t, report.Result)
			assert.Empty(t, report.Unresolved)
			assert.Equal(t, 2, report.Messages)
			assert.Equal(t, 1, report.Block("B0").Forward)
			assert.Equal(t, 1, report.Block("B1").Forward)
			assert.Zero(t, report.Block("B1").Backward)
			require.NotNil(t, report.Edge("B0", "B1", dss.Precondition))
			assert.Equal(t, []string{"{x:[0,0]}"}, report.Edge("B0", "B1", dss.Precondition).History)
		})
	}
}

func TestUnsafeLoop(t *testing.T) {
	p := cfatest.UnsafeLoop()
	g := graphOf(t, p)
	for _, scheduler := range schedulers {
		t.Run(scheduler, func(t *testing.T) {
			report := runDSS(t, g, withScheduler(scheduler))
			assert.Equal(t, dss.False, report.Verdict)
			assert.Equal(t, "UNSAFE", report.Status())
			require.NotNil(t, report.Result)
			assert.Equal(t, "B0", report.Result.BlockID)
			assert.Equal(t, 1, report.Block("B1").Backward)
			assert.Equal(t, 1, report.Block("B0").Backward)
			assert.NotNil(t, report.Edge("B1", "B1", dss.Postcondition))
			assert.NotNil(t, report.Edge("B1", "B0", dss.Postcondition))
		})
	}
}

func TestUnsafeBranchSkipsUnrelatedBlocks(t *testing.T) {
	p := cfatest.Branches(3)
	g := graphOf(t, p, "bad", "good", "g1", "g2", "g3")
	require.Len(t, g.Blocks, 6)
	report := runDSS(t, g, withScheduler(config.SchedulerSequential))
	assert.Equal(t, dss.False, report.Verdict)
	assert.Equal(t, "B0", report.Result.BlockID)
	assert.Equal(t, 1, report.Block(g.Owner(p.N("bad")).ID).Forward)
	for _, name := range []string{"good", "g1", "g2", "g3"} {
		b := report.Block(g.Owner(p.N(name)).ID)
		assert.Zero(t, b.Analyses(), "block of %s", name)
		assert.Zero(t, b.Received, "block of %s", name)
	}
}

func TestUnsafeBranchAsync(t *testing.T) {
	const n = 60
	p := cfatest.Branches(n)
	cuts := []string{"bad", "good"}
	for i := 1; i <= n; i++ {
		cuts = append(cuts, fmt.Sprintf("g%d", i))
	}
	g := graphOf(t, p, cuts...)
	require.Len(t, g.Blocks, n+3)
	for run := 0; run < 5; run++ {
		report := runDSS(t, g, withScheduler(config.SchedulerAsync))
		assert.Equal(t, dss.False, report.Verdict)
		require.NotNil(t, report.Result)
		assert.Equal(t, "B0", report.Result.BlockID)
		analyzed := 0
		for i := 1; i <= n; i++ {
			if report.Block(g.Owner(p.N(fmt.Sprintf("g%d", i))).ID).Analyses() > 0 {
				analyzed++
			}
		}
		// the chain after good needs n forward hops, the counterexample four
		assert.Less(t, analyzed, n/2, "run %d analyzed %d chain blocks", run, analyzed)
	}
}

func TestChainStabilizes(t *testing.T) {
	const n = 5
	p := cfatest.Chain(n)
	var cuts []string
	for i := 1; i <= n; i++ {
		cuts = append(cuts, fmt.Sprintf("n%d", i))
	}
	g := graphOf(t, p, cuts...)
	require.Len(t, g.Blocks, n+1)
	for _, scheduler := range schedulers {
		t.Run(scheduler, func(t *testing.T) {
			report := runDSS(t, g, withScheduler(scheduler))
			assert.Equal(t, dss.True, report.Verdict)
			assert.Equal(t, n+1, report.Messages)
			for i := 0; i < n; i++ {
				from, to := g.Owner(p.N(fmt.Sprintf("n%d", i))), g.Owner(p.N(fmt.Sprintf("n%d", i+1)))
				e := report.Edge(from.ID, to.ID, dss.Precondition)
				require.NotNil(t, e, "edge %s -> %s", from.ID, to.ID)
				assert.Equal(t, []string{fmt.Sprintf("{x:[%d,%d]}", i+1, i+1)}, e.History)
			}
			for _, b := range report.Blocks {
				assert.Equal(t, 1, b.Forward, b.ID)
				assert.Zero(t, b.Dropped, b.ID)
			}
		})
	}
}

func TestExplicitDomain(t *testing.T) {
	p := cfatest.Chain(3)
	g := graphOf(t, p, "n2")
	cfg := withScheduler(config.SchedulerSequential)
	cfg.Analysis.Domain = "explicit"
	report := runDSS(t, g, cfg)
	assert.Equal(t, dss.True, report.Verdict)

	p = cfatest.UnsafeLoop()
	g = graphOf(t, p)
	report = runDSS(t, g, cfg)
	assert.Equal(t, dss.False, report.Verdict)
}

func TestUnresolvedEdge(t *testing.T) {
	p := cfatest.SafeLoop()
	g := graphOf(t, p)
	for _, scheduler := range schedulers {
		t.Run(scheduler, func(t *testing.T) {
			cfg := withScheduler(scheduler)
			cfg.Analysis.MaxIterations = 1
			report := runDSS(t, g, cfg)
			assert.Equal(t, dss.Unknown, report.Verdict)
			assert.Equal(t, "UNKNOWN", report.Status())
			require.Len(t, report.Unresolved, 1)
			u := report.Unresolved[0]
			assert.Equal(t, dss.EdgeKey{From: "B0", To: "B1", Kind: dss.Precondition}, u.EdgeKey)
			assert.True(t, errors.Is(u.Err, dss.ErrAnalysis))
			assert.True(t, errors.Is(u.Err, reach.ErrIterationLimit))
		})
	}
}

func TestCancelledRun(t *testing.T) {
	p := cfatest.UnsafeLoop()
	g := graphOf(t, p)
	for _, scheduler := range schedulers {
		t.Run(scheduler, func(t *testing.T) {
			o, err := dss.NewOrchestrator(g, withScheduler(scheduler), nil)
			require.NoError(t, err)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			report, err := o.Run(ctx)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Nil(t, report)
		})
	}
}

func TestUnknownDomain(t *testing.T) {
	p := cfatest.SafeLoop()
	cfg := config.NewDefault()
	cfg.Analysis.Domain = "octagon"
	_, err := dss.NewOrchestrator(graphOf(t, p), cfg, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownDomain)
}

func TestTraceFile(t *testing.T) {
	p := cfatest.SafeLoop()
	cfg := withScheduler(config.SchedulerSequential)
	cfg.ReportsDir = t.TempDir()
	report := runDSS(t, graphOf(t, p), cfg)
	require.NotEmpty(t, report.TraceFile)
	b, err := os.ReadFile(report.TraceFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "verdict: SAFE\n"))
	assert.Contains(t, string(b), "B0 -> B1 (precondition)")
}
