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

// Package verify implements the verify tool: it decomposes a Go program in blocks and runs the summary synthesis
// until the program is proved safe or a violation is found.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/dss"
	"github.com/awslabs/ar-go-dss/analysis/render"
	"github.com/awslabs/ar-go-dss/cmd/dss/tools"
	"github.com/awslabs/ar-go-dss/internal/formatutil"
)

// Usage of the verify tool
const Usage = `Verify that the assertions of a Go program hold.
Usage:
  dss verify [options] <Go file path(s)>
The verdict is printed on the standard output. The exit code is 0 when the program is safe, 1 when an assertion
may fail and 3 when the analysis is inconclusive.
Examples:
  % dss verify -config config.yaml main.go
  % dss verify -sequential -domain explicit main.go`

// Exit codes of the tool
const (
	ExitSafe    = 0
	ExitUnsafe  = 1
	ExitUnknown = 3
)

// Flags represents the parsed verify sub-command flags.
type Flags struct {
	tools.CommonFlags
	sequential bool
	domain     string
	report     bool
}

// NewFlags returns the parsed verify sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("verify")
	sequential := flags.FlagSet.Bool("sequential", false, "run the block workers one at a time")
	domainName := flags.FlagSet.String("domain", "", "abstract domain, overriding the config")
	report := flags.FlagSet.Bool("report", false, "print the per-block and per-edge report")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{
		CommonFlags: common,
		sequential:  *sequential,
		domain:      *domainName,
		report:      *report,
	}, nil
}

// Run runs the verify tool with flags, writes the verdict to w and returns the exit code matching the verdict.
func Run(ctx context.Context, flags Flags, w io.Writer) (int, error) {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return ExitUnknown, err
	}
	if flags.sequential {
		cfg.Analysis.Scheduler = config.SchedulerSequential
	}
	if flags.domain != "" {
		cfg.Analysis.Domain = flags.domain
	}
	log := config.NewLogGroup(cfg)

	program, err := tools.LoadBlocks(ctx, flags.CommonFlags, cfg, log)
	if err != nil {
		return ExitUnknown, err
	}
	if cfg.ReportsDir != "" {
		if err := writeBlockGraph(cfg.ReportsDir, program); err != nil {
			log.Warnf("Could not write the block graph: %v", err)
		}
	}
	o, err := dss.NewOrchestrator(program.Blocks, cfg, log)
	if err != nil {
		return ExitUnknown, err
	}
	report, err := o.Run(ctx)
	if err != nil {
		return ExitUnknown, fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Fprintf(w, "%s %s\n", formatutil.Bold("Verdict:"), formatutil.Status(report.Status()))
	if report.Result != nil {
		fmt.Fprintf(w, "Violation confirmed by %s\n", report.Result.BlockID)
	}
	for _, u := range report.Unresolved {
		fmt.Fprintf(w, "%s %s: %s\n", formatutil.Yellow("Unresolved"), u.EdgeKey,
			formatutil.Sanitize(u.Err.Error()))
	}
	if flags.report || flags.Verbose {
		if err := report.Write(w); err != nil {
			return ExitUnknown, err
		}
	}
	return exitCode(report), nil
}

func exitCode(r *dss.Report) int {
	switch r.Verdict {
	case dss.True:
		return ExitSafe
	case dss.False:
		return ExitUnsafe
	}
	return ExitUnknown
}

func writeBlockGraph(dir string, program tools.Program) error {
	f, err := os.CreateTemp(dir, "blocks-*.dot")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := render.WriteGraphviz(program.Blocks, render.Options{Nested: true, EdgeLabels: true}, f); err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", formatutil.Faint("Block graph written in "+filepath.Base(f.Name())))
	return err
}
