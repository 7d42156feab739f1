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

// Package blocks implements the blocks tool, which prints the block decomposition of a program.
package blocks

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/render"
	"github.com/awslabs/ar-go-dss/cmd/dss/tools"
	"github.com/awslabs/ar-go-dss/internal/formatutil"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// Usage of the blocks tool
const Usage = `Print the blocks of a Go program.
Usage:
  dss blocks [options] <Go file path(s)>
Examples:
  % dss blocks -cfa main.go`

// Flags represents the parsed blocks sub-command flags.
type Flags struct {
	tools.CommonFlags
	printCFA bool
}

// NewFlags returns the parsed blocks sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("blocks")
	printCFA := flags.FlagSet.Bool("cfa", false, "print the control-flow automaton before the blocks")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, printCFA: *printCFA}, nil
}

// Run runs the blocks tool with flags and writes the decomposition to w
func Run(ctx context.Context, flags Flags, w io.Writer) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	program, err := tools.LoadBlocks(ctx, flags.CommonFlags, cfg, config.NewLogGroup(cfg))
	if err != nil {
		return err
	}
	if flags.printCFA {
		if err := render.WriteCFA(program.CFA, w); err != nil {
			return err
		}
	}
	st := program.Blocks.Stats()
	fmt.Fprintf(w, "%s %d blocks (%d loops), nesting depth %d, %d locations\n", formatutil.Bold("Blocks:"),
		st.Blocks, st.LoopBlocks, st.Depth, st.Nodes)
	writeGraph(w, program.Blocks, "")
	return nil
}

func writeGraph(w io.Writer, g *blockgraph.Graph, indent string) {
	for _, b := range g.Blocks {
		kind := "flat"
		if b.Loop {
			kind = "loop"
		}
		fmt.Fprintf(w, "%s%s %s at %s (%s), rank %d, %d locations\n", indent, formatutil.Bold(b.ID), kind,
			b.Entry, b.Entry.Function, g.Rank(b), len(b.Nodes))
		if exits := b.ExitNodes(); len(exits) > 0 {
			fmt.Fprintf(w, "%s  exits: %s\n", indent, strings.Join(funcutil.Map(exits, func(n *cfa.Node) string {
				return n.String() + " -> " + b.Exits[n].ID
			}), ", "))
		}
		if targets := b.Targets(); len(targets) > 0 {
			fmt.Fprintf(w, "%s  targets: %s\n", indent, strings.Join(funcutil.Map(targets, (*cfa.Node).String), ", "))
		}
		if b.Nested != nil {
			writeGraph(w, b.Nested, indent+"  ")
		}
	}
}
