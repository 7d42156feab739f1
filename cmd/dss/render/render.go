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

// Package render implements the render tool, which writes the block graph of a program in the GraphViz format.
package render

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/render"
	"github.com/awslabs/ar-go-dss/cmd/dss/tools"
	"github.com/awslabs/ar-go-dss/internal/formatutil"
)

// Usage of the render tool
const Usage = `Render the block graph of a Go program.
Usage:
  dss render [options] <Go file path(s)>
Examples:
Render the nested blocks of the loops with the labels of the edges
  % dss render -nested -labels -o blocks.dot main.go
  % dot -Tsvg blocks.dot > blocks.svg`

// Flags represents the parsed render sub-command flags.
type Flags struct {
	tools.CommonFlags
	out    string
	nested bool
	labels bool
}

// NewFlags returns the parsed render sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("render")
	out := flags.FlagSet.String("o", "", "output file for the block graph (standard output if not specified)")
	nested := flags.FlagSet.Bool("nested", false, "render the nested blocks of loops")
	labels := flags.FlagSet.Bool("labels", false, "label the edges with their statements")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, out: *out, nested: *nested, labels: *labels}, nil
}

// Run runs the render tool with flags. The graph goes to w unless an output file is set.
func Run(ctx context.Context, flags Flags, w io.Writer) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath, flags.Verbose)
	if err != nil {
		return err
	}
	program, err := tools.LoadBlocks(ctx, flags.CommonFlags, cfg, config.NewLogGroup(cfg))
	if err != nil {
		return err
	}
	opts := render.Options{Nested: flags.nested, EdgeLabels: flags.labels}
	if flags.out == "" {
		return render.WriteGraphviz(program.Blocks, opts, w)
	}
	fmt.Fprintln(os.Stderr, formatutil.Faint("Writing block graph in "+flags.out))
	if err := render.GraphvizToFile(program.Blocks, opts, flags.out); err != nil {
		return fmt.Errorf("could not print block graph: %w", err)
	}
	return nil
}
