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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	_ "github.com/awslabs/ar-go-dss/analysis/domain/explicit"
	_ "github.com/awslabs/ar-go-dss/analysis/domain/interval"
	"github.com/awslabs/ar-go-dss/cmd/dss/blocks"
	"github.com/awslabs/ar-go-dss/cmd/dss/render"
	"github.com/awslabs/ar-go-dss/cmd/dss/tools"
	"github.com/awslabs/ar-go-dss/cmd/dss/verify"
)

const usage = `DSS: block-modular summary synthesis for Go programs
Usage:
  dss [tool] [options] <Go file path(s)>
Tools:
  - blocks: prints the decomposition of the program in blocks
  - render: renders the block graph in the GraphViz format
  - verify: checks the assertions of the program by exchanging summaries between the blocks
Examples:
  Verify a program: dss verify -config config.yaml main.go
  Render its blocks: dss render -nested -o blocks.dot main.go`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(tools.Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "blocks":
		flags, err := blocks.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := blocks.Run(ctx, flags, os.Stdout); err != nil {
			errExit(err)
		}
	case "render":
		flags, err := render.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		if err := render.Run(ctx, flags, os.Stdout); err != nil {
			errExit(err)
		}
	case "verify":
		flags, err := verify.NewFlags(args)
		if err != nil {
			errExit(err)
		}
		code, err := verify.Run(ctx, flags, os.Stdout)
		if err != nil {
			errExit(err)
		}
		stop()
		os.Exit(code)
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
