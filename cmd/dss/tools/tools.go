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

// Package tools contains utility types and functions for the dss tool frontends.
package tools

import (
	"context"
	"flag"
	"fmt"
	"go/build"
	"os"
	"strings"
	"time"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/frontend"
	"github.com/awslabs/ar-go-dss/internal/formatutil"
	"golang.org/x/tools/go/buildutil"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

// Version is the version of the tools
const Version = "v0.1.0"

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	Entry      *string
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config,
// -verbose, -entry and -build-tags but need other flags in addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	entry := cmd.String("entry", "main", "entry function of the main package")
	cmd.Var((*buildutil.TagsFlag)(&build.Default.BuildTags), "build-tags", buildutil.TagsFlagDoc)
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
		Entry:      entry,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
// E.g., for the command `dss verify ...`, "verify" is the sub-command.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	Entry      string
}

// Parse parses args and returns the common flags
func (u UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := u.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", u.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    u.FlagSet,
		ConfigPath: *u.ConfigPath,
		Verbose:    *u.Verbose,
		Entry:      *u.Entry,
	}, nil
}

// NewCommonFlags returns a parsed flag set with a given name.
// Returns an error if args are invalid.
// Prints cmdUsage along with flag docs as the --help message.
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	flags := NewUnparsedCommonFlags(name)
	SetUsage(flags.FlagSet, cmdUsage)
	return flags.Parse(args)
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// LoadConfig loads the config file from configPath, or returns the default config when configPath is empty. The
// verbose flag raises the log level to debug.
func LoadConfig(configPath string, verbose bool) (*config.Config, error) {
	cfg := config.NewDefault()
	if configPath != "" {
		config.SetGlobalConfig(configPath)
		var err error
		cfg, err = config.LoadGlobal()
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %v", configPath, err)
		}
	}
	if verbose && cfg.LogLevel < int(config.DebugLevel) {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return cfg, nil
}

// Program is a translated program with its block decomposition
type Program struct {
	CFA    *cfa.CFA
	Blocks *blockgraph.Graph
}

// LoadBlocks loads the Go program designated by args, translates the entry function and decomposes the CFA in
// blocks
func LoadBlocks(ctx context.Context, flags CommonFlags, cfg *config.Config, log *config.LogGroup) (Program, error) {
	args := flags.FlagSet.Args()
	if len(args) == 0 {
		return Program{}, fmt.Errorf("could not load program: no Go files or packages")
	}
	log.Infof("%s", formatutil.Faint("Reading sources"))
	start := time.Now()
	pcfg := &packages.Config{Mode: frontend.PkgLoadMode}
	if len(build.Default.BuildTags) > 0 {
		pcfg.BuildFlags = []string{"-tags=" + strings.Join(build.Default.BuildTags, ",")}
	}
	p, err := frontend.LoadProgram(pcfg, "", ssa.InstantiateGenerics, args)
	if err != nil {
		return Program{}, fmt.Errorf("could not load program: %w", err)
	}
	c, err := frontend.Translate(p, flags.Entry, log)
	if err != nil {
		return Program{}, fmt.Errorf("could not translate program: %w", err)
	}
	g, err := blockgraph.NewGraphBuilder(c, blockgraph.NewOperator(c, cfg.Blocks), log).Build(ctx)
	if err != nil {
		return Program{}, fmt.Errorf("could not decompose program: %w", err)
	}
	if err := g.Validate(c); err != nil {
		return Program{}, fmt.Errorf("invalid block graph: %w", err)
	}
	st := g.Stats()
	log.Infof("Loaded %d locations in %d blocks (%.3f s)", len(c.Nodes), st.Blocks, time.Since(start).Seconds())
	return Program{CFA: c, Blocks: g}, nil
}
