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

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the block decomposition and of the summary synthesis.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be the default value set by NewDefault.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	sourceFile string

	// Blocks controls where the control-flow automaton is cut into blocks
	Blocks BlockOptions `yaml:"blocks"`

	// Analysis controls the block workers and the message exchange
	Analysis AnalysisOptions `yaml:"analysis"`
}

// Options are the general options of the tools
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. When it is set, the block graph and the
	// message trace of a run are written there.
	ReportsDir string `yaml:"reports-dir"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`
}

// BlockOptions are the options of the block operator. Loop headers always start a block; these options add
// cuts at other locations.
type BlockOptions struct {
	// FunctionEntries cuts at the entry of every function except the entry function
	FunctionEntries bool `yaml:"function-entries"`

	// CallSites cuts at the return site of every call
	CallSites bool `yaml:"call-sites"`

	// CutNodes lists the ids of nodes that start a block
	CutNodes []int `yaml:"cut-nodes"`

	// CutFunctions lists regexes of function names; the entry of a matching function starts a block.
	// Strings that do not compile to a regex match function names exactly.
	CutFunctions []string `yaml:"cut-functions"`

	// MaxCallDepth cuts wherever the call depth of the block under construction exceeds the value.
	// If MaxCallDepth <= 0, then it is ignored.
	MaxCallDepth int `yaml:"max-call-depth"`

	cutFunctionRegexes []*regexp.Regexp
}

// AnalysisOptions are the options of the summary synthesis
type AnalysisOptions struct {
	// Domain is the name of the abstract domain used in the blocks
	Domain string `yaml:"domain"`

	// Scheduler is either "async" (one goroutine per block) or "sequential"
	Scheduler string `yaml:"scheduler"`

	// MaxDisjuncts bounds the size of disjunctive abstract states. Beyond, states are joined.
	MaxDisjuncts int `yaml:"max-disjuncts"`

	// WideningDelay is the number of joins at a location before widening is applied
	WideningDelay int `yaml:"widening-delay"`

	// MaxIterations bounds the work of a single block analysis (0 for no bound). When the bound is reached,
	// the analysis fails and the edge is reported as unresolved.
	MaxIterations int `yaml:"max-iterations"`

	// CompressPayloads enables the compression of the message payloads on the wire
	CompressPayloads bool `yaml:"compress-payloads"`

	// Timeout bounds the whole run (0 for no bound)
	Timeout time.Duration `yaml:"timeout"`

	// SolverMaxCubes bounds the size of the queries of the decision procedure
	SolverMaxCubes int `yaml:"solver-max-cubes"`
}

// NewDefault returns the default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			ReportsDir: "",
			LogLevel:   int(InfoLevel),
		},
		Blocks: BlockOptions{
			FunctionEntries: false,
			CallSites:       false,
			CutNodes:        nil,
			CutFunctions:    nil,
			MaxCallDepth:    DefaultMaxCallDepth,
		},
		Analysis: AnalysisOptions{
			Domain:           DefaultDomain,
			Scheduler:        SchedulerAsync,
			MaxDisjuncts:     DefaultMaxDisjuncts,
			WideningDelay:    DefaultWideningDelay,
			MaxIterations:    0,
			CompressPayloads: true,
			Timeout:          0,
			SolverMaxCubes:   DefaultSolverMaxCubes,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename

	if cfg.ReportsDir != "" {
		if err := os.Mkdir(cfg.ReportsDir, 0750); err != nil && !os.IsExist(err) {
			return nil, fmt.Errorf("could not create directory %s", cfg.ReportsDir)
		}
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish validates the config and computes the private fields
func (c *Config) finish() error {
	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	switch c.Analysis.Scheduler {
	case SchedulerAsync, SchedulerSequential:
	case "":
		c.Analysis.Scheduler = SchedulerAsync
	default:
		return fmt.Errorf("unknown scheduler %q (expected %q or %q)", c.Analysis.Scheduler, SchedulerAsync,
			SchedulerSequential)
	}
	if c.Analysis.Domain == "" {
		c.Analysis.Domain = DefaultDomain
	}
	if c.Analysis.MaxDisjuncts <= 0 {
		c.Analysis.MaxDisjuncts = DefaultMaxDisjuncts
	}
	if c.Analysis.WideningDelay < 0 {
		return fmt.Errorf("widening-delay must be non-negative, got %d", c.Analysis.WideningDelay)
	}
	if c.Analysis.SolverMaxCubes <= 0 {
		c.Analysis.SolverMaxCubes = DefaultSolverMaxCubes
	}
	c.Blocks.cutFunctionRegexes = nil
	for _, s := range c.Blocks.CutFunctions {
		r, err := regexp.Compile("^(" + s + ")$")
		if err != nil {
			r = regexp.MustCompile("^" + regexp.QuoteMeta(s) + "$")
		}
		c.Blocks.cutFunctionRegexes = append(c.Blocks.cutFunctionRegexes, r)
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// Sequential returns true when the sequential scheduler is selected
func (c Config) Sequential() bool {
	return c.Analysis.Scheduler == SchedulerSequential
}

// ExceedsMaxCallDepth returns true if the input exceeds the maximum call depth parameter of the configuration.
// (if the configuration setting is <= 0, then this returns false)
func (b BlockOptions) ExceedsMaxCallDepth(d int) bool {
	if b.MaxCallDepth <= 0 {
		return false
	}
	return d > b.MaxCallDepth
}

// MatchCutFunction returns true if the function name matches one of the cut-functions of the config
func (b BlockOptions) MatchCutFunction(name string) bool {
	if len(b.cutFunctionRegexes) != len(b.CutFunctions) {
		// options built in code rather than loaded
		for _, s := range b.CutFunctions {
			if s == name {
				return true
			}
		}
		return false
	}
	for _, r := range b.cutFunctionRegexes {
		if r.MatchString(name) {
			return true
		}
	}
	return false
}
