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

// Package domain defines the interface of the abstract domains used by the block analyses, and the registry
// through which a configuration selects one.
//
// A domain is a Plugin: it computes over abstract states (Domain), converts them to and from the payload of the
// messages exchanged between blocks (Serializer), and may replace the calls it does not follow by function
// summaries (SummaryHandler). Domains that do not support an operation embed Unsupported, which fails with
// ErrUnsupportedOperation at first use.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/formula"
)

// ErrUnsupportedOperation is returned by the operations a domain does not implement
var ErrUnsupportedOperation = errors.New("unsupported operation")

// ErrUnknownDomain is returned by New when no domain is registered under the name
var ErrUnknownDomain = errors.New("unknown domain")

// State is an abstract state. States are immutable: operations return new states.
type State interface {
	fmt.Stringer
}

// Domain is the lattice and the transfer functions of an abstract domain
type Domain interface {
	// Name returns the name under which the domain is registered
	Name() string

	// FromFormula returns a state over-approximating the models of f
	FromFormula(f formula.Formula) (State, error)

	// ToFormula returns a formula satisfied by every concrete state of s
	ToFormula(s State) formula.Formula

	// Bottom returns the empty state
	Bottom() State

	// IsBottom returns true when s represents no concrete state
	IsBottom(s State) bool

	// Post returns the states reached from s by taking the edge e
	Post(s State, e *cfa.Edge) (State, error)

	// Pre returns the states from which taking e may lead to s
	Pre(s State, e *cfa.Edge) (State, error)

	// Join returns an upper bound of a and b
	Join(a, b State) State

	// LessOrEqual returns true when a is included in b. It may return false for included states.
	LessOrEqual(a, b State) bool

	// Widen returns an upper bound of prev and next such that every sequence of widenings stabilizes.
	// thresholds are candidate bounds, tried before giving up a constraint.
	Widen(prev, next State, thresholds []int64) State
}

// Serializer converts states to and from message payloads. Deserialize(Serialize(s)) must be implied by s.
type Serializer interface {
	Serialize(s State) ([]byte, error)
	Deserialize(payload []byte) (State, error)
}

// SummaryHandler computes the effect of calls that are not followed, through their summary edge
type SummaryHandler interface {
	// IsSummaryApplicable returns true when ApplyFunctionSummary can compute the effect of the summary edge e
	// on s
	IsSummaryApplicable(e *cfa.Edge, s State) bool

	// ApplyFunctionSummary returns the states after the call summarized by e
	ApplyFunctionSummary(e *cfa.Edge, s State) (State, error)
}

// Plugin is a complete abstract domain
type Plugin interface {
	Domain
	Serializer
	SummaryHandler
}

// Factory returns a new plugin for the analysis options
type Factory func(opts config.AnalysisOptions) Plugin

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a domain available under name. It panics if the name is already taken.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("domain: Register called twice for domain " + name)
	}
	registry[name] = factory
}

// New returns the plugin registered under the name of the options' domain
func New(opts config.AnalysisOptions) (Plugin, error) {
	registryMu.RLock()
	factory, ok := registry[opts.Domain]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownDomain, opts.Domain, Names())
	}
	return factory(opts), nil
}

// Names returns the sorted names of the registered domains
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
