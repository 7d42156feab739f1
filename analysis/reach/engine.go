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

// Package reach implements the local reachability engine of the block analyses: a worklist fixpoint over the
// nodes of one block, in an abstract domain, forward from the entry of the block or backward from one of its
// boundaries.
//
// Abstract states are kept per location and calling context. Calls to functions whose entry is inside the block
// (or at one of its exits) are followed; other calls, and recursive calls, go through their summary edge.
// Widening is applied at loop headers and function entries once a location has been updated more than the
// widening delay.
package reach

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// ErrIterationLimit is returned when a run exceeds the maximum number of iterations
var ErrIterationLimit = errors.New("iteration limit reached")

// Options are the parameters of the fixpoint computation
type Options struct {
	// WideningDelay is the number of joins at a widening point before widening
	WideningDelay int
	// MaxIterations bounds the number of states processed by one run; 0 for no bound
	MaxIterations int
}

// OptionsFrom extracts the engine options from the analysis options
func OptionsFrom(opts config.AnalysisOptions) Options {
	return Options{WideningDelay: opts.WideningDelay, MaxIterations: opts.MaxIterations}
}

// Engine computes the states reachable in one block. An engine holds the reached set of the current run and must
// not be used by several goroutines at once.
type Engine struct {
	block      *blockgraph.Block
	dom        domain.Plugin
	opts       Options
	log        *config.LogGroup
	thresholds []int64

	reached    map[string]*reachedState
	waitlist   []string
	queued     map[string]bool
	iterations int
}

type reachedState struct {
	node    *cfa.Node
	stack   blockgraph.CallStack
	state   domain.State
	updates int
}

// Result is the outcome of a run
type Result struct {
	// Targets holds the states of the target locations of the block that are reached
	Targets map[*cfa.Node]domain.State
	// Exits holds the states reaching the exits of the block in a forward run, and the state reaching the entry of
	// the block in a backward run
	Exits map[*cfa.Node]domain.State
	// States holds the states of every location reached, joined over calling contexts
	States map[*cfa.Node]domain.State
	// Iterations is the number of states processed
	Iterations int
}

// TargetNodes returns the reached targets ordered by id
func (r *Result) TargetNodes() []*cfa.Node {
	return funcutil.SortedKeys(r.Targets, byID)
}

// ExitNodes returns the exits reached ordered by id
func (r *Result) ExitNodes() []*cfa.Node {
	return funcutil.SortedKeys(r.Exits, byID)
}

func byID(a, b *cfa.Node) bool { return a.ID < b.ID }

// New returns an engine for the block b in the domain dom
func New(b *blockgraph.Block, dom domain.Plugin, opts Options, log *config.LogGroup) *Engine {
	var conds []formula.Formula
	for _, n := range b.SortedNodes() {
		for _, e := range n.Leaving {
			if e.Kind == cfa.AssumeEdge {
				conds = append(conds, e.Cond)
			}
		}
	}
	return &Engine{block: b, dom: dom, opts: opts, log: log, thresholds: domain.Thresholds(conds...)}
}

// Block returns the block of the engine
func (e *Engine) Block() *blockgraph.Block { return e.block }

// Forward computes the states reachable from start, which holds the states init under the calling context of the
// block.
func (e *Engine) Forward(ctx context.Context, init domain.State, start *cfa.Node) (*Result, error) {
	e.reset()
	exits := map[*cfa.Node]domain.State{}
	inline := func(entry *cfa.Node) bool {
		_, isExit := e.block.Exits[entry]
		return e.block.Contains(entry) || isExit
	}
	e.update(start, e.block.Stack, init)
	err := e.run(ctx, func(r *reachedState) error {
		for _, step := range blockgraph.LeavingSteps(r.node, r.stack, inline) {
			next, err := e.post(r.state, step.Edge)
			if err != nil {
				return err
			}
			if e.dom.IsBottom(next) {
				continue
			}
			switch _, isExit := e.block.Exits[step.To]; {
			case e.block.Contains(step.To):
				e.update(step.To, step.Stack, next)
			case isExit:
				if old, ok := exits[step.To]; ok {
					next = e.dom.Join(old, next)
				}
				exits[step.To] = next
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := e.result(exits)
	for n, s := range res.States {
		if n.Target {
			res.Targets[n] = s
		}
	}
	e.log.Tracef("forward run in %s from %s: %d iterations, %d exits, %d targets", e.block.ID, start,
		res.Iterations, len(res.Exits), len(res.Targets))
	return res, nil
}

// Backward computes the states of the block from which the states init at start may be reached. start is a
// location of the block or one of its exits. The states reaching the entry of the block are in Result.Exits.
func (e *Engine) Backward(ctx context.Context, init domain.State, start *cfa.Node) (*Result, error) {
	e.reset()
	inline := e.block.Contains
	e.update(start, nil, init)
	err := e.run(ctx, func(r *reachedState) error {
		for _, step := range blockgraph.EnteringSteps(r.node, r.stack, inline) {
			if !e.block.Contains(step.To) {
				continue
			}
			prev, err := e.dom.Pre(r.state, step.Edge)
			if err != nil {
				return fmt.Errorf("backward through %s -> %s: %w", step.Edge.From, step.Edge.To, err)
			}
			if !e.dom.IsBottom(prev) {
				e.update(step.To, step.Stack, prev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := e.result(map[*cfa.Node]domain.State{})
	if s, ok := res.States[e.block.Entry]; ok {
		res.Exits[e.block.Entry] = s
	}
	for n, s := range res.States {
		if n.Target {
			res.Targets[n] = s
		}
	}
	e.log.Tracef("backward run in %s from %s: %d iterations, entry reached: %t", e.block.ID, start,
		res.Iterations, len(res.Exits) > 0)
	return res, nil
}

func (e *Engine) post(s domain.State, edge *cfa.Edge) (domain.State, error) {
	var (
		next domain.State
		err  error
	)
	if edge.Kind == cfa.SummaryEdge && e.dom.IsSummaryApplicable(edge, s) {
		next, err = e.dom.ApplyFunctionSummary(edge, s)
	} else {
		next, err = e.dom.Post(s, edge)
	}
	if err != nil {
		return nil, fmt.Errorf("forward through %s -> %s: %w", edge.From, edge.To, err)
	}
	return next, nil
}

func (e *Engine) reset() {
	e.reached = map[string]*reachedState{}
	e.waitlist = nil
	e.queued = map[string]bool{}
	e.iterations = 0
}

func (e *Engine) run(ctx context.Context, expand func(r *reachedState) error) error {
	for len(e.waitlist) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.iterations++
		if e.opts.MaxIterations > 0 && e.iterations > e.opts.MaxIterations {
			return fmt.Errorf("%w: %d iterations in block %s", ErrIterationLimit, e.opts.MaxIterations, e.block.ID)
		}
		k := e.waitlist[0]
		e.waitlist = e.waitlist[1:]
		e.queued[k] = false
		if err := expand(e.reached[k]); err != nil {
			return err
		}
	}
	return nil
}

// update merges s into the state of n under stack, and schedules the location when its state grows
func (e *Engine) update(n *cfa.Node, stack blockgraph.CallStack, s domain.State) {
	k := strconv.Itoa(n.ID) + "@" + blockgraph.StackKey(stack)
	r, ok := e.reached[k]
	switch {
	case !ok:
		e.reached[k] = &reachedState{node: n, stack: stack, state: s}
	case e.dom.LessOrEqual(s, r.state):
		return
	case isWideningPoint(n) && r.updates >= e.opts.WideningDelay:
		r.state = e.dom.Widen(r.state, e.dom.Join(r.state, s), e.thresholds)
		r.updates++
	default:
		r.state = e.dom.Join(r.state, s)
		r.updates++
	}
	if !e.queued[k] {
		e.queued[k] = true
		e.waitlist = append(e.waitlist, k)
	}
}

// isWideningPoint returns true for loop headers and function entries: every cycle of the CFA, including the
// cycles through calls, goes through one of them.
func isWideningPoint(n *cfa.Node) bool {
	return n.LoopHeader || funcutil.Exists(n.Entering, func(e *cfa.Edge) bool { return e.Kind == cfa.CallEdge })
}

func (e *Engine) result(exits map[*cfa.Node]domain.State) *Result {
	res := &Result{
		Targets:    map[*cfa.Node]domain.State{},
		Exits:      exits,
		States:     map[*cfa.Node]domain.State{},
		Iterations: e.iterations,
	}
	for _, r := range e.reached {
		if old, ok := res.States[r.node]; ok {
			res.States[r.node] = e.dom.Join(old, r.state)
		} else {
			res.States[r.node] = r.state
		}
	}
	return res
}
