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

package dss

import (
	"context"
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/analysis/reach"
	"github.com/awslabs/ar-go-dss/analysis/smt"
)

// ErrAnalysis wraps the errors of block analyses. A failed analysis aborts the handling of one message only.
var ErrAnalysis = errors.New("block analysis failed")

// blockAnalysis holds what the forward and backward analyses of a block share
type blockAnalysis struct {
	block   *blockgraph.Block
	dom     domain.Plugin
	engine  *reach.Engine
	session smt.Session
	log     *config.LogGroup
}

func newBlockAnalysis(b *blockgraph.Block, dom domain.Plugin, session smt.Session, opts config.AnalysisOptions,
	log *config.LogGroup) blockAnalysis {
	return blockAnalysis{
		block:   b,
		dom:     dom,
		engine:  reach.New(b, dom, reach.OptionsFrom(opts), log),
		session: session,
		log:     log,
	}
}

// failure wraps err into ErrAnalysis, except cancellations which are returned unchanged
func (a *blockAnalysis) failure(what string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s in %s: %w", ErrAnalysis, what, a.block.ID, err)
}

func (a *blockAnalysis) serialize(s domain.State) ([]byte, error) {
	payload, err := a.dom.Serialize(s)
	if err != nil {
		return nil, a.failure("serialization", err)
	}
	return payload, nil
}

func (a *blockAnalysis) audit(direction string, node *cfa.Node, condition formula.Formula, out []Message) {
	if a.log.Level() < config.DebugLevel {
		return
	}
	a.log.Debugf("%s analysis of %s at %s: %s", direction, a.block.ID, node, condition)
	for _, m := range out {
		a.log.Debugf("  -> %s", m)
	}
}

// ForwardAnalysis computes the preconditions a block sends to its successors
type ForwardAnalysis struct {
	blockAnalysis
}

// NewForwardAnalysis returns the forward analysis of block b
func NewForwardAnalysis(b *blockgraph.Block, dom domain.Plugin, session smt.Session, opts config.AnalysisOptions,
	log *config.LogGroup) *ForwardAnalysis {
	return &ForwardAnalysis{newBlockAnalysis(b, dom, session, opts, log)}
}

// Analyze runs the block forward from node under condition. A reachable violation yields a target postcondition,
// always first in the result, followed by one precondition per reached exit ordered by exit id.
func (a *ForwardAnalysis) Analyze(ctx context.Context, condition formula.Formula, node *cfa.Node) ([]Message,
	error) {
	init, err := a.dom.FromFormula(condition)
	if err != nil {
		return nil, a.failure("condition", err)
	}
	res, err := a.engine.Forward(ctx, init, node)
	if err != nil {
		return nil, a.failure("forward analysis", err)
	}
	var out []Message
	for _, t := range res.TargetNodes() {
		payload, err := a.serialize(res.Targets[t])
		if err != nil {
			return nil, err
		}
		out = append(out, NewPostcondition(a.block.ID, t.ID, payload, true))
	}
	for _, exit := range res.ExitNodes() {
		payload, err := a.serialize(res.Exits[exit])
		if err != nil {
			return nil, err
		}
		out = append(out, NewPrecondition(a.block.ID, exit.ID, payload))
	}
	a.audit("forward", node, condition, out)
	return out, nil
}

// CantContinue returns true when no state satisfies both the precondition sent on an exit and the postcondition
// received on it, in which case the postcondition cannot be extended through the block.
func (a *ForwardAnalysis) CantContinue(ctx context.Context, pre, post formula.Formula) (bool, error) {
	sat, err := a.session.Sat(ctx, formula.Conj(pre, post))
	if err != nil {
		return false, a.failure("satisfiability check", err)
	}
	a.log.Debugf("continuation check in %s: %s and %s: %t", a.block.ID, pre, post, sat)
	return !sat, nil
}

// BackwardAnalysis computes the postconditions a block sends to its predecessors
type BackwardAnalysis struct {
	blockAnalysis
	root bool
}

// NewBackwardAnalysis returns the backward analysis of block b. The root block of the graph concludes the
// analysis instead of sending postconditions.
func NewBackwardAnalysis(b *blockgraph.Block, root bool, dom domain.Plugin, session smt.Session,
	opts config.AnalysisOptions, log *config.LogGroup) *BackwardAnalysis {
	return &BackwardAnalysis{blockAnalysis: newBlockAnalysis(b, dom, session, opts, log), root: root}
}

// Analyze runs the block backward from node, a boundary node or a target of the block, under condition.
// When the entry of the block is reached, the root block returns a FALSE result if the states are satisfiable,
// and other blocks return a postcondition at their entry. Otherwise, the result is empty.
func (a *BackwardAnalysis) Analyze(ctx context.Context, condition formula.Formula, node *cfa.Node) ([]Message,
	error) {
	init, err := a.dom.FromFormula(condition)
	if err != nil {
		return nil, a.failure("condition", err)
	}
	res, err := a.engine.Backward(ctx, init, node)
	if err != nil {
		return nil, a.failure("backward analysis", err)
	}
	var out []Message
	if s, ok := res.Exits[a.block.Entry]; ok && !a.dom.IsBottom(s) {
		if a.root {
			sat, err := a.session.Sat(ctx, a.dom.ToFormula(s))
			if err != nil {
				return nil, a.failure("satisfiability check", err)
			}
			if sat {
				out = append(out, NewResult(a.block.ID, a.block.Entry.ID, False))
			}
		} else {
			payload, err := a.serialize(s)
			if err != nil {
				return nil, err
			}
			out = append(out, NewPostcondition(a.block.ID, a.block.Entry.ID, payload, false))
		}
	}
	a.audit("backward", node, condition, out)
	return out, nil
}
