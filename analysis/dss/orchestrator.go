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
	"sync"
	"time"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/analysis/smt"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// EntrySender is the sender of the initial precondition of the entry block
const EntrySender = "entry"

// Orchestrator runs the message exchange between the workers of the blocks of a graph
type Orchestrator struct {
	graph      *blockgraph.Graph
	opts       config.AnalysisOptions
	reportsDir string
	solver     smt.Solver
	log        *config.LogGroup
}

// NewOrchestrator returns an orchestrator for the top-level blocks of g. It fails when the configured domain is
// not registered.
func NewOrchestrator(g *blockgraph.Graph, cfg *config.Config, log *config.LogGroup) (*Orchestrator, error) {
	if _, err := domain.New(cfg.Analysis); err != nil {
		return nil, err
	}
	return &Orchestrator{
		graph:      g,
		opts:       cfg.Analysis,
		reportsDir: cfg.ReportsDir,
		solver:     smt.NewSolver(smt.Options{MaxCubes: cfg.Analysis.SolverMaxCubes}),
		log:        log,
	}, nil
}

// Run exchanges messages until a result is produced or no message is pending. A cancelled run returns the error
// of the context and no report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	r, err := o.newRun()
	if err != nil {
		return nil, err
	}
	o.log.Infof("Analyzing %d blocks with the %s domain (%s scheduler)", len(r.blocks), o.opts.Domain,
		o.opts.Scheduler)
	if o.opts.Scheduler == config.SchedulerSequential {
		err = r.sequential(ctx)
	} else {
		err = r.async(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := r.report()
	report.Elapsed = time.Since(start)
	o.log.Infof("Verdict %s after %d messages (%.2f s)", report.Status(), report.Messages,
		report.Elapsed.Seconds())
	if o.reportsDir != "" {
		if err := report.save(o.reportsDir); err != nil {
			o.log.Warnf("Could not write the message trace: %v", err)
		} else {
			o.log.Infof("Message trace written in %s", report.TraceFile)
		}
	}
	return report, nil
}

// run is the state of one message exchange
type run struct {
	o          *Orchestrator
	blocks     []*blockState
	byEntry    map[int]*blockState
	nodes      map[int]*cfa.Node
	thresholds []int64

	mu       sync.Mutex
	result   *Message
	messages int
}

func (o *Orchestrator) newRun() (*run, error) {
	r := &run{o: o, byEntry: map[int]*blockState{}, nodes: map[int]*cfa.Node{}}
	var conds []formula.Formula
	for _, b := range o.graph.Blocks {
		for _, n := range b.SortedNodes() {
			r.nodes[n.ID] = n
			for _, e := range n.Leaving {
				if e.Kind == cfa.AssumeEdge {
					conds = append(conds, e.Cond)
				}
			}
		}
	}
	r.thresholds = domain.Thresholds(conds...)
	for _, b := range o.graph.Blocks {
		bs, err := r.newBlockState(b)
		if err != nil {
			return nil, err
		}
		r.blocks = append(r.blocks, bs)
		r.byEntry[b.Entry.ID] = bs
	}
	return r, nil
}

// seed returns the precondition of the entry block
func (r *run) seed() ([]byte, error) {
	entry := r.byEntry[r.o.graph.Entry.Entry.ID]
	top, err := entry.dom.FromFormula(formula.True)
	if err != nil {
		return nil, err
	}
	payload, err := entry.dom.Serialize(top)
	if err != nil {
		return nil, err
	}
	return r.encode(NewPrecondition(EntrySender, entry.block.Entry.ID, payload))
}

func (r *run) encode(m Message) ([]byte, error) {
	return Encode(m, r.o.opts.CompressPayloads)
}

// recipients returns the blocks receiving m, sent by from
func (r *run) recipients(from *blockState, m Message) []*blockState {
	switch {
	case m.Kind == Precondition:
		if to, ok := r.byEntry[m.LocationID]; ok {
			return []*blockState{to}
		}
		return nil
	case m.Kind == Postcondition && m.Target:
		return []*blockState{from}
	case m.Kind == Postcondition:
		return funcutil.Map(from.block.Predecessors, func(b *blockgraph.Block) *blockState {
			return r.byEntry[b.Entry.ID]
		})
	}
	return nil
}

// conclude records the first result. It returns false if a result was already recorded.
func (r *run) conclude(m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result != nil {
		return false
	}
	r.result = &m
	return true
}

func (r *run) delivered() {
	r.mu.Lock()
	r.messages++
	r.mu.Unlock()
}

// process decodes and handles a message in the block bs. Only cancellations are returned as errors; failures
// are recorded in the block.
func (r *run) process(ctx context.Context, bs *blockState, data []byte) ([]Message, error) {
	m, err := Decode(data)
	if err != nil {
		bs.fail(Message{Kind: Precondition, BlockID: "?"}, err)
		return nil, nil
	}
	return bs.handle(ctx, r, m)
}

// merged is the union of the states received on an edge
type merged struct {
	state  domain.State
	merges int
}

// blockState is the state of a block worker. It is only accessed by the worker of the block.
type blockState struct {
	block      *blockgraph.Block
	rank       int
	dom        domain.Plugin
	session    smt.Session
	forward    *ForwardAnalysis
	backward   *BackwardAnalysis
	delay      int
	thresholds []int64
	log        *config.LogGroup

	// pre holds the preconditions received, by sender
	pre map[string]*merged
	// post holds the postconditions received, by exit node, and the target postconditions, by target node
	post map[*cfa.Node]*merged
	// sentPre holds the union of the preconditions sent, by exit node
	sentPre map[*cfa.Node]domain.State
	// sentPost is the union of the postconditions sent, nil if none
	sentPost domain.State
	// parked holds the exits whose postcondition is incompatible with the precondition sent
	parked map[*cfa.Node]bool

	stats      BlockStats
	edges      map[EdgeKey]*EdgeReport
	unresolved []Unresolved
}

func (r *run) newBlockState(b *blockgraph.Block) (*blockState, error) {
	opts := r.o.opts
	dom, err := domain.New(opts)
	if err != nil {
		return nil, err
	}
	session := r.o.solver.NewSession()
	return &blockState{
		block:      b,
		rank:       r.o.graph.Rank(b),
		dom:        dom,
		session:    session,
		forward:    NewForwardAnalysis(b, dom, session, opts, r.o.log),
		backward:   NewBackwardAnalysis(b, b == r.o.graph.Entry, dom, session, opts, r.o.log),
		delay:      opts.WideningDelay,
		thresholds: r.thresholds,
		log:        r.o.log,
		pre:        map[string]*merged{},
		post:       map[*cfa.Node]*merged{},
		sentPre:    map[*cfa.Node]domain.State{},
		parked:     map[*cfa.Node]bool{},
		edges:      map[EdgeKey]*EdgeReport{},
	}, nil
}

// handle processes one message and returns the messages to send
func (bs *blockState) handle(ctx context.Context, r *run, m Message) ([]Message, error) {
	bs.stats.Received++
	st, err := bs.dom.Deserialize(m.Payload)
	if err != nil {
		bs.fail(m, fmt.Errorf("%w: %v", ErrAnalysis, err))
		return nil, nil
	}
	bs.record(m, st)
	var out []Message
	switch {
	case m.Kind == Precondition:
		out, err = bs.onPrecondition(ctx, r, m.BlockID, st)
	case m.Kind == Postcondition:
		n, ok := r.nodes[m.LocationID]
		if !ok {
			err = fmt.Errorf("%w: no location N%d", ErrMalformedMessage, m.LocationID)
		} else if m.Target {
			out, err = bs.onTarget(ctx, n, st)
		} else {
			out, err = bs.onPostcondition(ctx, n, st)
		}
	default:
		err = fmt.Errorf("%w: %s sent to a block", ErrMalformedMessage, m.Kind)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		bs.fail(m, err)
		return nil, nil
	}
	return out, nil
}

func (bs *blockState) onPrecondition(ctx context.Context, r *run, sender string, st domain.State) ([]Message,
	error) {
	cur, changed, err := bs.absorb(ctx, bs.pre[sender], st)
	if err != nil {
		return nil, err
	}
	bs.pre[sender] = cur
	if !changed {
		bs.stats.Dropped++
		return nil, nil
	}
	cond := bs.dom.Bottom()
	for _, s := range funcutil.SortedKeys(bs.pre, func(a, b string) bool { return a < b }) {
		cond = bs.dom.Join(cond, bs.pre[s].state)
	}
	bs.stats.Forward++
	msgs, err := bs.forward.Analyze(ctx, bs.dom.ToFormula(cond), bs.block.Entry)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, msg := range msgs {
		if msg.Kind != Precondition {
			out = append(out, msg)
			continue
		}
		exit, ok := r.nodes[msg.LocationID]
		if !ok {
			return nil, fmt.Errorf("%w: no location N%d", ErrAnalysis, msg.LocationID)
		}
		s, err := bs.dom.Deserialize(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
		}
		if prev, ok := bs.sentPre[exit]; ok {
			implied, err := bs.implied(ctx, s, prev)
			if err != nil {
				return nil, err
			}
			if implied {
				continue
			}
			s = bs.dom.Join(prev, s)
		}
		bs.sentPre[exit] = s
		out = append(out, msg)
		if bs.post[exit] != nil {
			more, err := bs.continueBackward(ctx, exit)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
	}
	return out, nil
}

func (bs *blockState) onTarget(ctx context.Context, target *cfa.Node, st domain.State) ([]Message, error) {
	cur, changed, err := bs.absorb(ctx, bs.post[target], st)
	if err != nil {
		return nil, err
	}
	bs.post[target] = cur
	if !changed {
		bs.stats.Dropped++
		return nil, nil
	}
	return bs.backwardFrom(ctx, target, bs.dom.ToFormula(cur.state))
}

func (bs *blockState) onPostcondition(ctx context.Context, exit *cfa.Node, st domain.State) ([]Message, error) {
	cur, changed, err := bs.absorb(ctx, bs.post[exit], st)
	if err != nil {
		return nil, err
	}
	bs.post[exit] = cur
	if !changed {
		bs.stats.Dropped++
		return nil, nil
	}
	return bs.continueBackward(ctx, exit)
}

// continueBackward extends the postcondition received on exit through the block, unless no precondition sent on
// exit is compatible with it. Incompatible postconditions are parked until the precondition grows.
func (bs *blockState) continueBackward(ctx context.Context, exit *cfa.Node) ([]Message, error) {
	post := bs.post[exit]
	pre, ok := bs.sentPre[exit]
	if !ok {
		bs.parked[exit] = true
		return nil, nil
	}
	preF, postF := bs.dom.ToFormula(pre), bs.dom.ToFormula(post.state)
	cant, err := bs.forward.CantContinue(ctx, preF, postF)
	if err != nil {
		return nil, err
	}
	if cant {
		if !bs.parked[exit] {
			bs.stats.Pruned++
		}
		bs.parked[exit] = true
		return nil, nil
	}
	delete(bs.parked, exit)
	return bs.backwardFrom(ctx, exit, formula.Conj(preF, postF))
}

func (bs *blockState) backwardFrom(ctx context.Context, n *cfa.Node, cond formula.Formula) ([]Message, error) {
	bs.stats.Backward++
	msgs, err := bs.backward.Analyze(ctx, cond, n)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, msg := range msgs {
		if msg.Kind == Postcondition {
			s, err := bs.dom.Deserialize(msg.Payload)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
			}
			if bs.sentPost != nil {
				implied, err := bs.implied(ctx, s, bs.sentPost)
				if err != nil {
					return nil, err
				}
				if implied {
					continue
				}
				s = bs.dom.Join(bs.sentPost, s)
			}
			bs.sentPost = s
		}
		out = append(out, msg)
	}
	return out, nil
}

// absorb merges st into the states received on an edge. changed is false when st adds nothing. After the
// widening delay, merges widen, so that the states of every edge stabilize.
func (bs *blockState) absorb(ctx context.Context, cur *merged, st domain.State) (res *merged, changed bool,
	err error) {
	if cur == nil {
		return &merged{state: st}, true, nil
	}
	implied, err := bs.implied(ctx, st, cur.state)
	if err != nil || implied {
		return cur, false, err
	}
	next := bs.dom.Join(cur.state, st)
	if cur.merges >= bs.delay {
		next = bs.dom.Widen(cur.state, next, bs.thresholds)
	}
	return &merged{state: next, merges: cur.merges + 1}, true, nil
}

// implied returns true when every state of a is in b
func (bs *blockState) implied(ctx context.Context, a, b domain.State) (bool, error) {
	if bs.dom.LessOrEqual(a, b) {
		return true, nil
	}
	ok, err := bs.session.Implies(ctx, bs.dom.ToFormula(a), bs.dom.ToFormula(b))
	if err != nil {
		if smt.IsTooComplex(err) {
			return false, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		return false, fmt.Errorf("%w: implication check in %s: %v", ErrAnalysis, bs.block.ID, err)
	}
	return ok, nil
}

func (bs *blockState) edgeKey(m Message) EdgeKey {
	return EdgeKey{From: m.BlockID, To: bs.block.ID, Kind: m.Kind}
}

// record appends the state received to the history of its edge
func (bs *blockState) record(m Message, st domain.State) {
	k := bs.edgeKey(m)
	e, ok := bs.edges[k]
	if !ok {
		e = &EdgeReport{EdgeKey: k}
		bs.edges[k] = e
	}
	e.History = append(e.History, st.String())
}

// fail records that the message m could not be handled
func (bs *blockState) fail(m Message, err error) {
	bs.log.Warnf("%s: message %s not handled: %v", bs.block.ID, m, err)
	bs.unresolved = append(bs.unresolved, Unresolved{EdgeKey: bs.edgeKey(m), Err: err})
}
