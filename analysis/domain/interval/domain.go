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

// Package interval implements a disjunctive interval domain: a state is a bounded disjunction of boxes, each box
// bounding every variable by an interval. Widening jumps to thresholds before giving up a bound.
package interval

import (
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// Name is the name of the domain in the registry
const Name = "interval"

func init() {
	domain.Register(Name, func(opts config.AnalysisOptions) domain.Plugin { return New(opts) })
}

// State is a disjunction of boxes. The empty disjunction is bottom.
type State struct {
	boxes []Box
}

// Boxes returns the disjuncts of the state
func (s State) Boxes() []Box { return s.boxes }

func (s State) String() string {
	if len(s.boxes) == 0 {
		return "bottom"
	}
	return strings.Join(funcutil.Map(s.boxes, Box.String), " | ")
}

// Domain is the interval plugin
type Domain struct {
	domain.FormulaSerializer
	domain.HavocSummary
	maxDisjuncts int
	maxCubes     int
}

// New returns the interval domain configured by the options
func New(opts config.AnalysisOptions) *Domain {
	d := &Domain{maxDisjuncts: opts.MaxDisjuncts, maxCubes: opts.SolverMaxCubes}
	if d.maxDisjuncts <= 0 {
		d.maxDisjuncts = config.DefaultMaxDisjuncts
	}
	if d.maxCubes <= 0 {
		d.maxCubes = config.DefaultSolverMaxCubes
	}
	d.FormulaSerializer = domain.FormulaSerializer{Domain: d}
	d.HavocSummary = domain.HavocSummary{Domain: d}
	return d
}

// Name implements domain.Domain
func (d *Domain) Name() string { return Name }

// Bottom implements domain.Domain
func (d *Domain) Bottom() domain.State { return State{} }

// Top returns the state of all points
func (d *Domain) Top() domain.State { return State{boxes: []Box{{}}} }

// IsBottom implements domain.Domain
func (d *Domain) IsBottom(s domain.State) bool { return len(s.(State).boxes) == 0 }

// FromFormula implements domain.Domain. Formulas too large to normalize are abstracted to the top state.
func (d *Domain) FromFormula(f formula.Formula) (domain.State, error) {
	return d.assume(State{boxes: []Box{{}}}, f), nil
}

// ToFormula implements domain.Domain
func (d *Domain) ToFormula(s domain.State) formula.Formula {
	return formula.Disj(funcutil.Map(s.(State).boxes, Box.Formula)...)
}

// Post implements domain.Domain
func (d *Domain) Post(s domain.State, e *cfa.Edge) (domain.State, error) {
	st := s.(State)
	switch e.Kind {
	case cfa.AssumeEdge:
		return d.assume(st, e.Cond), nil
	case cfa.StatementEdge, cfa.CallEdge, cfa.SummaryEdge:
		return d.mapBoxes(st, func(b Box) (Box, bool) { return assign(b, e.Bindings, e.Havoc), true }), nil
	case cfa.ReturnEdge:
		return d.mapBoxes(st, func(b Box) (Box, bool) {
			return assign(b, e.Bindings, e.Havoc).without(calleeLocals(b, e)...), true
		}), nil
	}
	return st, nil
}

// Pre implements domain.Domain. The variables assigned by the edge are unconstrained before it, except through
// the assigned values, which must lie in the intervals the variables have after it.
func (d *Domain) Pre(s domain.State, e *cfa.Edge) (domain.State, error) {
	st := s.(State)
	switch e.Kind {
	case cfa.AssumeEdge:
		return d.assume(st, e.Cond), nil
	case cfa.StatementEdge, cfa.CallEdge, cfa.ReturnEdge, cfa.SummaryEdge:
		return d.mapBoxes(st, func(b Box) (Box, bool) { return unassign(b, e.Bindings, e.Havoc) }), nil
	}
	return st, nil
}

// Join implements domain.Domain
func (d *Domain) Join(a, b domain.State) domain.State {
	x, y := a.(State), b.(State)
	boxes := make([]Box, 0, len(x.boxes)+len(y.boxes))
	boxes = append(boxes, x.boxes...)
	boxes = append(boxes, y.boxes...)
	return d.normalize(boxes)
}

// LessOrEqual implements domain.Domain: every box of a is included in a box of b
func (d *Domain) LessOrEqual(a, b domain.State) bool {
	y := b.(State)
	return !funcutil.Exists(a.(State).boxes, func(bx Box) bool {
		return !funcutil.Exists(y.boxes, func(by Box) bool { return by.Includes(bx) })
	})
}

// Widen implements domain.Domain. The result is a single box: a bound of the hull of prev that next exceeds
// moves to the nearest threshold beyond next, or to infinity.
func (d *Domain) Widen(prev, next domain.State, thresholds []int64) domain.State {
	if d.LessOrEqual(next, prev) {
		return prev
	}
	p := prev.(State)
	if len(p.boxes) == 0 {
		return next
	}
	old := hull(p.boxes)
	cur := hull(append(append([]Box{}, p.boxes...), next.(State).boxes...))
	res := Box{}
	for v, n := range cur {
		o := old.Get(v)
		w := o
		if n.Lo < o.Lo {
			w.Lo = below(n.Lo, thresholds)
		}
		if n.Hi > o.Hi {
			w.Hi = above(n.Hi, thresholds)
		}
		if !w.IsTop() {
			res[v] = w
		}
	}
	return State{boxes: []Box{res}}
}

// below returns the largest threshold not above x, NegInf if there is none. thresholds are sorted.
func below(x int64, thresholds []int64) int64 {
	for i := len(thresholds) - 1; i >= 0; i-- {
		if thresholds[i] <= x {
			return thresholds[i]
		}
	}
	return NegInf
}

// above returns the smallest threshold not below x, PosInf if there is none
func above(x int64, thresholds []int64) int64 {
	for _, t := range thresholds {
		if t >= x {
			return t
		}
	}
	return PosInf
}

func hull(boxes []Box) Box {
	res := boxes[0]
	for _, b := range boxes[1:] {
		res = res.Hull(b)
	}
	return res
}

func (d *Domain) assume(st State, cond formula.Formula) State {
	cubes, err := formula.DNF(cond, d.maxCubes)
	if err != nil {
		return st
	}
	var boxes []Box
	for _, b := range st.boxes {
		for _, c := range cubes {
			if r, ok := b.RefineCube(c); ok {
				boxes = append(boxes, r)
			}
		}
	}
	return d.normalize(boxes)
}

func (d *Domain) mapBoxes(st State, f func(Box) (Box, bool)) State {
	var boxes []Box
	for _, b := range st.boxes {
		if r, ok := f(b); ok {
			boxes = append(boxes, r)
		}
	}
	return d.normalize(boxes)
}

// normalize removes the boxes included in other boxes and merges the last boxes when there are too many
func (d *Domain) normalize(boxes []Box) State {
	var res []Box
	for i, b := range boxes {
		subsumed := false
		for j, o := range boxes {
			if i != j && o.Includes(b) && (!b.Includes(o) || j < i) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			res = append(res, b)
		}
	}
	if len(res) > d.maxDisjuncts {
		merged := hull(res[d.maxDisjuncts-1:])
		res = append(res[:d.maxDisjuncts-1:d.maxDisjuncts-1], merged)
	}
	return State{boxes: res}
}

// assign evaluates the bindings in parallel in b, then unconstrains the havocked variables
func assign(b Box, bindings []cfa.Binding, havoc []string) Box {
	values := funcutil.Map(bindings, func(x cfa.Binding) Interval { return b.Eval(x.Value) })
	res := b
	for i, x := range bindings {
		res = res.with(x.Var, values[i])
	}
	return res.without(havoc...)
}

// unassign computes the box before the bindings and havocs, given the box b after them
func unassign(b Box, bindings []cfa.Binding, havoc []string) (Box, bool) {
	assigned := append(funcutil.Map(bindings, func(x cfa.Binding) string { return x.Var }), havoc...)
	res := b.without(assigned...)
	var cube formula.Cube
	for _, x := range bindings {
		i := b.Get(x.Var)
		if i.Lo != NegInf {
			cube = append(cube, formula.Atom{Op: formula.LessEq, T: formula.Const(i.Lo).Sub(x.Value)})
		}
		if i.Hi != PosInf {
			cube = append(cube, formula.Atom{Op: formula.LessEq, T: x.Value.Sub(formula.Const(i.Hi))})
		}
	}
	return res.RefineCube(cube)
}

// calleeLocals returns the variables of the callee of the return edge e constrained in b, which are dead after
// the return. Variables are local to a function when prefixed by its name and "::". A recursive return keeps
// them.
func calleeLocals(b Box, e *cfa.Edge) []string {
	if e.To.Function == e.Callee {
		return nil
	}
	var res []string
	for v := range b {
		if domain.IsLocalTo(v, e.Callee) {
			res = append(res, v)
		}
	}
	return res
}
