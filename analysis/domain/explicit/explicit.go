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

// Package explicit implements the explicit-value domain, which tracks the variables whose value is a known
// constant.
package explicit

import (
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// Name is the name of the domain in the registry
const Name = "explicit"

func init() {
	domain.Register(Name, func(opts config.AnalysisOptions) domain.Plugin { return New(opts) })
}

// State maps the variables of known value to their value. Unknown variables may take any value.
type State struct {
	bottom bool
	values map[string]int64
}

// Value returns the value of v, if known
func (s State) Value(v string) (int64, bool) {
	c, ok := s.values[v]
	return c, ok
}

func (s State) String() string {
	if s.bottom {
		return "bottom"
	}
	keys := funcutil.SortedKeys(s.values, func(a, b string) bool { return a < b })
	return "{" + strings.Join(funcutil.Map(keys, func(v string) string {
		return v + "=" + formula.Const(s.values[v]).String()
	}), ", ") + "}"
}

func (s State) with(v string, c int64) State {
	values := make(map[string]int64, len(s.values)+1)
	for x, y := range s.values {
		values[x] = y
	}
	values[v] = c
	return State{values: values}
}

func (s State) without(vars ...string) State {
	values := make(map[string]int64, len(s.values))
	for x, y := range s.values {
		values[x] = y
	}
	for _, v := range vars {
		delete(values, v)
	}
	return State{values: values}
}

// Domain is the explicit-value plugin
type Domain struct {
	domain.FormulaSerializer
	domain.HavocSummary
	maxCubes int
}

// New returns the explicit-value domain
func New(opts config.AnalysisOptions) *Domain {
	d := &Domain{maxCubes: opts.SolverMaxCubes}
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
func (d *Domain) Bottom() domain.State { return State{bottom: true} }

// IsBottom implements domain.Domain
func (d *Domain) IsBottom(s domain.State) bool { return s.(State).bottom }

// FromFormula implements domain.Domain
func (d *Domain) FromFormula(f formula.Formula) (domain.State, error) {
	return d.assume(State{}, f), nil
}

// ToFormula implements domain.Domain
func (d *Domain) ToFormula(s domain.State) formula.Formula {
	st := s.(State)
	if st.bottom {
		return formula.False
	}
	keys := funcutil.SortedKeys(st.values, func(a, b string) bool { return a < b })
	return formula.Conj(funcutil.Map(keys, func(v string) formula.Formula {
		return formula.Eq(formula.Var(v), formula.Const(st.values[v]))
	})...)
}

// Post implements domain.Domain
func (d *Domain) Post(s domain.State, e *cfa.Edge) (domain.State, error) {
	st := s.(State)
	if st.bottom {
		return st, nil
	}
	switch e.Kind {
	case cfa.AssumeEdge:
		return d.assume(st, e.Cond), nil
	case cfa.StatementEdge, cfa.CallEdge, cfa.SummaryEdge:
		return assign(st, e.Bindings, e.Havoc), nil
	case cfa.ReturnEdge:
		res := assign(st, e.Bindings, e.Havoc)
		if e.To.Function != e.Callee {
			var locals []string
			for v := range res.values {
				if domain.IsLocalTo(v, e.Callee) {
					locals = append(locals, v)
				}
			}
			res = res.without(locals...)
		}
		return res, nil
	}
	return st, nil
}

// Pre implements domain.Domain. Before an assignment x := t where x is known to be c, t equals c.
func (d *Domain) Pre(s domain.State, e *cfa.Edge) (domain.State, error) {
	st := s.(State)
	if st.bottom {
		return st, nil
	}
	switch e.Kind {
	case cfa.AssumeEdge:
		return d.assume(st, e.Cond), nil
	case cfa.StatementEdge, cfa.CallEdge, cfa.ReturnEdge, cfa.SummaryEdge:
		var conds []formula.Formula
		assigned := append([]string{}, e.Havoc...)
		for _, b := range e.Bindings {
			assigned = append(assigned, b.Var)
			if c, ok := st.values[b.Var]; ok {
				conds = append(conds, formula.Eq(b.Value, formula.Const(c)))
			}
		}
		return d.assume(st.without(assigned...), formula.Conj(conds...)), nil
	}
	return st, nil
}

// Join implements domain.Domain: the values known in both states with the same value
func (d *Domain) Join(a, b domain.State) domain.State {
	x, y := a.(State), b.(State)
	if x.bottom {
		return y
	}
	if y.bottom {
		return x
	}
	values := map[string]int64{}
	for v, c := range x.values {
		if c2, ok := y.values[v]; ok && c2 == c {
			values[v] = c
		}
	}
	return State{values: values}
}

// LessOrEqual implements domain.Domain
func (d *Domain) LessOrEqual(a, b domain.State) bool {
	x, y := a.(State), b.(State)
	if x.bottom {
		return true
	}
	if y.bottom {
		return false
	}
	for v, c := range y.values {
		if c2, ok := x.values[v]; !ok || c2 != c {
			return false
		}
	}
	return true
}

// Widen implements domain.Domain. The domain has no infinite ascending chain: widening is the join.
func (d *Domain) Widen(prev, next domain.State, _ []int64) domain.State {
	return d.Join(prev, next)
}

func assign(st State, bindings []cfa.Binding, havoc []string) State {
	type value struct {
		c     int64
		known bool
	}
	values := funcutil.Map(bindings, func(b cfa.Binding) value {
		c, ok := b.Value.Eval(st.values)
		return value{c, ok}
	})
	res := st.without(havoc...)
	for i, b := range bindings {
		if values[i].known {
			res = res.with(b.Var, values[i].c)
		} else {
			res = res.without(b.Var)
		}
	}
	return res
}

// assume returns the join of the states satisfying the cubes of cond. Each cube is checked against the known
// values, and its equalities with a single unknown variable are solved.
func (d *Domain) assume(st State, cond formula.Formula) State {
	cubes, err := formula.DNF(cond, d.maxCubes)
	if err != nil {
		return st
	}
	res := State{bottom: true}
	for _, c := range cubes {
		if s, ok := refine(st, c); ok {
			res = d.Join(res, s).(State)
		}
	}
	return res
}

func refine(st State, c formula.Cube) (State, bool) {
	res := st
	for changed := true; changed; {
		changed = false
		for _, a := range c {
			t := a.T
			for _, v := range t.Vars() {
				if x, ok := res.values[v]; ok {
					t = t.Substitute(v, formula.Const(x))
				}
			}
			if t.IsConst() {
				if (a.Op == formula.LessEq && t.Const > 0) || (a.Op == formula.Equal && t.Const != 0) {
					return State{}, false
				}
				continue
			}
			if a.Op != formula.Equal || len(t.Monomials) != 1 {
				continue
			}
			m := t.Monomials[0]
			if t.Const%m.Coeff != 0 {
				// no integer solution
				return State{}, false
			}
			res = res.with(m.Var, -t.Const/m.Coeff)
			changed = true
		}
	}
	return res, true
}
