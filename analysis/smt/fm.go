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

package smt

import (
	"context"
	"fmt"
	"math"

	"github.com/awslabs/ar-go-dss/analysis/formula"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// coefficients above this bound abort the elimination to prevent overflows
const maxCoeff = int64(1) << 40

// FourierMotzkin is the reference solver. Each disjunct of a query is decided separately: equalities with a unit
// coefficient are eliminated by substitution, remaining constraints are normalized with integer tightening and
// variables are eliminated with Fourier-Motzkin. Conjunctions whose constraints have a single variable each, after
// substitution, are decided exactly; for other conjunctions the answer is the rational relaxation, which may report
// satisfiable for an integer-unsatisfiable query but never the converse.
type FourierMotzkin struct {
	Options Options
}

// NewSolver returns a reference solver with the given bounds
func NewSolver(opts Options) *FourierMotzkin {
	if opts.MaxCubes <= 0 {
		opts.MaxCubes = DefaultOptions().MaxCubes
	}
	if opts.MaxConstraints <= 0 {
		opts.MaxConstraints = DefaultOptions().MaxConstraints
	}
	return &FourierMotzkin{Options: opts}
}

// NewSession returns a fresh session with an empty cache
func (s *FourierMotzkin) NewSession() Session {
	return &fmSession{opts: s.Options, cache: map[string]bool{}}
}

type fmSession struct {
	opts  Options
	cache map[string]bool
	stats Stats
}

func (s *fmSession) Stats() Stats { return s.stats }

func (s *fmSession) Implies(ctx context.Context, a, b formula.Formula) (bool, error) {
	if formula.IsTrue(b) || formula.IsFalse(a) {
		return true, nil
	}
	sat, err := s.Sat(ctx, formula.Conj(a, formula.Negate(b)))
	if err != nil {
		return false, err
	}
	return !sat, nil
}

func (s *fmSession) Sat(ctx context.Context, f formula.Formula) (bool, error) {
	if b, ok := f.(formula.Bool); ok {
		return bool(b), nil
	}
	key := f.String()
	s.stats.Queries++
	if res, ok := s.cache[key]; ok {
		s.stats.CacheHits++
		return res, nil
	}
	cubes, err := formula.DNF(f, s.opts.MaxCubes)
	if err != nil {
		return false, fmt.Errorf("normalizing query: %w", err)
	}
	res := false
	for _, cube := range cubes {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		sat, err := s.cubeSat(ctx, cube)
		if err != nil {
			return false, err
		}
		if sat {
			res = true
			break
		}
	}
	s.cache[key] = res
	return res, nil
}

// cubeSat decides a conjunction of atoms
func (s *fmSession) cubeSat(ctx context.Context, cube formula.Cube) (bool, error) {
	var eqs, ineqs []formula.Term
	for _, a := range cube {
		if a.Op == formula.Equal {
			eqs = append(eqs, a.T)
		} else {
			ineqs = append(ineqs, a.T)
		}
	}

	// eliminate unit equalities by substitution, splitting the others into two inequalities
	for len(eqs) > 0 {
		eq := eqs[0]
		eqs = eqs[1:]
		eq, ok := normalizeEq(eq)
		if !ok {
			return false, nil
		}
		if eq.IsConst() {
			continue
		}
		v, c := unitVar(eq)
		if v == "" {
			neg, err := combine([]formula.Term{eq}, []int64{-1})
			if err != nil {
				return false, err
			}
			ineqs = append(ineqs, eq, neg)
			continue
		}
		// c*v + r = 0 with c = +-1, hence v = -c*r = v - c*eq
		by, err := combine([]formula.Term{formula.Var(v), eq}, []int64{1, -c})
		if err != nil {
			return false, err
		}
		for _, ts := range [][]formula.Term{eqs, ineqs} {
			for i, t := range ts {
				if ts[i], err = substitute(t, v, by); err != nil {
					return false, err
				}
			}
		}
	}
	return s.eliminate(ctx, ineqs)
}

// eliminate decides the conjunction of the constraints t <= 0 for t in ineqs
func (s *fmSession) eliminate(ctx context.Context, ineqs []formula.Term) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		var live []formula.Term
		for _, t := range ineqs {
			t, err := normalizeIneq(t)
			if err != nil {
				return false, err
			}
			if t.IsConst() {
				if t.Const > 0 {
					return false, nil
				}
				continue
			}
			live = append(live, t)
		}
		if len(live) == 0 {
			return true, nil
		}
		if len(live) > s.opts.MaxConstraints {
			return false, fmt.Errorf("%d constraints: %w", len(live), ErrTooComplex)
		}
		v := pickVar(live)
		var lower, upper, rest []formula.Term
		for _, t := range live {
			switch c := t.Coeff(v); {
			case c > 0:
				upper = append(upper, t)
			case c < 0:
				lower = append(lower, t)
			default:
				rest = append(rest, t)
			}
		}
		for _, u := range upper {
			for _, l := range lower {
				a, b := u.Coeff(v), -l.Coeff(v)
				t, err := combine([]formula.Term{u, l}, []int64{b, a})
				if err != nil {
					return false, err
				}
				rest = append(rest, t)
			}
		}
		ineqs = rest
	}
}

// pickVar chooses the variable whose elimination creates the fewest constraints
func pickVar(ts []formula.Term) string {
	pos, neg := map[string]int{}, map[string]int{}
	var order []string
	for _, t := range ts {
		for _, m := range t.Monomials {
			if pos[m.Var] == 0 && neg[m.Var] == 0 {
				order = append(order, m.Var)
			}
			if m.Coeff > 0 {
				pos[m.Var]++
			} else {
				neg[m.Var]++
			}
		}
	}
	best, bestCost := "", 0
	for _, v := range order {
		cost := pos[v]*neg[v] - pos[v] - neg[v]
		if best == "" || cost < bestCost {
			best, bestCost = v, cost
		}
	}
	return best
}

// combine returns the sum of ks[i]*ts[i], or ErrTooComplex when a coefficient or the constant overflows int64
func combine(ts []formula.Term, ks []int64) (formula.Term, error) {
	coeffs := map[string]int64{}
	var c int64
	ok := true
	for i, t := range ts {
		var p int64
		p, ok = mulInt(ks[i], t.Const)
		if !ok {
			break
		}
		if c, ok = addInt(c, p); !ok {
			break
		}
		for _, m := range t.Monomials {
			if p, ok = mulInt(ks[i], m.Coeff); !ok {
				break
			}
			if coeffs[m.Var], ok = addInt(coeffs[m.Var], p); !ok {
				break
			}
		}
		if !ok {
			break
		}
	}
	if !ok {
		return formula.Term{}, fmt.Errorf("integer overflow: %w", ErrTooComplex)
	}
	res := formula.Const(c)
	vars := maps.Keys(coeffs)
	slices.Sort(vars)
	for _, v := range vars {
		if k := coeffs[v]; k != 0 {
			res = res.Add(formula.Var(v).Scale(k))
		}
	}
	return res, nil
}

// substitute replaces v by the term by in t
func substitute(t formula.Term, v string, by formula.Term) (formula.Term, error) {
	c := t.Coeff(v)
	if c == 0 {
		return t, nil
	}
	return combine([]formula.Term{t, formula.Var(v), by}, []int64{1, -c, c})
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	return p, p/b == a
}

func addInt(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

func unitVar(t formula.Term) (string, int64) {
	for _, m := range t.Monomials {
		if m.Coeff == 1 || m.Coeff == -1 {
			return m.Var, m.Coeff
		}
	}
	return "", 0
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func termGcd(t formula.Term) int64 {
	var g int64
	for _, m := range t.Monomials {
		g = gcd(g, m.Coeff)
	}
	return g
}

// normalizeIneq divides t <= 0 by the gcd of its coefficients, rounding the constant up
func normalizeIneq(t formula.Term) (formula.Term, error) {
	g := termGcd(t)
	for _, m := range t.Monomials {
		if m.Coeff > maxCoeff || m.Coeff < -maxCoeff {
			return formula.Term{}, fmt.Errorf("coefficient overflow: %w", ErrTooComplex)
		}
	}
	if g <= 1 {
		return t, nil
	}
	res := formula.Term{Monomials: make([]formula.Monomial, len(t.Monomials)), Const: ceilDiv(t.Const, g)}
	for i, m := range t.Monomials {
		res.Monomials[i] = formula.Monomial{Var: m.Var, Coeff: m.Coeff / g}
	}
	return res, nil
}

// normalizeEq divides t = 0 by the gcd of its coefficients. ok is false when the equality has no integer solution
func normalizeEq(t formula.Term) (formula.Term, bool) {
	if t.IsConst() {
		return t, t.Const == 0
	}
	g := termGcd(t)
	if t.Const%g != 0 {
		return t, false
	}
	if g == 1 {
		return t, true
	}
	res := formula.Term{Monomials: make([]formula.Monomial, len(t.Monomials)), Const: t.Const / g}
	for i, m := range t.Monomials {
		res.Monomials[i] = formula.Monomial{Var: m.Var, Coeff: m.Coeff / g}
	}
	return res, true
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}
