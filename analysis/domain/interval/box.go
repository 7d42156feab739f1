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

package interval

import (
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
)

// Box maps variables to intervals. Variables that are not in the map are unconstrained. Boxes are not
// modified once built and never contain a top or empty interval.
type Box map[string]Interval

// Get returns the interval of v
func (b Box) Get(v string) Interval {
	if i, ok := b[v]; ok {
		return i
	}
	return Top
}

// with returns a copy of b where v is in i
func (b Box) with(v string, i Interval) Box {
	res := make(Box, len(b)+1)
	for x, j := range b {
		res[x] = j
	}
	if i.IsTop() {
		delete(res, v)
	} else {
		res[v] = i
	}
	return res
}

// without returns a copy of b where the variables are unconstrained
func (b Box) without(vars ...string) Box {
	res := make(Box, len(b))
	for x, j := range b {
		res[x] = j
	}
	for _, v := range vars {
		delete(res, v)
	}
	return res
}

// Includes returns true when every point of o is in b
func (b Box) Includes(o Box) bool {
	for v, i := range b {
		if !i.Includes(o.Get(v)) {
			return false
		}
	}
	return true
}

// Hull returns the smallest box containing b and o
func (b Box) Hull(o Box) Box {
	res := Box{}
	for v, i := range b {
		if j, ok := o[v]; ok {
			if h := i.Hull(j); !h.IsTop() {
				res[v] = h
			}
		}
	}
	return res
}

// Eval returns the interval of the values of t in the box
func (b Box) Eval(t formula.Term) Interval {
	res := Point(t.Const)
	for _, m := range t.Monomials {
		res = res.Add(b.Get(m.Var).Scale(m.Coeff))
	}
	return res
}

// Refine returns the box restricted to the points satisfying the atom, over-approximated. ok is false when no
// point of the box satisfies it.
func (b Box) Refine(a formula.Atom) (res Box, ok bool) {
	if a.Op == formula.Equal {
		if res, ok = b.refineLe(a.T); ok {
			res, ok = res.refineLe(a.T.Scale(-1))
		}
		return res, ok
	}
	return b.refineLe(a.T)
}

// refineLe restricts the box to t <= 0. Each variable x with coefficient c is bounded by c*x <= -rest, where rest
// is the lowest value of the other monomials and the constant.
func (b Box) refineLe(t formula.Term) (Box, bool) {
	if b.Eval(t).Lo > 0 {
		return nil, false
	}
	res := b
	for _, m := range t.Monomials {
		rest := t.Sub(formula.Lin(m.Coeff, m.Var, 0))
		low := res.Eval(rest).Lo
		if low == NegInf {
			continue
		}
		bound := -low
		cur := res.Get(m.Var)
		var next Interval
		if m.Coeff > 0 {
			next = cur.Meet(Interval{NegInf, floorDiv(bound, m.Coeff)})
		} else {
			next = cur.Meet(Interval{ceilDiv(bound, m.Coeff), PosInf})
		}
		if next.IsEmpty() {
			return nil, false
		}
		if next != cur {
			res = res.with(m.Var, next)
		}
	}
	return res, true
}

// RefineCube refines the box with every atom of the cube. Atoms over several variables are applied twice so that
// bounds learnt from later atoms propagate.
func (b Box) RefineCube(c formula.Cube) (Box, bool) {
	res := b
	for pass := 0; pass < 2; pass++ {
		for _, a := range c {
			var ok bool
			if res, ok = res.Refine(a); !ok {
				return nil, false
			}
		}
	}
	return res, true
}

// Formula returns the conjunction of the bounds of the box
func (b Box) Formula() formula.Formula {
	var conj []formula.Formula
	for _, v := range funcutil.SortedKeys(b, func(x, y string) bool { return x < y }) {
		i := b[v]
		x := formula.Var(v)
		switch {
		case i.Lo == i.Hi:
			conj = append(conj, formula.Eq(x, formula.Const(i.Lo)))
		default:
			if i.Lo != NegInf {
				conj = append(conj, formula.Ge(x, formula.Const(i.Lo)))
			}
			if i.Hi != PosInf {
				conj = append(conj, formula.Le(x, formula.Const(i.Hi)))
			}
		}
	}
	return formula.Conj(conj...)
}

func (b Box) String() string {
	if len(b) == 0 {
		return "{}"
	}
	parts := funcutil.Map(funcutil.SortedKeys(b, func(x, y string) bool { return x < y }), func(v string) string {
		return v + ":" + b[v].String()
	})
	return "{" + strings.Join(parts, ", ") + "}"
}
