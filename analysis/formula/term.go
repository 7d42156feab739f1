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

package formula

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Monomial is a coefficient applied to a single variable.
type Monomial struct {
	Var   string
	Coeff int64
}

// Term is a linear integer expression sum(Coeff*Var) + Const.
// Invariant: Monomials are sorted by variable name, and no coefficient is zero, so that two equal terms have equal
// representations.
type Term struct {
	Monomials []Monomial
	Const     int64
}

// Var returns the term consisting of the variable name only
func Var(name string) Term {
	return Term{Monomials: []Monomial{{Var: name, Coeff: 1}}}
}

// Const returns the constant term c
func Const(c int64) Term {
	return Term{Const: c}
}

// Lin returns the term coeff*name + c
func Lin(coeff int64, name string, c int64) Term {
	return Var(name).Scale(coeff).Add(Const(c))
}

// IsConst returns true when the term does not mention any variable
func (t Term) IsConst() bool {
	return len(t.Monomials) == 0
}

// Coeff returns the coefficient of v in t (zero when v does not appear in t)
func (t Term) Coeff(v string) int64 {
	for _, m := range t.Monomials {
		if m.Var == v {
			return m.Coeff
		}
	}
	return 0
}

// Vars returns the variables of t in sorted order
func (t Term) Vars() []string {
	vars := make([]string, len(t.Monomials))
	for i, m := range t.Monomials {
		vars[i] = m.Var
	}
	return vars
}

// Add returns t + u
func (t Term) Add(u Term) Term {
	res := Term{Const: t.Const + u.Const}
	i, j := 0, 0
	for i < len(t.Monomials) || j < len(u.Monomials) {
		switch {
		case j >= len(u.Monomials) || (i < len(t.Monomials) && t.Monomials[i].Var < u.Monomials[j].Var):
			res.Monomials = append(res.Monomials, t.Monomials[i])
			i++
		case i >= len(t.Monomials) || u.Monomials[j].Var < t.Monomials[i].Var:
			res.Monomials = append(res.Monomials, u.Monomials[j])
			j++
		default:
			if c := t.Monomials[i].Coeff + u.Monomials[j].Coeff; c != 0 {
				res.Monomials = append(res.Monomials, Monomial{Var: t.Monomials[i].Var, Coeff: c})
			}
			i++
			j++
		}
	}
	return res
}

// Scale returns k*t
func (t Term) Scale(k int64) Term {
	if k == 0 {
		return Term{}
	}
	res := Term{Const: t.Const * k, Monomials: make([]Monomial, len(t.Monomials))}
	for i, m := range t.Monomials {
		res.Monomials[i] = Monomial{Var: m.Var, Coeff: m.Coeff * k}
	}
	return res
}

// Sub returns t - u
func (t Term) Sub(u Term) Term {
	return t.Add(u.Scale(-1))
}

// Substitute replaces every occurrence of v in t by the term by
func (t Term) Substitute(v string, by Term) Term {
	c := t.Coeff(v)
	if c == 0 {
		return t
	}
	return t.Sub(Var(v).Scale(c)).Add(by.Scale(c))
}

// Equal returns true when both terms are syntactically equal (which is semantic equality given the invariant on
// Term)
func (t Term) Equal(u Term) bool {
	return t.Const == u.Const && slices.Equal(t.Monomials, u.Monomials)
}

// Eval evaluates t in env. ok is false when some variable of t is not bound in env.
func (t Term) Eval(env map[string]int64) (value int64, ok bool) {
	value = t.Const
	for _, m := range t.Monomials {
		x, bound := env[m.Var]
		if !bound {
			return 0, false
		}
		value += m.Coeff * x
	}
	return value, true
}

// String prints the term in SMT-LIB syntax
func (t Term) String() string {
	parts := make([]string, 0, len(t.Monomials)+1)
	for _, m := range t.Monomials {
		parts = append(parts, monomialString(m))
	}
	if t.Const != 0 || len(parts) == 0 {
		parts = append(parts, intString(t.Const))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(+ " + strings.Join(parts, " ") + ")"
}

func monomialString(m Monomial) string {
	switch m.Coeff {
	case 1:
		return symbol(m.Var)
	case -1:
		return "(- " + symbol(m.Var) + ")"
	default:
		return fmt.Sprintf("(* %s %s)", intString(m.Coeff), symbol(m.Var))
	}
}

func intString(c int64) string {
	if c < 0 {
		return fmt.Sprintf("(- %d)", -c)
	}
	return fmt.Sprintf("%d", c)
}
