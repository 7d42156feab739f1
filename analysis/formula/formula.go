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
	"strings"

	"golang.org/x/exp/slices"
)

// A Formula is a quantifier-free formula of linear integer arithmetic.
// Formulas are immutable values; the constructors below simplify trivial cases.
type Formula interface {
	// String prints the formula in SMT-LIB syntax. The output can be read back with Parse.
	String() string

	isFormula()
}

// Bool is a boolean constant
type Bool bool

// Op is the comparison of an atom with zero
type Op int

const (
	// LessEq is the atom t <= 0
	LessEq Op = iota
	// Equal is the atom t = 0
	Equal
)

// Atom is the comparison T Op 0
type Atom struct {
	Op Op
	T  Term
}

// And is a conjunction; an empty conjunction is true
type And []Formula

// Or is a disjunction; an empty disjunction is false
type Or []Formula

// Not is a negation
type Not struct {
	F Formula
}

func (Bool) isFormula() {}
func (Atom) isFormula() {}
func (And) isFormula()  {}
func (Or) isFormula()   {}
func (Not) isFormula()  {}

var (
	// True is the formula that holds in every state
	True Formula = Bool(true)
	// False is the formula that holds in no state
	False Formula = Bool(false)
)

// IsTrue returns true if f is syntactically the constant true
func IsTrue(f Formula) bool {
	b, ok := f.(Bool)
	return ok && bool(b)
}

// IsFalse returns true if f is syntactically the constant false
func IsFalse(f Formula) bool {
	b, ok := f.(Bool)
	return ok && !bool(b)
}

func atom(op Op, t Term) Formula {
	if t.IsConst() {
		switch op {
		case LessEq:
			return Bool(t.Const <= 0)
		default:
			return Bool(t.Const == 0)
		}
	}
	return Atom{Op: op, T: t}
}

// Le returns a <= b
func Le(a, b Term) Formula { return atom(LessEq, a.Sub(b)) }

// Lt returns a < b, which over the integers is a - b + 1 <= 0
func Lt(a, b Term) Formula { return atom(LessEq, a.Sub(b).Add(Const(1))) }

// Ge returns a >= b
func Ge(a, b Term) Formula { return Le(b, a) }

// Gt returns a > b
func Gt(a, b Term) Formula { return Lt(b, a) }

// Eq returns a = b
func Eq(a, b Term) Formula { return atom(Equal, a.Sub(b)) }

// Ne returns a != b
func Ne(a, b Term) Formula { return Negate(Eq(a, b)) }

// Conj returns the conjunction of fs, flattening nested conjunctions and absorbing constants.
func Conj(fs ...Formula) Formula {
	var res And
	for _, f := range fs {
		switch x := f.(type) {
		case Bool:
			if !x {
				return False
			}
		case And:
			res = append(res, x...)
		default:
			res = append(res, f)
		}
	}
	res = dedup(res)
	switch len(res) {
	case 0:
		return True
	case 1:
		return res[0]
	}
	return res
}

// Disj returns the disjunction of fs, flattening nested disjunctions and absorbing constants.
func Disj(fs ...Formula) Formula {
	var res Or
	for _, f := range fs {
		switch x := f.(type) {
		case Bool:
			if x {
				return True
			}
		case Or:
			res = append(res, x...)
		default:
			res = append(res, f)
		}
	}
	res = dedup(res)
	switch len(res) {
	case 0:
		return False
	case 1:
		return res[0]
	}
	return res
}

// dedup removes syntactic duplicates, keeping the first occurrence
func dedup(fs []Formula) []Formula {
	seen := make(map[string]bool, len(fs))
	uniq := fs[:0:0]
	for _, f := range fs {
		k := f.String()
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, f)
		}
	}
	return uniq
}

// Negate returns the negation of f. Negation is pushed through atoms so that negated atoms stay atoms
// (or a disjunction of two atoms for equalities).
func Negate(f Formula) Formula {
	switch x := f.(type) {
	case Bool:
		return !x
	case Atom:
		if x.Op == LessEq {
			// not (t <= 0)  <=>  -t + 1 <= 0
			return atom(LessEq, x.T.Scale(-1).Add(Const(1)))
		}
		// not (t = 0)  <=>  t + 1 <= 0  or  -t + 1 <= 0
		return Disj(atom(LessEq, x.T.Add(Const(1))), atom(LessEq, x.T.Scale(-1).Add(Const(1))))
	case Not:
		return x.F
	default:
		return Not{F: f}
	}
}

// Implies returns a => b
func Implies(a, b Formula) Formula {
	return Disj(Negate(a), b)
}

// Vars returns the sorted set of variables appearing in f
func Vars(f Formula) []string {
	set := map[string]bool{}
	Walk(f, func(a Atom) {
		for _, m := range a.T.Monomials {
			set[m.Var] = true
		}
	})
	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	return vars
}

// Walk calls visit on every atom of f
func Walk(f Formula, visit func(Atom)) {
	switch x := f.(type) {
	case Atom:
		visit(x)
	case And:
		for _, g := range x {
			Walk(g, visit)
		}
	case Or:
		for _, g := range x {
			Walk(g, visit)
		}
	case Not:
		Walk(x.F, visit)
	}
}

// Map rebuilds f by applying fn to every atom
func Map(f Formula, fn func(Atom) Formula) Formula {
	switch x := f.(type) {
	case Atom:
		return fn(x)
	case And:
		res := make([]Formula, len(x))
		for i, g := range x {
			res[i] = Map(g, fn)
		}
		return Conj(res...)
	case Or:
		res := make([]Formula, len(x))
		for i, g := range x {
			res[i] = Map(g, fn)
		}
		return Disj(res...)
	case Not:
		return Negate(Map(x.F, fn))
	default:
		return f
	}
}

// Substitute replaces v by the term by in f
func Substitute(f Formula, v string, by Term) Formula {
	return Map(f, func(a Atom) Formula { return atom(a.Op, a.T.Substitute(v, by)) })
}

// Constants returns the constants c such that some atom of f compares a single variable against c. These are
// the natural thresholds for widening.
func Constants(f Formula) []int64 {
	var res []int64
	Walk(f, func(a Atom) {
		if len(a.T.Monomials) == 1 {
			m := a.T.Monomials[0]
			if m.Coeff == 1 || m.Coeff == -1 {
				res = append(res, -a.T.Const*m.Coeff)
			}
		}
	})
	return res
}

// Eval evaluates f under env. known is false when the truth value depends on unbound variables.
func Eval(f Formula, env map[string]int64) (value bool, known bool) {
	switch x := f.(type) {
	case Bool:
		return bool(x), true
	case Atom:
		v, ok := x.T.Eval(env)
		if !ok {
			return false, false
		}
		if x.Op == LessEq {
			return v <= 0, true
		}
		return v == 0, true
	case And:
		allKnown := true
		for _, g := range x {
			b, k := Eval(g, env)
			if k && !b {
				return false, true
			}
			allKnown = allKnown && k
		}
		return true, allKnown
	case Or:
		allKnown := true
		for _, g := range x {
			b, k := Eval(g, env)
			if k && b {
				return true, true
			}
			allKnown = allKnown && k
		}
		return false, allKnown
	case Not:
		b, k := Eval(x.F, env)
		return !b, k
	}
	return false, false
}

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

func (a Atom) String() string {
	// print as (op lhs rhs) with the constant moved to the right-hand side
	lhs := Term{Monomials: a.T.Monomials}
	rhs := intString(-a.T.Const)
	if a.Op == LessEq {
		return "(<= " + lhs.String() + " " + rhs + ")"
	}
	return "(= " + lhs.String() + " " + rhs + ")"
}

func (a And) String() string { return nary("and", a) }
func (o Or) String() string  { return nary("or", o) }
func (n Not) String() string { return "(not " + n.F.String() + ")" }

func nary(op string, fs []Formula) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(op)
	for _, f := range fs {
		b.WriteString(" ")
		b.WriteString(f.String())
	}
	b.WriteString(")")
	return b.String()
}
