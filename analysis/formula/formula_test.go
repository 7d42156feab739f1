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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	x = Var("x")
	y = Var("y")
)

func TestTermArithmetic(t *testing.T) {
	sum := x.Add(y).Add(Const(3))
	assert.Equal(t, int64(1), sum.Coeff("x"))
	assert.Equal(t, int64(0), sum.Coeff("z"))
	assert.Equal(t, []string{"x", "y"}, sum.Vars())

	zero := sum.Sub(sum)
	assert.True(t, zero.IsConst())
	assert.Equal(t, int64(0), zero.Const)

	sub := sum.Substitute("x", Lin(2, "y", 1))
	assert.True(t, sub.Equal(Lin(3, "y", 4)), sub.String())

	v, ok := sum.Eval(map[string]int64{"x": 1, "y": 2})
	assert.True(t, ok)
	assert.Equal(t, int64(6), v)
	_, ok = sum.Eval(map[string]int64{"x": 1})
	assert.False(t, ok)
}

func TestConstructorsSimplify(t *testing.T) {
	assert.True(t, IsTrue(Le(Const(1), Const(2))))
	assert.True(t, IsFalse(Lt(Const(2), Const(2))))
	assert.True(t, IsFalse(Conj(Le(x, Const(1)), False)))
	assert.True(t, IsTrue(Disj(Le(x, Const(1)), True)))
	assert.True(t, IsTrue(Conj()))
	assert.True(t, IsFalse(Disj()))

	a := Le(x, Const(1))
	assert.Equal(t, a, Conj(a, a))
	assert.Equal(t, a, Negate(Negate(a)))
}

func TestEval(t *testing.T) {
	f := Conj(Eq(x, Const(5)), Gt(y, Const(0)))
	v, known := Eval(f, map[string]int64{"x": 5, "y": 1})
	assert.True(t, known)
	assert.True(t, v)

	v, known = Eval(f, map[string]int64{"x": 4})
	assert.True(t, known, "a false conjunct decides the conjunction")
	assert.False(t, v)

	_, known = Eval(f, map[string]int64{"x": 5})
	assert.False(t, known)

	v, known = Eval(Ne(x, Const(5)), map[string]int64{"x": 5})
	assert.True(t, known)
	assert.False(t, v)
}

func TestVarsAndConstants(t *testing.T) {
	f := Disj(Conj(Lt(x, Const(10)), Ge(y, x)), Eq(Var("main::z"), Const(-3)))
	assert.Equal(t, []string{"main::z", "x", "y"}, Vars(f))
	assert.ElementsMatch(t, []int64{9, -3}, Constants(f))
}

func TestSubstitute(t *testing.T) {
	// x = x + 1 applied backward on x <= 10 gives x <= 9
	f := Substitute(Le(x, Const(10)), "x", x.Add(Const(1)))
	assert.Equal(t, Le(x, Const(9)), f)
	// substituting a constant decides the atom
	assert.True(t, IsTrue(Substitute(Le(x, Const(10)), "x", Const(3))))
}

func TestDNF(t *testing.T) {
	f := Conj(Disj(Le(x, Const(0)), Ge(x, Const(5))), Disj(Le(y, Const(0)), Ge(y, Const(5))))
	cubes, err := DNF(f, 0)
	require.NoError(t, err)
	assert.Len(t, cubes, 4)
	for _, c := range cubes {
		assert.Len(t, c, 2)
	}

	_, err = DNF(f, 3)
	assert.True(t, errors.Is(err, ErrTooComplex))

	cubes, err = DNF(Negate(Conj(Le(x, Const(0)), Le(y, Const(0)))), 0)
	require.NoError(t, err)
	assert.Len(t, cubes, 2)

	cubes, err = DNF(False, 0)
	require.NoError(t, err)
	assert.Empty(t, cubes)

	cubes, err = DNF(True, 0)
	require.NoError(t, err)
	assert.Equal(t, []Cube{{}}, cubes)
}

func TestNNFRemovesNot(t *testing.T) {
	f := Not{F: Disj(Le(x, Const(0)), Not{F: Eq(y, Const(2))})}
	g := NNF(f)
	Walk(g, func(Atom) {})
	hasNot := false
	var visit func(Formula)
	visit = func(h Formula) {
		switch v := h.(type) {
		case Not:
			hasNot = true
		case And:
			for _, c := range v {
				visit(c)
			}
		case Or:
			for _, c := range v {
				visit(c)
			}
		}
	}
	visit(g)
	assert.False(t, hasNot, g.String())
	for _, env := range []map[string]int64{{"x": 1, "y": 2}, {"x": 0, "y": 2}, {"x": 1, "y": 3}} {
		want, _ := Eval(f, env)
		got, _ := Eval(g, env)
		assert.Equal(t, want, got, "env %v", env)
	}
}

func TestPrintParse(t *testing.T) {
	cases := []Formula{
		True,
		False,
		Le(x, Const(10)),
		Lt(x.Scale(-2), Const(-7)),
		Eq(x.Add(y), Const(0)),
		Conj(Eq(x, Const(5)), Gt(y, Const(0))),
		Disj(Le(Var("main::t0"), Const(3)), Ne(Var("f::x"), y)),
		Not{F: Conj(Le(x, Const(1)), Le(y, Const(1)))},
	}
	for _, f := range cases {
		t.Run(f.String(), func(t *testing.T) {
			g, err := Parse(f.String())
			require.NoError(t, err)
			if diff := cmp.Diff(NNF(f).String(), NNF(g).String()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSyntax(t *testing.T) {
	f, err := Parse("(and (< x 3) (>= (+ (* 2 x) y (- 1)) |a b|) (=> (distinct x y) (> y 0)))")
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "x", "y"}, Vars(f))
	v, known := Eval(f, map[string]int64{"x": 2, "y": 1, "a b": 4})
	assert.True(t, known)
	assert.True(t, v)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"", "(", "(and x", ")", "(foo 1 2)", "(<= x)", "(* x y)", "(<= x 1) junk", "x", "|x"} {
		_, err := Parse(src)
		assert.Truef(t, errors.Is(err, ErrParse), "%q: %v", src, err)
	}
}
