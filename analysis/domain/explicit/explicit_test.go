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

package explicit_test

import (
	"context"
	"testing"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/awslabs/ar-go-dss/analysis/domain"
	"github.com/awslabs/ar-go-dss/analysis/domain/explicit"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"github.com/awslabs/ar-go-dss/analysis/smt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	x = formula.Var("x")
	y = formula.Var("y")
)

func fromFormula(t *testing.T, d *explicit.Domain, f formula.Formula) explicit.State {
	t.Helper()
	s, err := d.FromFormula(f)
	require.NoError(t, err)
	return s.(explicit.State)
}

func TestRoundTrip(t *testing.T) {
	d := explicit.New(config.NewDefault().Analysis)
	f := formula.Conj(formula.Eq(x, formula.Const(5)), formula.Gt(y, formula.Const(0)))
	s := fromFormula(t, d, f)
	assert.Equal(t, "{x=5}", s.String())

	payload, err := d.Serialize(s)
	require.NoError(t, err)
	assert.Equal(t, "(= x 5)", string(payload))
	back, err := d.Deserialize(payload)
	require.NoError(t, err)
	implied, err := smt.NewSolver(smt.DefaultOptions()).NewSession().Implies(context.Background(), f,
		d.ToFormula(back))
	require.NoError(t, err)
	assert.True(t, implied)
}

func TestFromFormulaSolvesEqualities(t *testing.T) {
	d := explicit.New(config.NewDefault().Analysis)
	s := fromFormula(t, d, formula.Conj(formula.Eq(x, formula.Const(3)), formula.Eq(y.Scale(2), x.Add(formula.Const(1)))))
	v, ok := s.Value("y")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)

	s = fromFormula(t, d, formula.Conj(formula.Eq(x, formula.Const(3)), formula.Gt(x, formula.Const(4))))
	assert.True(t, d.IsBottom(s))

	s = fromFormula(t, d, formula.Eq(x.Scale(2), formula.Const(3)))
	assert.True(t, d.IsBottom(s))

	// disjuncts keep the values they agree on
	s = fromFormula(t, d, formula.Disj(
		formula.Conj(formula.Eq(x, formula.Const(1)), formula.Eq(y, formula.Const(7))),
		formula.Conj(formula.Eq(x, formula.Const(2)), formula.Eq(y, formula.Const(7)))))
	assert.Equal(t, "{y=7}", s.String())
}

func TestPostPre(t *testing.T) {
	d := explicit.New(config.NewDefault().Analysis)
	b := cfa.NewBuilder()
	f := b.Func("main", nil, "")
	n := b.Node(f)
	inc := b.Assign(f.Entry, n, cfa.Bind("x", x.Add(formula.Const(1))), cfa.Bind("y", formula.Var("z")))

	s := fromFormula(t, d, formula.Conj(formula.Eq(x, formula.Const(4)), formula.Eq(y, formula.Const(1))))
	post, err := d.Post(s, inc)
	require.NoError(t, err)
	assert.Equal(t, "{x=5}", post.String())

	pre, err := d.Pre(fromFormula(t, d, formula.Eq(x, formula.Const(5))), inc)
	require.NoError(t, err)
	assert.Equal(t, "{x=4}", pre.String())

	post, err = d.Post(s, b.Assume(f.Entry, n, formula.Lt(x, formula.Const(4))))
	require.NoError(t, err)
	assert.True(t, d.IsBottom(post))

	post, err = d.Post(s, b.Havoc(f.Entry, n, "x"))
	require.NoError(t, err)
	assert.Equal(t, "{y=1}", post.String())
}

func TestLattice(t *testing.T) {
	d := explicit.New(config.NewDefault().Analysis)
	a := fromFormula(t, d, formula.Conj(formula.Eq(x, formula.Const(1)), formula.Eq(y, formula.Const(2))))
	b := fromFormula(t, d, formula.Conj(formula.Eq(x, formula.Const(1)), formula.Eq(y, formula.Const(3))))
	j := d.Join(a, b)
	assert.Equal(t, "{x=1}", j.String())
	assert.True(t, d.LessOrEqual(a, j))
	assert.False(t, d.LessOrEqual(j, a))
	assert.True(t, d.LessOrEqual(d.Bottom(), a))
	assert.Equal(t, j, d.Widen(a, b, nil))
	assert.Equal(t, a, d.Join(d.Bottom(), a))
	assert.Equal(t, formula.False, d.ToFormula(d.Bottom()))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, domain.Names(), explicit.Name)
	p, err := domain.New(config.AnalysisOptions{Domain: explicit.Name})
	require.NoError(t, err)
	_, ok := p.(*explicit.Domain)
	assert.True(t, ok)
}
