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
	"fmt"
)

// ErrTooComplex is returned when normalizing a formula would exceed the configured size limit
var ErrTooComplex = errors.New("formula too complex")

// A Cube is a conjunction of atoms
type Cube []Atom

// Formula returns the cube as a formula
func (c Cube) Formula() Formula {
	fs := make([]Formula, len(c))
	for i, a := range c {
		fs[i] = a
	}
	return Conj(fs...)
}

// NNF returns a formula equivalent to f in which no Not remains. Negations of atoms are rewritten into atoms.
func NNF(f Formula) Formula {
	return nnf(f, false)
}

func nnf(f Formula, neg bool) Formula {
	switch x := f.(type) {
	case Bool:
		if neg {
			return !x
		}
		return x
	case Atom:
		if neg {
			return Negate(x)
		}
		return x
	case Not:
		return nnf(x.F, !neg)
	case And:
		res := make([]Formula, len(x))
		for i, g := range x {
			res[i] = nnf(g, neg)
		}
		if neg {
			return Disj(res...)
		}
		return Conj(res...)
	case Or:
		res := make([]Formula, len(x))
		for i, g := range x {
			res[i] = nnf(g, neg)
		}
		if neg {
			return Conj(res...)
		}
		return Disj(res...)
	}
	panic(fmt.Sprintf("unexpected formula %T", f))
}

// DNF returns the cubes of a disjunctive normal form of f. An empty result denotes false; a result containing an
// empty cube denotes true. If more than limit cubes would be produced, DNF returns ErrTooComplex (limit <= 0 means
// no limit).
func DNF(f Formula, limit int) ([]Cube, error) {
	return dnf(NNF(f), limit)
}

func dnf(f Formula, limit int) ([]Cube, error) {
	switch x := f.(type) {
	case Bool:
		if x {
			return []Cube{{}}, nil
		}
		return nil, nil
	case Atom:
		return []Cube{{x}}, nil
	case Or:
		var res []Cube
		for _, g := range x {
			cubes, err := dnf(g, limit)
			if err != nil {
				return nil, err
			}
			res = append(res, cubes...)
			if limit > 0 && len(res) > limit {
				return nil, ErrTooComplex
			}
		}
		return res, nil
	case And:
		res := []Cube{{}}
		for _, g := range x {
			cubes, err := dnf(g, limit)
			if err != nil {
				return nil, err
			}
			if limit > 0 && len(res)*len(cubes) > limit {
				return nil, ErrTooComplex
			}
			product := make([]Cube, 0, len(res)*len(cubes))
			for _, left := range res {
				for _, right := range cubes {
					c := make(Cube, 0, len(left)+len(right))
					c = append(c, left...)
					c = append(c, right...)
					product = append(product, c)
				}
			}
			res = product
		}
		return res, nil
	}
	return nil, fmt.Errorf("unexpected formula %T in negation normal form", f)
}
