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

// Package smt defines the interface of the decision procedure used by the block analyses, together with a
// reference implementation for quantifier-free linear integer arithmetic.
//
// A Solver hands out sessions. A session is owned by a single block worker: it is not safe for concurrent use, and
// it may keep warm state (a query cache) between calls.
package smt

import (
	"context"
	"errors"

	"github.com/awslabs/ar-go-dss/analysis/formula"
)

// ErrTooComplex is returned when a query exceeds the solver's resource bounds. It wraps formula.ErrTooComplex so
// that callers can test either.
var ErrTooComplex = formula.ErrTooComplex

// Solver creates sessions
type Solver interface {
	NewSession() Session
}

// Session answers satisfiability queries
type Session interface {
	// Sat returns true when f has an integer model (or, for queries outside the exact fragment of the solver, a
	// rational one).
	Sat(ctx context.Context, f formula.Formula) (bool, error)

	// Implies returns true when every model of a is a model of b
	Implies(ctx context.Context, a, b formula.Formula) (bool, error)

	// Stats returns the query counters of the session
	Stats() Stats
}

// Stats counts the queries answered by a session
type Stats struct {
	Queries   int
	CacheHits int
}

// Options bounds the work of the reference solver
type Options struct {
	// MaxCubes is the maximum number of disjuncts of the disjunctive normal form of a query
	MaxCubes int
	// MaxConstraints is the maximum number of constraints produced during variable elimination
	MaxConstraints int
}

// DefaultOptions returns the bounds used when none are configured
func DefaultOptions() Options {
	return Options{MaxCubes: 4096, MaxConstraints: 4096}
}

// IsTooComplex returns true when err signals a resource bound
func IsTooComplex(err error) bool {
	return errors.Is(err, ErrTooComplex)
}

// Equivalent returns true when a and b have the same models
func Equivalent(ctx context.Context, s Session, a, b formula.Formula) (bool, error) {
	ab, err := s.Implies(ctx, a, b)
	if err != nil || !ab {
		return false, err
	}
	return s.Implies(ctx, b, a)
}
