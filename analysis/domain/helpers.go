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

package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/analysis/formula"
	"golang.org/x/exp/slices"
)

// Unsupported implements the Serializer and SummaryHandler interfaces by failing. Domains embed it for the
// operations they do not provide.
type Unsupported struct {
	// Domain is the name of the embedding domain, used in error messages
	Domain string
}

// Serialize fails with ErrUnsupportedOperation
func (u Unsupported) Serialize(State) ([]byte, error) {
	return nil, fmt.Errorf("%w: domain %s cannot serialize states", ErrUnsupportedOperation, u.Domain)
}

// Deserialize fails with ErrUnsupportedOperation
func (u Unsupported) Deserialize([]byte) (State, error) {
	return nil, fmt.Errorf("%w: domain %s cannot deserialize states", ErrUnsupportedOperation, u.Domain)
}

// IsSummaryApplicable returns false
func (u Unsupported) IsSummaryApplicable(*cfa.Edge, State) bool { return false }

// ApplyFunctionSummary fails with ErrUnsupportedOperation
func (u Unsupported) ApplyFunctionSummary(e *cfa.Edge, _ State) (State, error) {
	return nil, fmt.Errorf("%w: domain %s has no summary for %s", ErrUnsupportedOperation, u.Domain, e.Callee)
}

// FormulaSerializer serializes states as the SMT-LIB text of their formula. Domains embed it with their
// own Domain to implement Serializer.
type FormulaSerializer struct {
	Domain Domain
}

// Serialize returns the text of the formula of s
func (f FormulaSerializer) Serialize(s State) ([]byte, error) {
	return []byte(f.Domain.ToFormula(s).String()), nil
}

// Deserialize parses the payload and abstracts the formula
func (f FormulaSerializer) Deserialize(payload []byte) (State, error) {
	phi, err := formula.Parse(string(payload))
	if err != nil {
		return nil, fmt.Errorf("deserializing %s state: %w", f.Domain.Name(), err)
	}
	return f.Domain.FromFormula(phi)
}

// HavocSummary implements SummaryHandler for programs where a call only changes its result: it applies the
// havoc of the summary edge.
type HavocSummary struct {
	Domain Domain
}

// IsSummaryApplicable returns true for summary edges
func (h HavocSummary) IsSummaryApplicable(e *cfa.Edge, _ State) bool {
	return e.Kind == cfa.SummaryEdge
}

// ApplyFunctionSummary havocs the result of the call
func (h HavocSummary) ApplyFunctionSummary(e *cfa.Edge, s State) (State, error) {
	return h.Domain.Post(s, &cfa.Edge{Kind: cfa.StatementEdge, From: e.From, To: e.To, Havoc: e.Havoc})
}

// Thresholds returns the widening thresholds of a set of formulas: the constants they compare variables with,
// and their neighbours
func Thresholds(fs ...formula.Formula) []int64 {
	set := map[int64]bool{}
	for _, f := range fs {
		for _, c := range formula.Constants(f) {
			set[c] = true
			if c > math.MinInt64 {
				set[c-1] = true
			}
			if c < math.MaxInt64 {
				set[c+1] = true
			}
		}
	}
	res := make([]int64, 0, len(set))
	for c := range set {
		res = append(res, c)
	}
	slices.Sort(res)
	return res
}

// IsLocalTo returns true when the variable is a local of the function. Variables of a function are prefixed by
// its name and "::".
func IsLocalTo(v, function string) bool {
	return strings.HasPrefix(v, function+"::")
}
