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
	"fmt"
	"math"
)

const (
	// NegInf is the lower bound of intervals unbounded below
	NegInf int64 = math.MinInt64
	// PosInf is the upper bound of intervals unbounded above
	PosInf int64 = math.MaxInt64
)

// Interval is the set of integers between Lo and Hi, bounds included. The interval is empty when Lo > Hi.
type Interval struct {
	Lo, Hi int64
}

// Top is the interval of all integers
var Top = Interval{NegInf, PosInf}

// Point returns the interval containing only c
func Point(c int64) Interval { return Interval{c, c} }

// IsEmpty returns true when the interval contains no integer
func (i Interval) IsEmpty() bool { return i.Lo > i.Hi }

// IsTop returns true when the interval is unbounded on both sides
func (i Interval) IsTop() bool { return i.Lo == NegInf && i.Hi == PosInf }

// Includes returns true when j is a subset of i
func (i Interval) Includes(j Interval) bool {
	return j.IsEmpty() || (i.Lo <= j.Lo && j.Hi <= i.Hi)
}

// Hull returns the smallest interval containing i and j
func (i Interval) Hull(j Interval) Interval {
	if i.IsEmpty() {
		return j
	}
	if j.IsEmpty() {
		return i
	}
	return Interval{min(i.Lo, j.Lo), max(i.Hi, j.Hi)}
}

// Meet returns the intersection of i and j
func (i Interval) Meet(j Interval) Interval {
	return Interval{max(i.Lo, j.Lo), min(i.Hi, j.Hi)}
}

// Add returns the interval of the sums of elements of i and j
func (i Interval) Add(j Interval) Interval {
	return Interval{add(i.Lo, j.Lo, true), add(i.Hi, j.Hi, false)}
}

// Scale returns the interval of the products of elements of i with k
func (i Interval) Scale(k int64) Interval {
	switch {
	case k == 0:
		return Point(0)
	case k > 0:
		return Interval{mul(i.Lo, k, true), mul(i.Hi, k, false)}
	default:
		return Interval{mul(i.Hi, k, true), mul(i.Lo, k, false)}
	}
}

func (i Interval) String() string {
	if i.IsEmpty() {
		return "[]"
	}
	lo, hi := "-inf", "+inf"
	if i.Lo != NegInf {
		lo = fmt.Sprint(i.Lo)
	}
	if i.Hi != PosInf {
		hi = fmt.Sprint(i.Hi)
	}
	return "[" + lo + "," + hi + "]"
}

func isInf(b int64) bool { return b == NegInf || b == PosInf }

// saturate returns the infinite bound of the side: a lower bound that cannot be represented is unbounded below,
// an upper bound unbounded above
func saturate(lower bool) int64 {
	if lower {
		return NegInf
	}
	return PosInf
}

func add(a, b int64, lower bool) int64 {
	if isInf(a) || isInf(b) {
		return saturate(lower)
	}
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) || isInf(s) {
		return saturate(lower)
	}
	return s
}

func mul(a, k int64, lower bool) int64 {
	if isInf(a) {
		return saturate(lower)
	}
	if a == 0 {
		return 0
	}
	p := a * k
	if p/k != a || p/a != k || isInf(p) {
		return saturate(lower)
	}
	return p
}

// floorDiv and ceilDiv divide rounding towards negative and positive infinity; b is not zero
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}
