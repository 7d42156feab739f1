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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalArithmetic(t *testing.T) {
	a := Interval{1, 3}
	assert.Equal(t, Interval{3, 8}, a.Add(Interval{2, 5}))
	assert.Equal(t, Interval{-9, -3}, a.Scale(-3))
	assert.Equal(t, Point(0), Top.Scale(0))
	assert.Equal(t, Interval{NegInf, 5}, Interval{NegInf, 2}.Add(Point(3)))
	assert.Equal(t, Interval{-4, PosInf}, Interval{NegInf, 2}.Scale(-2))
	// overflowing bounds saturate
	assert.Equal(t, Interval{2, PosInf}, Interval{0, PosInf - 1}.Add(Point(2)))
	assert.Equal(t, Interval{NegInf, -2}, Interval{NegInf + 1, 0}.Add(Point(-2)))
	assert.Equal(t, Interval{NegInf, PosInf}, Interval{PosInf / 2, PosInf / 2}.Scale(4))
	assert.True(t, Interval{2, 1}.IsEmpty())
	assert.True(t, Top.Includes(a))
	assert.False(t, a.Includes(Interval{0, 2}))
	assert.Equal(t, "[-inf,3]", Interval{NegInf, 3}.String())
}

func TestDivisions(t *testing.T) {
	assert.Equal(t, int64(2), floorDiv(7, 3))
	assert.Equal(t, int64(-3), floorDiv(-7, 3))
	assert.Equal(t, int64(3), ceilDiv(7, 3))
	assert.Equal(t, int64(-2), ceilDiv(-7, 3))
	assert.Equal(t, int64(3), ceilDiv(-7, -3))
	assert.Equal(t, int64(-2), floorDiv(6, -3))
}

func TestWidenThresholds(t *testing.T) {
	assert.Equal(t, int64(8), above(1, []int64{-1, 8, 9}))
	assert.Equal(t, PosInf, above(10, []int64{-1, 8, 9}))
	assert.Equal(t, int64(-1), below(0, []int64{-1, 8, 9}))
	assert.Equal(t, NegInf, below(-2, []int64{-1, 8, 9}))
}
