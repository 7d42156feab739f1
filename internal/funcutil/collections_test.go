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

package funcutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetHelpers(t *testing.T) {
	a := map[int]bool{1: true, 3: true}
	Union(a, map[int]bool{2: true, 4: false})
	assert.Equal(t, []int{1, 2, 3}, SetToOrderedSlice(a))

	keys := SortedKeys(map[string]int{"b": 1, "a": 2, "c": 0}, func(x, y string) bool { return x > y })
	assert.Equal(t, []string{"c", "b", "a"}, keys)
}

func TestSliceHelpers(t *testing.T) {
	xs := []int{1, 2, 3, 4}
	assert.Equal(t, []string{"1", "2", "3", "4"}, Map(xs, func(x int) string { return string(rune('0' + x)) }))
	assert.Equal(t, []int{2, 4}, Filter(xs, func(x int) bool { return x%2 == 0 }))
	assert.True(t, Contains(xs, 3))
	assert.False(t, Exists(xs, func(x int) bool { return x > 4 }))
	Reverse(xs)
	assert.Equal(t, []int{4, 3, 2, 1}, xs)
}
