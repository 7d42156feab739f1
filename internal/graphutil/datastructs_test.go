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

package graphutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackSharing(t *testing.T) {
	var empty *Stack[int]
	assert.Equal(t, 0, empty.Len())
	_, ok := empty.Peek()
	assert.False(t, ok)
	assert.Nil(t, empty.Pop())

	base := empty.Push(1).Push(2)
	left := base.Push(3)
	right := base.Push(4)

	assert.Equal(t, []int{1, 2, 3}, left.Slice())
	assert.Equal(t, []int{1, 2, 4}, right.Slice())
	assert.Equal(t, []int{1, 2}, base.Slice())
	assert.Same(t, base, left.Pop())
	assert.Same(t, base, right.Pop())

	top, ok := right.Peek()
	assert.True(t, ok)
	assert.Equal(t, 4, top)
	assert.Equal(t, 3, right.Len())
}
