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

import "github.com/awslabs/ar-go-dss/internal/funcutil"

// Stack is an immutable stack with structural sharing. The nil *Stack is the empty stack. Pushing returns a new
// stack whose tail is the receiver, so sibling stacks forked from the same parent never alias mutable state.
type Stack[T any] struct {
	tail  *Stack[T]
	head  T
	depth int
}

// Push returns the stack with x on top of s
func (s *Stack[T]) Push(x T) *Stack[T] {
	return &Stack[T]{tail: s, head: x, depth: s.Len() + 1}
}

// Pop returns the stack without its top element. Popping the empty stack returns the empty stack.
func (s *Stack[T]) Pop() *Stack[T] {
	if s == nil {
		return nil
	}
	return s.tail
}

// Peek returns the top of the stack. ok is false when the stack is empty.
func (s *Stack[T]) Peek() (x T, ok bool) {
	if s == nil {
		return x, false
	}
	return s.head, true
}

// Len returns the number of elements in the stack
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// Slice returns the elements of the stack from bottom to top
func (s *Stack[T]) Slice() []T {
	var res []T
	for cur := s; cur != nil; cur = cur.tail {
		res = append(res, cur.head)
	}
	funcutil.Reverse(res)
	return res
}
