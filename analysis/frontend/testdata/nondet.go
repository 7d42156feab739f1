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

package main

func assert(ok bool) {
	if !ok {
		panic("assertion failed")
	}
}

//dss:havoc
func flip() bool {
	return false
}

func main() {
	x := 1
	if flip() {
		x = 2
	}
	assert(x > 0)
	if x > 1 {
		panic("x was flipped")
	}
}
