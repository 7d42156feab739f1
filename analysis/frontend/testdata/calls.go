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
func input() int {
	return 0
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

func main() {
	x := abs(input())
	assert(x >= 0)
}
