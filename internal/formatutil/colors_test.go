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

package formatutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// tests do not run in a terminal, so colors are not applied
func TestStatus(t *testing.T) {
	assert.Equal(t, "SAFE", Status("SAFE"))
	assert.Equal(t, "UNSAFE", Status("UNSAFE"))
	assert.Equal(t, "UNKNOWN", Status("UNKNOWN"))
	assert.Equal(t, "x", Bold("x"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `a\x1b[1mb`, Sanitize("a\033[1mb"))
	assert.Equal(t, `line\n`, Sanitize("line\n"))
}
