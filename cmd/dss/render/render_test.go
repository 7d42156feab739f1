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

package render

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var file = filepath.Join("..", "..", "..", "analysis", "frontend", "testdata", "calls.go")

func TestRender(t *testing.T) {
	flags, err := NewFlags([]string{"-labels", file})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), flags, &out))
	assert.Contains(t, out.String(), "digraph")
	assert.Contains(t, out.String(), `label="B0`)
	assert.Contains(t, out.String(), "summary abs")
}

func TestRenderToFile(t *testing.T) {
	dot := filepath.Join(t.TempDir(), "blocks.dot")
	flags, err := NewFlags([]string{"-o", dot, file})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), flags, &out))
	assert.Empty(t, out.String())
	b, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.Contains(t, string(b), `label="B0`)
}
