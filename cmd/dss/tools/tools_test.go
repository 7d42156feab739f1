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

package tools

import (
	"testing"

	"github.com/awslabs/ar-go-dss/analysis/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHintForErrorMessage(t *testing.T) {
	assert.Contains(t, HintForErrorMessage("could not load program: -: named files must be .go files: -v"),
		"flags should be before")
	assert.Contains(t, HintForErrorMessage("could not load program: no packages"), "right arguments")
	assert.Contains(t, HintForErrorMessage("could not translate program: main.go:3:2: unsupported construct: x"),
		"//dss:havoc")
	assert.Contains(t, HintForErrorMessage("could not translate program: no main package"), "-entry")
	assert.Empty(t, HintForErrorMessage("something else"))
}

func TestCommonFlags(t *testing.T) {
	flags, err := NewCommonFlags("verify", []string{"-verbose", "-entry", "run", "main.go"}, "usage")
	require.NoError(t, err)
	assert.True(t, flags.Verbose)
	assert.Equal(t, "run", flags.Entry)
	assert.Empty(t, flags.ConfigPath)
	assert.Equal(t, []string{"main.go"}, flags.FlagSet.Args())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("", false)
	require.NoError(t, err)
	assert.Equal(t, int(config.InfoLevel), cfg.LogLevel)

	cfg, err = LoadConfig("", true)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose())

	_, err = LoadConfig("does-not-exist.yaml", false)
	assert.Error(t, err)
}
