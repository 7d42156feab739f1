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

package dss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestCodecRoundTrip(t *testing.T) {
	payload := []byte("(and (= x 5) (<= (- 1 y) 0))")
	messages := []Message{
		NewPrecondition("B0", 3, payload),
		NewPostcondition("B1", 4, payload, true),
		NewPostcondition("B1.0", 0, payload, false),
		NewResult("B0", 0, False),
	}
	for _, compress := range []bool{false, true} {
		for _, m := range messages {
			b, err := Encode(m, compress)
			require.NoError(t, err)
			got, err := Decode(b)
			require.NoError(t, err)
			assert.Equal(t, m, got, "compress=%t", compress)
		}
	}
}

func TestCodecCompresses(t *testing.T) {
	payload := make([]byte, 0, 4096)
	for len(payload) < 4000 {
		payload = append(payload, "(<= (- x 10) 0) "...)
	}
	m := NewPrecondition("B0", 1, payload)
	plain, err := Encode(m, false)
	require.NoError(t, err)
	compressed, err := Encode(m, true)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(plain))
}

func TestDecodeErrors(t *testing.T) {
	encode := func(env envelope) []byte {
		b, err := msgpack.Marshal(&env)
		require.NoError(t, err)
		return b
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0xc1, 0x00, 0x01}},
		{"empty", nil},
		{"unknown kind", encode(envelope{Kind: 7, Block: "B0"})},
		{"no sender", encode(envelope{Kind: int(Precondition)})},
		{"negative location", encode(envelope{Kind: int(Precondition), Block: "B0", Loc: -1})},
		{"target precondition", encode(envelope{Kind: int(Precondition), Block: "B0", Target: true})},
		{"result with payload", encode(envelope{Kind: int(Result), Block: "B0", Verdict: int(False),
			Payload: []byte("true")})},
		{"result without verdict", encode(envelope{Kind: int(Result), Block: "B0"})},
		{"corrupted payload", encode(envelope{Kind: int(Precondition), Block: "B0", Payload: []byte{0xff, 0xff},
			Compressed: true})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(tt.data)
			assert.ErrorIs(t, err, ErrMalformedMessage)
			assert.Equal(t, Message{}, m)
		})
	}
}

func TestEncodeRejectsInvalidMessages(t *testing.T) {
	_, err := Encode(Message{Kind: Result, BlockID: "B0"}, false)
	assert.ErrorIs(t, err, ErrMalformedMessage)
	_, err = Encode(Message{Kind: Precondition, BlockID: "B0", Verdict: True}, false)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, "precondition(B0 at N3: true)", NewPrecondition("B0", 3, []byte("true")).String())
	assert.Equal(t, "postcondition(B1 at target N4: true)", NewPostcondition("B1", 4, []byte("true"), true).String())
	assert.Equal(t, "result(B0 at N0: FALSE)", NewResult("B0", 0, False).String())
}
