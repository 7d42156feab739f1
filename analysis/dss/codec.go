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
	"errors"
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedMessage is returned when a message cannot be decoded
var ErrMalformedMessage = errors.New("malformed message")

// envelope is the wire representation of a message
type envelope struct {
	Kind       int    `msgpack:"kind"`
	Block      string `msgpack:"block"`
	Loc        int    `msgpack:"loc"`
	Target     bool   `msgpack:"target,omitempty"`
	Verdict    int    `msgpack:"verdict,omitempty"`
	Payload    []byte `msgpack:"payload,omitempty"`
	Compressed bool   `msgpack:"compressed,omitempty"`
}

// Encode returns the wire representation of m. When compress is set, the payload is compressed with s2.
func Encode(m Message, compress bool) ([]byte, error) {
	if err := check(m); err != nil {
		return nil, err
	}
	env := envelope{
		Kind:    int(m.Kind),
		Block:   m.BlockID,
		Loc:     m.LocationID,
		Target:  m.Target,
		Verdict: int(m.Verdict),
		Payload: m.Payload,
	}
	if compress && len(m.Payload) > 0 {
		env.Payload = s2.Encode(nil, m.Payload)
		env.Compressed = true
	}
	b, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", m, err)
	}
	return b, nil
}

// Decode returns the message encoded in b. Errors wrap ErrMalformedMessage.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	m := Message{
		Kind:       Kind(env.Kind),
		BlockID:    env.Block,
		LocationID: env.Loc,
		Target:     env.Target,
		Verdict:    Verdict(env.Verdict),
		Payload:    env.Payload,
	}
	if env.Compressed {
		payload, err := s2.Decode(nil, env.Payload)
		if err != nil {
			return Message{}, fmt.Errorf("%w: payload: %v", ErrMalformedMessage, err)
		}
		m.Payload = payload
	}
	if err := check(m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// check verifies that m carries exactly the fields of its kind
func check(m Message) error {
	if m.BlockID == "" {
		return fmt.Errorf("%w: no sender", ErrMalformedMessage)
	}
	if m.LocationID < 0 {
		return fmt.Errorf("%w: location %d", ErrMalformedMessage, m.LocationID)
	}
	switch m.Kind {
	case Precondition, Postcondition:
		if m.Verdict != Unknown {
			return fmt.Errorf("%w: %s with a verdict", ErrMalformedMessage, m.Kind)
		}
		if m.Target && m.Kind == Precondition {
			return fmt.Errorf("%w: target precondition", ErrMalformedMessage)
		}
	case Result:
		if len(m.Payload) > 0 || m.Target {
			return fmt.Errorf("%w: result with a payload", ErrMalformedMessage)
		}
		if m.Verdict != True && m.Verdict != False {
			return fmt.Errorf("%w: verdict %s", ErrMalformedMessage, m.Verdict)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrMalformedMessage, int(m.Kind))
	}
	return nil
}
