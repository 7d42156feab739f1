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

// Package dss implements the distributed summary synthesis: every block of a block graph is analyzed by its own
// worker, and the workers exchange preconditions (forward, along the exits of the blocks) and postconditions
// (backward, from the violations towards the program entry) until no message changes the state of any block, or
// until a violation is traced back to the entry of the program.
package dss

import (
	"fmt"
)

// Kind is the kind of payload of a message
type Kind int

const (
	// Precondition messages carry the states reaching the entry of the recipient
	Precondition Kind = iota
	// Postcondition messages carry states from which a violation may be reached
	Postcondition
	// Result messages end the analysis with a verdict
	Result
)

func (k Kind) String() string {
	switch k {
	case Precondition:
		return "precondition"
	case Postcondition:
		return "postcondition"
	case Result:
		return "result"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Verdict is the outcome of the analysis of a program
type Verdict int

const (
	// Unknown is the verdict of runs that could not conclude
	Unknown Verdict = iota
	// True means that no violation is reachable
	True
	// False means that a violation is reachable from the entry of the program
	False
)

func (v Verdict) String() string {
	switch v {
	case Unknown:
		return "UNKNOWN"
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Message is a message between block workers. Pre- and postconditions carry a payload; results carry a verdict.
type Message struct {
	Kind Kind
	// BlockID is the id of the sending block
	BlockID string
	// LocationID is the id of the CFA node the payload is about
	LocationID int
	// Payload is the serialized abstract state at the location
	Payload []byte
	// Target is set on the postconditions starting at a violation
	Target bool
	// Verdict is the verdict of a result
	Verdict Verdict
}

// NewPrecondition returns a precondition sent by block at loc
func NewPrecondition(block string, loc int, payload []byte) Message {
	return Message{Kind: Precondition, BlockID: block, LocationID: loc, Payload: payload}
}

// NewPostcondition returns a postcondition sent by block at loc
func NewPostcondition(block string, loc int, payload []byte, target bool) Message {
	return Message{Kind: Postcondition, BlockID: block, LocationID: loc, Payload: payload, Target: target}
}

// NewResult returns a result sent by block at loc
func NewResult(block string, loc int, verdict Verdict) Message {
	return Message{Kind: Result, BlockID: block, LocationID: loc, Verdict: verdict}
}

func (m Message) String() string {
	switch m.Kind {
	case Result:
		return fmt.Sprintf("result(%s at N%d: %s)", m.BlockID, m.LocationID, m.Verdict)
	case Postcondition:
		if m.Target {
			return fmt.Sprintf("postcondition(%s at target N%d: %s)", m.BlockID, m.LocationID, m.Payload)
		}
	}
	return fmt.Sprintf("%s(%s at N%d: %s)", m.Kind, m.BlockID, m.LocationID, m.Payload)
}
