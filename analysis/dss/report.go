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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// BlockStats counts the work of a block worker
type BlockStats struct {
	// Received is the number of messages handled by the block
	Received int
	// Dropped is the number of messages implied by the states already received
	Dropped int
	// Forward and Backward are the numbers of analyses run
	Forward  int
	Backward int
	// Pruned is the number of times a postcondition was found incompatible with the preconditions sent
	Pruned int
}

// Analyses returns the number of analyses run in the block
func (s BlockStats) Analyses() int { return s.Forward + s.Backward }

// BlockReport is the report of one block
type BlockReport struct {
	ID string
	BlockStats
}

// EdgeKey identifies the messages of one kind from one block to another
type EdgeKey struct {
	From, To string
	Kind     Kind
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s -> %s (%s)", k.From, k.To, k.Kind)
}

// EdgeReport is the history of the states received on an edge
type EdgeReport struct {
	EdgeKey
	History []string
}

// Unresolved is a message that could not be handled
type Unresolved struct {
	EdgeKey
	Err error
}

// Report is the outcome of a run
type Report struct {
	// Verdict is TRUE when no violation is reachable, FALSE when a violation was traced back to the program entry,
	// and UNKNOWN when some message could not be handled
	Verdict Verdict
	// Result is the message that concluded the run, nil if there is none
	Result *Message
	// Blocks holds the statistics of every block, in the order of the graph
	Blocks []BlockReport
	// Edges holds the history of every edge that carried messages, ordered by edge
	Edges []*EdgeReport
	// Unresolved lists the messages that could not be handled
	Unresolved []Unresolved
	// Messages is the number of messages handled
	Messages int
	Elapsed  time.Duration
	// TraceFile is the file in the reports directory where the report was written, if any
	TraceFile string
}

// Status returns SAFE, UNSAFE or UNKNOWN
func (r *Report) Status() string {
	switch r.Verdict {
	case True:
		return "SAFE"
	case False:
		return "UNSAFE"
	}
	return "UNKNOWN"
}

// Block returns the report of the block with the given id, nil if there is none
func (r *Report) Block(id string) *BlockReport {
	for i := range r.Blocks {
		if r.Blocks[i].ID == id {
			return &r.Blocks[i]
		}
	}
	return nil
}

// Edge returns the history of an edge, nil if it carried no message
func (r *Report) Edge(from, to string, kind Kind) *EdgeReport {
	for _, e := range r.Edges {
		if e.EdgeKey == (EdgeKey{From: from, To: to, Kind: kind}) {
			return e
		}
	}
	return nil
}

func (r *run) report() *Report {
	rep := &Report{Verdict: True, Result: r.result, Messages: r.messages}
	for _, bs := range r.blocks {
		rep.Blocks = append(rep.Blocks, BlockReport{ID: bs.block.ID, BlockStats: bs.stats})
		for _, e := range bs.edges {
			rep.Edges = append(rep.Edges, e)
		}
		rep.Unresolved = append(rep.Unresolved, bs.unresolved...)
	}
	slices.SortFunc(rep.Edges, func(a, b *EdgeReport) bool { return lessKey(a.EdgeKey, b.EdgeKey) })
	slices.SortStableFunc(rep.Unresolved, func(a, b Unresolved) bool { return lessKey(a.EdgeKey, b.EdgeKey) })
	switch {
	case r.result != nil:
		rep.Verdict = r.result.Verdict
	case len(rep.Unresolved) > 0:
		rep.Verdict = Unknown
	}
	return rep
}

func lessKey(a, b EdgeKey) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	if a.To != b.To {
		return a.To < b.To
	}
	return a.Kind < b.Kind
}

// Write prints the report
func (r *Report) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "verdict: %s\n", r.Status())
	if r.Result != nil {
		fmt.Fprintf(&b, "result: %s\n", r.Result)
	}
	fmt.Fprintf(&b, "messages: %d\n", r.Messages)
	b.WriteString("blocks:\n")
	for _, s := range r.Blocks {
		fmt.Fprintf(&b, "  %s: %d received, %d dropped, %d forward, %d backward, %d pruned\n", s.ID, s.Received,
			s.Dropped, s.Forward, s.Backward, s.Pruned)
	}
	b.WriteString("edges:\n")
	for _, e := range r.Edges {
		fmt.Fprintf(&b, "  %s\n", e.EdgeKey)
		for i, h := range e.History {
			fmt.Fprintf(&b, "    %d: %s\n", i, h)
		}
	}
	if len(r.Unresolved) > 0 {
		b.WriteString("unresolved:\n")
		for _, u := range r.Unresolved {
			fmt.Fprintf(&b, "  %s: %v\n", u.EdgeKey, u.Err)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// save writes the report in a new file of dir
func (r *Report) save(dir string) error {
	f, err := os.CreateTemp(dir, "dss-trace-*.out")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := r.Write(f); err != nil {
		return err
	}
	r.TraceFile = f.Name()
	return nil
}
