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

// Package render provides functions to render block graphs in the GraphViz format.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/awslabs/ar-go-dss/analysis/blockgraph"
	"github.com/awslabs/ar-go-dss/analysis/cfa"
	"github.com/awslabs/ar-go-dss/internal/funcutil"
	"github.com/emicklei/dot"
)

// Colors of the locations
const (
	TargetColor     = "tomato"
	LoopHeaderColor = "gold"
	CallColor       = "lightblue"
	ReturnSiteColor = "palegreen"
)

// Options control what is rendered
type Options struct {
	// Nested renders the nested graphs of the loop blocks as clusters inside the cluster of the block
	Nested bool
	// EdgeLabels labels the CFA edges with their statement or condition
	EdgeLabels bool
}

// style is the GraphViz style of a location
type style struct {
	fill  string
	shape string
}

// styleOf colors targets, loop headers, call nodes and return sites, in that priority order
func styleOf(n *cfa.Node) style {
	switch {
	case n.Target:
		return style{fill: TargetColor, shape: "doubleoctagon"}
	case n.LoopHeader:
		return style{fill: LoopHeaderColor, shape: "box"}
	case n.IsCall():
		return style{fill: CallColor, shape: "ellipse"}
	case n.IsReturnSite():
		return style{fill: ReturnSiteColor, shape: "ellipse"}
	}
	return style{shape: "ellipse"}
}

// BlockGraphDot returns the GraphViz graph of g: every block is a cluster containing its locations, and the CFA
// edges between the locations of the graph are drawn, dashed when they cross a block boundary. Exits to nodes
// outside the graph are not drawn.
func BlockGraphDot(g *blockgraph.Graph, opts Options) *dot.Graph {
	root := dot.NewGraph(dot.Directed)
	root.Attr("compound", "true")
	r := &renderer{opts: opts, nodes: map[*cfa.Node]dot.Node{}, owner: map[*cfa.Node]*blockgraph.Block{}}
	for _, b := range g.Blocks {
		r.addBlock(root, b)
	}
	for _, b := range g.Blocks {
		for _, n := range b.SortedNodes() {
			for _, e := range n.Leaving {
				r.addEdge(root, e)
			}
			if n.SummaryLeaving != nil {
				r.addEdge(root, n.SummaryLeaving)
			}
		}
	}
	return root
}

type renderer struct {
	opts  Options
	nodes map[*cfa.Node]dot.Node
	// owner is the innermost block of every location rendered
	owner map[*cfa.Node]*blockgraph.Block
}

func (r *renderer) addBlock(parent *dot.Graph, b *blockgraph.Block) {
	sub := parent.Subgraph(b.ID, dot.ClusterOption{})
	label := b.ID
	if b.Loop {
		label += " (loop)"
	}
	sub.Attr("label", label)
	if r.opts.Nested && b.Nested != nil {
		for _, nb := range b.Nested.Blocks {
			r.addBlock(sub, nb)
		}
	}
	for _, n := range b.SortedNodes() {
		if _, done := r.nodes[n]; done {
			continue
		}
		s := styleOf(n)
		dn := sub.Node(strconv.Itoa(n.ID)).Label(fmt.Sprintf("%s\n%s", n, n.Function)).Attr("shape", s.shape)
		if s.fill != "" {
			dn = dn.Attr("style", "filled").Attr("fillcolor", s.fill)
		}
		if n == b.Entry {
			dn = dn.Attr("penwidth", "2")
		}
		r.nodes[n] = dn
		r.owner[n] = b
	}
}

func (r *renderer) addEdge(root *dot.Graph, e *cfa.Edge) {
	from, ok := r.nodes[e.From]
	if !ok {
		return
	}
	to, ok := r.nodes[e.To]
	if !ok {
		return
	}
	de := root.Edge(from, to)
	if r.opts.EdgeLabels {
		if label := e.String(); label != "" {
			de = de.Label(label)
		}
	}
	switch e.Kind {
	case cfa.CallEdge, cfa.ReturnEdge:
		de = de.Attr("color", "blue")
	case cfa.SummaryEdge:
		de = de.Attr("color", "gray").Dotted()
	}
	if r.owner[e.From] != r.owner[e.To] {
		de.Dashed()
	}
}

// WriteGraphviz writes the GraphViz representation of the block graph to w
func WriteGraphviz(g *blockgraph.Graph, opts Options, w io.Writer) error {
	if _, err := io.WriteString(w, BlockGraphDot(g, opts).String()); err != nil {
		return fmt.Errorf("error while writing graph: %w", err)
	}
	return nil
}

// GraphvizToFile writes the GraphViz representation of the block graph in the file filename
func GraphvizToFile(g *blockgraph.Graph, opts Options, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := WriteGraphviz(g, opts, w); err != nil {
		return err
	}
	return w.Flush()
}

// WriteCFA writes a textual listing of the locations and edges of c, grouped by function
func WriteCFA(c *cfa.CFA, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, name := range funcutil.SortedKeys(c.Functions, func(a, b string) bool { return a < b }) {
		f := c.Functions[name]
		fmt.Fprintf(bw, "func %s: entry %s, exit %s\n", name, f.Entry, f.Exit)
		for _, n := range c.Nodes {
			if n.Function != name {
				continue
			}
			for _, e := range n.Leaving {
				fmt.Fprintf(bw, "  %s -> %s: %s\n", e.From, e.To, e)
			}
			if e := n.SummaryLeaving; e != nil {
				fmt.Fprintf(bw, "  %s -> %s: %s\n", e.From, e.To, e)
			}
		}
	}
	return bw.Flush()
}
