// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package graph turns a timeline into an ffmpeg filter graph.
//
// Nodes live in an arena and are addressed by integer id. String labels
// ("v3", "a7") exist only in the rendered filter_complex expression, so
// callers never depend on them.
package graph

import (
	"strconv"
	"strings"
)

// Kind is the media type flowing out of a node.
type Kind uint8

const (
	Video Kind = iota
	Audio
)

func (k Kind) String() string {
	if k == Audio {
		return "audio"
	}
	return "video"
}

func (k Kind) prefix() string {
	if k == Audio {
		return "a"
	}
	return "v"
}

// NodeID indexes a node in the graph arena.
type NodeID int

// NoNode marks an absent sink.
const NoNode NodeID = -1

// Ref is a node input: either an input file stream or another node.
type Ref struct {
	Kind   Kind
	Source bool
	Input  int
	Node   NodeID
}

// SourceRef references stream kind of input file index.
func SourceRef(input int, kind Kind) Ref {
	return Ref{Kind: kind, Source: true, Input: input, Node: NoNode}
}

// NodeRef references the output of node id.
func NodeRef(id NodeID, kind Kind) Ref {
	return Ref{Kind: kind, Node: id}
}

// Node is one filter chain: its inputs feed the first filter, the chain's
// output is the node's single output.
type Node struct {
	ID      NodeID
	Kind    Kind
	Inputs  []Ref
	Filters []string
}

// Graph is the compiled filter graph for one build.
type Graph struct {
	Inputs     []string
	Nodes      []Node
	VideoSink  NodeID
	AudioSink  NodeID
	DurationMs int64
}

func newGraph() *Graph {
	return &Graph{VideoSink: NoNode, AudioSink: NoNode}
}

func (g *Graph) add(kind Kind, inputs []Ref, filters ...string) NodeID {
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: kind, Inputs: inputs, Filters: filters})
	return id
}

// Append adds a node that consumes from and applies filters, returning the
// new node. The compiler uses it to attach per-target stages to a sink.
func (g *Graph) Append(from NodeID, filters ...string) NodeID {
	kind := g.Nodes[from].Kind
	return g.add(kind, []Ref{NodeRef(from, kind)}, filters...)
}

// Clone returns an independent copy so targets can extend it separately.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Inputs:     append([]string(nil), g.Inputs...),
		Nodes:      make([]Node, len(g.Nodes)),
		VideoSink:  g.VideoSink,
		AudioSink:  g.AudioSink,
		DurationMs: g.DurationMs,
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = Node{
			ID:      n.ID,
			Kind:    n.Kind,
			Inputs:  append([]Ref(nil), n.Inputs...),
			Filters: append([]string(nil), n.Filters...),
		}
	}
	return out
}

// HasAudio reports whether an audio sink was built.
func (g *Graph) HasAudio() bool { return g.AudioSink != NoNode }

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) Node { return g.Nodes[id] }

// Label renders the stream label of a node, without brackets.
func (g *Graph) Label(id NodeID) string {
	return g.Nodes[id].Kind.prefix() + strconv.Itoa(int(id))
}

// MapArg renders the -map value of a node.
func (g *Graph) MapArg(id NodeID) string {
	return "[" + g.Label(id) + "]"
}

func (g *Graph) refLabel(r Ref) string {
	if r.Source {
		return strconv.Itoa(r.Input) + ":" + r.Kind.prefix()
	}
	return g.Label(r.Node)
}

// FilterComplex renders the -filter_complex expression. Nodes are emitted in
// arena order, which is always a topological order.
func (g *Graph) FilterComplex() string {
	var b strings.Builder
	for i, n := range g.Nodes {
		if i > 0 {
			b.WriteByte(';')
		}
		for _, in := range n.Inputs {
			b.WriteByte('[')
			b.WriteString(g.refLabel(in))
			b.WriteByte(']')
		}
		b.WriteString(strings.Join(n.Filters, ","))
		b.WriteByte('[')
		b.WriteString(g.Label(n.ID))
		b.WriteByte(']')
	}
	return b.String()
}

// FilterNames returns the flattened filter names of a node, one per filter,
// splitting multi-filter expressions such as "transpose=1,transpose=1".
func (n Node) FilterNames() []string {
	var out []string
	for _, f := range n.Filters {
		for _, part := range splitTopLevel(f) {
			name, _, _ := strings.Cut(part, "=")
			out = append(out, name)
		}
	}
	return out
}

// splitTopLevel splits on commas outside single quotes.
func splitTopLevel(s string) []string {
	var parts []string
	quoted := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\'':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
