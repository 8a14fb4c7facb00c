// Package render draws the combined execution graph as a node-link diagram
// using Graphviz, with a fixed fill color per node type.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/YArzumanyan/data-factory/pkg/dag"
)

// colorFor returns the fill color for a node of the given type.
func colorFor(t dag.Type) string {
	switch t {
	case dag.TypeStep:
		return "#80bfff"
	case dag.TypeVariable:
		return "#90ee90"
	case dag.TypeDataset:
		return "#900090"
	case dag.TypePlugin:
		return "#ffb3ba"
	default:
		return "white"
	}
}

// ToDOT converts a combined execution graph to Graphviz DOT source.
func ToDOT(g *dag.Graph, title string) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	if title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", title)
	}
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"white\";\n")
	buf.WriteString("  node [shape=box, style=filled, fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, edgeLabel(e.Label))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtAttrs(n *dag.Node) []string {
	return []string{
		fmt.Sprintf("label=%q", n.ID),
		fmt.Sprintf("fillcolor=%q", colorFor(n.Type)),
	}
}

func edgeLabel(l dag.Label) string {
	switch l {
	case dag.LabelInput:
		return "input"
	case dag.LabelOutput:
		return "output"
	case dag.LabelUses:
		return "uses"
	case dag.LabelPrecedes:
		return "precedes"
	case dag.LabelInstanceOf:
		return "is_instance_of"
	default:
		return ""
	}
}

// RenderSVG renders DOT source to SVG using an in-process Graphviz engine.
func RenderSVG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.SVG)
}

// RenderPNG renders DOT source to PNG using an in-process Graphviz engine.
func RenderPNG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.PNG)
}

func renderFormat(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
