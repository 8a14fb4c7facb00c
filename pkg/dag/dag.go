// Package dag implements a generic labelled directed graph used to represent
// the combined execution graph of a pipeline run: Step, Variable, Dataset,
// and Plugin nodes connected by input/output/uses/precedes/is_instance_of
// edges.
package dag

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [Graph.TopoSort] and [Graph.Validate]
	// when a cycle is detected. Cycle detection uses depth-first search with
	// white/gray/black coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")

	// ErrUnknownNode is returned by [Graph.MergeInto] when either argument
	// does not name an existing node.
	ErrUnknownNode = errors.New("unknown node")
)

// Type identifies the entity kind a node represents.
type Type int

const (
	// TypeStep is a unit of execution bound to a Plugin.
	TypeStep Type = iota
	// TypeVariable is a named input or output slot of a Step.
	TypeVariable
	// TypeDataset is a concrete, fetchable artifact bound to a Variable via
	// an is_instance_of edge.
	TypeDataset
	// TypePlugin is the containerized implementation a Step uses.
	TypePlugin
)

// String returns a human-readable name for the node type, used in rendering
// and logging.
func (t Type) String() string {
	switch t {
	case TypeStep:
		return "Step"
	case TypeVariable:
		return "Variable"
	case TypeDataset:
		return "Dataset"
	case TypePlugin:
		return "Plugin"
	default:
		return "Unknown"
	}
}

// Label identifies the semantic role of an edge.
type Label int

const (
	// LabelInput connects a Variable to the Step that consumes it.
	LabelInput Label = iota
	// LabelOutput connects a Variable to the Step that produces it.
	LabelOutput
	// LabelUses connects a Step to the Plugin it runs.
	LabelUses
	// LabelPrecedes connects a Step to a Step that runs after it.
	LabelPrecedes
	// LabelInstanceOf connects a Variable to the Dataset it is bound to.
	LabelInstanceOf
)

// Metadata stores arbitrary key-value pairs attached to nodes or edges, such
// as a node's title or a Dataset's access URLs.
type Metadata map[string]any

// Node is a vertex identified by its IRI.
type Node struct {
	ID   string // IRI
	Type Type
	Meta Metadata // never nil after AddNode
}

// Edge is a directed, labelled connection between two nodes.
type Edge struct {
	From  string
	To    string
	Label Label
	Meta  Metadata // never nil after AddEdge
}

// Graph is a directed graph of Step/Variable/Dataset/Plugin nodes.
//
// The zero value is not usable - use New to create a valid Graph instance.
// Graph is not safe for concurrent use without external synchronization.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]int // nodeID -> indices into edges
	incoming map[string][]int // nodeID -> indices into edges
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]int),
		incoming: make(map[string][]int),
	}
}

// AddNode adds a node to the graph. Returns ErrInvalidNodeID if the node ID
// is empty, or ErrDuplicateNodeID if a node with the same ID already exists.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	g.nodes[node.ID] = node
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Returns
// ErrUnknownSourceNode or ErrUnknownTargetNode if an endpoint is missing.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], idx)
	g.incoming[e.To] = append(g.incoming[e.To], idx)
	return nil
}

// RemoveEdge removes the first from->to edge with the given label, if any.
func (g *Graph) RemoveEdge(from, to string, label Label) {
	for i, e := range g.edges {
		if e.From == from && e.To == to && e.Label == label {
			g.removeEdgeAt(i)
			return
		}
	}
}

func (g *Graph) removeEdgeAt(i int) {
	e := g.edges[i]
	g.edges = slices.Delete(g.edges, i, i+1)
	g.outgoing[e.From] = removeIndex(g.outgoing[e.From], i)
	g.incoming[e.To] = removeIndex(g.incoming[e.To], i)
	for id, idxs := range g.outgoing {
		g.outgoing[id] = shiftIndices(idxs, i)
	}
	for id, idxs := range g.incoming {
		g.incoming[id] = shiftIndices(idxs, i)
	}
}

func removeIndex(idxs []int, target int) []int {
	return slices.DeleteFunc(slices.Clone(idxs), func(i int) bool { return i == target })
}

func shiftIndices(idxs []int, removed int) []int {
	out := make([]int, 0, len(idxs))
	for _, i := range idxs {
		if i == removed {
			continue
		}
		if i > removed {
			i--
		}
		out = append(out, i)
	}
	return out
}

// Node returns the node with the given ID and true, or nil and false.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in the graph. The order is not guaranteed.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// Edges returns a copy of all edges, in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the IDs of nodes reachable via an outgoing edge from id,
// optionally filtered to a single label. Pass -1 for all labels.
func (g *Graph) Children(id string, label Label) []string {
	return g.adjacent(g.outgoing[id], func(e Edge) (string, bool) {
		if label >= 0 && e.Label != label {
			return "", false
		}
		return e.To, true
	})
}

// Parents returns the IDs of nodes with an outgoing edge to id, optionally
// filtered to a single label. Pass -1 for all labels.
func (g *Graph) Parents(id string, label Label) []string {
	return g.adjacent(g.incoming[id], func(e Edge) (string, bool) {
		if label >= 0 && e.Label != label {
			return "", false
		}
		return e.From, true
	})
}

func (g *Graph) adjacent(idxs []int, pick func(Edge) (string, bool)) []string {
	var result []string
	for _, i := range idxs {
		if id, ok := pick(g.edges[i]); ok {
			result = append(result, id)
		}
	}
	return result
}

// OutDegree returns the number of outgoing edges from the node.
func (g *Graph) OutDegree(id string) int { return len(g.outgoing[id]) }

// InDegree returns the number of incoming edges to the node.
func (g *Graph) InDegree(id string) int { return len(g.incoming[id]) }

// NodesOfType returns all nodes of the given type. The order is not
// guaranteed.
func (g *Graph) NodesOfType(t Type) []*Node {
	var result []*Node
	for _, n := range g.nodes {
		if n.Type == t {
			result = append(result, n)
		}
	}
	return result
}

// TopoSort returns the node IDs of the graph in topological order: every
// node appears after all of its predecessors. Returns ErrGraphHasCycle if
// the graph is not acyclic.
func (g *Graph) TopoSort() ([]string, error) {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range g.Children(id, -1) {
			switch color[child] {
			case white:
				dfs(child)
				if hasCycle {
					return
				}
			case gray:
				hasCycle = true
				return
			}
		}
		color[id] = black
		order = append(order, id)
	}

	// Deterministic iteration order keeps output stable for equal inputs.
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if color[id] == white {
			dfs(id)
			if hasCycle {
				return nil, ErrGraphHasCycle
			}
		}
	}

	slices.Reverse(order)
	return order, nil
}

// DeleteNode removes a node and every edge touching it. Returns
// ErrUnknownNode if id does not name an existing node.
func (g *Graph) DeleteNode(id string) error {
	if _, ok := g.nodes[id]; !ok {
		return ErrUnknownNode
	}

	kept := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.From == id || e.To == id {
			continue
		}
		kept = append(kept, e)
	}

	g.edges = nil
	g.outgoing = make(map[string][]int)
	g.incoming = make(map[string][]int)
	delete(g.nodes, id)

	for _, e := range kept {
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.outgoing[e.From] = append(g.outgoing[e.From], idx)
		g.incoming[e.To] = append(g.incoming[e.To], idx)
	}
	return nil
}

// Validate reports whether the graph is acyclic.
func (g *Graph) Validate() error {
	_, err := g.TopoSort()
	return err
}

// MergeInto folds alias's adjacency into canonical and removes alias from
// the graph. Every edge touching alias is rewritten to touch canonical
// instead; self-edges created by the rewrite (canonical->canonical) are
// dropped. Returns ErrUnknownNode if either node is missing. The merge is
// applied before the graph is checked for cycles: if the merged graph
// contains a cycle, ErrGraphHasCycle is returned and the merge is not
// undone.
func (g *Graph) MergeInto(canonical, alias string) error {
	if canonical == alias {
		return nil
	}
	if _, ok := g.nodes[canonical]; !ok {
		return ErrUnknownNode
	}
	if _, ok := g.nodes[alias]; !ok {
		return ErrUnknownNode
	}

	rewritten := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.From == alias {
			e.From = canonical
		}
		if e.To == alias {
			e.To = canonical
		}
		if e.From == canonical && e.To == canonical {
			continue
		}
		rewritten = append(rewritten, e)
	}

	g.edges = nil
	g.outgoing = make(map[string][]int)
	g.incoming = make(map[string][]int)
	delete(g.nodes, alias)

	for _, e := range rewritten {
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.outgoing[e.From] = append(g.outgoing[e.From], idx)
		g.incoming[e.To] = append(g.incoming[e.To], idx)
	}

	if err := g.Validate(); err != nil {
		return err
	}
	return nil
}
