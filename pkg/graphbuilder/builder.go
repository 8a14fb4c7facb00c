// Package graphbuilder recursively discovers a pipeline's cross-pipeline
// dependencies from the metadata store and assembles them into one
// normalized execution graph.
package graphbuilder

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/YArzumanyan/data-factory/pkg/dag"
	"github.com/YArzumanyan/data-factory/pkg/errors"
	"github.com/YArzumanyan/data-factory/pkg/semgraph"
	"github.com/YArzumanyan/data-factory/pkg/turtle"
)

// Builder discovers and assembles the combined execution graph for a
// pipeline and its transitive dependencies.
type Builder struct {
	client *MetadataClient
	logger *log.Logger
}

// New creates a Builder using client to fetch pipeline documents, logging
// per-pipeline warnings through logger.
func New(client *MetadataClient, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Builder{client: client, logger: logger}
}

// Build fetches startUUID and all pipelines it transitively depends on,
// merges their triples into one graph, and normalizes it. regenerate names
// Dataset UUIDs: a dependency is only followed back to its generating
// pipeline when the Dataset it produces appears in this set. Datasets not
// in regenerate are treated as already materialized; their accessURL is
// used directly and the generating pipeline is never fetched.
func (b *Builder) Build(ctx context.Context, startUUID string, regenerate []string) (*dag.Graph, error) {
	regenerateSet := make(map[string]bool, len(regenerate))
	for _, id := range regenerate {
		regenerateSet[id] = true
	}

	g := dag.New()
	processed := make(map[string]bool)
	queue := []string{startUUID}

	for len(queue) > 0 {
		uuid := queue[0]
		queue = queue[1:]

		if processed[uuid] {
			continue
		}
		processed[uuid] = true

		doc, err := b.client.FetchPipeline(ctx, uuid)
		if err != nil {
			b.logger.Warn("failed to fetch pipeline, skipping", "uuid", uuid, "err", err)
			continue
		}

		triples, err := turtle.Parse(doc)
		if err != nil {
			b.logger.Warn("failed to parse pipeline, skipping", "uuid", uuid,
				"err", errors.Wrap(errors.CodeParse, err, "parsing pipeline %s", uuid))
			continue
		}

		mergeTriplesInto(g, triples)

		for _, dep := range semgraph.InterPipelineDependencies(triples) {
			if !regenerateSet[UUIDFromIRI(dep.DatasetIRI)] {
				continue
			}
			pipeUUID := UUIDFromIRI(dep.PipelineIRI)
			if pipeUUID == "" || processed[pipeUUID] {
				continue
			}
			queue = append(queue, pipeUUID)
		}
	}

	if err := normalize(g); err != nil {
		return nil, err
	}
	return g, nil
}

// mergeTriplesInto extracts nodes and edges for one pipeline's triples and
// adds them to g, skipping any node or edge that already exists (a node may
// legitimately be re-described identically across two fetches of the same
// pipeline during regeneration).
func mergeTriplesInto(g *dag.Graph, triples []turtle.Triple) {
	nodes, edges := semgraph.Extract(triples)
	for _, n := range nodes {
		if _, ok := g.Node(n.ID); ok {
			continue
		}
		_ = g.AddNode(n)
	}
	for _, e := range edges {
		if _, ok := g.Node(e.From); !ok {
			continue
		}
		if _, ok := g.Node(e.To); !ok {
			continue
		}
		if slices.Contains(g.Children(e.From, e.Label), e.To) {
			continue
		}
		_ = g.AddEdge(e)
	}
}

// UUIDFromIRI extracts the trailing identifier segment of an IRI, splitting
// on the last '#' or '/', matching the metadata store's URI scheme for
// pipeline resources.
func UUIDFromIRI(iri string) string {
	if idx := strings.LastIndexByte(iri, '#'); idx >= 0 {
		return iri[idx+1:]
	}
	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 {
		return iri[idx+1:]
	}
	return iri
}

// normalize collapses Variable nodes that are bound to the same Dataset
// (via an is_instance_of edge) into one canonical variable, per the tie
// break: prefer a Step-produced variable, else the variable whose
// producing Step has the lexicographically smallest IRI, else the
// lexicographically smallest variable IRI.
func normalize(g *dag.Graph) error {
	for _, d := range g.NodesOfType(dag.TypeDataset) {
		variables := g.Parents(d.ID, dag.LabelInstanceOf)
		if len(variables) < 2 {
			continue
		}
		sort.Strings(variables)

		canonical := chooseCanonical(g, variables)
		for _, v := range variables {
			if v == canonical {
				continue
			}
			if err := g.MergeInto(canonical, v); err != nil {
				return errors.Wrap(errors.CodeGraphNormalization, err,
					"merging variable %s into %s (shared dataset %s)", v, canonical, d.ID)
			}
		}

		// Once its variables are collapsed onto one canonical node the
		// dataset carries nothing the execution engine needs; remove it
		// rather than leave a single-predecessor husk behind.
		if err := g.DeleteNode(d.ID); err != nil {
			return errors.Wrap(errors.CodeGraphNormalization, err, "removing collapsed dataset %s", d.ID)
		}
	}
	return nil
}

func chooseCanonical(g *dag.Graph, variables []string) string {
	type candidate struct {
		variable string
		producer string // empty if not Step-produced
	}

	var producedVars []candidate
	for _, v := range variables {
		// v --output--> step: the step(s) v is the output variable of are
		// reached via an outgoing LabelOutput edge from v, not an incoming
		// one (the "output" edge points Variable -> Step).
		producers := g.Children(v, dag.LabelOutput)
		if len(producers) > 0 {
			sort.Strings(producers)
			producedVars = append(producedVars, candidate{variable: v, producer: producers[0]})
		}
	}

	if len(producedVars) > 0 {
		sort.Slice(producedVars, func(i, j int) bool { return producedVars[i].producer < producedVars[j].producer })
		return producedVars[0].variable
	}

	// No Step-produced variable in the group: smallest variable IRI wins.
	return variables[0]
}
