// Package semgraph extracts the Step/Variable/Dataset/Plugin node and edge
// relations the graph builder needs from a set of Turtle triples, following
// the fixed pattern queries of the combined-workflow ontology. It performs
// no general-purpose RDF reasoning: only the exact predicates listed below
// are understood.
package semgraph

import (
	"sort"
	"strings"

	"github.com/YArzumanyan/data-factory/pkg/dag"
	"github.com/YArzumanyan/data-factory/pkg/turtle"
)

// Ontology IRIs understood by Extract.
const (
	NSPipeline = "http://example.org/pipeline#"
	NSProv     = "http://www.w3.org/ns/prov#"
	NSDCAT     = "http://www.w3.org/ns/dcat#"
	NSRDF      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS     = "http://www.w3.org/2000/01/rdf-schema#"

	classStep     = NSPipeline + "Step"
	classVariable = NSPipeline + "Variable"
	classDataset  = NSPipeline + "Dataset"
	classPlugin   = NSPipeline + "Plugin"

	predType           = NSRDF + "type"
	predSubClassOf     = NSRDFS + "subClassOf"
	predInput          = NSPipeline + "input"
	predOutput         = NSPipeline + "output"
	predUses           = NSPipeline + "uses"
	predPrecedes       = NSPipeline + "precedes"
	predAccessURL      = NSDCAT + "accessURL"
	predSpecialization = NSProv + "specializationOf"
	predWasGeneratedBy = NSProv + "wasGeneratedBy"
)

// Title holds the human-readable label discovered for a node, if any.
const predTitle = NSPipeline + "title"

// Extract builds the nodes and edges for one pipeline document's triples.
// Title and accessURL literals are folded into each node's Meta. AccessURL
// literals are accepted either as a single comma-joined literal or as
// multiple distinct triples for the same subject; both forms are merged
// into one deduplicated, order-preserving list under the "accessURLs" meta
// key. The Variable -> Dataset "is_instance_of" relation is carried on the
// wire by a single predicate, prov:specializationOf; there is no separate
// is_instance_of predicate.
func Extract(triples []turtle.Triple) ([]dag.Node, []dag.Edge) {
	classOf := resolveClasses(triples)

	nodes := make(map[string]*dag.Node)
	ensureNode := func(id string) *dag.Node {
		if n, ok := nodes[id]; ok {
			return n
		}
		n := &dag.Node{ID: id, Meta: dag.Metadata{}}
		nodes[id] = n
		return n
	}

	for _, t := range triples {
		if t.Predicate != predType {
			continue
		}
		// Subjects typed with a class outside the four known kinds (and
		// their subclasses) are not graph nodes; leaving them out here also
		// drops any edges that touch them during the later merge.
		switch classOf[t.Object] {
		case classStep:
			ensureNode(t.Subject).Type = dag.TypeStep
		case classVariable:
			ensureNode(t.Subject).Type = dag.TypeVariable
		case classDataset:
			ensureNode(t.Subject).Type = dag.TypeDataset
		case classPlugin:
			ensureNode(t.Subject).Type = dag.TypePlugin
		}
	}

	var edges []dag.Edge
	accessURLs := make(map[string][]string)
	seenURL := make(map[string]map[string]bool)

	for _, t := range triples {
		switch t.Predicate {
		case predTitle:
			if n, ok := nodes[t.Subject]; ok {
				n.Meta["title"] = t.Object
			}
		case predAccessURL:
			if seenURL[t.Subject] == nil {
				seenURL[t.Subject] = make(map[string]bool)
			}
			for _, url := range splitAccessURLs(t.Object) {
				if seenURL[t.Subject][url] {
					continue
				}
				seenURL[t.Subject][url] = true
				accessURLs[t.Subject] = append(accessURLs[t.Subject], url)
			}
		case predInput:
			edges = append(edges, dag.Edge{From: t.Subject, To: t.Object, Label: dag.LabelInput})
		case predOutput:
			edges = append(edges, dag.Edge{From: t.Subject, To: t.Object, Label: dag.LabelOutput})
		case predUses:
			edges = append(edges, dag.Edge{From: t.Subject, To: t.Object, Label: dag.LabelUses})
		case predPrecedes:
			edges = append(edges, dag.Edge{From: t.Subject, To: t.Object, Label: dag.LabelPrecedes})
		case predSpecialization:
			// The same predicate also seeds InterPipelineDependencies's
			// two-hop join below.
			edges = append(edges, dag.Edge{From: t.Subject, To: t.Object, Label: dag.LabelInstanceOf})
		}
	}

	for id, urls := range accessURLs {
		if n, ok := nodes[id]; ok {
			n.Meta["accessURLs"] = urls
		}
	}

	out := make([]*dag.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	result := make([]dag.Node, len(out))
	for i, n := range out {
		result[i] = *n
	}
	return result, edges
}

// splitAccessURLs handles both comma-joined single-literal accessURL
// representations and already-singular ones.
func splitAccessURLs(object string) []string {
	parts := strings.Split(object, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// resolveClasses walks rdfs:subClassOf triples to map every class IRI
// (including subclasses) to one of the four known base classes.
func resolveClasses(triples []turtle.Triple) map[string]string {
	parent := make(map[string]string)
	for _, t := range triples {
		if t.Predicate == predSubClassOf {
			parent[t.Subject] = t.Object
		}
	}

	base := map[string]string{
		classStep:     classStep,
		classVariable: classVariable,
		classDataset:  classDataset,
		classPlugin:   classPlugin,
	}

	resolve := func(class string) string {
		seen := map[string]bool{}
		cur := class
		for {
			if b, ok := base[cur]; ok {
				return b
			}
			if seen[cur] {
				return ""
			}
			seen[cur] = true
			next, ok := parent[cur]
			if !ok {
				return ""
			}
			cur = next
		}
	}

	result := make(map[string]string)
	for class := range base {
		result[class] = class
	}
	for class := range parent {
		if r := resolve(class); r != "" {
			result[class] = r
		}
	}
	return result
}

// Dependency pairs a Dataset IRI with the Pipeline IRI that generated it,
// discovered via the two-hop join `?var prov:specializationOf ?ds . ?ds
// prov:wasGeneratedBy ?pipe`. The caller decides whether to actually fetch
// PipelineIRI based on whether DatasetIRI is in the regeneration set.
type Dependency struct {
	DatasetIRI  string
	PipelineIRI string
}

// InterPipelineDependencies finds every (dataset, generating-pipeline) pair
// reachable from a `prov:specializationOf` edge followed by a
// `prov:wasGeneratedBy` edge on the same dataset node, within this
// document's triples.
func InterPipelineDependencies(triples []turtle.Triple) []Dependency {
	specializes := make(map[string]bool) // set of Dataset IRIs reached via specializationOf
	for _, t := range triples {
		if t.Predicate == predSpecialization {
			specializes[t.Object] = true
		}
	}

	seen := make(map[string]bool)
	var deps []Dependency
	for _, t := range triples {
		if t.Predicate != predWasGeneratedBy || !specializes[t.Subject] {
			continue
		}
		key := t.Subject + "\x00" + t.Object
		if seen[key] {
			continue
		}
		seen[key] = true
		deps = append(deps, Dependency{DatasetIRI: t.Subject, PipelineIRI: t.Object})
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].DatasetIRI != deps[j].DatasetIRI {
			return deps[i].DatasetIRI < deps[j].DatasetIRI
		}
		return deps[i].PipelineIRI < deps[j].PipelineIRI
	})
	return deps
}
