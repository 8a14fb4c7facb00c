// Package orchestrator drives a normalized execution graph end to end: it
// stages the workspace, downloads initial datasets, walks steps in
// topological order, and threads each step's output into its downstream
// consumers' inputs.
package orchestrator

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/YArzumanyan/data-factory/pkg/backend"
	"github.com/YArzumanyan/data-factory/pkg/config"
	"github.com/YArzumanyan/data-factory/pkg/dag"
	"github.com/YArzumanyan/data-factory/pkg/errors"
	"github.com/YArzumanyan/data-factory/pkg/observability"
)

// Orchestrator executes a normalized [dag.Graph] against a [backend.Backend],
// threading a single in-memory results map (Variable IRI -> filesystem path)
// from initial datasets and step outputs into every downstream consumer.
type Orchestrator struct {
	graph      *dag.Graph
	backend    backend.Backend
	cfg        config.Config
	logger     *log.Logger
	resultsMap map[string]string
}

// New creates an Orchestrator over graph, driving b with cfg's workspace
// and artifact-base settings. logger may be nil, in which case a default
// logger is used.
func New(graph *dag.Graph, b backend.Backend, cfg config.Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		graph:      graph,
		backend:    b,
		cfg:        cfg,
		logger:     logger,
		resultsMap: make(map[string]string),
	}
}

// Results returns a snapshot of the current results map (Variable IRI ->
// filesystem path).
func (o *Orchestrator) Results() map[string]string {
	out := make(map[string]string, len(o.resultsMap))
	for k, v := range o.resultsMap {
		out[k] = v
	}
	return out
}

// Run executes the four phases of pipeline execution: workspace init,
// initial-dataset download, topological step execution, and finalization
// logging. Any step failure aborts the run immediately, the error wrapping
// the failing step's label.
func (o *Orchestrator) Run(ctx context.Context) (map[string]string, error) {
	if err := o.backend.SetupWorkspace(ctx, o.cfg.Workspace); err != nil {
		return nil, err
	}

	if err := o.downloadInitialDatasets(ctx); err != nil {
		return nil, err
	}

	schedule, err := buildScheduleGraph(o.graph)
	if err != nil {
		return nil, err
	}

	order, err := schedule.TopoSort()
	if err != nil {
		return nil, errors.Wrap(errors.CodeGraphNormalization, err, "computing execution order")
	}

	for _, id := range order {
		n, ok := o.graph.Node(id)
		if !ok || n.Type != dag.TypeStep {
			continue
		}
		start := time.Now()
		observability.Execution().OnStepStart(ctx, n.ID, stepLabel(n))
		err := o.executeStep(ctx, n)
		observability.Execution().OnStepComplete(ctx, n.ID, stepLabel(n), time.Since(start), err)
		if err != nil {
			code := errors.GetCode(err)
			if code == "" {
				code = errors.CodeMissingInput
			}
			return nil, errors.Wrap(code, err, "executing step %q", stepLabel(n))
		}
	}

	o.logFinalOutputs(schedule)
	return o.Results(), nil
}

// stepOutputVariables returns the set of Variable IRIs that are the output
// of some Step, via an outgoing LabelOutput edge in the original graph.
func (o *Orchestrator) stepOutputVariables() map[string]bool {
	outputs := make(map[string]bool)
	for _, n := range o.graph.NodesOfType(dag.TypeVariable) {
		if len(o.graph.Children(n.ID, dag.LabelOutput)) > 0 {
			outputs[n.ID] = true
		}
	}
	return outputs
}

// downloadInitialDatasets materializes every Dataset with at least one
// accessURL whose sole Variable predecessor is not itself produced by a
// step.
func (o *Orchestrator) downloadInitialDatasets(ctx context.Context) error {
	stepOutputs := o.stepOutputVariables()

	datasets := o.graph.NodesOfType(dag.TypeDataset)
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID < datasets[j].ID })

	for _, d := range datasets {
		urls := accessURLs(d)
		if len(urls) == 0 {
			continue
		}

		variables := o.graph.Parents(d.ID, dag.LabelInstanceOf)
		if len(variables) == 0 {
			continue
		}
		sort.Strings(variables)
		v := variables[0]

		if stepOutputs[v] {
			continue
		}

		label := nodeLabel(o.graph, v)
		dir := filepath.Join(o.cfg.Workspace, "initial_datasets", backend.Sanitize(label))
		for _, url := range urls {
			if _, err := o.backend.FetchFile(ctx, url, dir, o.cfg.ArtifactBase); err != nil {
				return errors.Wrap(errors.CodeFetch, err, "downloading initial dataset for variable %q", label)
			}
		}
		o.resultsMap[v] = dir
	}
	return nil
}

// executeStep stages a step's inputs, fetches and unpacks its plugin,
// builds and runs the plugin container, and finalizes the output directory
// under the results map.
func (o *Orchestrator) executeStep(ctx context.Context, s *dag.Node) error {
	label := stepLabel(s)
	o.logger.Info("executing step", "label", label, "iri", s.ID)

	inputs, outputs, pluginDir, err := o.backend.PrepareStepWorkspace(ctx, o.cfg.Workspace, label, s.ID)
	if err != nil {
		return err
	}

	for _, v := range o.graph.Parents(s.ID, dag.LabelInput) {
		src, ok := o.resultsMap[v]
		if !ok {
			return errors.New(errors.CodeMissingInput, "step %q: no result for input variable %q", label, nodeLabel(o.graph, v))
		}
		dst := filepath.Join(inputs, backend.Sanitize(nodeLabel(o.graph, v)))
		if err := o.backend.StageInput(ctx, src, dst); err != nil {
			return err
		}
	}

	plugins := o.graph.Children(s.ID, dag.LabelUses)
	if len(plugins) == 0 {
		return errors.New(errors.CodeMissingInput, "step %q: no plugin bound via uses edge", label)
	}
	p, ok := o.graph.Node(plugins[0])
	if !ok {
		return errors.New(errors.CodeMissingInput, "step %q: dangling plugin reference", label)
	}
	pluginURLs := accessURLs(p)
	if len(pluginURLs) == 0 {
		return errors.New(errors.CodeMissingInput, "step %q: plugin %q has no accessURL", label, nodeLabel(o.graph, p.ID))
	}

	archive, err := o.backend.FetchFile(ctx, pluginURLs[0], filepath.Join(o.cfg.Workspace, "artifact_cache"), o.cfg.ArtifactBase)
	if err != nil {
		return err
	}
	if err := o.backend.DetectAndUnpackArchive(ctx, archive, pluginDir); err != nil {
		return err
	}

	cfg, err := o.backend.ReadPluginConfig(ctx, pluginDir)
	if err != nil {
		return err
	}

	tag := "plugin-" + kebab(nodeLabel(o.graph, p.ID))
	if err := o.backend.BuildImage(ctx, tag, pluginDir); err != nil {
		return err
	}
	if err := o.backend.RunContainer(ctx, tag, inputs, outputs, cfg); err != nil {
		return err
	}

	outVars := o.graph.Parents(s.ID, dag.LabelOutput)
	if len(outVars) == 0 {
		return errors.New(errors.CodeMissingInput, "step %q: no output variable via output edge", label)
	}
	vOut := outVars[0]

	path, err := o.backend.FinalizeOutput(ctx, outputs, filepath.Join(o.cfg.Workspace, "results"), backend.Sanitize(nodeLabel(o.graph, vOut)))
	if err != nil {
		return err
	}
	o.resultsMap[vOut] = path
	return nil
}

// logFinalOutputs logs every Variable that nothing downstream consumes —
// the leaves of the reversed-output dependency graph built for scheduling —
// along with the filesystem path recorded for it in the results map.
func (o *Orchestrator) logFinalOutputs(schedule *dag.Graph) {
	for _, n := range o.graph.NodesOfType(dag.TypeVariable) {
		if schedule.OutDegree(n.ID) != 0 {
			continue
		}
		path, ok := o.resultsMap[n.ID]
		if !ok {
			continue
		}
		o.logger.Info("final output", "variable", nodeLabel(o.graph, n.ID), "path", path)
	}
}

// buildScheduleGraph derives a scheduling graph from g suitable for
// topological execution order: input, is_instance_of, and precedes edges
// carry their stored direction (the dependency runs first), output edges
// are reversed (a Step precedes the Variable it produces, which in turn
// precedes any Step that takes it as input), and uses edges are dropped
// entirely (a Plugin has no execution-order relationship to its Step).
func buildScheduleGraph(g *dag.Graph) (*dag.Graph, error) {
	out := dag.New()
	for _, n := range g.Nodes() {
		if err := out.AddNode(*n); err != nil {
			return nil, errors.Wrap(errors.CodeGraphNormalization, err, "building schedule graph")
		}
	}
	for _, e := range g.Edges() {
		switch e.Label {
		case dag.LabelOutput:
			e.From, e.To = e.To, e.From
		case dag.LabelUses:
			continue
		}
		if err := out.AddEdge(e); err != nil {
			return nil, errors.Wrap(errors.CodeGraphNormalization, err, "building schedule graph")
		}
	}
	return out, nil
}

func accessURLs(n *dag.Node) []string {
	v, ok := n.Meta["accessURLs"]
	if !ok {
		return nil
	}
	urls, _ := v.([]string)
	return urls
}

func nodeLabel(g *dag.Graph, id string) string {
	if n, ok := g.Node(id); ok {
		if title, ok := n.Meta["title"].(string); ok && title != "" {
			return title
		}
	}
	return backend.Sanitize(shortSegment(id))
}

func stepLabel(n *dag.Node) string {
	if title, ok := n.Meta["title"].(string); ok && title != "" {
		return title
	}
	return shortSegment(n.ID)
}

func shortSegment(iri string) string {
	if idx := strings.LastIndexByte(iri, '#'); idx >= 0 {
		return iri[idx+1:]
	}
	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 {
		return iri[idx+1:]
	}
	return iri
}

// kebab lowercases label and replaces spaces with hyphens, yielding a valid
// container image tag segment.
func kebab(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "-")
}
