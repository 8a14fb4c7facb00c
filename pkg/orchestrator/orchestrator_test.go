package orchestrator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/YArzumanyan/data-factory/pkg/backend"
	"github.com/YArzumanyan/data-factory/pkg/config"
	"github.com/YArzumanyan/data-factory/pkg/dag"
	"github.com/YArzumanyan/data-factory/pkg/errors"
)

// buildS1Graph constructs the smallest executable graph: one Step with one
// input Variable (specializing a Dataset with an accessURL), one Plugin,
// and one output Variable.
func buildS1Graph(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New()

	nodes := []dag.Node{
		{ID: "urn:step:s", Type: dag.TypeStep, Meta: dag.Metadata{"title": "S"}},
		{ID: "urn:var:in", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_in"}},
		{ID: "urn:var:out", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_out"}},
		{ID: "urn:dataset:d", Type: dag.TypeDataset, Meta: dag.Metadata{"title": "D", "accessURLs": []string{"http://repo/d.zip"}}},
		{ID: "urn:plugin:pl", Type: dag.TypePlugin, Meta: dag.Metadata{"title": "Pl", "accessURLs": []string{"http://repo/plugin.zip"}}},
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}

	edges := []dag.Edge{
		{From: "urn:var:in", To: "urn:step:s", Label: dag.LabelInput},
		{From: "urn:var:in", To: "urn:dataset:d", Label: dag.LabelInstanceOf},
		{From: "urn:var:out", To: "urn:step:s", Label: dag.LabelOutput},
		{From: "urn:step:s", To: "urn:plugin:pl", Label: dag.LabelUses},
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s->%s): %v", e.From, e.To, err)
		}
	}
	return g
}

func newTestConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		MetadataBase: "http://metadata",
		ArtifactBase: "",
		Workspace:    filepath.Join(t.TempDir(), "workspace"),
	}
}

func TestRunS1WithDryRunBackend(t *testing.T) {
	g := buildS1Graph(t)
	cfg := newTestConfig(t)
	o := New(g, backend.NewDryRun(nil), cfg, nil)

	results, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	inPath, ok := results["urn:var:in"]
	if !ok {
		t.Fatal("missing result for input variable")
	}
	wantIn := filepath.Join(cfg.Workspace, "initial_datasets", "V_in")
	if inPath != wantIn {
		t.Errorf("input variable path = %q, want %q", inPath, wantIn)
	}

	outPath, ok := results["urn:var:out"]
	if !ok {
		t.Fatal("missing result for output variable")
	}
	wantOut := filepath.Join(cfg.Workspace, "results", "V_out")
	if outPath != wantOut {
		t.Errorf("output variable path = %q, want %q", outPath, wantOut)
	}
}

func TestRunIsIdempotentAcrossTwoDryRuns(t *testing.T) {
	g := buildS1Graph(t)
	cfg := newTestConfig(t)

	first, err := New(g, backend.NewDryRun(nil), cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := New(g, backend.NewDryRun(nil), cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		if second[k] != v {
			t.Errorf("results_map[%q] = %q on first run, %q on second run", k, v, second[k])
		}
	}
}

// buildChainedGraph constructs two steps where the first step's output
// variable feeds the second step's input, each step bound to its own
// plugin, with an initial dataset backing the first step's input.
func buildChainedGraph(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New()

	nodes := []dag.Node{
		{ID: "urn:step:first", Type: dag.TypeStep, Meta: dag.Metadata{"title": "First"}},
		{ID: "urn:step:second", Type: dag.TypeStep, Meta: dag.Metadata{"title": "Second"}},
		{ID: "urn:var:in", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_in"}},
		{ID: "urn:var:mid", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_mid"}},
		{ID: "urn:var:out", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_out"}},
		{ID: "urn:dataset:d", Type: dag.TypeDataset, Meta: dag.Metadata{"title": "D", "accessURLs": []string{"http://repo/d.zip"}}},
		{ID: "urn:plugin:one", Type: dag.TypePlugin, Meta: dag.Metadata{"title": "Pl One", "accessURLs": []string{"http://repo/one.zip"}}},
		{ID: "urn:plugin:two", Type: dag.TypePlugin, Meta: dag.Metadata{"title": "Pl Two", "accessURLs": []string{"http://repo/two.zip"}}},
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}

	edges := []dag.Edge{
		{From: "urn:var:in", To: "urn:step:first", Label: dag.LabelInput},
		{From: "urn:var:in", To: "urn:dataset:d", Label: dag.LabelInstanceOf},
		{From: "urn:var:mid", To: "urn:step:first", Label: dag.LabelOutput},
		{From: "urn:var:mid", To: "urn:step:second", Label: dag.LabelInput},
		{From: "urn:var:out", To: "urn:step:second", Label: dag.LabelOutput},
		{From: "urn:step:first", To: "urn:plugin:one", Label: dag.LabelUses},
		{From: "urn:step:second", To: "urn:plugin:two", Label: dag.LabelUses},
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s->%s): %v", e.From, e.To, err)
		}
	}
	return g
}

// TestRunDryRunLogsBuildsInTopologicalOrder exercises the dry-run contract:
// two chained steps produce exactly two image-build intents in the log, in
// dependency order, and nothing is written to the filesystem.
func TestRunDryRunLogsBuildsInTopologicalOrder(t *testing.T) {
	g := buildChainedGraph(t)
	cfg := newTestConfig(t)

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})

	results, err := New(g, backend.NewDryRun(logger), cfg, logger).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("results = %v, want entries for V_in, V_mid, V_out", results)
	}

	var builds []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "would build container image") {
			builds = append(builds, line)
		}
	}
	if len(builds) != 2 {
		t.Fatalf("build intents logged = %d, want 2:\n%s", len(builds), buf.String())
	}
	if !strings.Contains(builds[0], "plugin-pl-one") {
		t.Errorf("first build intent = %q, want tag plugin-pl-one", builds[0])
	}
	if !strings.Contains(builds[1], "plugin-pl-two") {
		t.Errorf("second build intent = %q, want tag plugin-pl-two", builds[1])
	}

	if _, err := os.Stat(cfg.Workspace); !os.IsNotExist(err) {
		t.Errorf("dry run must not create the workspace, stat err = %v", err)
	}
}

func TestRunMissingInputIsFatal(t *testing.T) {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "urn:step:s", Type: dag.TypeStep, Meta: dag.Metadata{"title": "S"}})
	_ = g.AddNode(dag.Node{ID: "urn:var:in", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_in"}})
	_ = g.AddNode(dag.Node{ID: "urn:var:out", Type: dag.TypeVariable, Meta: dag.Metadata{"title": "V_out"}})
	_ = g.AddNode(dag.Node{ID: "urn:plugin:pl", Type: dag.TypePlugin, Meta: dag.Metadata{"title": "Pl", "accessURLs": []string{"http://repo/plugin.zip"}}})
	// V_in is an input to S but is never produced by a step nor backed by a
	// Dataset with an accessURL: it must never appear in the results map.
	_ = g.AddEdge(dag.Edge{From: "urn:var:in", To: "urn:step:s", Label: dag.LabelInput})
	_ = g.AddEdge(dag.Edge{From: "urn:var:out", To: "urn:step:s", Label: dag.LabelOutput})
	_ = g.AddEdge(dag.Edge{From: "urn:step:s", To: "urn:plugin:pl", Label: dag.LabelUses})

	cfg := newTestConfig(t)
	_, err := New(g, backend.NewDryRun(nil), cfg, nil).Run(context.Background())
	if !errors.Is(err, errors.CodeMissingInput) {
		t.Fatalf("Run error = %v, want CodeMissingInput", err)
	}
}

func TestBuildScheduleGraphReversesOutputEdges(t *testing.T) {
	g := buildS1Graph(t)
	schedule, err := buildScheduleGraph(g)
	if err != nil {
		t.Fatalf("buildScheduleGraph: %v", err)
	}

	// The output edge V_out -> S is reversed to S -> V_out, so V_out has no
	// outgoing edges left: it is a leaf of the scheduling graph.
	if schedule.OutDegree("urn:var:out") != 0 {
		t.Errorf("OutDegree(urn:var:out) = %d, want 0", schedule.OutDegree("urn:var:out"))
	}
	children := schedule.Children("urn:step:s", dag.LabelOutput)
	if len(children) != 1 || children[0] != "urn:var:out" {
		t.Errorf("schedule Children(s, output) = %v, want [urn:var:out]", children)
	}

	// The uses edge is dropped entirely.
	if schedule.OutDegree("urn:step:s") != 1 {
		t.Errorf("OutDegree(urn:step:s) = %d, want 1 (only the reversed output edge)", schedule.OutDegree("urn:step:s"))
	}
}
