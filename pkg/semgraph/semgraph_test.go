package semgraph_test

import (
	"testing"

	"github.com/YArzumanyan/data-factory/pkg/dag"
	"github.com/YArzumanyan/data-factory/pkg/semgraph"
	"github.com/YArzumanyan/data-factory/pkg/turtle"
)

const sample = `
@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .
@prefix p: <http://example.org/pipeline#> .
@prefix dcat: <http://www.w3.org/ns/dcat#> .
@prefix prov: <http://www.w3.org/ns/prov#> .

p:step1 a p:Step ;
    p:title "Preprocess" .

p:var1 a p:Variable ;
    p:input p:step1 .

p:var2 a p:Variable ;
    p:output p:step1 ;
    prov:specializationOf p:dataset1 .

p:dataset1 a p:Dataset ;
    dcat:accessURL "http://store/a.csv, http://store/b.csv" .

p:plugin1 a p:Plugin .
p:step1 p:uses p:plugin1 .

p:var1 prov:specializationOf <http://example.org/pipeline#otherDataset> .
<http://example.org/pipeline#otherDataset> a p:Dataset ;
    prov:wasGeneratedBy <http://example.org/other-pipeline> .
`

func TestExtractNodeTypesAndEdges(t *testing.T) {
	triples, err := turtle.Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	nodes, edges := semgraph.Extract(triples)

	types := map[string]dag.Type{}
	for _, n := range nodes {
		types[n.ID] = n.Type
	}
	if types["http://example.org/pipeline#step1"] != dag.TypeStep {
		t.Error("step1 should be TypeStep")
	}
	if types["http://example.org/pipeline#dataset1"] != dag.TypeDataset {
		t.Error("dataset1 should be TypeDataset")
	}

	var sawUses, sawInstanceOf bool
	for _, e := range edges {
		if e.Label == dag.LabelUses && e.From == "http://example.org/pipeline#step1" {
			sawUses = true
		}
		if e.Label == dag.LabelInstanceOf && e.From == "http://example.org/pipeline#var2" {
			sawInstanceOf = true
		}
	}
	if !sawUses {
		t.Error("missing uses edge")
	}
	if !sawInstanceOf {
		t.Error("missing is_instance_of edge")
	}
}

func TestExtractAccessURLsCommaJoined(t *testing.T) {
	triples, _ := turtle.Parse(sample)
	nodes, _ := semgraph.Extract(triples)

	for _, n := range nodes {
		if n.ID != "http://example.org/pipeline#dataset1" {
			continue
		}
		urls, ok := n.Meta["accessURLs"].([]string)
		if !ok {
			t.Fatalf("accessURLs meta missing or wrong type: %v", n.Meta["accessURLs"])
		}
		if len(urls) != 2 {
			t.Fatalf("accessURLs = %v, want 2 entries", urls)
		}
	}
}

func TestInterPipelineDependencies(t *testing.T) {
	triples, _ := turtle.Parse(sample)
	deps := semgraph.InterPipelineDependencies(triples)
	if len(deps) != 1 ||
		deps[0].DatasetIRI != "http://example.org/pipeline#otherDataset" ||
		deps[0].PipelineIRI != "http://example.org/other-pipeline" {
		t.Errorf("InterPipelineDependencies = %+v, want one dependency on other-pipeline via otherDataset", deps)
	}
}

// TestInterPipelineDependenciesRequiresBothHops exercises the two-hop join:
// a specializationOf edge alone, with no wasGeneratedBy on the dataset it
// names, yields no dependency.
func TestInterPipelineDependenciesRequiresBothHops(t *testing.T) {
	const doc = `
@prefix p: <http://example.org/pipeline#> .
@prefix prov: <http://www.w3.org/ns/prov#> .

p:var1 prov:specializationOf p:dataset1 .
p:dataset1 a p:Dataset .
`
	triples, err := turtle.Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if deps := semgraph.InterPipelineDependencies(triples); len(deps) != 0 {
		t.Errorf("InterPipelineDependencies = %v, want none without a wasGeneratedBy hop", deps)
	}
}
