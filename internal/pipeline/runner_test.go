package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/umakossiooo/osm-city-pipeline/internal/config"
)

const testExtractXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="52.5200" lon="13.4000"/>
  <node id="2" lat="52.5200" lon="13.4010"/>
  <node id="3" lat="52.5210" lon="13.4010"/>
  <node id="4" lat="52.5202" lon="13.4002"/>
  <node id="5" lat="52.5202" lon="13.4004"/>
  <node id="6" lat="52.5204" lon="13.4004"/>
  <node id="7" lat="52.5204" lon="13.4002"/>
  <node id="8" lat="52.5206" lon="13.4006">
    <tag k="natural" v="tree"/>
  </node>
  <way id="100">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="highway" v="residential"/>
    <tag k="name" v="Main Street"/>
  </way>
  <way id="101">
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="secondary"/>
    <tag k="lanes" v="2"/>
  </way>
  <way id="102">
    <nd ref="4"/>
    <nd ref="5"/>
    <nd ref="6"/>
    <nd ref="7"/>
    <nd ref="4"/>
    <tag k="building" v="yes"/>
    <tag k="building:levels" v="4"/>
  </way>
</osm>
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "test_city.osm")
	if err := os.WriteFile(input, []byte(testExtractXML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.InputFile = input
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.WorldName = "test_city"
	return cfg
}

func TestRunArtifacts(t *testing.T) {
	cfg := testConfig(t)
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer runner.Close()

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if result.Stats.Roads != 2 {
		t.Errorf("roads = %d, want 2", result.Stats.Roads)
	}
	if result.Stats.Intersections != 1 {
		t.Errorf("intersections = %d, want 1", result.Stats.Intersections)
	}
	if result.Stats.Buildings != 1 {
		t.Errorf("buildings = %d, want 1", result.Stats.Buildings)
	}
	if result.Stats.Trees != 1 {
		t.Errorf("trees = %d, want 1", result.Stats.Trees)
	}
	if result.Stats.SpawnPoints == 0 {
		t.Error("no spawn points generated")
	}

	for _, rel := range []string{
		filepath.Join("world", "test_city.sdf"),
		"roads.json",
		"spawn_points.yaml",
		filepath.Join("config", "map_config.yaml"),
	} {
		path := filepath.Join(cfg.OutputDir, rel)
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("missing artifact %s: %v", rel, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("artifact %s is empty", rel)
		}
	}
}

func TestRerunIsByteIdentical(t *testing.T) {
	cfg := testConfig(t)
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer runner.Close()

	artifacts := []string{
		filepath.Join("world", "test_city.sdf"),
		"roads.json",
		"spawn_points.yaml",
	}

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := make(map[string][]byte)
	for _, rel := range artifacts {
		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, rel))
		if err != nil {
			t.Fatal(err)
		}
		first[rel] = data
	}

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, rel := range artifacts {
		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, rel))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, first[rel]) {
			t.Errorf("%s differs between reruns", rel)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputFile = filepath.Join(t.TempDir(), "nope.osm")

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer runner.Close()

	if _, err := runner.Run(context.Background()); err == nil {
		t.Error("expected error for missing input file")
	}
}

func TestClassifierStyleFilter(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.InputFile)
	stylePath := filepath.Join(dir, "style.yaml")
	styleYAML := `
roads:
  exclude:
    highway: [secondary]
`
	if err := os.WriteFile(stylePath, []byte(styleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.StyleFile = stylePath

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer runner.Close()

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Stats.Roads != 1 {
		t.Errorf("roads = %d, want 1 after excluding secondary", result.Stats.Roads)
	}
}

func TestClassifierLuaOverride(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.InputFile)
	hookPath := filepath.Join(dir, "classify.lua")
	hook := `
function city.classify_way(tags)
    if tags["highway"] == "secondary" then
        return nil
    end
    if tags["building"] then
        return "park"
    end
    return nil
end
`
	if err := os.WriteFile(hookPath, []byte(hook), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.ClassifyFile = hookPath

	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer runner.Close()

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Stats.Buildings != 0 {
		t.Errorf("buildings = %d, want 0 after park override", result.Stats.Buildings)
	}
	if result.Stats.Parks != 1 {
		t.Errorf("parks = %d, want 1 after park override", result.Stats.Parks)
	}
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		filepath.Join(dir, "alpha.osm"),
		filepath.Join(dir, "beta.osm"),
	}
	for _, in := range inputs {
		if err := os.WriteFile(in, []byte(testExtractXML), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.OutputDir = filepath.Join(dir, "batch_out")
	cfg.Workers = 2

	if err := RunBatch(context.Background(), cfg, inputs); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"alpha", "beta"} {
		sdf := filepath.Join(cfg.OutputDir, name, "world", name+".sdf")
		if _, err := os.Stat(sdf); err != nil {
			t.Errorf("missing batch artifact %s: %v", sdf, err)
		}
	}
}
