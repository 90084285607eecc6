package style

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name string
		cfg  *FilterConfig
		tags map[string]string
		want bool
	}{
		{"nil config includes all", nil, map[string]string{"highway": "residential"}, true},
		{"include by value",
			&FilterConfig{Include: map[string][]string{"highway": {"residential", "primary"}}},
			map[string]string{"highway": "residential"}, true},
		{"include rejects other values",
			&FilterConfig{Include: map[string][]string{"highway": {"residential"}}},
			map[string]string{"highway": "service"}, false},
		{"include any value",
			&FilterConfig{Include: map[string][]string{"highway": {}}},
			map[string]string{"highway": "anything"}, true},
		{"wildcard value",
			&FilterConfig{Include: map[string][]string{"highway": {"*"}}},
			map[string]string{"highway": "tertiary"}, true},
		{"exclude by value",
			&FilterConfig{Exclude: map[string][]string{"access": {"private"}}},
			map[string]string{"highway": "service", "access": "private"}, false},
		{"exclude whole key",
			&FilterConfig{Exclude: map[string][]string{"construction": {}}},
			map[string]string{"construction": "yes"}, false},
		{"exclude leaves others",
			&FilterConfig{Exclude: map[string][]string{"access": {"private"}}},
			map[string]string{"access": "yes"}, true},
		{"require any present",
			&FilterConfig{RequireAny: []string{"name", "ref"}},
			map[string]string{"ref": "B96"}, true},
		{"require any missing",
			&FilterConfig{RequireAny: []string{"name", "ref"}},
			map[string]string{"highway": "residential"}, false},
		{"exclude wins over include",
			&FilterConfig{
				Include: map[string][]string{"highway": {}},
				Exclude: map[string][]string{"area": {"yes"}},
			},
			map[string]string{"highway": "pedestrian", "area": "yes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.cfg)
			if got := f.Match(tt.tags); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	yamlContent := `
roads:
  include:
    highway: [residential, primary]
  exclude:
    access: [private]
footprints:
  require_any: [building]
classify_script: hooks.lua
`
	path := filepath.Join(t.TempDir(), "style.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Roads == nil || len(cfg.Roads.Include["highway"]) != 2 {
		t.Errorf("roads filter not parsed: %+v", cfg.Roads)
	}
	if cfg.Footprints == nil || len(cfg.Footprints.RequireAny) != 1 {
		t.Errorf("footprints filter not parsed: %+v", cfg.Footprints)
	}
	if cfg.ClassifyScript != "hooks.lua" {
		t.Errorf("classify script = %q", cfg.ClassifyScript)
	}

	f := NewFilter(cfg.Roads)
	if !f.Match(map[string]string{"highway": "residential"}) {
		t.Error("residential should pass the loaded filter")
	}
	if f.Match(map[string]string{"highway": "residential", "access": "private"}) {
		t.Error("private access should be excluded")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
