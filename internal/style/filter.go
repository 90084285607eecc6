// Package style controls which map elements enter the pipeline and how
// they are classified. A YAML filter drops elements by tag before any
// geometry work, and an optional Lua hook can override the built-in
// classification.
package style

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the style file contents.
type Config struct {
	// Roads, Footprints and Nodes filter the corresponding element
	// streams. A nil filter includes everything.
	Roads      *FilterConfig `yaml:"roads,omitempty"`
	Footprints *FilterConfig `yaml:"footprints,omitempty"`
	Nodes      *FilterConfig `yaml:"nodes,omitempty"`

	// ClassifyScript is a path to a Lua classification hook, relative
	// to the style file.
	ClassifyScript string `yaml:"classify_script,omitempty"`
}

// FilterConfig defines tag-based include and exclude rules.
type FilterConfig struct {
	// Include lists tag keys with allowed values. Empty value list
	// means any value. An element passes when any rule matches.
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude is applied after include. Empty value list excludes
	// the key entirely.
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny lists tag keys of which at least one must be present.
	RequireAny []string `yaml:"require_any,omitempty"`
}

// LoadConfig reads a style file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("style: failed to read style file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("style: failed to parse style file: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig includes everything and overrides nothing.
func DefaultConfig() *Config {
	return &Config{}
}

// Filter applies one FilterConfig to tag maps.
type Filter struct {
	cfg *FilterConfig
}

// NewFilter wraps a filter config. A nil config matches everything.
func NewFilter(cfg *FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Match reports whether an element with these tags passes the filter.
func (f *Filter) Match(tags map[string]string) bool {
	if f.cfg == nil {
		return true
	}

	if len(f.cfg.RequireAny) > 0 {
		found := false
		for _, key := range f.cfg.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.cfg.Include) > 0 {
		matched := false
		for key, values := range f.cfg.Include {
			tagValue, ok := tags[key]
			if !ok {
				continue
			}
			if len(values) == 0 {
				matched = true
				break
			}
			for _, v := range values {
				if v == tagValue || v == "*" {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}

	for key, values := range f.cfg.Exclude {
		tagValue, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return false
		}
		for _, v := range values {
			if v == tagValue || v == "*" {
				return false
			}
		}
	}

	return true
}
