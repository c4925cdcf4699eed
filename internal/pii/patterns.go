package pii

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// PatternFile is the on-disk shape of custom rules.
//
//	patterns:
//	  - name: member_id
//	    pattern: 'MBR-\d{6}'
//	    strategy: hash
//	    priority: 10
//	    field: member
type PatternFile struct {
	Patterns []PatternSpec `yaml:"patterns"`
}

// PatternSpec describes one custom rule before compilation.
type PatternSpec struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Strategy string `yaml:"strategy"`
	Priority int    `yaml:"priority"`
	Field    string `yaml:"field"`
}

// LoadPatterns parses and compiles custom rules. Rules are returned highest
// priority first; equal priorities keep file order.
func LoadPatterns(r io.Reader) ([]Rule, error) {
	var file PatternFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode pii patterns: %w", err)
	}

	sort.SliceStable(file.Patterns, func(i, j int) bool {
		return file.Patterns[i].Priority > file.Patterns[j].Priority
	})

	rules := make([]Rule, 0, len(file.Patterns))
	for _, spec := range file.Patterns {
		if spec.Name == "" {
			return nil, fmt.Errorf("pii pattern without name")
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pii pattern %q: %w", spec.Name, err)
		}
		strategy := Strategy(spec.Strategy)
		if spec.Strategy != "" && !strategy.Valid() {
			return nil, fmt.Errorf("pii pattern %q: unknown strategy %q", spec.Name, spec.Strategy)
		}
		rules = append(rules, Rule{Name: spec.Name, Pattern: re, Strategy: strategy, FieldGate: spec.Field})
	}
	return rules, nil
}

// LoadPatternsFile reads custom rules from path. An empty path yields no rules.
func LoadPatternsFile(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pii patterns: %w", err)
	}
	defer f.Close()
	return LoadPatterns(f)
}
