package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a process manifest from the provided path.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	doc.Dir = filepath.Dir(absPath)
	doc.resolvePaths()
	return doc, nil
}

// Parse decodes, validates and defaults a manifest held in memory.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validateAgainstSchema(raw); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc Manifest
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	for _, p := range doc.Processes {
		if p == nil {
			continue
		}
		p.Command = os.ExpandEnv(p.Command)
		for i, arg := range p.Args {
			p.Args[i] = os.ExpandEnv(arg)
		}
		p.Stdin = os.ExpandEnv(p.Stdin)
		p.Stdout = os.ExpandEnv(p.Stdout)
		p.Stderr = os.ExpandEnv(p.Stderr)
	}

	if err := doc.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// resolvePaths makes redirect targets relative to the manifest directory.
func (m *Manifest) resolvePaths() {
	for _, p := range m.Processes {
		for _, slot := range []*string{&p.Stdin, &p.Stdout, &p.Stderr} {
			switch *slot {
			case StdioInherit, StdioDiscard:
				continue
			}
			if !filepath.IsAbs(*slot) {
				*slot = filepath.Clean(filepath.Join(m.Dir, *slot))
			}
		}
	}
}
