package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxIncludeDepth bounds nesting of fragments that include other fragments.
const maxIncludeDepth = 4

// fragmentSections are the top-level keys an included fragment may set.
// Gateway bind address and tokens decide who can drive the session, so they
// only come from the main file.
var fragmentSections = []string{
	"session", "peripheral", "network", "alerts", "history", "logger", "tracer", "includes",
}

// fragmentLoader overlays included YAML fragments, such as per-trip
// settings kept under conf.d/, onto a Config.
type fragmentLoader struct {
	cfg     *Config
	visited map[string]bool
	loaded  []string
}

func newFragmentLoader(cfg *Config, mainPath string) *fragmentLoader {
	return &fragmentLoader{cfg: cfg, visited: map[string]bool{mainPath: true}}
}

// includeAll merges every fragment matched by patterns, in order. Relative
// patterns resolve against dir and must stay inside it.
func (l *fragmentLoader) includeAll(patterns []string, dir string, depth int) error {
	if depth >= maxIncludeDepth {
		return fmt.Errorf("config includes: nested deeper than %d levels", maxIncludeDepth)
	}
	for _, pattern := range patterns {
		paths, err := expandInclude(pattern, dir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if l.visited[p] {
				return fmt.Errorf("config includes: include cycle through %q", p)
			}
			l.visited[p] = true
			if err := l.merge(p, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge decodes one fragment onto the config. Unknown keys at any level are
// rejected so a misspelled setting fails loudly instead of being ignored.
func (l *fragmentLoader) merge(path string, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}

	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	for key := range top {
		if !slices.Contains(fragmentSections, key) {
			return fmt.Errorf("config includes: %q may not set %q (allowed: %s)",
				filepath.Base(path), key, strings.Join(fragmentSections, ", "))
		}
	}

	l.cfg.Includes = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(l.cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	l.loaded = append(l.loaded, path)

	nested := l.cfg.Includes
	l.cfg.Includes = nil
	if len(nested) == 0 {
		return nil
	}
	return l.includeAll(nested, filepath.Dir(path), depth+1)
}

// expandInclude turns one include entry into absolute file paths. A glob
// that matches nothing yields no files; a literal path must exist.
func expandInclude(pattern, dir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		if !filepath.IsLocal(pattern) {
			return nil, fmt.Errorf("config includes: %q escapes the config directory", pattern)
		}
		pattern = filepath.Join(dir, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
		return nil, fmt.Errorf("config includes: %q not found", pattern)
	}

	for i, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("config includes: abs path %q: %w", m, err)
		}
		matches[i] = abs
	}
	return matches, nil
}
