package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldMap drives raw-payload extraction. Each logical field maps to an
// ordered list of candidate key paths (dotted for nested lookups); the first
// path resolving to a non-nil value wins. This absorbs upstream schema drift
// across source format revisions without code changes.
type FieldMap struct {
	Totals         map[string][]string `yaml:"totals"`
	CandidateRoots []string            `yaml:"candidate_roots"`
}

// DefaultFieldMap covers the key variants observed across source format
// revisions (Spanish and English spellings).
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Totals: map[string][]string{
			"registered_voters": {"registered_voters", "inscritos", "padron", "totals.registered_voters"},
			"total_votes":       {"total_votes", "total_votos", "votos_emitidos", "totals.total_votes"},
			"valid_votes":       {"valid_votes", "votos_validos", "validos", "totals.valid_votes"},
			"null_votes":        {"null_votes", "votos_nulos", "nulos", "totals.null_votes"},
			"blank_votes":       {"blank_votes", "votos_blancos", "blancos", "totals.blank_votes"},
		},
		CandidateRoots: []string{"candidatos", "candidates", "resultados", "partidos"},
	}
}

// LoadFieldMap reads a FieldMap from a YAML file, filling unset sections
// from the defaults.
func LoadFieldMap(path string) (FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldMap{}, fmt.Errorf("load field map: %w", err)
	}
	fm := DefaultFieldMap()
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return FieldMap{}, fmt.Errorf("parse field map: %w", err)
	}
	return fm, nil
}

// paths returns the configured key paths for a totals field, falling back to
// the defaults when the field map has no entry.
func (fm FieldMap) paths(field string) []string {
	if p, ok := fm.Totals[field]; ok && len(p) > 0 {
		return p
	}
	return DefaultFieldMap().Totals[field]
}

// Lookup resolves a single dotted key path against a generic tree value.
// Missing segments or non-map intermediates yield nil.
func Lookup(payload map[string]any, path string) any {
	var current any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// FirstValue walks an ordered path list and returns the first non-nil value.
func FirstValue(payload map[string]any, paths []string) any {
	for _, p := range paths {
		if v := Lookup(payload, p); v != nil {
			return v
		}
	}
	return nil
}
