// Package pricing maps model identifiers to token rates and computes
// the dollar cost of usage records.
package pricing

import "strings"

// Rates holds the cost per one million tokens for each token category.
type Rates struct {
	Input      float64 `yaml:"input"`
	Output     float64 `yaml:"output"`
	CacheWrite float64 `yaml:"cache_write"`
	CacheRead  float64 `yaml:"cache_read"`
}

// Table maps model identifiers to rates. Lookups never fail: unknown
// models price at the Default tuple.
type Table struct {
	Models  map[string]Rates `yaml:"models"`
	Default Rates            `yaml:"default"`
}

// Rate returns the rates for a model id, falling back to Default.
// Matching is exact first, then normalized (case and separator
// insensitive) so "claude-sonnet-4-5" and "Claude_Sonnet_4_5" resolve
// to the same entry.
func (t *Table) Rate(model string) Rates {
	if r, ok := t.Models[model]; ok {
		return r
	}

	normalized := normalizeModel(model)
	for name, r := range t.Models {
		if normalizeModel(name) == normalized {
			return r
		}
	}

	return t.Default
}

// Cost computes the dollar cost of a set of token counts for a model.
func (t *Table) Cost(model string, input, output, cacheWrite, cacheRead int64) float64 {
	r := t.Rate(model)
	cost := float64(input) * r.Input
	cost += float64(output) * r.Output
	cost += float64(cacheWrite) * r.CacheWrite
	cost += float64(cacheRead) * r.CacheRead
	return cost / 1_000_000
}

// normalizeModel normalizes model names for fuzzy matching.
func normalizeModel(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	return name
}

// DefaultTable returns the embedded pricing table. Rates are USD per
// million tokens. The default entry uses Sonnet rates as a reasonable
// middle ground for unrecognized models.
func DefaultTable() *Table {
	return &Table{
		Default: Rates{Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
		Models: map[string]Rates{
			// Opus family
			"claude-opus-4-5-20251101": {Input: 5.00, Output: 25.00, CacheWrite: 6.25, CacheRead: 0.50},
			"claude-opus-4-5":          {Input: 5.00, Output: 25.00, CacheWrite: 6.25, CacheRead: 0.50},
			"claude-opus-4-1-20250805": {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
			"claude-opus-4-1":          {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
			"claude-opus-4-20250514":   {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
			"claude-3-opus-20240229":   {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},

			// Sonnet family
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
			"claude-sonnet-4-5":          {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
			"claude-sonnet-4-20250514":   {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
			"claude-3-7-sonnet-20250219": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
			"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},

			// Haiku family
			"claude-haiku-4-5-20251001": {Input: 1.00, Output: 5.00, CacheWrite: 1.25, CacheRead: 0.10},
			"claude-haiku-4-5":          {Input: 1.00, Output: 5.00, CacheWrite: 1.25, CacheRead: 0.10},
			"claude-3-5-haiku-20241022": {Input: 0.80, Output: 4.00, CacheWrite: 1.00, CacheRead: 0.08},
			"claude-3-haiku-20240307":   {Input: 0.25, Output: 1.25, CacheWrite: 0.30, CacheRead: 0.03},
		},
	}
}

// Merge overlays rates from another table onto this one. Used to apply
// config-file overrides on top of the embedded defaults.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	if other.Default != (Rates{}) {
		t.Default = other.Default
	}
	for name, r := range other.Models {
		if t.Models == nil {
			t.Models = make(map[string]Rates)
		}
		t.Models[name] = r
	}
}
