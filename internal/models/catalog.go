package models

import (
	"slices"
	"strings"
)

// Descriptor describes one model tier.
type Descriptor struct {
	Name           string  `json:"name" yaml:"name"`
	Size           string  `json:"size" yaml:"size"`
	Parameters     string  `json:"parameters" yaml:"parameters"`
	MemoryRequired string  `json:"memory_required" yaml:"memory_required"`
	RelativeSpeed  float64 `json:"relative_speed" yaml:"relative_speed"`
	Multilingual   bool    `json:"multilingual" yaml:"multilingual"`
	Available      bool    `json:"available" yaml:"available"`
}

// Relative speed is measured against the largest model (1.0).
var catalog = []Descriptor{
	{Name: "tiny", Size: "39 MB", Parameters: "39 M", MemoryRequired: "~1 GB", RelativeSpeed: 32.0, Multilingual: true},
	{Name: "base", Size: "74 MB", Parameters: "74 M", MemoryRequired: "~1 GB", RelativeSpeed: 16.0, Multilingual: true},
	{Name: "small", Size: "244 MB", Parameters: "244 M", MemoryRequired: "~2 GB", RelativeSpeed: 6.0, Multilingual: true},
	{Name: "medium", Size: "769 MB", Parameters: "769 M", MemoryRequired: "~5 GB", RelativeSpeed: 2.0, Multilingual: true},
	{Name: "large", Size: "1550 MB", Parameters: "1550 M", MemoryRequired: "~10 GB", RelativeSpeed: 1.0, Multilingual: true},
}

// Catalog returns a copy of the model tiers, lightest first.
func Catalog() []Descriptor {
	return slices.Clone(catalog)
}

// Names returns the catalog model names, lightest first.
func Names() []string {
	names := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a catalog entry by name, case-insensitively.
func Lookup(name string) (Descriptor, bool) {
	name = NormalizeName(name)
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// NormalizeName lowercases and trims a model name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
