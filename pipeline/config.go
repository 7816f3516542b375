package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/agentics/catalog"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/runs"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/transduction"
)

// Config holds everything one pipeline run needs. Subsystem sections
// delegate to the config-driven constructors of their packages.
//
// The target type comes from exactly one of TypeDefinition, CatalogType or
// Fields, checked in that order.
//
//	operation: map
//	type_name: Tweet
//	fields:
//	  - {name: tweet, type: str, description: A tweet advertising the movie}
//	instructions: Generate a tweet for the movie
//	batch_size: 10
//	provider: {kind: openai, model: gpt-4o-mini}
type Config struct {
	Operation      string             `json:"operation" yaml:"operation"`
	TypeName       string             `json:"type_name,omitempty" yaml:"type_name,omitempty"`
	Fields         []schema.FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`
	TypeDefinition string             `json:"type_definition,omitempty" yaml:"type_definition,omitempty"`
	CatalogType    string             `json:"catalog_type,omitempty" yaml:"catalog_type,omitempty"`
	SourceName     string             `json:"source_name,omitempty" yaml:"source_name,omitempty"`
	Instructions   string             `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	BatchSize      int                `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Count          int                `json:"count,omitempty" yaml:"count,omitempty"`
	MaxRows        int                `json:"max_rows,omitempty" yaml:"max_rows,omitempty"`
	Explanations   bool               `json:"explanations,omitempty" yaml:"explanations,omitempty"`
	Selector       string             `json:"selector,omitempty" yaml:"selector,omitempty"`

	// MergeSourceNil merges map output back onto its source records.
	// Defaults to true. Ignored by reduce and generate.
	MergeSourceNil *bool `json:"merge_source,omitempty" yaml:"merge_source,omitempty"`

	// UseProvider picks an entry of Providers instead of Provider.
	UseProvider string                     `json:"use_provider,omitempty" yaml:"use_provider,omitempty"`
	Provider    provider.Config            `json:"provider" yaml:"provider"`
	Providers   map[string]provider.Config `json:"providers,omitempty" yaml:"providers,omitempty"`

	Transduction transduction.Config `json:"transduction" yaml:"transduction"`
	Runs         runs.Config         `json:"runs" yaml:"runs"`
	Catalog      catalog.Config      `json:"catalog" yaml:"catalog"`
}

// DefaultConfig returns a map pipeline with merge-with-source enabled and
// every subsystem at its defaults.
func DefaultConfig() Config {
	merge := true
	return Config{
		Operation:      string(transduction.KindMap),
		SourceName:     "Source",
		Selector:       "merge",
		MergeSourceNil: &merge,
		Provider:       provider.DefaultConfig(),
		Transduction:   transduction.DefaultConfig(),
		Runs:           runs.DefaultConfig(),
		Catalog:        catalog.DefaultConfig(),
	}
}

// MergeSource returns whether map output is merged with its source.
func (c *Config) MergeSource() bool {
	if c.MergeSourceNil == nil {
		return true
	}
	return *c.MergeSourceNil
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Operation != "" {
		c.Operation = source.Operation
	}
	if source.TypeName != "" {
		c.TypeName = source.TypeName
	}
	if len(source.Fields) > 0 {
		c.Fields = source.Fields
	}
	if source.TypeDefinition != "" {
		c.TypeDefinition = source.TypeDefinition
	}
	if source.CatalogType != "" {
		c.CatalogType = source.CatalogType
	}
	if source.SourceName != "" {
		c.SourceName = source.SourceName
	}
	if source.Instructions != "" {
		c.Instructions = source.Instructions
	}
	if source.BatchSize > 0 {
		c.BatchSize = source.BatchSize
	}
	if source.Count > 0 {
		c.Count = source.Count
	}
	if source.MaxRows > 0 {
		c.MaxRows = source.MaxRows
	}
	if source.Explanations {
		c.Explanations = true
	}
	if source.Selector != "" {
		c.Selector = source.Selector
	}
	if source.MergeSourceNil != nil {
		c.MergeSourceNil = source.MergeSourceNil
	}
	if source.UseProvider != "" {
		c.UseProvider = source.UseProvider
	}
	if len(source.Providers) > 0 {
		c.Providers = source.Providers
	}

	c.Provider.Merge(&source.Provider)
	c.Transduction.Merge(&source.Transduction)
	c.Runs.Merge(&source.Runs)
	c.Catalog.Merge(&source.Catalog)
}

// LoadConfig reads a JSON or YAML config file, merges it with defaults, and
// returns the resulting Config. Files ending in .yaml or .yml are read as
// YAML; anything else as JSON.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Merge(&loaded)
	return &cfg, nil
}
