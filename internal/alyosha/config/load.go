package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// compileSchema compiles the embedded overlay schema. The schema is part of
// the binary, so a compile failure is a programming error, not a runtime
// condition.
func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("config: add schema resource: %w", err)
	}
	schema, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("config: compile schema: %w", err)
	}
	return schema, nil
}

// Load returns the default configuration overlaid with the YAML file at
// path. The overlay is validated against the embedded JSON schema before it
// is merged, so a typo in a key or a malformed style definition is rejected
// with a precise error instead of being silently ignored.
//
// An empty path returns Default() unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := Apply(cfg, data); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Apply merges a raw YAML overlay into cfg, validating the overlay against
// the embedded schema first and the merged result with Validate after.
func Apply(cfg *Config, data []byte) error {
	// Decode once into a generic document for schema validation.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc != nil {
		schema, err := compileSchema()
		if err != nil {
			return err
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("schema validation: %w", err)
		}
	}

	// Decode a second time over the defaults. yaml.v3 merges into existing
	// maps and replaces scalars/slices, which gives overlay semantics: keys
	// absent from the file keep their default values.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("apply yaml: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
