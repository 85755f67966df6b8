package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and validates a pipeline configuration from a YAML file, with
// ${ENV_VAR} placeholder substitution. An empty path returns the built-in
// default pipeline.
//
// The returned value is a copy: callers cannot mutate shared configuration.
func Load(path string) (Pipeline, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
	}

	// Replace ${VAR} placeholders with environment values; unset variables
	// keep the literal placeholder so validation can report them.
	substituted := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		name := match[2 : len(match)-1]
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})

	// Start from defaults so a partial file only overrides what it declares.
	pipeline := Default()
	if err := yaml.Unmarshal([]byte(substituted), &pipeline); err != nil {
		return Pipeline{}, fmt.Errorf("failed to parse pipeline config %s: %w", path, err)
	}

	if err := pipeline.Validate(); err != nil {
		return Pipeline{}, fmt.Errorf("invalid pipeline config %s: %w", path, err)
	}

	return pipeline, nil
}
