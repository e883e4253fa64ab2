package mcp

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfig decodes a Config from YAML (its struct tags also cover JSON,
// so JSON documents parse too since YAML is a JSON superset).
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("mcp: parsing config: %w", err)
	}
	return &cfg, nil
}
