package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML document of application options into a map.
// An empty file yields an empty map.
//
// Example:
//
//	# app.yaml
//	debug: false
//	modules:
//	  todo-list:
//	    page_size: 20
//
//	opts, err := config.LoadFile("app.yaml")
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	opts := make(map[string]any)
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return opts, nil
}
