package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the YAML file read when no path is given.
const DefaultFile = "defrumours.yaml"

// LoadFile overlays the YAML file at path onto cfg; keys absent from the
// file keep their current values. It reports false if the file doesn't
// exist (not an error) and returns an error if the file exists but cannot
// be parsed.
func LoadFile(path string, cfg *Config) (bool, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config file: %w", err)
	}

	return true, nil
}
