package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Diag.Port == 0 {
		cfg.Diag.Port = 8080
	}
	if cfg.Target.TimeoutSeconds == 0 {
		cfg.Target.TimeoutSeconds = 10
	}
	if cfg.Target.Method == "" {
		cfg.Target.Method = "ping"
	}

	return &cfg, nil
}
