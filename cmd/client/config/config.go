// Package config loads the factory client's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ClientConfig is the on-disk client configuration.
type ClientConfig struct {
	URL     string `yaml:"url"`
	Sender  string `yaml:"sender"`
	Factory string `yaml:"factory"`
}

// LoadConfig reads and validates path.
func LoadConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.New("config: url is required")
	}
	if !common.IsHexAddress(c.Sender) {
		return fmt.Errorf("config: sender %q is not an address", c.Sender)
	}
	if !common.IsHexAddress(c.Factory) {
		return fmt.Errorf("config: factory %q is not an address", c.Factory)
	}
	return nil
}
