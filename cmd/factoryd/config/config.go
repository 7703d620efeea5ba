// Package config loads the factoryd YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr = ":8545"
	DefaultMaxDepth   = 10
	DefaultLogLevel   = "info"
)

// GenesisBalance credits an account before the factory is deployed.
type GenesisBalance struct {
	Address string `yaml:"address"`
	Coins   string `yaml:"coins"`
}

// FactoryConfig is the on-disk daemon configuration.
type FactoryConfig struct {
	ListenAddr string           `yaml:"listenAddr"`
	LogLevel   string           `yaml:"logLevel"`
	Admin      string           `yaml:"admin"`
	Deployer   string           `yaml:"deployer"`
	MaxDepth   int              `yaml:"maxDepth"`
	Genesis    []GenesisBalance `yaml:"genesis"`
}

// LoadConfig reads path, applies defaults and validates the result.
func LoadConfig(path string) (*FactoryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*FactoryConfig, error) {
	var cfg FactoryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FactoryConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Deployer == "" {
		c.Deployer = c.Admin
	}
}

// Validate checks addresses, coin strings and the log level.
func (c *FactoryConfig) Validate() error {
	if !common.IsHexAddress(c.Admin) {
		return fmt.Errorf("config: admin %q is not an address", c.Admin)
	}
	if !common.IsHexAddress(c.Deployer) {
		return fmt.Errorf("config: deployer %q is not an address", c.Deployer)
	}
	if c.MaxDepth < 0 {
		return errors.New("config: maxDepth must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logLevel %q", c.LogLevel)
	}
	for i, g := range c.Genesis {
		if !common.IsHexAddress(g.Address) {
			return fmt.Errorf("config: genesis[%d]: address %q is not an address", i, g.Address)
		}
		if _, err := engine.ParseCoins(g.Coins); err != nil {
			return fmt.Errorf("config: genesis[%d]: %w", i, err)
		}
	}
	return nil
}

// AdminAddress returns the factory admin.
func (c *FactoryConfig) AdminAddress() common.Address {
	return common.HexToAddress(c.Admin)
}

// DeployerAddress returns the account that instantiates the factory.
func (c *FactoryConfig) DeployerAddress() common.Address {
	return common.HexToAddress(c.Deployer)
}
