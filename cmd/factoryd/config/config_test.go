package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
admin: "0x00000000000000000000000000000000000000ad"
genesis:
  - address: "0x000000000000000000000000000000000000000a"
    coins: "100token,2atom"
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, cfg.AdminAddress(), cfg.DeployerAddress(), "deployer defaults to admin")
	require.Len(t, cfg.Genesis, 1)
	assert.Equal(t, "100token,2atom", cfg.Genesis[0].Coins)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing admin":  `listenAddr: ":1"`,
		"bad deployer":   `{admin: "0x00000000000000000000000000000000000000ad", deployer: "nope"}`,
		"bad log level":  `{admin: "0x00000000000000000000000000000000000000ad", logLevel: "loud"}`,
		"negative depth": `{admin: "0x00000000000000000000000000000000000000ad", maxDepth: -1}`,
		"bad coins": `
admin: "0x00000000000000000000000000000000000000ad"
genesis: [{address: "0x000000000000000000000000000000000000000a", coins: "1atom,1atom"}]`,
		"bad genesis address": `
admin: "0x00000000000000000000000000000000000000ad"
genesis: [{address: "0x0a", coins: "1atom"}]`,
		"not yaml": "admin: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
