package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
url: "ws://localhost:8545/ws"
sender: "0x000000000000000000000000000000000000000a"
factory: "0x00000000000000000000000000000000000000fa"
`))
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8545/ws", cfg.URL)

	_, err = LoadConfig(writeConfig(t, `sender: "0x000000000000000000000000000000000000000a"`))
	assert.Error(t, err)
	_, err = LoadConfig(writeConfig(t, `{url: "ws://x", sender: "bob", factory: "0x00000000000000000000000000000000000000fa"}`))
	assert.Error(t, err)
}
