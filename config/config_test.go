package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soden46/hyperlux-flagstore/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flagstore.yaml")
	writeFile(t, path, `
data_dir: /var/lib/flagstore
backend: badger
contract: flags-1
self_test: true
bootstrap:
  - /ip4/10.0.0.1/udp/4001/quic-v1/p2p/12D3KooWExample
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/flagstore", cfg.DataDir)
	require.Equal(t, "badger", cfg.Backend)
	require.Equal(t, "flags-1", cfg.Contract)
	require.True(t, cfg.SelfTest)
	require.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Bootstrap, 1)
}

func TestLoadEnvOverridesDotenvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flagstore.yaml")
	writeFile(t, path, "backend: badger\ncontract: from-yaml\nlog_level: warn\n")
	writeFile(t, filepath.Join(dir, ".env"), "FLAGSTORE_CONTRACT=from-dotenv\nFLAGSTORE_BACKEND=memory\n")
	t.Setenv("FLAGSTORE_BACKEND", "leveldb")
	t.Setenv("FLAGSTORE_BOOTSTRAP", "/ip4/1.1.1.1/udp/1/quic-v1,/ip4/2.2.2.2/udp/2/quic-v1")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Contract)
	require.Equal(t, "leveldb", cfg.Backend)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, []string{"/ip4/1.1.1.1/udp/1/quic-v1", "/ip4/2.2.2.2/udp/2/quic-v1"}, cfg.Bootstrap)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagstore.yaml")
	writeFile(t, path, "backend: [unterminated")

	_, err := config.Load(path)
	require.ErrorContains(t, err, "parse")
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagstore.yaml")
	writeFile(t, path, "backend: rocksdb\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "rocksdb", cfg.Backend)
	require.Error(t, cfg.Validate())

	cfg.Backend = "memory"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsLongContract(t *testing.T) {
	cfg := config.Default()
	cfg.Contract = strings.Repeat("a", 0xFFFF)
	require.ErrorContains(t, cfg.Validate(), "contract address too long")

	cfg.Contract = strings.Repeat("a", 1024)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Backend = "rocksdb"
	require.ErrorContains(t, bad.Validate(), `backend "rocksdb"`)

	bad = cfg
	bad.Contract = " "
	require.ErrorContains(t, bad.Validate(), "contract address is empty")

	bad = cfg
	bad.DataDir = ""
	require.ErrorContains(t, bad.Validate(), "needs data_dir")

	mem := cfg
	mem.Backend = "memory"
	mem.DataDir = ""
	require.NoError(t, mem.Validate())
}
