// Package config loads flagstored settings from a YAML file, an optional
// .env file beside it, and FLAGSTORE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/soden46/hyperlux-flagstore/execution"
	"github.com/soden46/hyperlux-flagstore/storage"
)

// DefaultPath is the config file looked for when none is given.
const DefaultPath = "flagstore.yaml"

// Config is the flagstored configuration.
type Config struct {
	// DataDir is where the leveldb or badger backend keeps its files.
	DataDir string `yaml:"data_dir" env:"FLAGSTORE_DATA_DIR"`
	// Backend is one of memory, leveldb, badger.
	Backend string `yaml:"backend" env:"FLAGSTORE_BACKEND"`
	// Contract is the instance address the flag store is hosted under.
	Contract string `yaml:"contract" env:"FLAGSTORE_CONTRACT"`
	// SelfTest makes instantiate remove the flag after verifying it.
	SelfTest bool `yaml:"self_test" env:"FLAGSTORE_SELF_TEST"`
	// WASMPath, when set, runs a wasm contract instead of the native one.
	WASMPath string `yaml:"wasm_path" env:"FLAGSTORE_WASM_PATH"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" env:"FLAGSTORE_LOG_LEVEL"`
	// P2P gossips contract events to peers (needs the p2p build tag).
	P2P bool `yaml:"p2p" env:"FLAGSTORE_P2P"`
	// Bootstrap lists peer multiaddrs to dial when P2P is on.
	Bootstrap []string `yaml:"bootstrap" env:"FLAGSTORE_BOOTSTRAP" envSeparator:","`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:  "flagstore_db",
		Backend:  storage.BackendLevelDB,
		Contract: "flagstore",
		LogLevel: "info",
	}
}

// Load reads path (missing files are skipped), then the .env file in the
// same directory, then the process environment. Later sources win. The
// result is not validated; callers apply their own overrides first.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	vars, err := dotenv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return Config{}, err
	}
	for k, v := range env.ToMap(os.Environ()) {
		vars[k] = v
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

func dotenv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	switch {
	case err == nil:
		return vars, nil
	case errors.Is(err, fs.ErrNotExist):
		return map[string]string{}, nil
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Backend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBadger:
	default:
		return fmt.Errorf("backend %q: want one of memory, leveldb, badger", c.Backend)
	}
	if strings.TrimSpace(c.Contract) == "" {
		return errors.New("contract address is empty")
	}
	if n := len(execution.InstanceNamespace(c.Contract)); n > storage.MaxNamespaceLen {
		return fmt.Errorf("contract address too long: namespace is %d bytes, max %d", n, storage.MaxNamespaceLen)
	}
	if c.Backend != storage.BackendMemory && c.DataDir == "" {
		return fmt.Errorf("backend %s needs data_dir", c.Backend)
	}
	return nil
}
