// Package config assembles cass's runtime configuration by layering
// compiled-in defaults, a JSON file under the data directory, and
// environment variable overrides, in that order — the same layering the
// teacher's internal/config/user_config.go uses for its own settings.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Embedder selects the semantic embedding backend.
type Embedder string

const (
	EmbedderHash   Embedder = "hash"
	EmbedderMiniLM Embedder = "minilm"
)

// Config is cass's fully resolved runtime configuration.
type Config struct {
	DataDir string `json:"-"` // never persisted; always resolved at startup

	CacheShardCap int `json:"cache_shard_cap"`
	CacheTotalCap int `json:"cache_total_cap"`
	CacheByteCap  int `json:"cache_byte_cap"` // bytes

	WarmDebounce time.Duration `json:"-"`
	WarmDebounceMs int64       `json:"warm_debounce_ms"`

	SemanticEmbedder Embedder `json:"semantic_embedder"`

	DebugMode bool `json:"debug_mode"`
}

// Default returns the compiled-in defaults from spec.md §4.G/§6.
func Default() Config {
	return Config{
		CacheShardCap:    256,
		CacheTotalCap:    2048,
		CacheByteCap:     10 * 1024 * 1024,
		WarmDebounceMs:   120,
		SemanticEmbedder: EmbedderHash,
		DebugMode:        false,
	}
}

// DefaultDataDir resolves the platform-default data directory when
// CASS_DATA_DIR and --data-dir are both unset.
func DefaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cass")
	}
	return ".cass"
}

// Load builds a Config for dataDir: defaults, then <dataDir>/config.json if
// present, then environment variable overrides.
func Load(dataDir string) (Config, error) {
	cfg := Default()
	cfg.DataDir = dataDir

	path := filepath.Join(dataDir, "config.json")
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		cfg.DataDir = dataDir
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	cfg.WarmDebounce = time.Duration(cfg.WarmDebounceMs) * time.Millisecond
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CASS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CASS_CACHE_SHARD_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheShardCap = n
		}
	}
	if v := os.Getenv("CASS_CACHE_TOTAL_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheTotalCap = n
		}
	}
	if v := os.Getenv("CASS_CACHE_BYTE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheByteCap = n
		}
	}
	if v := os.Getenv("CASS_WARM_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.WarmDebounceMs = n
		}
	}
	if v := os.Getenv("CASS_SEMANTIC_EMBEDDER"); v != "" {
		cfg.SemanticEmbedder = Embedder(v)
	}
}

// DataLayout resolves the well-known paths under a data directory (spec.md §6).
type DataLayout struct {
	Root          string
	DBPath        string
	IndexDir      string
	VectorDir     string
	RemotesDir    string
	SourcesToml   string
	LockPath      string
	WatchStatePath string
}

// Layout returns the DataLayout rooted at dataDir.
func Layout(dataDir string) DataLayout {
	return DataLayout{
		Root:           dataDir,
		DBPath:         filepath.Join(dataDir, "agent_search.db"),
		IndexDir:       filepath.Join(dataDir, "index"),
		VectorDir:      filepath.Join(dataDir, "vector_index"),
		RemotesDir:     filepath.Join(dataDir, "remotes"),
		SourcesToml:    filepath.Join(dataDir, "sources.toml"),
		LockPath:       filepath.Join(dataDir, "indexer.lock"),
		WatchStatePath: filepath.Join(dataDir, "watch_state.json"),
	}
}
