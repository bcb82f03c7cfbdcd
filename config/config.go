package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for clipfind.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Provider ProviderConfig `yaml:"provider"`
	Scan     ScanConfig     `yaml:"scan"`
	Search   SearchConfig   `yaml:"search"`
	Watch    WatchConfig    `yaml:"watch"`
}

// CacheConfig holds embedding cache configuration.
type CacheConfig struct {
	// Dir is the cache directory; empty means the platform user cache dir.
	Dir   string `yaml:"dir"`
	Model string `yaml:"model"`
	// Fingerprint selects change detection: "fast" (size + mtime proxy,
	// misses a rewrite that preserves both) or "sha256" (reads every byte).
	Fingerprint string `yaml:"fingerprint"`
}

// ProviderConfig holds embedding provider configuration.
type ProviderConfig struct {
	Kind           string `yaml:"kind"` // "clip-http" or "mock"
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	BatchSize      int    `yaml:"batch_size"`
}

// ScanConfig holds folder scanning configuration.
type ScanConfig struct {
	Excludes []string `yaml:"excludes"`
}

// SearchConfig holds query configuration.
type SearchConfig struct {
	TopK                 int `yaml:"top_k"`
	QueryCacheSize       int `yaml:"query_cache_size"`
	QueryCacheTTLMinutes int `yaml:"query_cache_ttl_minutes"`
}

// WatchConfig holds watch-mode configuration.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Model:       "clip-vit-base-patch32",
			Fingerprint: "fast",
		},
		Provider: ProviderConfig{
			Kind:           "clip-http",
			BaseURL:        "http://localhost:8756",
			TimeoutSeconds: 120,
			BatchSize:      16,
		},
		Scan: ScanConfig{
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/.thumbnails/**"},
		},
		Search: SearchConfig{
			TopK:                 20,
			QueryCacheSize:       128,
			QueryCacheTTLMinutes: 30,
		},
		Watch: WatchConfig{
			DebounceMillis: 1500,
		},
	}
}

// Load loads configuration from a YAML file, overlaying the defaults. A
// missing file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (clipfind.yaml, then
// .clipfind/config.yaml), falling back to defaults.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "clipfind.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".clipfind", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CacheDir resolves the cache directory, defaulting to the platform user
// cache dir.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "clipfind"), nil
}
