package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type WatcherConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// RetainDays controls how far back events are kept; older rows are
	// purged at startup.
	RetainDays int `yaml:"retain_days"`
}

type Config struct {
	SocketPath  string        `yaml:"socket_path"`
	PIDPath     string        `yaml:"pid_path"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	CatalogDirs []string      `yaml:"catalog_dirs"`
	Audit       AuditConfig   `yaml:"audit"`
	Watcher     WatcherConfig `yaml:"watcher"`
}

func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".inout")

	return &Config{
		SocketPath:  filepath.Join(baseDir, "daemon.sock"),
		PIDPath:     filepath.Join(baseDir, "daemon.pid"),
		LogLevel:    "info",
		LogFormat:   "text",
		CatalogDirs: []string{filepath.Join(baseDir, "catalog")},
		Audit: AuditConfig{
			Enabled:    true,
			DBPath:     filepath.Join(baseDir, "audit.db"),
			RetainDays: 30,
		},
		Watcher: WatcherConfig{
			Enabled:        true,
			DebounceWindow: 300 * time.Millisecond,
			MaxBatchSize:   100,
			IgnorePatterns: []string{
				"**/.git/**",
				"**/*.tmp",
				"**/*.swp",
				"**/*~",
			},
		},
	}
}

// LoadFile overlays a YAML config file onto the defaults. A missing file
// is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.SocketPath), filepath.Dir(c.Audit.DBPath)}
	dirs = append(dirs, c.CatalogDirs...)

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
