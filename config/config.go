// Package config loads the registry-level settings for the lineage store:
// merge-cache sizing, the optional warm-start snapshot directory, and the
// audit log path. Like the rest of the module, there is no ambient global
// config — a config.Config value is constructed once and passed explicitly
// to whatever needs it.
//
// Configuration is loaded from a YAML file via Load, with environment
// variables overlaid on top so a deployment can tune a single knob without
// editing the file (the same two-source precedence used throughout the
// wider codebase this module was extracted from).
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the ambient (non-core) parts of the module
// read at startup.
type Config struct {
	// MergeCacheSize bounds the number of deserialized records
	// merge.Driver keeps memoized across containers.
	MergeCacheSize int

	// MergeCacheTTL expires memoized records after this long; zero means
	// no expiration (only LRU eviction).
	MergeCacheTTL time.Duration

	// WarmStartSnapshotDir is the directory for a registry.SnapshotCache: a
	// Badger database of warm-start hints that the registry only logs when
	// it creates a container. Empty means no directory is configured; every
	// container is rebuilt from replay either way.
	WarmStartSnapshotDir string

	// AuditLogPath is the file an audit.Trail appends write-back and
	// write-denied events to. Empty means no path is configured.
	AuditLogPath string
}

// yamlConfig mirrors Config with plain string fields for values (like
// durations) that yaml.v3 cannot unmarshal directly.
type yamlConfig struct {
	MergeCacheSize       int    `yaml:"merge_cache_size"`
	MergeCacheTTL        string `yaml:"merge_cache_ttl"`
	WarmStartSnapshotDir string `yaml:"warm_start_snapshot_dir"`
	AuditLogPath         string `yaml:"audit_log_path"`
}

// Default returns the configuration used when no file or environment
// overrides are present: a modest merge cache, no warm-start snapshot, no
// audit trail.
func Default() Config {
	return Config{
		MergeCacheSize: 4096,
		MergeCacheTTL:  10 * time.Minute,
	}
}

// Load reads a YAML file at path and overlays environment variable
// overrides on top. A missing file is not an error — Load falls back to
// Default() and still applies any environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			var y yamlConfig
			if err := yaml.Unmarshal(data, &y); err != nil {
				return cfg, err
			}
			if y.MergeCacheSize != 0 {
				cfg.MergeCacheSize = y.MergeCacheSize
			}
			if y.MergeCacheTTL != "" {
				d, err := time.ParseDuration(y.MergeCacheTTL)
				if err != nil {
					return cfg, err
				}
				cfg.MergeCacheTTL = d
			}
			if y.WarmStartSnapshotDir != "" {
				cfg.WarmStartSnapshotDir = y.WarmStartSnapshotDir
			}
			if y.AuditLogPath != "" {
				cfg.AuditLogPath = y.AuditLogPath
			}
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LINEAGE_MERGE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MergeCacheSize = n
		}
	}
	if v := os.Getenv("LINEAGE_MERGE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MergeCacheTTL = d
		}
	}
	if v := os.Getenv("LINEAGE_WARM_START_SNAPSHOT_DIR"); v != "" {
		cfg.WarmStartSnapshotDir = v
	}
	if v := os.Getenv("LINEAGE_AUDIT_LOG_PATH"); v != "" {
		cfg.AuditLogPath = v
	}
}
