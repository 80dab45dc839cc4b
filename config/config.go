package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/ussfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultProfileType is the profile group sessions are loaded from
	DefaultProfileType = "zosmf"

	// DefaultRequestTimeout is the per-request timeout for remote calls in seconds
	DefaultRequestTimeout = 30.0

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass page cache for remote files
	DefaultDirectIO = true

	DefaultFsName = "ussfs"
	DefaultName   = "ussfs"
)

// Config contains runtime configuration values for the USS explorer and mount.
type Config struct {
	MountOptions
	LogLvl         util.LogLevel
	ProfileDir     string  // Root of the profile store (Default ~/.zowe/profiles)
	ProfileType    string  // Profile group sessions are loaded from (Default "zosmf")
	WorkDir        string  // Local working directory for opened documents (Default <user cache dir>/ussfs)
	RequestTimeout float64 // Per-request timeout for remote calls in seconds; 0 disables (Default 30)
	MetricsAddr    string  // Address to serve prometheus metrics on; empty disables (Default "")

	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for remote files (Default true)
}

// RequestTimeoutDuration returns RequestTimeout as a [time.Duration]
func (c *Config) RequestTimeoutDuration() time.Duration {
	return secondsToDuration(c.RequestTimeout)
}

// AttrTimeoutDuration returns AttrTimeout as a [time.Duration]
func (c *Config) AttrTimeoutDuration() time.Duration {
	return secondsToDuration(c.AttrTimeout)
}

// EntryTimeoutDuration returns EntryTimeout as a [time.Duration]
func (c *Config) EntryTimeoutDuration() time.Duration {
	return secondsToDuration(c.EntryTimeout)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is the CLI verbosity between 1 (error) and 5 (trace); see [VerboseToLogLevel]
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	ProfileDir     *string  `yaml:"profile_dir,omitempty" json:"profile_dir,omitempty"`
	ProfileType    *string  `yaml:"profile_type,omitempty" json:"profile_type,omitempty"`
	WorkDir        *string  `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
	RequestTimeout *float64 `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
	MetricsAddr    *string  `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO       *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		ProfileDir:     defaultProfileDir(),
		ProfileType:    DefaultProfileType,
		WorkDir:        defaultWorkDir(),
		RequestTimeout: DefaultRequestTimeout,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
		DirectIO:       DefaultDirectIO,
	}
}

// NewConfig creates a Config from defaults with override applied. A nil
// override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.ProfileDir != nil {
		c.ProfileDir = *override.ProfileDir
	}
	if override.ProfileType != nil {
		c.ProfileType = *override.ProfileType
	}
	if override.WorkDir != nil {
		c.WorkDir = *override.WorkDir
	}
	if override.RequestTimeout != nil {
		c.RequestTimeout = *override.RequestTimeout
	}
	if override.MetricsAddr != nil {
		c.MetricsAddr = *override.MetricsAddr
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.DirectIO != nil {
		c.DirectIO = *override.DirectIO
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}

func defaultProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".zowe", "profiles")
	}
	return filepath.Join(home, ".zowe", "profiles")
}

func defaultWorkDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ussfs")
}
