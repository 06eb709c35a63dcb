package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete patternguard configuration (v1 schema)
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Scan    ScanConfig    `json:"scan" mapstructure:"scan"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ScanConfig contains scan limits and exclusions
type ScanConfig struct {
	MaxFiles         int      `json:"maxFiles" mapstructure:"maxFiles"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	TimeoutMs        int      `json:"timeoutMs" mapstructure:"timeoutMs"`
	Concurrency      int      `json:"concurrency" mapstructure:"concurrency"`
	Exclude          []string `json:"exclude" mapstructure:"exclude"`
}

// CacheConfig contains extraction cache configuration
type CacheConfig struct {
	// Persist enables the on-disk cache under .patternguard/cache.db
	Persist bool `json:"persist" mapstructure:"persist"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Scan: ScanConfig{
			MaxFiles:         5000,
			MaxFileSizeBytes: 1 << 20,
			TimeoutMs:        30000,
			Concurrency:      0, // 0 means one worker per CPU
			Exclude:          []string{},
		},
		Cache: CacheConfig{
			Persist: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from <root>/.patternguard/config.json.
// A missing config file yields the defaults.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".patternguard"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to <root>/.patternguard/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".patternguard")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Scan.MaxFiles < 0 {
		return &ConfigError{Field: "scan.maxFiles", Message: "must not be negative"}
	}
	if c.Scan.TimeoutMs < 0 {
		return &ConfigError{Field: "scan.timeoutMs", Message: "must not be negative"}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
