package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Scan.MaxFiles <= 0 {
		t.Error("MaxFiles should be positive")
	}
	if cfg.Scan.MaxFileSizeBytes <= 0 {
		t.Error("MaxFileSizeBytes should be positive")
	}
	if cfg.Scan.TimeoutMs <= 0 {
		t.Error("TimeoutMs should be positive")
	}
	if !cfg.Cache.Persist {
		t.Error("cache persistence should be on by default")
	}
	if cfg.Logging.Format != "human" || cfg.Logging.Level != "info" {
		t.Errorf("Logging = %+v, want human/info", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Version != 1 || cfg.Scan.MaxFiles != 5000 {
		t.Errorf("missing config should produce defaults, got %+v", cfg)
	}
}

func TestSaveAndReload(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Scan.MaxFiles = 123
	cfg.Scan.Exclude = []string{"generated/**"}
	cfg.Cache.Persist = false
	if err := cfg.Save(root); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(root, ".patternguard", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Scan.MaxFiles != 123 {
		t.Errorf("MaxFiles = %d, want 123", loaded.Scan.MaxFiles)
	}
	if len(loaded.Scan.Exclude) != 1 || loaded.Scan.Exclude[0] != "generated/**" {
		t.Errorf("Exclude = %v, want [generated/**]", loaded.Scan.Exclude)
	}
	if loaded.Cache.Persist {
		t.Error("Persist = true, want false after reload")
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".patternguard")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"scan":{"maxFiles":10}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.MaxFiles != 10 {
		t.Errorf("MaxFiles = %d, want 10", cfg.Scan.MaxFiles)
	}
	if cfg.Scan.TimeoutMs != 30000 {
		t.Errorf("TimeoutMs = %d, unset fields must keep defaults", cfg.Scan.TimeoutMs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad version", func(c *Config) { c.Version = 2 }, true},
		{"negative max files", func(c *Config) { c.Scan.MaxFiles = -1 }, true},
		{"negative timeout", func(c *Config) { c.Scan.TimeoutMs = -5 }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"json log format", func(c *Config) { c.Logging.Format = "json" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
