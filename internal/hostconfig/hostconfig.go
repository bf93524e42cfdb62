// Package hostconfig parses the YAML configuration surface a host supplies
// at store-open time (spec.md §6): cache root/mode and the optional remote
// endpoint.
package hostconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mailcache/internal/cacheerr"
	"mailcache/internal/cachemode"
)

// CacheConfig selects the cache root directory and initial mode.
type CacheConfig struct {
	Directory string `yaml:"directory"`
	Mode      string `yaml:"mode"`
}

// IMAPConfig describes the optional remote endpoint. Required only for
// ONLINE/REFRESH/DESTRUCTIVE modes.
type IMAPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`
}

// Config is the full host-supplied configuration document.
type Config struct {
	Cache CacheConfig `yaml:"cache"`
	IMAP  IMAPConfig  `yaml:"imap"`
}

const defaultDirName = ".mailcache"

// Load reads and parses a YAML configuration file at path, filling in
// spec.md §6's documented defaults for anything left blank.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hostconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", cacheerr.ErrConfig, path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cache.Directory == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Cache.Directory = filepath.Join(home, defaultDirName)
		}
	}
	if c.Cache.Mode == "" {
		c.Cache.Mode = cachemode.Accelerated.String()
	}
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
}

// Validate checks the parsed mode string and confirms a remote endpoint is
// present when the mode requires one.
func (c *Config) Validate() error {
	mode, err := c.Mode()
	if err != nil {
		return err
	}
	if mode.RequiresRemote() && c.IMAP.Host == "" {
		return fmt.Errorf("%w: cache.mode %q requires imap.host to be set", cacheerr.ErrConfig, c.Cache.Mode)
	}
	return nil
}

// Mode parses the configured mode string.
func (c *Config) Mode() (cachemode.Mode, error) {
	mode, err := cachemode.Parse(c.Cache.Mode)
	if err != nil {
		return mode, fmt.Errorf("%w: %v", cacheerr.ErrConfig, err)
	}
	return mode, nil
}
