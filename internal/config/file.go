package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Mode     string   `yaml:"mode"`
	Endpoint string   `yaml:"endpoint"`
	Timeout  string   `yaml:"timeout"`
	Proxy    string   `yaml:"proxy"`
	Insecure *bool    `yaml:"insecure"`
	Match    []string `yaml:"match"`
	LogLevel string   `yaml:"log_level"`
	Browser  struct {
		Remote   string `yaml:"remote"`
		Headless *bool  `yaml:"headless"`
	} `yaml:"browser"`
}

// LoadFile overlays the values set in the YAML file at path onto cfg.
// Keys missing from the file leave cfg untouched.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Mode != "" {
		mode, err := ParseMode(fc.Mode)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		cfg.Mode = mode
	}
	if v := strings.TrimSpace(fc.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if fc.Timeout != "" {
		timeout, err := parseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("config %s: invalid timeout: %w", path, err)
		}
		cfg.Timeout = timeout
	}
	if fc.Proxy != "" {
		cfg.Proxy = fc.Proxy
	}
	if fc.Insecure != nil {
		cfg.Insecure = *fc.Insecure
	}
	if len(fc.Match) > 0 {
		cfg.Match = fc.Match
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Browser.Remote != "" {
		cfg.Remote = fc.Browser.Remote
	}
	if fc.Browser.Headless != nil {
		cfg.Headless = *fc.Browser.Headless
	}

	return nil
}
