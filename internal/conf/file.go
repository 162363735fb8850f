package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML overlay. Every field overrides its
// environment counterpart when set.
type fileConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Gateway struct {
		URL string `yaml:"url"`
	} `yaml:"gateway"`
	Archive struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"archive"`
	Debug *bool `yaml:"debug"`
}

// ApplyFile overlays a YAML config file onto c. With an empty path a set of
// conventional locations is probed; a missing file is not an error.
func (c *Config) ApplyFile(configPath string) error {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/wabridge.yaml",
			"/etc/wabridge/wabridge.yaml",
		}
		if wd, err := os.Getwd(); err == nil {
			paths = append(paths, filepath.Join(wd, "configs", "wabridge.yaml"))
		}
	}

	var data []byte
	for _, p := range paths {
		if p == "" {
			continue
		}
		if b, err := os.ReadFile(p); err == nil {
			data = b
			break
		}
	}
	if data == nil {
		if configPath != "" {
			return fmt.Errorf("config file %s not found", configPath)
		}
		return nil
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Server.Host != "" {
		c.Server.Host = fc.Server.Host
	}
	if fc.Server.Port != 0 {
		c.Server.Port = fc.Server.Port
	}
	if fc.Gateway.URL != "" {
		c.Gateway.URL = fc.Gateway.URL
	}
	if fc.Archive.DBPath != "" {
		c.Archive.DBPath = fc.Archive.DBPath
	}
	if fc.Debug != nil {
		c.Debug = *fc.Debug
	}
	return nil
}
