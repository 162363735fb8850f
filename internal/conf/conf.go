package conf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Gateway configuration
	Gateway GatewayConfig

	// Archive configuration
	Archive ArchiveConfig

	// Debug mode
	Debug bool
}

// ServerConfig contains the HTTP listener configuration.
type ServerConfig struct {
	Host string
	Port int
}

// GatewayConfig points at the browser-automation sidecar.
type GatewayConfig struct {
	URL string
}

// ArchiveConfig contains the message archive configuration.
type ArchiveConfig struct {
	DBPath string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	port := 3000
	if val := os.Getenv("PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			port = parsed
		}
	}

	host := os.Getenv("HOST")
	if host == "" {
		host = "0.0.0.0"
	}

	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://127.0.0.1:3001"
	}

	archiveDBPath := os.Getenv("ARCHIVE_DB_PATH")
	if archiveDBPath == "" {
		homeDir, _ := os.UserHomeDir()
		archiveDBPath = filepath.Join(homeDir, ".wabridge", "archive.db")
	}

	return &Config{
		Server:  ServerConfig{Host: host, Port: port},
		Gateway: GatewayConfig{URL: gatewayURL},
		Archive: ArchiveConfig{DBPath: archiveDBPath},
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("invalid gateway url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway url must be http or https, got %q", u.Scheme)
	}
	if c.Archive.DBPath == "" {
		return fmt.Errorf("archive db path is required")
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
