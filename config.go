package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"gocardgate/endpoint"
	"gocardgate/indicator"
	"gocardgate/link"
	"gocardgate/mqtt"
	"gocardgate/reader"
	"gocardgate/session"
)

// Config is the main configuration structure for the endpoint.
type Config struct {
	// Authorization service
	Server session.Config `yaml:"server"`

	// Network link kept up before each transaction
	Link link.Config `yaml:"link"`

	// Reader configuration
	Reader reader.Config `yaml:"reader"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`

	// Poll loop timing
	Loop endpoint.Config `yaml:"loop"`

	// MQTT status bus (optional)
	MQTT mqtt.Config `yaml:"mqtt"`

	// General settings
	ClientID    string `yaml:"client_id"`
	MetricsAddr string `yaml:"metrics_addr"` // e.g. ":9100"; empty disables
	PingSecs    int    `yaml:"ping_secs"`
}

// loadConfig reads and validates the YAML file at path.
func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Server.Host == "" {
		return errors.New("server.host missing in config file")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.ClientID == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("client_id missing and hostname unavailable: %w", err)
		}
		c.ClientID = host
	}
	if c.PingSecs <= 0 {
		c.PingSecs = 120
	}
	return nil
}
