package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"gocardgate/authserver"
	"gocardgate/cardstore"
	"gocardgate/door"
)

// Config is the authorization service configuration.
type Config struct {
	// Verdict listener
	Server authserver.Config `yaml:"server"`

	// Card database
	Store cardstore.Config `yaml:"store"`

	// Door strike
	Door door.Config `yaml:"door"`

	// Admin API and /metrics, e.g. ":8080"; empty disables
	AdminAddr string `yaml:"admin_addr"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (*Config, error) {
	cfg := Config{
		Store: cardstore.Config{Path: "./data/gocardgate.db", Seed: true},
	}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Door.UnlockMs <= 0 {
		cfg.Door.UnlockMs = int(door.DefaultUnlock.Milliseconds())
	}
	return &cfg, nil
}
