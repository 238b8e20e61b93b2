// Package link keeps the endpoint's network link up before each
// authorization attempt.
package link

import (
	"fmt"
	"time"
)

// Connectivity is the network link collaborator.
type Connectivity interface {
	// IsConnected reports whether the link is usable right now.
	IsConnected() bool

	// BeginAssociation starts bringing the link up. It does not wait for
	// completion; callers poll IsConnected.
	BeginAssociation(network, secret string) error
}

// Config holds link settings.
type Config struct {
	Type       string `yaml:"type"`      // "wifi", "static", "none"
	Interface  string `yaml:"interface"` // e.g. "wlan0"; empty = any non-loopback
	Network    string `yaml:"network"`   // SSID for wifi
	Secret     string `yaml:"secret"`
	Attempts   int    `yaml:"attempts"`    // reconnection checks, default 20
	IntervalMs int    `yaml:"interval_ms"` // between checks, default 500
}

const (
	defaultAttempts = 20
	defaultInterval = 500 * time.Millisecond
)

func (c Config) attempts() int {
	if c.Attempts <= 0 {
		return defaultAttempts
	}
	return c.Attempts
}

func (c Config) interval() time.Duration {
	if c.IntervalMs <= 0 {
		return defaultInterval
	}
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// New creates a Connectivity based on the provided configuration.
func New(cfg Config) (Connectivity, error) {
	switch cfg.Type {
	case "wifi":
		if cfg.Network == "" {
			return nil, fmt.Errorf("wifi link requires a network name")
		}
		return NewWifi(cfg.Interface), nil
	case "static", "":
		return NewStatic(cfg.Interface), nil
	case "none":
		return Always{}, nil
	default:
		return nil, fmt.Errorf("unknown link type %q", cfg.Type)
	}
}

// Always is a Connectivity that is always connected.
type Always struct{}

// IsConnected implements Connectivity.IsConnected.
func (Always) IsConnected() bool { return true }

// BeginAssociation implements Connectivity.BeginAssociation.
func (Always) BeginAssociation(network, secret string) error { return nil }
