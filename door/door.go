// Package door drives the door strike the authorization service unlocks on
// a granted card.
package door

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// Strike is the interface for all door strike implementations.
type Strike interface {
	// Unlock energizes the strike (door can be opened).
	Unlock() error

	// Lock returns the strike to its locked state.
	Lock() error

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for strike implementations.
type Config struct {
	Type       string `yaml:"type"`        // "gpio_low" (relay active low), "gpio_high", "servo", "none"
	Pin        *int   `yaml:"pin"`         // BCM pin number
	ServoOpen  int    `yaml:"servo_open"`  // PWM value for open position
	ServoClose int    `yaml:"servo_close"` // PWM value for closed position
	UnlockMs   int    `yaml:"unlock_ms"`   // how long a grant keeps the door unlocked, default 3000
}

// New creates a Strike based on the provided configuration.
func New(cfg Config) (Strike, error) {
	if cfg.Pin == nil || cfg.Type == "none" {
		return &Noop{}, nil
	}
	if *cfg.Pin < 0 || *cfg.Pin > 53 {
		return nil, fmt.Errorf("invalid door pin %d", *cfg.Pin)
	}

	switch cfg.Type {
	case "servo", "gpio_high", "gpio_low", "":
	default:
		return nil, fmt.Errorf("unknown door type %q", cfg.Type)
	}

	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	switch cfg.Type {
	case "servo":
		return NewServo(hw, uint8(*cfg.Pin), cfg.ServoOpen, cfg.ServoClose)
	case "gpio_high":
		return NewGPIO(hw, uint8(*cfg.Pin), true)
	default:
		return NewGPIO(hw, uint8(*cfg.Pin), false)
	}
}
