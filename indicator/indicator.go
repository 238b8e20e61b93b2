package indicator

import "errors"

// ErrScreenNotCompiled is returned when the video indicator is configured
// but screen support was not compiled in.
var ErrScreenNotCompiled = errors.New("screen support not compiled in (build with -tags=screen)")

// Indicator is the interface for status indicator implementations (LEDs,
// buzzer, neopixels, framebuffer).
type Indicator interface {
	// Idle sets the indicator to idle/ready state.
	Idle()

	// Granted shows the access granted state.
	Granted()

	// Denied shows the access denied state.
	Denied()

	// Alert switches the error alert (red light and buzzer) on or off.
	Alert(on bool)

	// ConnectionLost sets the idle state used while the link is down.
	ConnectionLost()

	// Shutdown sets the indicator to shutdown state.
	Shutdown()

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for indicator implementations.
type Config struct {
	// GPIO pins (nil = not configured)
	GreenPin  *uint8 `yaml:"green_pin"`
	YellowPin *uint8 `yaml:"yellow_pin"`
	RedPin    *uint8 `yaml:"red_pin"`
	BuzzerPin *uint8 `yaml:"buzzer_pin"`

	// Driver selects how GPIO pins are driven: "govattu" (default,
	// memory-mapped BCM registers) or "chardev" (linux GPIO character device).
	Driver string `yaml:"driver"`
	Chip   string `yaml:"chip"` // chardev only, default "gpiochip0"

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`

	// Video framebuffer display (true = enabled)
	VideoEnabled bool `yaml:"video_enabled"`

	Timing Timing `yaml:"timing"`
}

func (c Config) hasPins() bool {
	return c.GreenPin != nil || c.YellowPin != nil || c.RedPin != nil || c.BuzzerPin != nil
}

// New creates an Indicator based on the provided configuration.
// Returns a Multi indicator if more than one output is configured.
func New(cfg Config) (Indicator, error) {
	var indicators []Indicator

	if cfg.hasPins() {
		var (
			ind Indicator
			err error
		)
		switch cfg.Driver {
		case "chardev":
			ind, err = NewChardev(cfg.Chip, cfg.GreenPin, cfg.YellowPin, cfg.RedPin, cfg.BuzzerPin)
		default:
			ind, err = NewGPIO(cfg.GreenPin, cfg.YellowPin, cfg.RedPin, cfg.BuzzerPin)
		}
		if err != nil {
			return nil, err
		}
		indicators = append(indicators, ind)
	}

	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe)
		if err != nil {
			releaseAll(indicators)
			return nil, err
		}
		indicators = append(indicators, neo)
	}

	if cfg.VideoEnabled {
		vid, err := NewVideo()
		if err != nil {
			releaseAll(indicators)
			return nil, err
		}
		indicators = append(indicators, vid)
	}

	switch len(indicators) {
	case 0:
		return &Noop{}, nil
	case 1:
		return indicators[0], nil
	default:
		return NewMulti(indicators...), nil
	}
}

func releaseAll(indicators []Indicator) {
	for _, ind := range indicators {
		_ = ind.Release()
	}
}
