package indicator

import (
	"fmt"
	"time"
)

// Pattern is one of the fixed indication sequences.
type Pattern int

const (
	PatternAuthorized Pattern = iota
	PatternDenied
	PatternError
)

func (p Pattern) String() string {
	switch p {
	case PatternAuthorized:
		return "authorized"
	case PatternDenied:
		return "denied"
	case PatternError:
		return "error"
	default:
		return fmt.Sprintf("pattern(%d)", int(p))
	}
}

// Timing holds pattern durations in milliseconds. Zero fields take the
// defaults: 1500 ms steady for authorized and denied, three 200/200 ms
// alert pulses for errors.
type Timing struct {
	AuthorizedMs int `yaml:"authorized_ms"`
	DeniedMs     int `yaml:"denied_ms"`
	PulseOnMs    int `yaml:"pulse_on_ms"`
	PulseOffMs   int `yaml:"pulse_off_ms"`
	Pulses       int `yaml:"pulses"`
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (t Timing) withDefaults() Timing {
	return Timing{
		AuthorizedMs: orDefault(t.AuthorizedMs, 1500),
		DeniedMs:     orDefault(t.DeniedMs, 1500),
		PulseOnMs:    orDefault(t.PulseOnMs, 200),
		PulseOffMs:   orDefault(t.PulseOffMs, 200),
		Pulses:       orDefault(t.Pulses, 3),
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Controller drives an Indicator through patterns. Show blocks for the
// pattern's duration and leaves the indicator idle.
type Controller struct {
	ind    Indicator
	timing Timing
	sleep  func(time.Duration)
}

// NewController creates a Controller for ind.
func NewController(ind Indicator, t Timing) *Controller {
	return &Controller{ind: ind, timing: t.withDefaults(), sleep: time.Sleep}
}

// Indicator returns the driven indicator.
func (c *Controller) Indicator() Indicator {
	return c.ind
}

// Show runs p to completion.
func (c *Controller) Show(p Pattern) {
	switch p {
	case PatternAuthorized:
		c.ind.Granted()
		c.sleep(ms(c.timing.AuthorizedMs))
	case PatternDenied:
		c.ind.Denied()
		c.sleep(ms(c.timing.DeniedMs))
	default:
		for i := 0; i < c.timing.Pulses; i++ {
			c.ind.Alert(true)
			c.sleep(ms(c.timing.PulseOnMs))
			c.ind.Alert(false)
			c.sleep(ms(c.timing.PulseOffMs))
		}
	}
	c.ind.Idle()
}

// Duration returns how long Show(p) blocks.
func (c *Controller) Duration(p Pattern) time.Duration {
	switch p {
	case PatternAuthorized:
		return ms(c.timing.AuthorizedMs)
	case PatternDenied:
		return ms(c.timing.DeniedMs)
	default:
		return time.Duration(c.timing.Pulses) * ms(c.timing.PulseOnMs+c.timing.PulseOffMs)
	}
}
