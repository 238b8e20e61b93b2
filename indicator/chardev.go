//go:build linux

package indicator

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chardev implements Indicator with GPIO lines requested through the linux
// GPIO character device.
type Chardev struct {
	green    *gpiocdev.Line
	yellow   *gpiocdev.Line
	red      *gpiocdev.Line
	buzzer   *gpiocdev.Line
	linkDown bool
}

// NewChardev requests an output line on chip for every configured pin.
func NewChardev(chip string, greenPin, yellowPin, redPin, buzzerPin *uint8) (*Chardev, error) {
	if chip == "" {
		chip = "gpiochip0"
	}

	c := &Chardev{}
	targets := []struct {
		pin  *uint8
		line **gpiocdev.Line
	}{
		{greenPin, &c.green},
		{yellowPin, &c.yellow},
		{redPin, &c.red},
		{buzzerPin, &c.buzzer},
	}
	for _, tgt := range targets {
		if tgt.pin == nil {
			continue
		}
		l, err := gpiocdev.RequestLine(chip, int(*tgt.pin),
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer("gocardgate"))
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("request %s line %d: %w", chip, *tgt.pin, err)
		}
		*tgt.line = l
	}
	return c, nil
}

func (c *Chardev) lines() []*gpiocdev.Line {
	var out []*gpiocdev.Line
	for _, l := range []*gpiocdev.Line{c.green, c.yellow, c.red, c.buzzer} {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (c *Chardev) set(l *gpiocdev.Line) {
	if l != nil {
		_ = l.SetValue(1)
	}
}

func (c *Chardev) allOff() {
	for _, l := range c.lines() {
		_ = l.SetValue(0)
	}
}

// Idle implements Indicator.Idle.
func (c *Chardev) Idle() {
	c.allOff()
	if c.linkDown {
		c.set(c.yellow)
	}
}

// Granted implements Indicator.Granted.
func (c *Chardev) Granted() {
	c.linkDown = false
	c.allOff()
	c.set(c.green)
}

// Denied implements Indicator.Denied.
func (c *Chardev) Denied() {
	c.linkDown = false
	c.allOff()
	c.set(c.red)
}

// Alert implements Indicator.Alert.
func (c *Chardev) Alert(on bool) {
	c.allOff()
	if on {
		c.set(c.red)
		c.set(c.buzzer)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (c *Chardev) ConnectionLost() {
	c.linkDown = true
	c.Idle()
}

// Shutdown implements Indicator.Shutdown.
func (c *Chardev) Shutdown() {
	c.allOff()
}

// Release implements Indicator.Release.
func (c *Chardev) Release() error {
	var lastErr error
	for _, l := range c.lines() {
		_ = l.SetValue(0)
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	c.green, c.yellow, c.red, c.buzzer = nil, nil, nil, nil
	return lastErr
}
