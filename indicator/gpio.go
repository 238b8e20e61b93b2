package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// GPIO implements Indicator using discrete LED and buzzer pins driven
// through the BCM2835 register block.
type GPIO struct {
	hw        govattu.Vattu
	greenPin  *uint8
	yellowPin *uint8
	redPin    *uint8
	buzzerPin *uint8
	linkDown  bool
}

// NewGPIO creates a new GPIO-based indicator.
func NewGPIO(greenPin, yellowPin, redPin, buzzerPin *uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	g := &GPIO{
		hw:        hw,
		greenPin:  greenPin,
		yellowPin: yellowPin,
		redPin:    redPin,
		buzzerPin: buzzerPin,
	}

	// Initialize all pins as outputs, start off
	for _, pin := range g.pins() {
		hw.PinMode(*pin, govattu.ALToutput)
		hw.PinClear(*pin)
	}

	return g, nil
}

func (g *GPIO) pins() []*uint8 {
	var out []*uint8
	for _, p := range []*uint8{g.greenPin, g.yellowPin, g.redPin, g.buzzerPin} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (g *GPIO) set(pin *uint8) {
	if pin != nil {
		g.hw.PinSet(*pin)
	}
}

// Idle implements Indicator.Idle. Yellow stays lit while the link is down.
func (g *GPIO) Idle() {
	g.allOff()
	if g.linkDown {
		g.set(g.yellowPin)
	}
}

// Granted implements Indicator.Granted.
func (g *GPIO) Granted() {
	g.linkDown = false
	g.allOff()
	g.set(g.greenPin)
}

// Denied implements Indicator.Denied.
func (g *GPIO) Denied() {
	g.linkDown = false
	g.allOff()
	g.set(g.redPin)
}

// Alert implements Indicator.Alert.
func (g *GPIO) Alert(on bool) {
	g.allOff()
	if on {
		g.set(g.redPin)
		g.set(g.buzzerPin)
	}
}

// ConnectionLost implements Indicator.ConnectionLost.
func (g *GPIO) ConnectionLost() {
	g.linkDown = true
	g.Idle()
}

// Shutdown implements Indicator.Shutdown.
func (g *GPIO) Shutdown() {
	g.allOff()
}

// Release implements Indicator.Release.
func (g *GPIO) Release() error {
	g.allOff()
	return g.hw.Close()
}

func (g *GPIO) allOff() {
	for _, pin := range g.pins() {
		g.hw.PinClear(*pin)
	}
}
