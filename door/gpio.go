package door

import (
	"github.com/hjkoskel/govattu"
)

// GPIO implements Strike with a relay on a single pin.
type GPIO struct {
	hw         govattu.Vattu
	pin        uint8
	unlockHigh bool // true = drive high to unlock, false = drive low to unlock
}

// NewGPIO creates a relay strike and leaves it locked.
func NewGPIO(hw govattu.Vattu, pin uint8, unlockHigh bool) (*GPIO, error) {
	hw.PinMode(pin, govattu.ALToutput)

	g := &GPIO{
		hw:         hw,
		pin:        pin,
		unlockHigh: unlockHigh,
	}

	g.Lock()
	return g, nil
}

// Unlock implements Strike.Unlock.
func (g *GPIO) Unlock() error {
	if g.unlockHigh {
		g.hw.PinSet(g.pin)
	} else {
		g.hw.PinClear(g.pin)
	}
	return nil
}

// Lock implements Strike.Lock.
func (g *GPIO) Lock() error {
	if g.unlockHigh {
		g.hw.PinClear(g.pin)
	} else {
		g.hw.PinSet(g.pin)
	}
	return nil
}

// Release locks the strike and releases the register mapping.
func (g *GPIO) Release() error {
	g.Lock()
	return g.hw.Close()
}
