package indicator

import (
	"fmt"
	"io"
	"os"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoConnectionLost = "@2 !150000 001010"
	neoNormalIdle     = "@3 !150000 400000"
	neoAccessGranted  = "@1 !50000 8000"
	neoAccessDenied   = "@2 !10000 ff"
	neoAlert          = "@1 !5000 ff"
	neoTerminated     = "@0 010101"
)

// Neopixel implements Indicator using an external neopixel tool via named pipe.
type Neopixel struct {
	pipe       io.WriteCloser
	idleString string
}

// NewNeopixel creates a new Neopixel indicator.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return newNeopixel(f), nil
}

func newNeopixel(w io.WriteCloser) *Neopixel {
	return &Neopixel{
		pipe:       w,
		idleString: neoNormalIdle,
	}
}

// Idle implements Indicator.Idle.
func (n *Neopixel) Idle() {
	n.write(n.idleString)
}

// Granted implements Indicator.Granted.
func (n *Neopixel) Granted() {
	n.idleString = neoNormalIdle
	n.write(neoAccessGranted)
}

// Denied implements Indicator.Denied.
func (n *Neopixel) Denied() {
	n.idleString = neoNormalIdle
	n.write(neoAccessDenied)
}

// Alert implements Indicator.Alert.
func (n *Neopixel) Alert(on bool) {
	if on {
		n.write(neoAlert)
		return
	}
	n.write(n.idleString)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (n *Neopixel) ConnectionLost() {
	n.idleString = neoConnectionLost
	n.write(neoConnectionLost)
}

// Shutdown implements Indicator.Shutdown.
func (n *Neopixel) Shutdown() {
	n.write(neoTerminated)
}

// Release implements Indicator.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	err := n.pipe.Close()
	n.pipe = nil
	return err
}

func (n *Neopixel) write(s string) {
	if n.pipe != nil {
		n.pipe.Write([]byte(s + "\n"))
	}
}
