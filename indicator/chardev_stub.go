//go:build !linux

package indicator

import "errors"

// ErrChardevNotSupported is returned on platforms without the GPIO
// character device.
var ErrChardevNotSupported = errors.New("gpio chardev not supported on this platform")

// Chardev is a stub for non-linux platforms.
type Chardev struct{ Noop }

// NewChardev returns an error on non-linux platforms.
func NewChardev(chip string, greenPin, yellowPin, redPin, buzzerPin *uint8) (*Chardev, error) {
	return nil, ErrChardevNotSupported
}
