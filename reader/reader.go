package reader

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNoCard is returned by ReadSerial when no card is waiting.
var ErrNoCard = errors.New("no card in field")

// CardReader is the interface for all card reader implementations. It is
// used by a single goroutine.
type CardReader interface {
	// Present reports whether a new card is in the field. It must not
	// block for more than a short bounded poll.
	Present(ctx context.Context) bool

	// ReadSerial returns the UID bytes of the card found by Present.
	ReadSerial(ctx context.Context) ([]byte, error)

	// Release ends the session with the current card so the reader is
	// ready for the next one. Calling it again has no further effect.
	Release() error

	// Close releases any resources held by the reader.
	Close() error
}

// Config holds common configuration for reader implementations.
type Config struct {
	Type   string `yaml:"type"`   // "pn532", "wiegand", "keyboard", "serial", "pipe"
	Device string `yaml:"device"` // e.g. "/dev/ttyUSB0", "/dev/i2c-1", "/dev/input/event0", "/tmp/gocardgate-tags"
	Baud   int    `yaml:"baud"`   // baud rate for serial devices
	Format string `yaml:"format"` // keyboard only: "10h", "8d", ...
}

// New creates a CardReader based on the provided configuration.
func New(cfg Config) (CardReader, error) {
	switch cfg.Type {
	case "pn532", "nfc":
		return NewPN532(cfg.Device)
	case "wiegand":
		return NewWiegand(cfg.Device, cfg.Baud)
	case "keyboard", "10h-kbd":
		return NewKeyboard(cfg.Device, cfg.Format)
	case "pipe":
		return NewPipe(cfg.Device)
	case "serial", "":
		return NewSerial(cfg.Device, cfg.Baud)
	default:
		return nil, fmt.Errorf("unknown reader type %q", cfg.Type)
	}
}

// uidFromNumber renders a numeric badge id as four big-endian bytes, the
// width 125 kHz readers report.
func uidFromNumber(n uint64) []byte {
	uid := make([]byte, 4)
	binary.BigEndian.PutUint32(uid, uint32(n&0xffffffff))
	return uid
}

// held caches the UID found by Present until the session is released.
type held struct {
	uid []byte
}

func (h *held) present() bool {
	return h.uid != nil
}

func (h *held) set(uid []byte) {
	h.uid = uid
}

func (h *held) read() ([]byte, error) {
	if h.uid == nil {
		return nil, ErrNoCard
	}
	out := make([]byte, len(h.uid))
	copy(out, h.uid)
	return out, nil
}

func (h *held) release() {
	h.uid = nil
}
