package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	stx = 0x02
	etx = 0x03
)

// Wiegand implements CardReader for Wiegand-to-serial bridges that send the
// badge as ASCII hex between STX and ETX.
type Wiegand struct {
	port serial.Port
	held held
}

// NewWiegand creates a new Wiegand reader on the specified serial port.
func NewWiegand(device string, baud int) (*Wiegand, error) {
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	_ = p.SetReadTimeout(50 * time.Millisecond)

	w := &Wiegand{port: p}
	w.flush()
	return w, nil
}

// Present implements CardReader.Present.
func (w *Wiegand) Present(ctx context.Context) bool {
	if w.held.present() {
		return true
	}
	tag, err := w.readFrame()
	if err != nil {
		log.Printf("Wiegand frame: %v", err)
		return false
	}
	if tag == 0 {
		return false
	}
	w.held.set(uidFromNumber(tag))
	return true
}

// ReadSerial implements CardReader.ReadSerial.
func (w *Wiegand) ReadSerial(ctx context.Context) ([]byte, error) {
	return w.held.read()
}

// Release implements CardReader.Release. Bytes that arrived while the card
// was being processed are discarded.
func (w *Wiegand) Release() error {
	if !w.held.present() {
		return nil
	}
	w.held.release()
	w.flush()
	return nil
}

// readFrame attempts to read a single card frame.
func (w *Wiegand) readFrame() (uint64, error) {
	if w.port == nil {
		return 0, errors.New("port not initialized")
	}

	first := make([]byte, 1)
	n, err := w.port.Read(first)
	if err != nil {
		return 0, fmt.Errorf("read STX: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	if first[0] != stx {
		w.flush()
		return 0, nil
	}

	var idBuilder strings.Builder
	buf := make([]byte, 1)

	for {
		n, err := w.port.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("read body: %w", err)
		}
		if n == 0 {
			w.flush()
			return 0, nil
		}
		if buf[0] == etx {
			break
		}
		idBuilder.WriteByte(buf[0])
	}

	return parseWiegandBody(idBuilder.String())
}

// parseWiegandBody checks the XOR checksum over the five hex byte pairs and
// returns the 24-bit card number held in the last three.
func parseWiegandBody(id string) (uint64, error) {
	for len(id) < 10 {
		id = "0" + id
	}

	var checksum byte
	for i := 0; i <= 8; i += 2 {
		hi, err := hexCharToNibble(id[i])
		if err != nil {
			return 0, fmt.Errorf("invalid hex at pos %d: %w", i, err)
		}
		lo, err := hexCharToNibble(id[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid hex at pos %d: %w", i+1, err)
		}
		checksum ^= byte((hi << 4) | lo)
	}
	if len(id) >= 12 {
		want, err := strconv.ParseUint(id[10:12], 16, 8)
		if err == nil && byte(want) != checksum {
			return 0, fmt.Errorf("checksum mismatch: got %02x want %02x", checksum, want)
		}
	}

	cardHex := id[4:10]
	cardInt, err := strconv.ParseUint(cardHex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse card hex %q: %w", cardHex, err)
	}

	return cardInt, nil
}

// Close implements CardReader.Close.
func (w *Wiegand) Close() error {
	if w.port == nil {
		return nil
	}
	return w.port.Close()
}

func (w *Wiegand) flush() {
	if w.port == nil {
		return
	}
	_ = w.port.SetReadTimeout(10 * time.Millisecond)
	defer func() {
		_ = w.port.SetReadTimeout(50 * time.Millisecond)
	}()

	tmp := make([]byte, 64)
	for {
		n, err := w.port.Read(tmp)
		if err != nil || n == 0 {
			return
		}
	}
}

func hexCharToNibble(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, nil
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, nil
	default:
		return 0, fmt.Errorf("not a hex char: %q", c)
	}
}
