package reader

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/kenshaw/evdev"
)

// Keyboard implements CardReader for USB keyboard-style RFID readers
// that output digits followed by Enter.
type Keyboard struct {
	device    *evdev.Evdev
	events    <-chan *evdev.EventEnvelope
	cancel    context.CancelFunc
	numDigits int  // expected number of digits (0 = any)
	isHex     bool // true for hex input, false for decimal
	format    string
	strbuf    string
	held      held
}

// NewKeyboard creates a new keyboard reader on the specified input device.
// Format specifies the input format: "10h" (10 hex digits), "10d" (10 decimal), "8h", "8d", etc.
// If format is empty, defaults to "10h" for backwards compatibility.
func NewKeyboard(device string, format string) (*Keyboard, error) {
	dev, err := evdev.OpenFile(device)
	if err != nil {
		return nil, fmt.Errorf("open evdev %s: %w", device, err)
	}

	log.Printf("Opened keyboard device: %s", dev.Name())
	log.Printf("Vendor: 0x%04x, Product: 0x%04x", dev.ID().Vendor, dev.ID().Product)

	numDigits, isHex, format := parseFormat(format)

	base := "hex"
	if !isHex {
		base = "decimal"
	}
	log.Printf("Keyboard reader format: %s (%d %s digits)", format, numDigits, base)

	ctx, cancel := context.WithCancel(context.Background())
	return &Keyboard{
		device:    dev,
		events:    dev.Poll(ctx),
		cancel:    cancel,
		numDigits: numDigits,
		isHex:     isHex,
		format:    format,
	}, nil
}

// parseFormat parses a format string such as "10h" or "8d".
func parseFormat(format string) (numDigits int, isHex bool, normalized string) {
	if format == "" {
		format = "10h"
	}
	format = strings.ToLower(format)

	switch {
	case strings.HasSuffix(format, "h"):
		numDigits, _ = strconv.Atoi(strings.TrimSuffix(format, "h"))
		isHex = true
	case strings.HasSuffix(format, "d"):
		numDigits, _ = strconv.Atoi(strings.TrimSuffix(format, "d"))
		isHex = false
	default:
		// Try to parse as just a number, assume hex
		numDigits, _ = strconv.Atoi(format)
		isHex = true
	}
	return numDigits, isHex, format
}

// Present implements CardReader.Present. It consumes the key events queued
// so far without waiting for more.
func (k *Keyboard) Present(ctx context.Context) bool {
	if k.held.present() {
		return true
	}
	for {
		select {
		case event := <-k.events:
			if event == nil {
				return false
			}
			if uid, ok := k.feed(event); ok {
				k.held.set(uid)
				return true
			}
		default:
			return false
		}
	}
}

// feed accumulates one key event and returns a UID when Enter completes a
// valid badge line.
func (k *Keyboard) feed(event *evdev.EventEnvelope) ([]byte, bool) {
	if _, ok := event.Type.(evdev.KeyType); !ok || event.Value != 1 {
		return nil, false
	}

	if event.Type != evdev.KeyEnter {
		k.strbuf += evdev.KeyType(event.Code).String()
		return nil, false
	}

	line := k.strbuf
	k.strbuf = ""
	if line == "" {
		return nil, false
	}

	uid, err := parseBadge(line, k.numDigits, k.isHex)
	if err != nil {
		log.Printf("Bad badge: %v", err)
		return nil, false
	}
	log.Printf("Got %s String %s", k.format, line)
	return uid, true
}

// parseBadge converts a keyboard badge line to UID bytes.
func parseBadge(line string, numDigits int, isHex bool) ([]byte, error) {
	if numDigits > 0 && len(line) != numDigits {
		return nil, fmt.Errorf("expected %d digits, got %d (%q)", numDigits, len(line), line)
	}

	base := 10
	if isHex {
		base = 16
	}
	number, err := strconv.ParseUint(line, base, 64)
	if err != nil {
		return nil, fmt.Errorf("badge line %q (base %d): %w", line, base, err)
	}
	return uidFromNumber(number), nil
}

// ReadSerial implements CardReader.ReadSerial.
func (k *Keyboard) ReadSerial(ctx context.Context) ([]byte, error) {
	return k.held.read()
}

// Release implements CardReader.Release.
func (k *Keyboard) Release() error {
	k.held.release()
	return nil
}

// Close implements CardReader.Close.
func (k *Keyboard) Close() error {
	if k.device == nil {
		return nil
	}
	k.cancel()
	return k.device.Close()
}
