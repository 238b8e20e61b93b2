package reader

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532"
	"github.com/ZaparooProject/go-pn532/transport/i2c"
	"github.com/ZaparooProject/go-pn532/transport/uart"
)

const (
	// pn532Target is the logical target number the PN532 assigns to the
	// first card listed by InListPassiveTarget.
	pn532Target byte = 1

	pn532DetectTimeout = 100 * time.Millisecond
	pn532InitTimeout   = 5 * time.Second
)

// PN532 implements CardReader for 13.56 MHz cards on a PN532 controller
// attached over UART or I2C.
type PN532 struct {
	device *pn532.Device
	tag    *pn532.DetectedTag
}

// NewPN532 opens and initializes the controller at path. Paths containing
// "i2c" use the I2C transport, anything else is treated as a serial port.
func NewPN532(path string) (*PN532, error) {
	if path == "" {
		return nil, fmt.Errorf("pn532 reader requires a device path")
	}

	var transport pn532.Transport
	if strings.Contains(strings.ToLower(path), "i2c") {
		t, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("open pn532 i2c %s: %w", path, err)
		}
		transport = t
	} else {
		t, err := uart.New(path)
		if err != nil {
			return nil, fmt.Errorf("open pn532 uart %s: %w", path, err)
		}
		transport = t
	}

	device, err := pn532.New(transport, pn532.WithTimeout(time.Second))
	if err != nil {
		transport.Close()
		return nil, fmt.Errorf("create pn532 device: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pn532InitTimeout)
	defer cancel()
	if err := device.InitContext(ctx); err != nil {
		device.Close()
		return nil, fmt.Errorf("init pn532 %s: %w", path, err)
	}

	log.Printf("PN532 reader ready on %s", path)
	return &PN532{device: device}, nil
}

// Present implements CardReader.Present with a single short passive-target
// scan.
func (p *PN532) Present(ctx context.Context) bool {
	if p.tag != nil {
		return true
	}
	dctx, cancel := context.WithTimeout(ctx, pn532DetectTimeout)
	defer cancel()

	tags, err := p.device.DetectTagsContext(dctx, 1, 0)
	if err != nil || len(tags) == 0 {
		return false
	}
	p.tag = tags[0]
	return true
}

// ReadSerial implements CardReader.ReadSerial.
func (p *PN532) ReadSerial(ctx context.Context) ([]byte, error) {
	if p.tag == nil {
		return nil, ErrNoCard
	}
	if len(p.tag.UIDBytes) == 0 {
		return nil, fmt.Errorf("pn532 tag %q has no uid bytes", p.tag.UID)
	}
	uid := make([]byte, len(p.tag.UIDBytes))
	copy(uid, p.tag.UIDBytes)
	return uid, nil
}

// Release implements CardReader.Release by deselecting the target so the
// next scan sees a fresh card.
func (p *PN532) Release() error {
	if p.tag == nil {
		return nil
	}
	p.tag = nil
	if err := p.device.InRelease(pn532Target); err != nil {
		return fmt.Errorf("pn532 release: %w", err)
	}
	return nil
}

// Close implements CardReader.Close.
func (p *PN532) Close() error {
	if p.device == nil {
		return nil
	}
	return p.device.Close()
}
