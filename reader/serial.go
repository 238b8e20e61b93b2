package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Serial implements CardReader for serial RFID readers using a custom protocol.
// Protocol: [0x02][0x09][data...][checksum][0x03]
type Serial struct {
	port   io.ReadCloser
	device string
	held   held
}

// NewSerial creates a new serial RFID reader.
func NewSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = 115200
	}
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 50 * time.Millisecond,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	return &Serial{port: port, device: device}, nil
}

// Present implements CardReader.Present. One read attempt per call.
func (s *Serial) Present(ctx context.Context) bool {
	if s.held.present() {
		return true
	}
	buff := make([]byte, 9)
	n, err := s.port.Read(buff)
	if err != nil || n != len(buff) {
		return false
	}
	tag, ok := parseSerialFrame(buff)
	if !ok || tag == 0 {
		return false
	}
	s.held.set(uidFromNumber(tag))
	return true
}

// ReadSerial implements CardReader.ReadSerial.
func (s *Serial) ReadSerial(ctx context.Context) ([]byte, error) {
	return s.held.read()
}

// Release implements CardReader.Release.
func (s *Serial) Release() error {
	s.held.release()
	return nil
}

// Close implements CardReader.Close.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// parseSerialFrame validates a 9-byte frame and extracts the tag number.
func parseSerialFrame(buff []byte) (uint64, bool) {
	if len(buff) != 9 {
		return 0, false
	}

	preambles := []byte{0x02, 0x09}
	terminator := []byte{0x03}

	if !bytes.Equal(buff[0:2], preambles) {
		return 0, false
	}

	if !bytes.Equal(buff[8:9], terminator) {
		return 0, false
	}

	data := buff[1:7]
	xor := data[0]
	for i := 1; i < len(data); i++ {
		xor ^= data[i]
	}
	if xor != buff[7] {
		return 0, false
	}

	tagno := (uint64(data[2]) << 24) | (uint64(data[3]) << 16) | (uint64(data[4]) << 8) | uint64(data[5])
	return tagno, true
}
