package reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"gocardgate/cardid"
)

// Pipe implements CardReader over a named pipe. Each line written to the
// pipe presents one card:
//
//	tag <id>      - card with the given id
//	rfid <id>     - alias for tag
//	# comment     - ignored
//
// <id> is decimal (a 125 kHz badge number) or hex with an optional 0x
// prefix and ':' separators.
type Pipe struct {
	path   string
	file   *os.File
	cards  chan []byte
	done   chan struct{}
	held   held
	remove bool
}

// NewPipe creates the named pipe at path (replacing any existing file) and
// starts listening on it.
func NewPipe(path string) (*Pipe, error) {
	if path == "" {
		return nil, errors.New("pipe reader requires a path")
	}

	// Remove existing pipe if it exists
	os.Remove(path)

	if err := unix.Mkfifo(path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", path, err)
	}

	// Opening read-write never blocks and keeps the pipe from reporting EOF
	// between writers.
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("open named pipe %s: %w", path, err)
	}

	p := &Pipe{
		path:   path,
		file:   file,
		cards:  make(chan []byte, 16),
		done:   make(chan struct{}),
		remove: true,
	}
	go p.listen()

	log.Printf("Pipe reader listening on %s", path)
	return p, nil
}

func (p *Pipe) listen() {
	defer close(p.done)

	scanner := bufio.NewScanner(p.file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		uid, err := parseLine(line)
		if err != nil {
			log.Printf("Pipe reader parse error: %v", err)
			continue
		}

		select {
		case p.cards <- uid:
		default:
			log.Printf("Pipe reader queue full, dropping %q", line)
		}
	}
}

// Present implements CardReader.Present.
func (p *Pipe) Present(ctx context.Context) bool {
	if p.held.present() {
		return true
	}
	select {
	case uid := <-p.cards:
		p.held.set(uid)
		return true
	default:
		return false
	}
}

// ReadSerial implements CardReader.ReadSerial.
func (p *Pipe) ReadSerial(ctx context.Context) ([]byte, error) {
	return p.held.read()
}

// Release implements CardReader.Release.
func (p *Pipe) Release() error {
	p.held.release()
	return nil
}

// Close stops the listener and removes the pipe.
func (p *Pipe) Close() error {
	err := p.file.Close()
	<-p.done
	if p.remove {
		if rmErr := os.Remove(p.path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// parseLine parses a command line into UID bytes.
func parseLine(line string) ([]byte, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := strings.ToLower(parts[0])
	switch cmd {
	case "rfid", "tag":
		if len(parts) < 2 {
			return nil, fmt.Errorf("%s requires tag ID", cmd)
		}
		return parseTagID(parts[1])
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

func parseTagID(s string) ([]byte, error) {
	if !strings.HasPrefix(strings.ToLower(s), "0x") && !strings.Contains(s, ":") {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return uidFromNumber(n), nil
		}
	}
	id, err := cardid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid tag ID: %s", s)
	}
	return id.Bytes()
}
