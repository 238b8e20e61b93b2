// Package authserver answers endpoint verdict requests over plain TCP.
//
// A request is the card identifier followed by a newline. The server looks
// the card up, records the attempt, unlocks the door on a grant and replies
// AUTHORIZED or DENIED before closing the connection.
package authserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"gocardgate/cardid"
	"gocardgate/cardstore"
	"gocardgate/metrics"
)

const (
	VerdictAuthorized = "AUTHORIZED"
	VerdictDenied     = "DENIED"

	// maxRequest bounds one request.
	maxRequest = 1024

	defaultListen      = ":5000"
	defaultReadTimeout = 5 * time.Second
)

// Config holds listener settings.
type Config struct {
	Listen        string `yaml:"listen"`          // default ":5000"
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // per connection, default 5000
}

// Opener unlocks the door for a granted card without blocking.
type Opener interface {
	Pulse(d time.Duration)
}

// Server is the verdict server.
type Server struct {
	store       cardstore.Store
	opener      Opener
	unlock      time.Duration
	metrics     *metrics.Authd
	listen      string
	readTimeout time.Duration

	wg sync.WaitGroup
}

// New creates a Server. opener may be nil when no door is attached; unlock
// is passed to opener on each grant.
func New(cfg Config, store cardstore.Store, opener Opener, unlock time.Duration, m *metrics.Authd) *Server {
	listen := cfg.Listen
	if listen == "" {
		listen = defaultListen
	}
	readTimeout := defaultReadTimeout
	if cfg.ReadTimeoutMs > 0 {
		readTimeout = time.Duration(cfg.ReadTimeoutMs) * time.Millisecond
	}
	return &Server{
		store:       store,
		opener:      opener,
		unlock:      unlock,
		metrics:     m,
		listen:      listen,
		readTimeout: readTimeout,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listen, err)
	}
	log.Printf("Verdict server listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits for
// in-flight connections to finish. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var err error
	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			if ctx.Err() == nil {
				err = fmt.Errorf("accept: %w", aerr)
			}
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}

	ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.metrics.IncrementRequest()

	_ = conn.SetDeadline(time.Now().Add(s.readTimeout))
	req, err := readRequest(conn)
	if err != nil {
		log.Printf("Read request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	verdict := s.Decide(ctx, req, conn.RemoteAddr().String())
	if _, err := conn.Write([]byte(verdict)); err != nil {
		log.Printf("Write verdict to %s: %v", conn.RemoteAddr(), err)
	}
}

// readRequest reads up to a newline, EOF, a read error after some data, or
// maxRequest bytes and returns the trimmed text.
func readRequest(r io.Reader) (string, error) {
	buf := make([]byte, maxRequest)
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if bytes.IndexByte(buf[:n], '\n') >= 0 {
			break
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if n > 0 {
				// Partial request without a newline.
				break
			}
			return "", err
		}
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

// Decide returns the verdict for a raw request and records the attempt.
// Unknown, disabled or malformed identifiers are denied.
func (s *Server) Decide(ctx context.Context, request, remote string) string {
	authorized := false

	if id, err := cardid.Parse(request); err == nil {
		card, err := s.store.Lookup(ctx, id)
		switch {
		case err == nil:
			authorized = card.Authorized
		case !errors.Is(err, cardstore.ErrNotFound):
			log.Printf("Lookup %s: %v", id, err)
		}
	}

	if _, err := s.store.RecordAccess(ctx, cardstore.AccessEvent{
		CardID:     request,
		Authorized: authorized,
		Remote:     remote,
	}); err != nil {
		log.Printf("Record access: %v", err)
	}

	verdict := VerdictDenied
	if authorized {
		verdict = VerdictAuthorized
		if s.opener != nil {
			s.opener.Pulse(s.unlock)
		}
	}
	s.metrics.IncrementDecision(verdict)
	log.Printf("Card %q from %s: %s", request, remote, verdict)
	return verdict
}
