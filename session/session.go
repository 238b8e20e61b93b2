// Package session owns the request/response exchange with the authorization
// service.
//
// The wire protocol is plain TCP: the client writes the card identifier and
// a newline in one write, the server answers with AUTHORIZED or DENIED and
// closes the connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"gocardgate/cardid"
)

const (
	defaultTimeout     = 5000 * time.Millisecond
	defaultDialTimeout = 5000 * time.Millisecond
	defaultDrainIdle   = 50 * time.Millisecond

	// maxResponse bounds the drained response.
	maxResponse = 1024
)

// Config holds authorization service settings.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	TimeoutMs     int    `yaml:"timeout_ms"`      // response wait after the request is written
	DialTimeoutMs int    `yaml:"dial_timeout_ms"` // connection attempt
	DrainIdleMs   int    `yaml:"drain_idle_ms"`   // idle gap that ends a response
}

// Dialer opens connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client performs authorization sessions against one server.
type Client struct {
	addr        string
	dialer      Dialer
	timeout     time.Duration
	dialTimeout time.Duration
	drainIdle   time.Duration
}

// New creates a Client. A nil dialer selects a plain *net.Dialer.
func New(cfg Config, dialer Dialer) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("authorization server host missing")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid authorization server port %d", cfg.Port)
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &Client{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		dialer:      dialer,
		timeout:     msOr(cfg.TimeoutMs, defaultTimeout),
		dialTimeout: msOr(cfg.DialTimeoutMs, defaultDialTimeout),
		drainIdle:   msOr(cfg.DrainIdleMs, defaultDrainIdle),
	}, nil
}

func msOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Authorize runs one session for id. It never retries; every path that
// opened a connection closes it before returning.
func (c *Client) Authorize(ctx context.Context, id cardid.ID) Outcome {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	conn, err := c.dialer.DialContext(dialCtx, "tcp", c.addr)
	cancel()
	if err != nil {
		return Outcome{Kind: ConnectionFailed, Err: fmt.Errorf("dial %s: %w", c.addr, err)}
	}
	defer conn.Close()

	// Unblock a pending read if the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := conn.Write([]byte(string(id) + "\n")); err != nil {
		return Outcome{Kind: ConnectionFailed, Err: fmt.Errorf("write request: %w", err)}
	}
	written := time.Now()

	text, err := c.readResponse(conn, written.Add(c.timeout))
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Kind: ConnectionFailed, Err: ctx.Err()}
		}
		if isTimeout(err) {
			return Outcome{Kind: Timeout, Err: fmt.Errorf("no response within %v", c.timeout)}
		}
		return Outcome{Kind: ConnectionFailed, Err: fmt.Errorf("read response: %w", err)}
	}
	return Classify(text)
}

// readResponse waits until deadline for the first bytes, then keeps reading
// until EOF, an idle gap of drainIdle, or maxResponse bytes.
func (c *Client) readResponse(conn net.Conn, deadline time.Time) (string, error) {
	buf := make([]byte, maxResponse)

	_ = conn.SetReadDeadline(deadline)
	n, err := conn.Read(buf)
	if n == 0 {
		if errors.Is(err, io.EOF) {
			// Closed without a verdict.
			return "", nil
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		return "", err
	}

	for n < len(buf) && err == nil {
		_ = conn.SetReadDeadline(time.Now().Add(c.drainIdle))
		var m int
		m, err = conn.Read(buf[n:])
		n += m
	}
	return string(buf[:n]), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
