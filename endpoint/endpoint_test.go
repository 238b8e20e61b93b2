package endpoint

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocardgate/cardid"
	"gocardgate/indicator"
	"gocardgate/link"
	"gocardgate/metrics"
	"gocardgate/report"
	"gocardgate/session"
)

// fakeReader hands out queued UIDs one card at a time.
type fakeReader struct {
	cards    [][]byte
	cur      []byte
	readErr  error
	releases int
}

func (r *fakeReader) Present(ctx context.Context) bool {
	if r.cur != nil {
		return true
	}
	if len(r.cards) == 0 {
		return false
	}
	r.cur, r.cards = r.cards[0], r.cards[1:]
	return true
}

func (r *fakeReader) ReadSerial(ctx context.Context) ([]byte, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.cur, nil
}

func (r *fakeReader) Release() error {
	if r.cur != nil {
		r.releases++
	}
	r.cur = nil
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeShower struct {
	shown []indicator.Pattern
}

func (s *fakeShower) Show(p indicator.Pattern) {
	s.shown = append(s.shown, p)
}

type fakeIndicator struct {
	indicator.Noop
	idle, lost int
}

func (f *fakeIndicator) Idle()           { f.idle++ }
func (f *fakeIndicator) ConnectionLost() { f.lost++ }

type staticLink bool

func (l staticLink) Ensure(ctx context.Context) bool { return bool(l) }

// switchLink can be flipped between cycles.
type switchLink struct {
	up bool
}

func (l *switchLink) Ensure(ctx context.Context) bool { return l.up }

// countingAuth counts sessions before delegating.
type countingAuth struct {
	inner Authorizer
	calls int
}

func (a *countingAuth) Authorize(ctx context.Context, id cardid.ID) session.Outcome {
	a.calls++
	return a.inner.Authorize(ctx, id)
}

type recorder struct {
	events []report.Event
}

func (r *recorder) Report(e report.Event) {
	r.events = append(r.events, e)
}

// verdictServer answers every request with reply. An empty reply keeps the
// connection open without answering until the client goes away.
type verdictServer struct {
	ln   net.Listener
	mu   sync.Mutex
	seen []string
}

func startVerdictServer(t *testing.T, reply string) *verdictServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	vs := &verdictServer{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go vs.handle(conn, reply)
		}
	}()
	return vs
}

func (vs *verdictServer) handle(conn net.Conn, reply string) {
	defer conn.Close()
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	vs.mu.Lock()
	vs.seen = append(vs.seen, strings.TrimSpace(line))
	vs.mu.Unlock()

	if reply == "" {
		// Wait for the client to give up.
		_, _ = conn.Read(make([]byte, 1))
		return
	}
	_, _ = conn.Write([]byte(reply))
}

func (vs *verdictServer) requests() []string {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return append([]string(nil), vs.seen...)
}

func (vs *verdictServer) port() int {
	return vs.ln.Addr().(*net.TCPAddr).Port
}

func newClient(t *testing.T, port int, timeoutMs int) *session.Client {
	t.Helper()
	c, err := session.New(session.Config{Host: "127.0.0.1", Port: port, TimeoutMs: timeoutMs, DialTimeoutMs: 500}, nil)
	require.NoError(t, err)
	return c
}

type harness struct {
	ep     *Endpoint
	reader *fakeReader
	shower *fakeShower
	ind    *fakeIndicator
	rec    *recorder
	auth   *countingAuth
	now    time.Time
	slept  []time.Duration
}

func newHarness(t *testing.T, auth Authorizer, lk LinkGuard, m *metrics.Endpoint) *harness {
	t.Helper()
	h := &harness{
		reader: &fakeReader{},
		shower: &fakeShower{},
		ind:    &fakeIndicator{},
		rec:    &recorder{},
		auth:   &countingAuth{inner: auth},
		now:    time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	ep, err := New(Config{}, Deps{
		Reader:    h.reader,
		Link:      lk,
		Auth:      h.auth,
		Indicator: h.ind,
		Shower:    h.shower,
		Reporter:  h.rec,
		Metrics:   m,
	})
	require.NoError(t, err)
	ep.now = func() time.Time { return h.now }
	ep.sleep = func(ctx context.Context, d time.Duration) bool {
		h.slept = append(h.slept, d)
		return true
	}
	h.ep = ep
	return h
}

func (h *harness) lastEvent(kind report.Kind) (report.Event, bool) {
	for i := len(h.rec.events) - 1; i >= 0; i-- {
		if h.rec.events[i].Kind == kind {
			return h.rec.events[i], true
		}
	}
	return report.Event{}, false
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name    string
		outcome session.Outcome
		pattern indicator.Pattern
		detail  string
	}{
		{"authorized", session.Outcome{Kind: session.Authorized}, indicator.PatternAuthorized, ""},
		{"denied", session.Outcome{Kind: session.Denied}, indicator.PatternDenied, ""},
		{"unrecognized", session.Outcome{Kind: session.Unrecognized, Text: "MAYBE"}, indicator.PatternError, "MAYBE"},
		{"timeout", session.Outcome{Kind: session.Timeout, Err: errors.New("no response within 5s")}, indicator.PatternError, "no response within 5s"},
		{"connection failed", session.Outcome{Kind: session.ConnectionFailed}, indicator.PatternError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ev := Interpret(tt.outcome)
			assert.Equal(t, tt.pattern, p)
			assert.Equal(t, report.KindAccess, ev.Kind)
			assert.Equal(t, tt.outcome.Kind.String(), ev.Outcome)
			assert.Equal(t, tt.detail, ev.Detail)
			if tt.pattern == indicator.PatternError {
				assert.NotEmpty(t, ev.Reason)
			}
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestCycleNoCard(t *testing.T) {
	h := newHarness(t, newClient(t, 1, 100), staticLink(true), nil)
	assert.False(t, h.ep.Cycle(context.Background()))
	assert.Zero(t, h.auth.calls)
	assert.Empty(t, h.slept)
}

func TestCycleReadFailure(t *testing.T) {
	h := newHarness(t, newClient(t, 1, 100), staticLink(true), nil)
	h.reader.cards = [][]byte{{0x01}}
	h.reader.readErr = errors.New("crc error")

	assert.False(t, h.ep.Cycle(context.Background()))
	assert.Zero(t, h.auth.calls)
	ev, ok := h.lastEvent(report.KindReader)
	require.True(t, ok)
	assert.Equal(t, "crc error", ev.Detail)
	assert.False(t, h.ep.DebounceState().HasLast)
}

func TestScenarioAuthorizedThenSuppressed(t *testing.T) {
	srv := startVerdictServer(t, "AUTHORIZED")
	reg := prometheus.NewRegistry()
	m := metrics.NewEndpoint(reg)
	h := newHarness(t, newClient(t, srv.port(), 2000), staticLink(true), m)
	ctx := context.Background()

	h.reader.cards = [][]byte{{0xDE, 0xAD, 0xBE, 0xEF}}
	require.True(t, h.ep.Cycle(ctx))

	assert.Equal(t, []string{"0xdeadbeef"}, srv.requests())
	assert.Equal(t, []indicator.Pattern{indicator.PatternAuthorized}, h.shower.shown)
	assert.Equal(t, 1, h.reader.releases)
	assert.Equal(t, []time.Duration{time.Second}, h.slept)

	ev, ok := h.lastEvent(report.KindAccess)
	require.True(t, ok)
	assert.Equal(t, cardid.ID("0xdeadbeef"), ev.CardID)
	assert.Equal(t, "authorized", ev.Outcome)

	// Same card 2000 ms later.
	h.now = h.now.Add(2000 * time.Millisecond)
	h.reader.cards = [][]byte{{0xDE, 0xAD, 0xBE, 0xEF}}
	assert.False(t, h.ep.Cycle(ctx))
	assert.Equal(t, 1, h.auth.calls, "no network call for a suppressed read")
	assert.Len(t, srv.requests(), 1)
	assert.Len(t, h.shower.shown, 1)
	_, ok = h.lastEvent(report.KindSuppressed)
	assert.True(t, ok)

	// A different card is never suppressed.
	h.reader.cards = [][]byte{{0x01, 0x02, 0x03, 0x04}}
	assert.True(t, h.ep.Cycle(ctx))
	assert.Equal(t, 2, h.auth.calls)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("authorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Suppressed))
}

func TestScenarioSameCardAfterCooldown(t *testing.T) {
	srv := startVerdictServer(t, "DENIED")
	h := newHarness(t, newClient(t, srv.port(), 2000), staticLink(true), nil)
	ctx := context.Background()

	h.reader.cards = [][]byte{{0xAA}}
	require.True(t, h.ep.Cycle(ctx))
	h.now = h.now.Add(5001 * time.Millisecond)
	h.reader.cards = [][]byte{{0xAA}}
	require.True(t, h.ep.Cycle(ctx))

	assert.Equal(t, []indicator.Pattern{indicator.PatternDenied, indicator.PatternDenied}, h.shower.shown)
	assert.Equal(t, []string{"0xaa", "0xaa"}, srv.requests())
}

func TestScenarioTimeout(t *testing.T) {
	srv := startVerdictServer(t, "")
	h := newHarness(t, newClient(t, srv.port(), 100), staticLink(true), nil)

	h.reader.cards = [][]byte{{0x0a, 0x0b}}
	require.True(t, h.ep.Cycle(context.Background()))

	assert.Equal(t, []indicator.Pattern{indicator.PatternError}, h.shower.shown)
	ev, ok := h.lastEvent(report.KindAccess)
	require.True(t, ok)
	assert.Equal(t, "timeout", ev.Outcome)
	assert.Equal(t, 1, h.reader.releases)
}

func TestScenarioUnrecognized(t *testing.T) {
	srv := startVerdictServer(t, "MAYBE")
	h := newHarness(t, newClient(t, srv.port(), 2000), staticLink(true), nil)

	h.reader.cards = [][]byte{{0x0c}}
	require.True(t, h.ep.Cycle(context.Background()))

	assert.Equal(t, []indicator.Pattern{indicator.PatternError}, h.shower.shown)
	ev, ok := h.lastEvent(report.KindAccess)
	require.True(t, ok)
	assert.Equal(t, "unrecognized", ev.Outcome)
	assert.Contains(t, ev.String(), "MAYBE")
}

// neverConnected counts checks and association requests.
type neverConnected struct {
	checks, begins int
}

func (n *neverConnected) IsConnected() bool { n.checks++; return false }

func (n *neverConnected) BeginAssociation(network, secret string) error {
	n.begins++
	return nil
}

func TestScenarioLinkDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	conn := &neverConnected{}
	guardian := link.NewGuardian(conn, link.Config{Network: "shop", Attempts: 20, IntervalMs: 1})

	m := metrics.NewEndpoint(prometheus.NewRegistry())
	h := newHarness(t, newClient(t, port, 100), guardian, m)
	h.reader.cards = [][]byte{{0xfe, 0xed}}
	require.True(t, h.ep.Cycle(context.Background()))

	assert.Equal(t, 1, conn.begins)
	assert.Equal(t, 21, conn.checks)
	assert.Equal(t, 1, h.auth.calls, "session still attempted")

	ev, ok := h.lastEvent(report.KindAccess)
	require.True(t, ok)
	assert.Equal(t, "connection_failed", ev.Outcome)
	assert.Equal(t, []indicator.Pattern{indicator.PatternError}, h.shower.shown)
	assert.Equal(t, 2, h.ind.lost, "shown when the link fails and again after the pattern")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkFailures))

	_, ok = h.lastEvent(report.KindLink)
	assert.True(t, ok)
}

func TestLinkRecoveryRestoresIdle(t *testing.T) {
	srv := startVerdictServer(t, "AUTHORIZED")
	lk := &switchLink{}
	h := newHarness(t, newClient(t, srv.port(), 2000), lk, nil)

	h.reader.cards = [][]byte{{0x01}}
	h.ep.Cycle(context.Background())
	require.True(t, h.ep.linkDown)

	lk.up = true
	h.now = h.now.Add(10 * time.Second)
	h.reader.cards = [][]byte{{0x01}}
	h.ep.Cycle(context.Background())
	assert.False(t, h.ep.linkDown)
	assert.Equal(t, 1, h.ind.idle)
}

func TestReleaseIsIdempotent(t *testing.T) {
	srv := startVerdictServer(t, "AUTHORIZED")
	h := newHarness(t, newClient(t, srv.port(), 2000), staticLink(true), nil)
	h.reader.cards = [][]byte{{0x05}}
	require.True(t, h.ep.Cycle(context.Background()))

	h.ep.release()
	h.ep.release()
	assert.Equal(t, 1, h.reader.releases)
	assert.False(t, h.reader.Present(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, newClient(t, 1, 100), staticLink(true), nil)
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	h.ep.sleep = func(ctx context.Context, d time.Duration) bool {
		assert.Equal(t, 50*time.Millisecond, d)
		polls++
		if polls == 3 {
			cancel()
		}
		return true
	}

	err := h.ep.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, polls)
	assert.Equal(t, 1, h.ind.idle)
}

func TestConfigDefaults(t *testing.T) {
	h := newHarness(t, newClient(t, 1, 100), staticLink(true), nil)
	assert.Equal(t, time.Second, h.ep.interCycle)
	assert.Equal(t, 50*time.Millisecond, h.ep.idlePoll)
	assert.Equal(t, 5*time.Second, h.ep.filter.Cooldown())

	ep, err := New(Config{CooldownMs: 250, InterCycleMs: 10, IdlePollMs: 5}, Deps{
		Reader: &fakeReader{}, Link: staticLink(true), Auth: h.auth, Indicator: &fakeIndicator{},
	})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, ep.filter.Cooldown())
	assert.Equal(t, 10*time.Millisecond, ep.interCycle)
	assert.Equal(t, 5*time.Millisecond, ep.idlePoll)
}
