// Package endpoint runs the card endpoint's main loop: poll the reader,
// debounce, make sure the link is up, ask the authorization service and
// show the verdict.
package endpoint

import (
	"context"
	"errors"
	"time"

	"gocardgate/cardid"
	"gocardgate/debounce"
	"gocardgate/indicator"
	"gocardgate/metrics"
	"gocardgate/reader"
	"gocardgate/report"
	"gocardgate/session"
	"gocardgate/wait"
)

const (
	defaultInterCycle = 1000 * time.Millisecond
	defaultIdlePoll   = 50 * time.Millisecond
)

// Config holds loop timing.
type Config struct {
	CooldownMs   int `yaml:"cooldown_ms"`    // debounce window for the same card
	InterCycleMs int `yaml:"inter_cycle_ms"` // pause after a processed card
	IdlePollMs   int `yaml:"idle_poll_ms"`   // pause between empty polls
}

// Authorizer asks the authorization service for a verdict.
type Authorizer interface {
	Authorize(ctx context.Context, id cardid.ID) session.Outcome
}

// LinkGuard brings the network link up before a transaction.
type LinkGuard interface {
	Ensure(ctx context.Context) bool
}

// Shower plays a verdict pattern to completion.
type Shower interface {
	Show(p indicator.Pattern)
}

// Deps are the collaborators an Endpoint drives. Reader, Link, Auth and
// Indicator are required.
type Deps struct {
	Reader    reader.CardReader
	Link      LinkGuard
	Auth      Authorizer
	Indicator indicator.Indicator
	Shower    Shower // defaults to an indicator.Controller over Indicator
	Reporter  report.Reporter
	Metrics   *metrics.Endpoint
}

// Endpoint owns the reader and the debounce state. It is driven by a single
// goroutine.
type Endpoint struct {
	reader  reader.CardReader
	filter  *debounce.Filter
	link    LinkGuard
	auth    Authorizer
	ind     indicator.Indicator
	show    Shower
	rep     report.Reporter
	metrics *metrics.Endpoint

	interCycle time.Duration
	idlePoll   time.Duration
	linkDown   bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates an Endpoint.
func New(cfg Config, d Deps) (*Endpoint, error) {
	if d.Reader == nil || d.Link == nil || d.Auth == nil || d.Indicator == nil {
		return nil, errors.New("endpoint: reader, link, authorizer and indicator are required")
	}
	show := d.Shower
	if show == nil {
		show = indicator.NewController(d.Indicator, indicator.Timing{})
	}
	rep := d.Reporter
	if rep == nil {
		rep = report.Discard{}
	}
	return &Endpoint{
		reader:     d.Reader,
		filter:     debounce.New(msOr(cfg.CooldownMs, debounce.DefaultCooldown)),
		link:       d.Link,
		auth:       d.Auth,
		ind:        d.Indicator,
		show:       show,
		rep:        rep,
		metrics:    d.Metrics,
		interCycle: msOr(cfg.InterCycleMs, defaultInterCycle),
		idlePoll:   msOr(cfg.IdlePollMs, defaultIdlePoll),
		now:        time.Now,
		sleep:      wait.Sleep,
	}, nil
}

func msOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Cycle runs one poll cycle and reports whether a card was taken through a
// full authorization.
func (e *Endpoint) Cycle(ctx context.Context) bool {
	if !e.reader.Present(ctx) {
		return false
	}

	uid, err := e.reader.ReadSerial(ctx)
	if err != nil {
		e.release()
		e.report(report.Event{Kind: report.KindReader, Reason: "read serial", Detail: err.Error()})
		return false
	}
	id, err := cardid.Encode(uid)
	if err != nil {
		e.release()
		e.report(report.Event{Kind: report.KindReader, Reason: "encode uid", Detail: err.Error()})
		return false
	}

	if !e.filter.ShouldProcess(id, e.now()) {
		// Clears the reader's cached card so a held card is not re-polled
		// every cycle.
		e.release()
		e.metrics.IncrementSuppressed()
		e.report(report.Event{Kind: report.KindSuppressed, CardID: id})
		return false
	}

	// The session runs either way; a dead link surfaces as ConnectionFailed.
	e.ensureLink(ctx)

	start := e.now()
	outcome := e.auth.Authorize(ctx, id)
	e.metrics.ObserveSession(e.now().Sub(start))
	e.metrics.IncrementOutcome(outcome.Kind.String())

	pattern, ev := Interpret(outcome)
	ev.CardID = id
	e.report(ev)
	e.show.Show(pattern)
	if e.linkDown {
		e.ind.ConnectionLost()
	}

	e.release()
	e.sleep(ctx, e.interCycle)
	return true
}

// Run polls until ctx is cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
	e.ind.Idle()
	for ctx.Err() == nil {
		if e.Cycle(ctx) {
			continue
		}
		e.sleep(ctx, e.idlePoll)
	}
	e.release()
	return ctx.Err()
}

// DebounceState exposes the filter state for inspection.
func (e *Endpoint) DebounceState() debounce.State {
	return e.filter.State()
}

func (e *Endpoint) ensureLink(ctx context.Context) {
	up := e.link.Ensure(ctx)
	switch {
	case !up:
		e.metrics.IncrementLinkFailure()
		e.report(report.Event{Kind: report.KindLink, Reason: "link down"})
		e.ind.ConnectionLost()
		e.linkDown = true
	case e.linkDown:
		e.linkDown = false
		e.ind.Idle()
	}
}

func (e *Endpoint) release() {
	if err := e.reader.Release(); err != nil {
		e.report(report.Event{Kind: report.KindReader, Reason: "release", Detail: err.Error()})
	}
}

func (e *Endpoint) report(ev report.Event) {
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.rep.Report(ev)
}
