// Package report carries the endpoint's diagnostics: one event per card
// read, suppression or link problem. Reporters only observe; nothing reads
// events back.
package report

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gocardgate/cardid"
)

// Kind classifies an Event.
type Kind string

const (
	KindAccess     Kind = "access"     // a verdict (or failure) for a card
	KindSuppressed Kind = "suppressed" // repeat read inside the cooldown
	KindLink       Kind = "link"       // link could not be brought up
	KindReader     Kind = "reader"     // reader failed to produce a UID
)

// Event is one diagnostics record.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	CardID  cardid.ID `json:"card_id,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// String renders the event as a single log line.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.CardID != "" {
		fmt.Fprintf(&b, " card=%s", e.CardID)
	}
	if e.Outcome != "" {
		fmt.Fprintf(&b, " outcome=%s", e.Outcome)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " reason=%q", e.Reason)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " detail=%q", e.Detail)
	}
	return b.String()
}

// Reporter receives events. Implementations must not block the caller for
// long.
type Reporter interface {
	Report(Event)
}

// Log writes events to a standard logger.
type Log struct {
	logger *log.Logger
}

// NewLog returns a Log reporter. A nil logger selects log.Default().
func NewLog(l *log.Logger) *Log {
	if l == nil {
		l = log.Default()
	}
	return &Log{logger: l}
}

// Report implements Reporter.
func (l *Log) Report(e Event) {
	l.logger.Println(e.String())
}

// Multi fans events out to several reporters.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Discard drops every event.
type Discard struct{}

// Report implements Reporter.
func (Discard) Report(Event) {}
