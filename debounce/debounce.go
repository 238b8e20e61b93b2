// Package debounce suppresses repeated processing of the same card within a
// cool-down window.
package debounce

import (
	"time"

	"gocardgate/cardid"
)

// DefaultCooldown is the suppression window for a repeated identifier.
const DefaultCooldown = 5000 * time.Millisecond

// State is the record of the most recently accepted read.
type State struct {
	LastID       cardid.ID
	LastAccepted time.Time
	HasLast      bool
}

// Filter owns a single State. It is not safe for concurrent use; the poll
// loop is its only caller.
type Filter struct {
	cooldown time.Duration
	state    State
}

// New returns a Filter with the given cool-down. A non-positive cool-down
// selects DefaultCooldown.
func New(cooldown time.Duration) *Filter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Filter{cooldown: cooldown}
}

// ShouldProcess reports whether a read of id at now should go to the
// authorization service. Accepted reads become the new State.
func (f *Filter) ShouldProcess(id cardid.ID, now time.Time) bool {
	if f.state.HasLast && id == f.state.LastID && now.Sub(f.state.LastAccepted) < f.cooldown {
		return false
	}
	f.state = State{LastID: id, LastAccepted: now, HasLast: true}
	return true
}

// State returns a copy of the current state.
func (f *Filter) State() State {
	return f.state
}

// Cooldown returns the configured window.
func (f *Filter) Cooldown() time.Duration {
	return f.cooldown
}
