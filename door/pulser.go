package door

import (
	"log"
	"sync"
	"time"
)

// DefaultUnlock is how long a grant keeps the door unlocked.
const DefaultUnlock = 3 * time.Second

// Pulser unlocks a Strike for a fixed time in the background. A pulse that
// arrives while the door is already unlocked extends the unlock window
// instead of starting a second cycle.
type Pulser struct {
	strike Strike

	mu      sync.Mutex
	timer   *time.Timer
	gen     int
	pending sync.WaitGroup
}

// NewPulser creates a Pulser for strike.
func NewPulser(strike Strike) *Pulser {
	return &Pulser{strike: strike}
}

// Pulse unlocks the door for d (DefaultUnlock when d <= 0) without
// blocking.
func (p *Pulser) Pulse(d time.Duration) {
	if d <= 0 {
		d = DefaultUnlock
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil && p.timer.Stop() {
		p.timer.Reset(d)
		return
	}

	if err := p.strike.Unlock(); err != nil {
		log.Printf("Door unlock: %v", err)
	}
	p.gen++
	gen := p.gen
	p.pending.Add(1)
	p.timer = time.AfterFunc(d, func() { p.relock(gen) })
}

func (p *Pulser) relock(gen int) {
	defer p.pending.Done()

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		// A newer pulse owns the door.
		return
	}
	p.timer = nil

	if err := p.strike.Lock(); err != nil {
		log.Printf("Door lock: %v", err)
	}
}

// Unlocked reports whether a pulse is in progress.
func (p *Pulser) Unlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Wait blocks until any pulse in progress has relocked the door.
func (p *Pulser) Wait() {
	p.pending.Wait()
}
