package door

import "log"

// Noop implements Strike but only logs. Used when no strike is wired, for
// example on a development machine.
type Noop struct{}

// Unlock implements Strike.Unlock.
func (n *Noop) Unlock() error {
	log.Println("Door unlocked (no strike configured)")
	return nil
}

// Lock implements Strike.Lock.
func (n *Noop) Lock() error {
	log.Println("Door locked (no strike configured)")
	return nil
}

// Release implements Strike.Release.
func (n *Noop) Release() error {
	return nil
}
