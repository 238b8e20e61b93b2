package indicator

// Noop implements Indicator but does nothing.
// Used when no indicators are configured.
type Noop struct{}

func (n *Noop) Idle()           {}
func (n *Noop) Granted()        {}
func (n *Noop) Denied()         {}
func (n *Noop) Alert(on bool)   {}
func (n *Noop) ConnectionLost() {}
func (n *Noop) Shutdown()       {}
func (n *Noop) Release() error  { return nil }
