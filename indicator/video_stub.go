//go:build !screen

package indicator

// NewVideo returns an error when screen support is not compiled in.
func NewVideo() (*Video, error) {
	return nil, ErrScreenNotCompiled
}

// Video is a stub when screen support is not compiled in.
type Video struct{ Noop }
