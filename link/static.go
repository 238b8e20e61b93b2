package link

import "net"

// Static is a wired or externally managed link. It can observe the link but
// has no way to bring it up.
type Static struct {
	iface string
	addrs addrFunc
}

// addrFunc returns the flags and addresses of the named interface, or of
// every interface when name is empty.
type addrFunc func(name string) ([]ifaceState, error)

type ifaceState struct {
	flags net.Flags
	addrs []net.Addr
}

// NewStatic creates a Static link watching iface.
func NewStatic(iface string) *Static {
	return &Static{iface: iface, addrs: systemInterfaces}
}

// IsConnected implements Connectivity.IsConnected.
func (s *Static) IsConnected() bool {
	return usable(s.addrs, s.iface)
}

// BeginAssociation implements Connectivity.BeginAssociation.
func (s *Static) BeginAssociation(network, secret string) error {
	return nil
}

func systemInterfaces(name string) ([]ifaceState, error) {
	var ifaces []net.Interface
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, err
		}
		ifaces = []net.Interface{*ifi}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return nil, err
		}
		ifaces = all
	}

	out := make([]ifaceState, 0, len(ifaces))
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		out = append(out, ifaceState{flags: ifi.Flags, addrs: addrs})
	}
	return out, nil
}

// usable reports whether any matching interface is up, not loopback, and
// has a routable address.
func usable(fn addrFunc, name string) bool {
	states, err := fn(name)
	if err != nil {
		return false
	}
	for _, st := range states {
		if st.flags&net.FlagUp == 0 || st.flags&net.FlagLoopback != 0 {
			continue
		}
		for _, a := range st.addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ipn.IP.IsGlobalUnicast() || ipn.IP.IsPrivate() {
				return true
			}
		}
	}
	return false
}
