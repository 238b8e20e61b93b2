package link

import (
	"fmt"
	"log"
	"os/exec"
	"sync/atomic"
)

// Wifi manages a wireless link through NetworkManager.
type Wifi struct {
	iface   string
	addrs   addrFunc
	command func(name string, args ...string) *exec.Cmd
	pending atomic.Bool
}

// NewWifi creates a Wifi link on iface (empty = let nmcli choose).
func NewWifi(iface string) *Wifi {
	return &Wifi{iface: iface, addrs: systemInterfaces, command: exec.Command}
}

// IsConnected implements Connectivity.IsConnected.
func (w *Wifi) IsConnected() bool {
	return usable(w.addrs, w.iface)
}

// BeginAssociation implements Connectivity.BeginAssociation. The nmcli
// process runs in the background; a second call while one is still running
// is a no-op.
func (w *Wifi) BeginAssociation(network, secret string) error {
	if !w.pending.CompareAndSwap(false, true) {
		return nil
	}

	args := []string{"device", "wifi", "connect", network}
	if secret != "" {
		args = append(args, "password", secret)
	}
	if w.iface != "" {
		args = append(args, "ifname", w.iface)
	}

	cmd := w.command("nmcli", args...)
	if err := cmd.Start(); err != nil {
		w.pending.Store(false)
		return fmt.Errorf("start nmcli: %w", err)
	}

	go func() {
		defer w.pending.Store(false)
		if err := cmd.Wait(); err != nil {
			log.Printf("nmcli connect %q: %v", network, err)
		}
	}()
	return nil
}
