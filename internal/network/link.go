// Package network reports whether the endpoint's network link is usable.
//
// The authorization client consults Link before every query so that a
// downed interface yields an immediate Indeterminate decision instead of a
// request that can only time out.
package network

import (
	"context"
	"net"
	"time"
)

// Interface is the part of net.Interface the link check needs.
type Interface struct {
	Flags net.Flags
	Addrs []net.Addr
}

// LookupFunc resolves an interface by name.
type LookupFunc func(name string) (Interface, error)

// Status is a point-in-time view of the link.
type Status struct {
	Interface string `json:"interface"`
	Connected bool   `json:"connected"`
	Up        bool   `json:"up"`
	Running   bool   `json:"running"`
	Address   string `json:"address,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Logger is the logging interface used while waiting for the link.
type Logger interface {
	Info(msg string, args ...any)
}

// Link watches one named interface.
type Link struct {
	name   string
	lookup LookupFunc
}

// NewLink creates a Link for the named interface. An empty name means the
// link is not monitored and always reports connected.
func NewLink(name string) *Link {
	return &Link{name: name, lookup: systemLookup}
}

// NewLinkWithLookup creates a Link with a custom resolver (tests).
func NewLinkWithLookup(name string, lookup LookupFunc) *Link {
	return &Link{name: name, lookup: lookup}
}

// Name returns the monitored interface name.
func (l *Link) Name() string {
	return l.name
}

// IsConnected reports whether the interface is up, running and holds a
// global unicast address.
func (l *Link) IsConnected() bool {
	return l.Status().Connected
}

// Status inspects the interface.
func (l *Link) Status() Status {
	if l.name == "" {
		return Status{Connected: true, Up: true, Running: true}
	}

	st := Status{Interface: l.name}
	iface, err := l.lookup(l.name)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	st.Up = iface.Flags&net.FlagUp != 0
	st.Running = iface.Flags&net.FlagRunning != 0
	for _, a := range iface.Addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || !ipNet.IP.IsGlobalUnicast() {
			continue
		}
		st.Address = ipNet.IP.String()
		break
	}
	st.Connected = st.Up && st.Running && st.Address != ""
	return st
}

// WaitConnected blocks until the link is connected, ctx ends, or timeout
// elapses. It reports whether the link came up.
func (l *Link) WaitConnected(ctx context.Context, timeout, interval time.Duration, logger Logger) bool {
	if l.IsConnected() {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if logger != nil {
			logger.Info("waiting for network link", "interface", l.name)
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return l.IsConnected()
		case <-ticker.C:
			if l.IsConnected() {
				return true
			}
		}
	}
}

func systemLookup(name string) (Interface, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return Interface{}, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return Interface{}, err
	}
	return Interface{Flags: iface.Flags, Addrs: addrs}, nil
}
