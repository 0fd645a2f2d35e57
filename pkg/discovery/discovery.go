package discovery

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
)

const (
	// ServiceType is the mDNS service advertised by Nature Remo devices.
	ServiceType = "_remo._tcp"

	// ServiceDomain is the mDNS browsing domain.
	ServiceDomain = "local."

	// DefaultScanTimeout is how long a scan listens for answers.
	DefaultScanTimeout = 3 * time.Second
)

// Device is a single answer to a scan.
type Device struct {
	// Identifier is the service instance name, e.g. "Remo-1A2B3C._remo._tcp.local."
	Identifier string
	Address    string
	Port       int
}

// Scanner browses the local network segment for a service type.
type Scanner struct {
	Timeout time.Duration
	Domain  string
}

func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Domain:  ServiceDomain,
	}
}

// Scan performs a one-shot browse for service and returns every device that
// answered before the timeout, in the order they answered.
func (s *Scanner) Scan(ctx context.Context, service string) ([]Device, error) {
	if service == "" {
		service = ServiceType
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating mDNS resolver")
	}

	// zeroconf closes entries once the browse context is done and sends
	// without selecting on it, so the channel is read until closed.
	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan []Device, 1)
	go func() {
		found <- collect(entries)
	}()

	err = resolver.Browse(ctx, service, s.Domain, entries)
	if err != nil {
		return nil, errors.Wrap(err, "browsing for mDNS services")
	}

	return <-found, nil
}

// collect reads entries until the channel is closed, dropping duplicates and
// entries without an address.
func collect(entries <-chan *zeroconf.ServiceEntry) []Device {
	var devices []Device
	seen := make(map[string]bool)
	for entry := range entries {
		device, ok := deviceFromEntry(entry)
		if !ok || seen[device.Identifier] {
			continue
		}
		seen[device.Identifier] = true
		devices = append(devices, device)
	}
	return devices
}

// deviceFromEntry converts an mDNS answer, preferring IPv4. Entries without
// any address are dropped.
func deviceFromEntry(entry *zeroconf.ServiceEntry) (Device, bool) {
	if entry == nil {
		return Device{}, false
	}

	var addr string
	if len(entry.AddrIPv4) > 0 {
		addr = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		addr = entry.AddrIPv6[0].String()
	}
	if addr == "" {
		return Device{}, false
	}

	id := entry.ServiceInstanceName()
	if id == "" {
		id = entry.HostName
	}

	return Device{
		Identifier: id,
		Address:    addr,
		Port:       entry.Port,
	}, true
}
