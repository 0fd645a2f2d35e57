package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func newEntry(instance, host string, v4, v6 []net.IP) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = 80
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	return e
}

func TestDeviceFromEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantOK   bool
		wantAddr string
		wantID   string
	}{
		{
			name:     "ipv4",
			entry:    newEntry("Remo-1A2B3C", "Remo-1A2B3C.local.", []net.IP{net.ParseIP("192.168.1.20")}, nil),
			wantOK:   true,
			wantAddr: "192.168.1.20",
			wantID:   "Remo-1A2B3C",
		},
		{
			name: "prefers ipv4",
			entry: newEntry("Remo-living", "remo.local.",
				[]net.IP{net.ParseIP("10.0.0.7")},
				[]net.IP{net.ParseIP("fe80::1")}),
			wantOK:   true,
			wantAddr: "10.0.0.7",
			wantID:   "Remo-living",
		},
		{
			name:     "ipv6 only",
			entry:    newEntry("Remo-bedroom", "remo.local.", nil, []net.IP{net.ParseIP("fe80::2")}),
			wantOK:   true,
			wantAddr: "fe80::2",
			wantID:   "Remo-bedroom",
		},
		{
			name:   "no address",
			entry:  newEntry("Remo-1A2B3C", "remo.local.", nil, nil),
			wantOK: false,
		},
		{
			name:   "nil entry",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assert.New(t)
			device, ok := deviceFromEntry(tt.entry)
			a.Equal(tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			a.Equal(tt.wantAddr, device.Address)
			a.Contains(device.Identifier, tt.wantID)
			a.Equal(80, device.Port)
		})
	}
}

func TestNewScanner(t *testing.T) {
	a := assert.New(t)
	s := NewScanner()
	a.Equal(DefaultScanTimeout, s.Timeout)
	a.Equal(ServiceDomain, s.Domain)
}

func TestCollect(t *testing.T) {
	a := assert.New(t)

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan []Device, 1)
	go func() {
		found <- collect(entries)
	}()

	entries <- newEntry("Remo-1", "remo-1.local.", []net.IP{net.IPv4(192, 168, 1, 10)}, nil)
	entries <- newEntry("Remo-2", "remo-2.local.", nil, nil)
	entries <- newEntry("Remo-1", "remo-1.local.", []net.IP{net.IPv4(192, 168, 1, 10)}, nil)
	entries <- nil
	entries <- newEntry("Remo-3", "remo-3.local.", []net.IP{net.IPv4(192, 168, 1, 30)}, nil)
	close(entries)

	devices := <-found
	if a.Len(devices, 2) {
		a.Equal("192.168.1.10", devices[0].Address)
		a.Contains(devices[0].Identifier, "Remo-1")
		a.Equal("192.168.1.30", devices[1].Address)
	}
}
