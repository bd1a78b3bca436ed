package goble

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-ble/ble"
	"github.com/srg/blemap/internal/device"
)

// link is the transport side of one connection handle.
type link struct {
	handle  device.ConnHandle
	address string

	ctx    context.Context
	cancel context.CancelFunc

	local    atomic.Bool // disconnect requested by us
	notified atomic.Bool // DisconnectNotice already posted

	mu       sync.Mutex
	client   Client
	released bool
	services []*ble.Service
	chars    map[uint16]*ble.Characteristic // by value handle

	writeMu sync.Mutex
}

func newLink(parent context.Context, h device.ConnHandle, address string) *link {
	ctx, cancel := context.WithCancel(parent)
	return &link{
		handle:  h,
		address: address,
		ctx:     ctx,
		cancel:  cancel,
		chars:   make(map[uint16]*ble.Characteristic),
	}
}

// attach stores the dialed client. It fails once the link was released.
func (l *link) attach(c Client) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false
	}
	l.client = c
	return true
}

func (l *link) currentClient() Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client
}

func (l *link) release() {
	l.mu.Lock()
	l.released = true
	l.client = nil
	l.mu.Unlock()
	l.cancel()
}

func (l *link) setServices(svcs []*ble.Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = svcs
}

// serviceFor returns the service whose declaration precedes [start, end].
func (l *link) serviceFor(start, end uint16) *ble.Service {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.services {
		if s.Handle < start && s.EndHandle >= end {
			return s
		}
	}
	return nil
}

func (l *link) addCharacteristic(c *ble.Characteristic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chars[c.ValueHandle] = c
}

func (l *link) characteristic(valueHandle uint16) *ble.Characteristic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chars[valueHandle]
}
