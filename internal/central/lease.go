package central

import "github.com/srg/blemap/internal/device"

// lease is the session's ownership of one connection handle.
// Release hands the handle back to the transport at most once.
type lease struct {
	handle   device.ConnHandle
	release  func(device.ConnHandle)
	released bool
}

func acquire(h device.ConnHandle, release func(device.ConnHandle)) *lease {
	return &lease{handle: h, release: release}
}

// Release returns false when the handle was already released.
func (l *lease) Release() bool {
	if l == nil || l.released {
		return false
	}
	l.released = true
	if l.release != nil {
		l.release(l.handle)
	}
	return true
}

// Owns reports whether the lease is live and holds h.
func (l *lease) Owns(h device.ConnHandle) bool {
	return l != nil && !l.released && l.handle == h
}
