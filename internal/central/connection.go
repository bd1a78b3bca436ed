package central

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/device"
)

// Connect requests a connection to address with the configured link
// parameters. It is valid only while disconnected and not scanning.
func (s *Session) Connect(address string) error {
	defer s.notePhase()

	if s.conn != ConnDisconnected {
		return &StateError{Op: "connect", State: s.conn}
	}
	if s.scan == ScanScanning {
		return &StateError{Op: "connect", State: s.scan}
	}

	h, err := s.transport.Connect(address, s.opts.Conn)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectRequestFailed, address, err)
	}

	s.lease = acquire(h, s.transport.Release)
	s.address = address
	s.conn = ConnConnecting
	s.armTimer(s.opts.ConnectTimeout)

	s.logger.WithFields(logrus.Fields{"address": address, "handle": h}).Info("Connecting")
	return nil
}

// Disconnect asks the transport to drop the live connection. Teardown happens
// when the disconnect notice arrives.
func (s *Session) Disconnect() error {
	if s.lease == nil {
		return &StateError{Op: "disconnect", State: s.conn}
	}
	return s.transport.Disconnect(s.lease.handle)
}

func (s *Session) onConnectResult(e ConnectResult) {
	if s.conn != ConnConnecting || !s.lease.Owns(e.Handle) {
		s.stale("connect result", e.Handle)
		return
	}

	if e.Status != device.StatusSuccess || e.Err != nil {
		status := e.Status
		if status == device.StatusSuccess {
			status = device.StatusConnectionFailed
		}
		err := &ConnectionFailedError{Address: s.address, Status: status, Err: e.Err}
		s.teardown()
		s.fail(err)
		s.maybeRescan()
		return
	}

	s.disarmTimer()
	s.conn = ConnConnected
	s.logger.WithFields(logrus.Fields{"address": s.address, "handle": e.Handle}).Info("Connected")

	s.discoverServices()
}

func (s *Session) onDisconnect(e DisconnectNotice) {
	if !s.lease.Owns(e.Handle) {
		s.logger.WithField("handle", e.Handle).Debug("Ignoring disconnect for a handle not held")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"address": s.address,
		"handle":  e.Handle,
		"reason":  e.Reason,
	}).Info("Disconnected")

	s.teardown()
	s.fail(&DisconnectedError{Handle: e.Handle, Reason: e.Reason})
	s.maybeRescan()
}

// stale discards a callback that does not belong to the live handle or cursor.
func (s *Session) stale(what string, h device.ConnHandle) {
	s.logger.WithFields(logrus.Fields{
		"callback": what,
		"handle":   h,
		"error":    ErrStaleCallback,
	}).Debug("Discarding stale callback")
}
