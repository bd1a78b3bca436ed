package central

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/device"
)

// StartScan begins continuous scanning with the configured parameters.
// Scanning while a connection exists or is pending is not allowed.
func (s *Session) StartScan() error {
	defer s.notePhase()

	if s.scan == ScanScanning {
		return &StateError{Op: "start scan", State: s.scan}
	}
	if s.conn != ConnDisconnected {
		return &StateError{Op: "start scan", State: s.conn}
	}

	if err := s.transport.StartScan(s.opts.Scan); err != nil {
		return fmt.Errorf("%w: %w", ErrRadioUnavailable, err)
	}
	s.scan = ScanScanning

	s.logger.WithFields(logrus.Fields{
		"target":   s.target.Name,
		"active":   s.opts.Scan.Active,
		"interval": s.opts.Scan.Interval,
		"window":   s.opts.Scan.Window,
	}).Info("Scanning started")
	return nil
}

// StopScan stops an active scan. On failure the scan state is left as is.
func (s *Session) StopScan() error {
	defer s.notePhase()

	if s.scan != ScanScanning {
		return &StateError{Op: "stop scan", State: s.scan}
	}
	if err := s.transport.StopScan(); err != nil {
		return fmt.Errorf("%w: %w", ErrScanStopFailed, err)
	}
	s.scan = ScanIdle
	s.logger.Debug("Scanning stopped")
	return nil
}

func (s *Session) onAdvertisement(r device.AdvertisementReport) {
	if s.scan != ScanScanning {
		return
	}

	if s.logger.IsLevelEnabled(logrus.TraceLevel) {
		s.logger.WithFields(logrus.Fields{
			"address":  r.Address,
			"rssi":     r.RSSI,
			"adv_type": r.AdvType,
		}).Trace("Device found")
	}

	if !s.filter.Match(r) {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"address": r.Address,
		"rssi":    r.RSSI,
	}).Info("Target device found")

	// scanning must be stopped before any connect request goes out
	if err := s.StopScan(); err != nil {
		s.fail(err)
		return
	}

	if err := s.Connect(r.Address); err != nil {
		s.fail(err)
		s.maybeRescan()
	}
}
