package central

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/device"
)

// beginDiscovery opens a new cursor and sends its request. Only one cursor is
// ever in flight; a failed request leaves the connection up with none.
func (s *Session) beginDiscovery(c *cursor) bool {
	s.nextCursor++
	c.id = s.nextCursor
	s.cursor = c

	if err := s.transport.Discover(s.lease.handle, c.request()); err != nil {
		s.cursor = nil
		s.disarmTimer()
		s.fail(fmt.Errorf("%w: %s: %w", ErrDiscoveryRequestFailed, c.typ, err))
		return false
	}
	s.armTimer(s.opts.DiscoveryTimeout)

	s.logger.WithFields(logrus.Fields{
		"type":   c.typ,
		"cursor": c.id,
		"start":  fmt.Sprintf("0x%04x", c.start),
		"end":    fmt.Sprintf("0x%04x", c.end),
	}).Debug("Discovery started")
	return true
}

func (s *Session) discoverServices() {
	s.service = nil
	s.records = nil
	s.ready = false
	s.beginDiscovery(&cursor{
		typ:   device.DiscoverPrimaryService,
		uuid:  s.target.Service,
		start: s.target.StartHandle,
		end:   s.target.EndHandle,
	})
}

func (s *Session) discoverCharacteristics(svc device.ServiceRecord) {
	if svc.Start >= svc.End {
		// the declaration is the whole service
		s.complete()
		return
	}
	s.beginDiscovery(&cursor{
		typ:   device.DiscoverCharacteristic,
		start: svc.Start + 1,
		end:   svc.End,
	})
}

func (s *Session) onDiscoveryAttribute(e DiscoveryAttribute) device.Iter {
	if !s.lease.Owns(e.Handle) || s.conn != ConnConnected || s.cursor == nil || s.cursor.id != e.Cursor {
		s.stale("discovery attribute", e.Handle)
		return device.IterStop
	}

	if s.cursor.typ == device.DiscoverPrimaryService {
		return s.onServiceAttribute(e.Attr)
	}
	return s.onCharacteristicAttribute(e.Attr)
}

func (s *Session) onServiceAttribute(attr *device.Attribute) device.Iter {
	if attr == nil {
		s.cursor = nil
		s.disarmTimer()
		uuid := device.UUIDString(s.target.Service)
		s.fail(&NotFoundError{Resource: "service", UUIDs: []string{uuid}})
		if s.opts.DisconnectOnServiceNotFound {
			if err := s.Disconnect(); err != nil {
				s.logger.WithError(err).Warn("Disconnect request failed")
			}
		}
		return device.IterStop
	}

	if attr.Kind != device.DiscoverPrimaryService || attr.Service == nil {
		s.logger.WithFields(logrus.Fields{"handle": attr.Handle, "kind": attr.Kind}).Debug("Skipping attribute of unexpected type")
		return device.IterContinue
	}
	if !device.SameUUID(attr.Service.UUID, s.target.Service) {
		s.logger.WithFields(logrus.Fields{
			"handle": attr.Handle,
			"uuid":   device.UUIDString(attr.Service.UUID),
		}).Debug("Skipping non-target service")
		return device.IterContinue
	}

	rec := device.ServiceRecord{UUID: attr.Service.UUID, Start: attr.Handle, End: attr.Service.EndHandle}
	s.service = &rec
	s.cursor = nil
	s.disarmTimer()

	s.logger.WithFields(logrus.Fields{
		"uuid":  device.UUIDString(rec.UUID),
		"start": fmt.Sprintf("0x%04x", rec.Start),
		"end":   fmt.Sprintf("0x%04x", rec.End),
	}).Info("Service found")

	s.discoverCharacteristics(rec)
	return device.IterStop
}

func (s *Session) onCharacteristicAttribute(attr *device.Attribute) device.Iter {
	if attr == nil {
		s.cursor = nil
		s.disarmTimer()
		s.complete()
		return device.IterStop
	}

	if attr.Kind != device.DiscoverCharacteristic || attr.Characteristic == nil || !s.cursor.contains(attr.Handle) {
		s.logger.WithFields(logrus.Fields{"handle": attr.Handle, "kind": attr.Kind}).Debug("Skipping attribute of unexpected type")
		return device.IterContinue
	}

	ch := attr.Characteristic
	rec := device.CharacteristicRecord{
		UUID:        ch.UUID,
		Properties:  ch.Properties,
		Handle:      attr.Handle,
		ValueHandle: ch.ValueHandle,
	}
	s.records = append(s.records, rec)

	s.logger.WithFields(logrus.Fields{
		"uuid":         device.UUIDString(rec.UUID),
		"properties":   device.PropertyString(rec.Properties),
		"value_handle": fmt.Sprintf("0x%04x", rec.ValueHandle),
	}).Debug("Characteristic found")
	return device.IterContinue
}

// complete marks the session ready and hands the result downstream once.
func (s *Session) complete() {
	s.ready = true
	records := make([]device.CharacteristicRecord, len(s.records))
	copy(records, s.records)

	res := Result{
		Handle:          s.lease.handle,
		Address:         s.address,
		Service:         *s.service,
		Characteristics: records,
	}
	s.logger.WithFields(logrus.Fields{
		"address":         s.address,
		"service":         device.UUIDString(res.Service.UUID),
		"characteristics": len(records),
	}).Info("Discovery complete")

	s.notePhase()
	s.observer.DiscoveryComplete(res)
}
