package goble

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
	"github.com/srg/blemap/internal/groutine"
)

// Discover walks one attribute type over the requested range in the
// background, delivering attributes in ascending handle order followed by
// the end-of-walk sentinel. The walk ends early when the sink says stop.
func (t *Transport) Discover(h device.ConnHandle, req device.DiscoveryRequest) error {
	l, ok := t.links.Get(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	client := l.currentClient()
	if client == nil {
		return ErrNotConnected
	}
	if req.Start == 0 || req.Start > req.End {
		return fmt.Errorf("invalid handle range 0x%04x-0x%04x", req.Start, req.End)
	}

	var walk func() ([]device.Attribute, error)
	switch req.Type {
	case device.DiscoverPrimaryService:
		walk = func() ([]device.Attribute, error) { return t.services(l, client, req) }
	case device.DiscoverCharacteristic:
		walk = func() ([]device.Attribute, error) { return t.characteristics(l, client, req) }
	default:
		return fmt.Errorf("unsupported discovery type %s", req.Type)
	}

	name := fmt.Sprintf("ble-discover-%d-%d", uint64(h), req.Cursor)
	groutine.Go(l.ctx, name, func(ctx context.Context) {
		attrs, err := walk()
		if err != nil {
			// an ATT error ends the walk like an empty result
			t.logger.WithFields(logrus.Fields{
				"handle": h,
				"type":   req.Type,
				"worker": groutine.Name(ctx),
				"error":  NormalizeError(err),
			}).Warn("Discovery failed")
		}
		for i := range attrs {
			if ctx.Err() != nil {
				return
			}
			if t.sink.Deliver(central.DiscoveryAttribute{Handle: h, Cursor: req.Cursor, Attr: &attrs[i]}) == device.IterStop {
				return
			}
		}
		if ctx.Err() == nil {
			t.sink.Deliver(central.DiscoveryAttribute{Handle: h, Cursor: req.Cursor})
		}
	})
	return nil
}

func (t *Transport) services(l *link, client Client, req device.DiscoveryRequest) ([]device.Attribute, error) {
	var filter []ble.UUID
	if req.UUID != nil {
		filter = []ble.UUID{req.UUID}
	}
	svcs, err := client.DiscoverServices(filter)
	if err != nil {
		return nil, err
	}
	if handlesHidden(svcs) {
		if err := layoutHandles(client, svcs, req.Start); err != nil {
			return nil, err
		}
	}
	l.setServices(svcs)

	sort.Slice(svcs, func(i, j int) bool { return svcs[i].Handle < svcs[j].Handle })
	attrs := make([]device.Attribute, 0, len(svcs))
	for _, s := range svcs {
		if s.Handle < req.Start || s.Handle > req.End {
			continue
		}
		attrs = append(attrs, device.Attribute{
			Handle:  s.Handle,
			Kind:    device.DiscoverPrimaryService,
			Service: &device.ServiceValue{UUID: s.UUID, EndHandle: s.EndHandle},
		})
	}
	return attrs, nil
}

func (t *Transport) characteristics(l *link, client Client, req device.DiscoveryRequest) ([]device.Attribute, error) {
	svc := l.serviceFor(req.Start, req.End)
	if svc == nil {
		return nil, fmt.Errorf("no discovered service covers 0x%04x-0x%04x", req.Start, req.End)
	}

	chars := svc.Characteristics
	if chars == nil {
		var err error
		if chars, err = client.DiscoverCharacteristics(nil, svc); err != nil {
			return nil, err
		}
	}

	sort.Slice(chars, func(i, j int) bool { return chars[i].Handle < chars[j].Handle })
	attrs := make([]device.Attribute, 0, len(chars))
	for _, c := range chars {
		if c.Handle < req.Start || c.Handle > req.End {
			continue
		}
		l.addCharacteristic(c)
		attrs = append(attrs, device.Attribute{
			Handle: c.Handle,
			Kind:   device.DiscoverCharacteristic,
			Characteristic: &device.CharacteristicValue{
				UUID:        c.UUID,
				Properties:  c.Property,
				ValueHandle: c.ValueHandle,
			},
		})
	}
	return attrs, nil
}

// handlesHidden reports whether the platform left attribute handles unset,
// as CoreBluetooth does.
func handlesHidden(svcs []*ble.Service) bool {
	for _, s := range svcs {
		if s.Handle != 0 || s.EndHandle != 0 {
			return false
		}
	}
	return len(svcs) > 0
}

// layoutHandles assigns a synthetic attribute table starting at start:
// each service declaration is followed by a declaration and value handle
// per characteristic.
func layoutHandles(client Client, svcs []*ble.Service, start uint16) error {
	next := start
	for _, s := range svcs {
		chars, err := client.DiscoverCharacteristics(nil, s)
		if err != nil {
			return err
		}
		s.Characteristics = chars
		s.Handle = next
		next++
		for _, c := range chars {
			c.Handle = next
			c.ValueHandle = next + 1
			next += 2
		}
		s.EndHandle = next - 1
	}
	return nil
}
