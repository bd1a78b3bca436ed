package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
	"github.com/srg/blemap/internal/groutine"
)

const (
	// DefaultScanStartGrace is how long StartScan waits for the radio to
	// reject a scan before treating it as running.
	DefaultScanStartGrace = 200 * time.Millisecond

	// DefaultScanStopTimeout bounds how long StopScan waits for the scan
	// worker to exit.
	DefaultScanStopTimeout = 2 * time.Second
)

// Sink receives what the transport observes. central.Loop implements it.
type Sink interface {
	Post(ev central.Event)
	Deliver(ev central.DiscoveryAttribute) device.Iter
}

// Transport implements central.Transport and consumer.ValueWriter on top of go-ble.
//
// Requests return once accepted; dials, discovery walks and disconnect
// monitoring run on their own goroutines and report back through the Sink.
type Transport struct {
	sink   Sink
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex // guards radio and the scan fields
	radio      Radio
	scanCancel context.CancelFunc
	scanDone   chan struct{}

	links      *hashmap.Map[device.ConnHandle, *link]
	nextHandle atomic.Uint64

	ScanStartGrace  time.Duration
	ScanStopTimeout time.Duration
}

// NewTransport creates a transport reporting to sink. The radio is brought
// up on first use.
func NewTransport(sink Sink, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		sink:            sink,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		links:           hashmap.New[device.ConnHandle, *link](),
		ScanStartGrace:  DefaultScanStartGrace,
		ScanStopTimeout: DefaultScanStopTimeout,
	}
}

func (t *Transport) ensureRadio() (Radio, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensureRadioLocked()
}

func (t *Transport) ensureRadioLocked() (Radio, error) {
	if t.radio != nil {
		return t.radio, nil
	}
	r, err := RadioFactory()
	if err != nil {
		err = NormalizeError(err)
		t.logger.WithError(err).Error("Failed to bring up BLE radio")
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	t.radio = r
	return r, nil
}

// StartScan starts a continuous scan. An error the radio reports within
// ScanStartGrace is returned; later failures are logged.
func (t *Transport) StartScan(params device.ScanParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scanCancel != nil {
		return ErrAlreadyScanning
	}
	radio, err := t.ensureRadioLocked()
	if err != nil {
		return err
	}

	// go-ble picks scan timing itself
	t.logger.WithFields(logrus.Fields{
		"active":           params.Active,
		"interval":         params.Interval,
		"window":           params.Window,
		"allow_duplicates": params.AllowDuplicates,
	}).Debug("Starting BLE scan")

	ctx, cancel := context.WithCancel(t.ctx)
	done := make(chan struct{})
	errCh := make(chan error, 1)

	groutine.Go(ctx, "ble-scan", func(ctx context.Context) {
		defer close(done)
		err := radio.Scan(ctx, params.AllowDuplicates, func(adv ble.Advertisement) {
			t.sink.Post(central.AdvertisementReceived{Report: ReportFromAdvertisement(adv)})
		})
		if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
			errCh <- NormalizeError(err)
		}
	})

	select {
	case err := <-errCh:
		cancel()
		<-done
		return err
	case <-done:
		cancel()
		select {
		case err := <-errCh:
			return err
		default:
			return fmt.Errorf("scan ended immediately")
		}
	case <-time.After(t.ScanStartGrace):
	}

	t.scanCancel = cancel
	t.scanDone = done
	groutine.Go(t.ctx, "ble-scan-watch", func(context.Context) {
		select {
		case err := <-errCh:
			t.logger.WithError(err).Error("BLE scan failed")
		case <-done:
		}
	})
	return nil
}

// StopScan cancels the running scan and waits for it to end.
func (t *Transport) StopScan() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scanCancel == nil {
		return ErrNotScanning
	}
	t.scanCancel()

	// the scan stays registered until the worker confirms, so a later
	// StopScan can wait again
	select {
	case <-t.scanDone:
		t.scanCancel = nil
		t.scanDone = nil
		t.logger.Debug("BLE scan stopped")
		return nil
	case <-time.After(t.ScanStopTimeout):
		return fmt.Errorf("scan did not stop within %s", t.ScanStopTimeout)
	}
}

// Connect allocates a handle and dials address in the background.
// The outcome arrives as a ConnectResult.
func (t *Transport) Connect(address string, params device.ConnParams) (device.ConnHandle, error) {
	if address == "" {
		return device.NoHandle, fmt.Errorf("address cannot be empty")
	}
	radio, err := t.ensureRadio()
	if err != nil {
		return device.NoHandle, err
	}

	h := device.ConnHandle(t.nextHandle.Add(1))
	l := newLink(t.ctx, h, address)
	t.links.Set(h, l)

	t.logger.WithFields(logrus.Fields{
		"address":      address,
		"handle":       h,
		"interval_min": params.IntervalMin,
		"interval_max": params.IntervalMax,
	}).Debug("Dialing BLE device")

	groutine.Go(l.ctx, fmt.Sprintf("ble-dial-%d", uint64(h)), func(ctx context.Context) {
		t.dial(ctx, radio, l)
	})
	return h, nil
}

func (t *Transport) dial(ctx context.Context, radio Radio, l *link) {
	client, err := radio.Dial(ctx, l.address)
	if err != nil {
		status := connectStatus(err, l.local.Load())
		t.logger.WithFields(logrus.Fields{
			"address": l.address,
			"handle":  l.handle,
			"error":   err,
		}).Warn("Failed to dial BLE device")
		t.sink.Post(central.ConnectResult{Handle: l.handle, Status: status, Err: NormalizeError(err)})
		return
	}

	if !l.attach(client) {
		// released while dialing
		_ = client.CancelConnection()
		return
	}
	t.sink.Post(central.ConnectResult{Handle: l.handle, Status: device.StatusSuccess})
	t.monitor(l, client)
}

// monitor posts a DisconnectNotice when the platform reports the link gone.
func (t *Transport) monitor(l *link, client Client) {
	watcher, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		t.logger.WithField("handle", l.handle).Debug("Client does not support Disconnected() channel")
		return
	}
	groutine.Go(l.ctx, fmt.Sprintf("ble-monitor-%d", uint64(l.handle)), func(ctx context.Context) {
		select {
		case <-watcher.Disconnected():
			t.postDisconnect(l)
		case <-ctx.Done():
		}
	})
}

func (t *Transport) postDisconnect(l *link) {
	if !l.notified.CompareAndSwap(false, true) {
		return
	}
	reason := device.StatusRemoteUserTerminated
	if l.local.Load() {
		reason = device.StatusLocalHostTerminated
	}
	t.sink.Post(central.DisconnectNotice{Handle: l.handle, Reason: reason})
}

// Disconnect cancels a pending dial or tears an established link down.
func (t *Transport) Disconnect(h device.ConnHandle) error {
	l, ok := t.links.Get(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	l.local.Store(true)

	client := l.currentClient()
	if client == nil {
		l.cancel()
		return nil
	}

	err := NormalizeError(client.CancelConnection())
	if _, ok := client.(interface{ Disconnected() <-chan struct{} }); !ok {
		t.postDisconnect(l)
	}
	if err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", h, err)
	}
	return nil
}

// Release forgets h. Workers tied to it are cancelled.
func (t *Transport) Release(h device.ConnHandle) {
	l, ok := t.links.Get(h)
	if !ok {
		return
	}
	t.links.Del(h)
	l.release()
	t.logger.WithField("handle", h).Debug("Connection handle released")
}

// WriteValue writes data to the characteristic with valueHandle found by
// the last discovery on h.
func (t *Transport) WriteValue(h device.ConnHandle, valueHandle uint16, data []byte, withResponse bool) error {
	l, ok := t.links.Get(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	client := l.currentClient()
	if client == nil {
		return ErrNotConnected
	}
	c := l.characteristic(valueHandle)
	if c == nil {
		return fmt.Errorf("no characteristic with value handle 0x%04x on %s", valueHandle, h)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := client.WriteCharacteristic(c, data, !withResponse); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// Close stops scanning and drops every link.
func (t *Transport) Close() error {
	var err error
	t.mu.Lock()
	scanning := t.scanCancel != nil
	t.mu.Unlock()
	if scanning {
		err = t.StopScan()
	}

	t.links.Range(func(h device.ConnHandle, l *link) bool {
		if client := l.currentClient(); client != nil {
			l.local.Store(true)
			if cErr := client.CancelConnection(); cErr != nil {
				t.logger.WithFields(logrus.Fields{"handle": h, "error": cErr}).Debug("Cancel connection failed during close")
			}
		}
		l.release()
		return true
	})
	t.cancel()
	return err
}
