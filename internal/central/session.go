package central

import (
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/device"
)

// Transport is the outbound side of the BLE stack. Each request returns as
// soon as it is accepted; its outcome arrives later as an Event.
type Transport interface {
	StartScan(params device.ScanParams) error
	StopScan() error
	// Connect returns the handle the connection will be reported under.
	Connect(address string, params device.ConnParams) (device.ConnHandle, error)
	Disconnect(h device.ConnHandle) error
	Discover(h device.ConnHandle, req device.DiscoveryRequest) error
	// Release drops the session's reference to h.
	Release(h device.ConnHandle)
}

// Timer is a pending request timer.
type Timer interface {
	Stop() bool
}

// Timers schedules ev to be dispatched after d.
type Timers interface {
	Arm(d time.Duration, ev Event) Timer
}

// TargetSpec names the peripheral and service to map. It is fixed at startup.
type TargetSpec struct {
	Name        string
	Service     ble.UUID
	StartHandle uint16
	EndHandle   uint16
}

// NewTargetSpec validates and builds a TargetSpec over the full handle range.
func NewTargetSpec(name, serviceUUID string) (TargetSpec, error) {
	svc, err := device.ParseUUID(serviceUUID)
	if err != nil {
		return TargetSpec{}, fmt.Errorf("target service: %w", err)
	}
	t := TargetSpec{Name: name, Service: svc, StartHandle: 0x0001, EndHandle: 0xFFFF}
	return t, t.Validate()
}

// Validate checks name length and handle bounds.
func (t TargetSpec) Validate() error {
	switch {
	case t.Name == "":
		return fmt.Errorf("target name cannot be empty")
	case len(t.Name) > MaxNameLen:
		return fmt.Errorf("target name %q is longer than %d bytes", t.Name, MaxNameLen)
	case t.Service == nil:
		return fmt.Errorf("target service UUID is required")
	case t.StartHandle == 0:
		return fmt.Errorf("start handle must be at least 0x0001")
	case t.StartHandle > t.EndHandle:
		return fmt.Errorf("start handle 0x%04x is above end handle 0x%04x", t.StartHandle, t.EndHandle)
	}
	return nil
}

// Options configures a Session.
type Options struct {
	Scan device.ScanParams
	Conn device.ConnParams

	// Zero disables the timer.
	ConnectTimeout   time.Duration
	DiscoveryTimeout time.Duration

	// RescanOnDisconnect resumes scanning after a connect failure, a
	// timeout or a disconnect.
	RescanOnDisconnect bool
	// DisconnectOnServiceNotFound tears the link down when the target
	// service is absent instead of leaving it connected.
	DisconnectOnServiceNotFound bool
}

// DefaultOptions returns fast active scanning, default link parameters and
// 10 second request timers with both policies off.
func DefaultOptions() Options {
	return Options{
		Scan:             device.DefaultScanParams(),
		Conn:             device.DefaultConnParams(),
		ConnectTimeout:   10 * time.Second,
		DiscoveryTimeout: 10 * time.Second,
	}
}

// Session is the central state machine for one logical client. All methods
// must be called from the goroutine that dispatches its events.
type Session struct {
	target    TargetSpec
	filter    Filter
	transport Transport
	observer  Observer
	timers    Timers
	opts      Options
	logger    *logrus.Logger

	scan ScanState
	conn ConnState

	address string
	lease   *lease
	cursor  *cursor
	service *device.ServiceRecord
	records []device.CharacteristicRecord
	ready   bool

	timer      Timer
	timerSeq   uint64
	nextCursor uint64
	phase      Phase
}

// NewSession builds an idle, disconnected session. timers may be nil to
// disable request timeouts; observer may be nil.
func NewSession(target TargetSpec, transport Transport, timers Timers, observer Observer, opts Options, logger *logrus.Logger) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	return &Session{
		target:    target,
		filter:    NewNameFilter(target.Name),
		transport: transport,
		observer:  observer,
		timers:    timers,
		opts:      opts,
		logger:    logger,
		phase:     PhaseIdle,
	}, nil
}

// Dispatch applies one event. The returned verdict matters only for
// DiscoveryAttribute events; every other event yields IterStop.
func (s *Session) Dispatch(ev Event) device.Iter {
	defer s.notePhase()

	switch e := ev.(type) {
	case AdvertisementReceived:
		s.onAdvertisement(e.Report)
	case ConnectResult:
		s.onConnectResult(e)
	case DisconnectNotice:
		s.onDisconnect(e)
	case DiscoveryAttribute:
		return s.onDiscoveryAttribute(e)
	case TimerExpired:
		s.onTimerExpired(e)
	default:
		s.logger.WithField("event", fmt.Sprintf("%T", ev)).Warn("Ignoring unknown event")
	}
	return device.IterStop
}

// ScanState returns the scan controller state.
func (s *Session) ScanState() ScanState { return s.scan }

// ConnState returns the connection controller state.
func (s *Session) ConnState() ConnState { return s.conn }

// Handle returns the live connection handle, or NoHandle.
func (s *Session) Handle() device.ConnHandle {
	if s.lease == nil {
		return device.NoHandle
	}
	return s.lease.handle
}

// Phase returns the overall phase derived from the controller states.
func (s *Session) Phase() Phase {
	switch {
	case s.scan == ScanScanning:
		return PhaseScanning
	case s.conn == ConnConnecting:
		return PhaseConnecting
	case s.conn == ConnConnected && s.cursor != nil && s.cursor.typ == device.DiscoverPrimaryService:
		return PhaseDiscoveringServices
	case s.conn == ConnConnected && s.cursor != nil:
		return PhaseDiscoveringCharacteristics
	case s.conn == ConnConnected && s.ready:
		return PhaseReady
	case s.conn == ConnConnected:
		return PhaseConnected
	default:
		return PhaseIdle
	}
}

// Close stops scanning, cancels pending timers and releases the handle.
// The session is idle and disconnected afterwards.
func (s *Session) Close() error {
	defer s.notePhase()

	var err error
	if s.scan == ScanScanning {
		if stopErr := s.transport.StopScan(); stopErr != nil {
			err = fmt.Errorf("%w: %w", ErrScanStopFailed, stopErr)
		}
		s.scan = ScanIdle
	}
	if s.lease != nil {
		h := s.lease.handle
		if dErr := s.transport.Disconnect(h); dErr != nil {
			s.logger.WithFields(logrus.Fields{"handle": h, "error": dErr}).Debug("Disconnect during close failed")
		}
		s.teardown()
	}
	return err
}

func (s *Session) notePhase() {
	p := s.Phase()
	if p == s.phase {
		return
	}
	s.logger.WithFields(logrus.Fields{"from": s.phase, "to": p}).Debug("Phase changed")
	s.phase = p
	s.observer.PhaseChanged(p)
}

// fail surfaces an error to the observer.
func (s *Session) fail(err error) {
	s.logger.WithError(err).Warn("Central session error")
	s.observer.Failure(err)
}

func (s *Session) armTimer(d time.Duration) {
	s.disarmTimer()
	if s.timers == nil || d <= 0 {
		return
	}
	s.timerSeq++
	s.timer = s.timers.Arm(d, TimerExpired{Seq: s.timerSeq})
}

func (s *Session) disarmTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) onTimerExpired(e TimerExpired) {
	if s.timer == nil || e.Seq != s.timerSeq {
		s.logger.WithField("seq", e.Seq).Debug("Discarding expired timer that is no longer armed")
		return
	}
	s.timer = nil

	switch {
	case s.conn == ConnConnecting:
		s.abort(&ConnectionFailedError{Address: s.address, Status: device.StatusConnectionTimeout, Err: ErrTimeout})
	case s.cursor != nil:
		s.abort(fmt.Errorf("%w: %s discovery", ErrTimeout, s.cursor.typ))
	}
}

// abort forces the live connection down and reports err.
func (s *Session) abort(err error) {
	if s.lease != nil {
		if dErr := s.transport.Disconnect(s.lease.handle); dErr != nil {
			s.logger.WithFields(logrus.Fields{"handle": s.lease.handle, "error": dErr}).Warn("Disconnect request failed")
		}
	}
	s.teardown()
	s.fail(err)
	s.maybeRescan()
}

// teardown discards all per-connection state and releases the handle once.
func (s *Session) teardown() {
	s.disarmTimer()
	s.cursor = nil
	s.service = nil
	s.records = nil
	s.ready = false
	if s.lease.Release() {
		s.logger.WithField("handle", s.lease.handle).Debug("Connection handle released")
	}
	s.lease = nil
	s.conn = ConnDisconnected
}

func (s *Session) maybeRescan() {
	if !s.opts.RescanOnDisconnect || s.scan == ScanScanning || s.conn != ConnDisconnected {
		return
	}
	s.logger.Info("Resuming scan")
	if err := s.StartScan(); err != nil {
		s.fail(err)
	}
}
