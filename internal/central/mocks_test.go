package central

import (
	"time"

	"github.com/srg/blemap/internal/device"
	"github.com/stretchr/testify/mock"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) StartScan(params device.ScanParams) error {
	return m.Called(params).Error(0)
}

func (m *MockTransport) StopScan() error {
	return m.Called().Error(0)
}

func (m *MockTransport) Connect(address string, params device.ConnParams) (device.ConnHandle, error) {
	args := m.Called(address, params)
	h, _ := args.Get(0).(device.ConnHandle)
	return h, args.Error(1)
}

func (m *MockTransport) Disconnect(h device.ConnHandle) error {
	return m.Called(h).Error(0)
}

func (m *MockTransport) Discover(h device.ConnHandle, req device.DiscoveryRequest) error {
	return m.Called(h, req).Error(0)
}

func (m *MockTransport) Release(h device.ConnHandle) {
	m.Called(h)
}

// methods lists the transport calls in the order they were made.
func (m *MockTransport) methods() []string {
	var out []string
	for _, c := range m.Calls {
		out = append(out, c.Method)
	}
	return out
}

// requests returns every discovery request in order.
func (m *MockTransport) requests() []device.DiscoveryRequest {
	var out []device.DiscoveryRequest
	for _, c := range m.Calls {
		if c.Method == "Discover" {
			out = append(out, c.Arguments.Get(1).(device.DiscoveryRequest))
		}
	}
	return out
}

func (m *MockTransport) lastRequest() device.DiscoveryRequest {
	reqs := m.requests()
	if len(reqs) == 0 {
		return device.DiscoveryRequest{}
	}
	return reqs[len(reqs)-1]
}

type fakeTimer struct {
	d       time.Duration
	ev      Event
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeTimers records armed timers; tests fire them by dispatching the event.
type fakeTimers struct {
	armed []*fakeTimer
}

func (f *fakeTimers) Arm(d time.Duration, ev Event) Timer {
	t := &fakeTimer{d: d, ev: ev}
	f.armed = append(f.armed, t)
	return t
}

func (f *fakeTimers) last() *fakeTimer {
	if len(f.armed) == 0 {
		return nil
	}
	return f.armed[len(f.armed)-1]
}

// pending counts timers not stopped.
func (f *fakeTimers) pending() int {
	n := 0
	for _, t := range f.armed {
		if !t.stopped {
			n++
		}
	}
	return n
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	results  []Result
	failures []error
	phases   []Phase
}

func (r *recorder) DiscoveryComplete(res Result) { r.results = append(r.results, res) }
func (r *recorder) Failure(err error)            { r.failures = append(r.failures, err) }
func (r *recorder) PhaseChanged(p Phase)         { r.phases = append(r.phases, p) }
