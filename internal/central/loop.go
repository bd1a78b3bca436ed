package central

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/blemap/internal/device"
)

const (
	// DefaultAdvertQueueSize is the advertisement backlog kept while the
	// dispatcher is busy. Older reports are overwritten first.
	DefaultAdvertQueueSize uint32 = 256

	controlQueueSize = 32
)

// ErrLoopStopped is returned by calls made after the loop exited.
var ErrLoopStopped = errors.New("dispatch loop stopped")

type envelope struct {
	ev    Event
	fn    func(*Session) error
	reply chan reply
}

type reply struct {
	verdict device.Iter
	err     error
}

// Loop serialises transport callbacks, timer expiries and caller requests
// onto one goroutine that owns the Session.
//
// Advertisements go through a lossy ring; every other event is queued and
// never dropped.
type Loop struct {
	logger  *logrus.Logger
	adverts mpmc.RichOverlappedRingBuffer[device.AdvertisementReport]
	wake    chan struct{}
	control chan envelope
	done    chan struct{}
	running atomic.Bool

	overwritten atomic.Uint64
}

// NewLoop creates a dispatcher. queueSize 0 selects DefaultAdvertQueueSize.
func NewLoop(queueSize uint32, logger *logrus.Logger) *Loop {
	if queueSize == 0 {
		queueSize = DefaultAdvertQueueSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loop{
		logger:  logger,
		adverts: mpmc.NewOverlappedRingBuffer[device.AdvertisementReport](queueSize),
		wake:    make(chan struct{}, 1),
		control: make(chan envelope, controlQueueSize),
		done:    make(chan struct{}),
	}
}

// Post queues an event without waiting for it to be handled.
func (l *Loop) Post(ev Event) {
	if adv, ok := ev.(AdvertisementReceived); ok {
		l.postAdvert(adv.Report)
		return
	}
	select {
	case l.control <- envelope{ev: ev}:
	case <-l.done:
	}
}

func (l *Loop) postAdvert(r device.AdvertisementReport) {
	overwrites, err := l.adverts.EnqueueM(r)
	if err != nil {
		l.logger.WithError(err).Warn("Failed to queue advertisement")
		return
	}
	if overwrites > 0 {
		l.overwritten.Add(uint64(overwrites))
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Deliver hands a discovery attribute to the session and waits for the
// verdict. After the loop stops it returns IterStop.
func (l *Loop) Deliver(ev DiscoveryAttribute) device.Iter {
	r := l.roundTrip(envelope{ev: ev, reply: make(chan reply, 1)})
	return r.verdict
}

// Call runs fn on the dispatch goroutine and returns its error.
func (l *Loop) Call(fn func(*Session) error) error {
	r := l.roundTrip(envelope{fn: fn, reply: make(chan reply, 1)})
	return r.err
}

func (l *Loop) roundTrip(env envelope) reply {
	select {
	case l.control <- env:
	case <-l.done:
		return reply{verdict: device.IterStop, err: ErrLoopStopped}
	}
	select {
	case r := <-env.reply:
		return r
	case <-l.done:
		return reply{verdict: device.IterStop, err: ErrLoopStopped}
	}
}

// Arm posts ev after d. It implements Timers.
func (l *Loop) Arm(d time.Duration, ev Event) Timer {
	return time.AfterFunc(d, func() { l.Post(ev) })
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Overwritten reports how many advertisements were dropped under load.
func (l *Loop) Overwritten() uint64 {
	return l.overwritten.Load()
}

// Run dispatches events into s until ctx is cancelled. The session is
// closed on the way out. Run may be called only once.
func (l *Loop) Run(ctx context.Context, s *Session) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatch loop already running")
	}
	defer close(l.done)

	l.logger.Debug("Dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			if err := s.Close(); err != nil {
				l.logger.WithError(err).Warn("Session close failed")
			}
			if n := l.overwritten.Load(); n > 0 {
				l.logger.WithField("dropped", n).Debug("Advertisements dropped under load")
			}
			l.logger.Debug("Dispatch loop stopped")
			return ctx.Err()

		case env := <-l.control:
			l.handle(s, env)

		case <-l.wake:
			l.drainAdverts(s)
		}
	}
}

func (l *Loop) handle(s *Session, env envelope) {
	var r reply
	switch {
	case env.fn != nil:
		r.err = env.fn(s)
		s.notePhase()
	case env.ev != nil:
		r.verdict = s.Dispatch(env.ev)
	}
	if env.reply != nil {
		env.reply <- r
	}
}

func (l *Loop) drainAdverts(s *Session) {
	for !l.adverts.IsEmpty() {
		r, err := l.adverts.Dequeue()
		if err != nil {
			return
		}
		s.Dispatch(AdvertisementReceived{Report: r})
		// control events pre-empt a long advertisement backlog
		if len(l.control) > 0 {
			select {
			case l.wake <- struct{}{}:
			default:
			}
			return
		}
	}
}
