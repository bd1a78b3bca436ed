package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/srg/blemap/internal/central"
	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows the current session phase with elapsed time on a
// single terminal line. It is single-use: Start at most once, Stop any number
// of times.
type ProgressPrinter struct {
	out       io.Writer
	enabled   bool
	prefix    string
	phase     atomic.Value // string
	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// NewProgressPrinter writes to stderr, and only when stderr is a terminal.
func NewProgressPrinter(prefix string) *ProgressPrinter {
	return newProgressPrinter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), prefix)
}

func newProgressPrinter(out io.Writer, enabled bool, prefix string) *ProgressPrinter {
	p := &ProgressPrinter{out: out, enabled: enabled, prefix: prefix}
	p.phase.Store(central.PhaseIdle.String())
	return p
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}
	if !p.enabled {
		return
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Fprintf(p.out, "\r%s (%s...)   ", p.prefix, p.phase.Load().(string))
	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				fmt.Fprintf(p.out, "\r%s (%s %ds)   ", p.prefix, p.phase.Load().(string), int(time.Since(p.startTime).Seconds()))
			}
		}
	}()
}

// Phase records the session phase shown on the next tick. A ready session
// ends the display.
func (p *ProgressPrinter) Phase(ph central.Phase) {
	p.phase.Store(ph.String())
	if ph == central.PhaseReady {
		p.Stop()
	}
}

// Stop stops the display and clears the line. Safe to call repeatedly.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.out, clearLineSequence)
}
