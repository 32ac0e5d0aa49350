// Package interrupt turns SIGINT/SIGTERM into a two-step stop for batch
// runs: the first signal drains the batch, a second one within a short
// window aborts the process.
package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Behavior is the outcome chosen after an interrupt.
type Behavior int

const (
	// Drain keeps the recordings that finished and reports the partial run.
	Drain Behavior = iota
	// Abort exits without reporting.
	Abort
)

// String returns the string representation of the Behavior.
func (b Behavior) String() string {
	switch b {
	case Drain:
		return "Drain"
	case Abort:
		return "Abort"
	default:
		return fmt.Sprintf("Behavior(%d)", b)
	}
}

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// Window is the time allowed for a second signal to abort.
const Window = 2 * time.Second

const (
	pollInterval = 100 * time.Millisecond
	drainMessage = "\nInterrupted: finishing recordings in flight. Press Ctrl+C again to abort."
	abortMessage = "\nAborted."
)

// Handler cancels a context on the first signal and exits on a second
// signal received within Window.
type Handler struct {
	mu          sync.Mutex
	firstSignal time.Time
	interrupted bool
	aborted     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
	notified    chan os.Signal // registered with signal.Notify, if any

	exit   func(int)
	now    func() time.Time
	stderr io.Writer
}

// Options holds injectable dependencies. Zero values select the process
// defaults: real signals, os.Exit, time.Now and os.Stderr.
type Options struct {
	SigCh  <-chan os.Signal
	Exit   func(int)
	Now    func() time.Time
	Stderr io.Writer // must tolerate concurrent writes
}

// NewHandler starts listening and returns a context canceled on the first
// signal or when parent ends.
func NewHandler(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		cancel: cancel,
		done:   make(chan struct{}),
		exit:   opts.Exit,
		now:    opts.Now,
		stderr: opts.Stderr,
	}
	if h.exit == nil {
		h.exit = os.Exit
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.stderr == nil {
		h.stderr = os.Stderr
	}

	sigCh := opts.SigCh
	if sigCh == nil {
		h.notified = make(chan os.Signal, 2)
		signal.Notify(h.notified, syscall.SIGINT, syscall.SIGTERM)
		sigCh = h.notified
	}
	go h.listen(sigCh)

	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle processes one signal and reports whether listening should stop.
func (h *Handler) handle() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	now := h.now()

	if !h.interrupted {
		h.interrupted = true
		h.firstSignal = now
		h.cancel()
		h.mu.Unlock()
		fmt.Fprintln(h.stderr, drainMessage)
		return false
	}

	if now.Sub(h.firstSignal) > Window {
		h.mu.Unlock()
		return false
	}
	h.aborted = true
	h.mu.Unlock()

	fmt.Fprintln(h.stderr, abortMessage)
	h.exit(ExitInterrupt)
	return true
}

// Interrupted reports whether a signal was received.
func (h *Handler) Interrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// Decide waits out the rest of the abort window after an interrupt and
// returns Abort if a second signal arrived, Drain otherwise. Without an
// interrupt it returns Drain at once.
func (h *Handler) Decide() Behavior {
	h.mu.Lock()
	if !h.interrupted {
		h.mu.Unlock()
		return Drain
	}
	if h.aborted {
		h.mu.Unlock()
		return Abort
	}
	remaining := Window - h.now().Sub(h.firstSignal)
	h.mu.Unlock()
	if remaining <= 0 {
		return Drain
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(remaining)
	defer deadline.Stop()

	for {
		select {
		case <-deadline.C:
			return Drain
		case <-ticker.C:
			h.mu.Lock()
			aborted := h.aborted
			h.mu.Unlock()
			if aborted {
				return Abort
			}
		}
	}
}

// Stop stops listening. It is safe to call more than once.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	if h.notified != nil {
		signal.Stop(h.notified)
	}
	close(h.done)
}
