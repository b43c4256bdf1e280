package pipeline

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Counters is the frame/batch/triangle/cycle state a SIGSEGV handler
// reports before re-raising (spec.md §5: "prints frame/batch/triangle
// counters and cycle counters (gpu, shader, memory when multi-clock)").
type Counters struct {
	Frame, Batch, Triangle       uint64
	GPUCycle, ShaderCycle, MemCycle uint64
}

// SignalHandler installs the SIGINT/SIGSEGV contract spec.md §5 names:
// SIGINT sets an abort flag checked once per simulation step; SIGSEGV
// prints diagnostic counters, invokes the snapshot serializer exactly
// once, then re-raises the default handler (reentry escalates
// immediately, since a handler crashing while already handling a crash
// has nothing useful left to save).
type SignalHandler struct {
	counters func() Counters
	snapshot func() error

	aborted    atomic.Bool
	inHandler  atomic.Bool

	ch chan os.Signal
}

// NewSignalHandler builds a handler that queries counters and invokes
// snapshot when a fatal signal arrives. Call Start to begin listening
// and Stop to restore default disposition.
func NewSignalHandler(counters func() Counters, snapshot func() error) *SignalHandler {
	return &SignalHandler{counters: counters, snapshot: snapshot}
}

// Aborted reports whether SIGINT has been received; the top-level loop
// checks this once per cycle (spec.md §5's cooperative cancellation).
func (h *SignalHandler) Aborted() bool { return h.aborted.Load() }

// Start begins listening for SIGINT and SIGSEGV on a background
// goroutine.
func (h *SignalHandler) Start() {
	h.ch = make(chan os.Signal, 4)
	signal.Notify(h.ch, os.Interrupt, unix.SIGSEGV)
	go h.loop()
}

// Stop stops listening and restores default signal disposition.
func (h *SignalHandler) Stop() {
	signal.Stop(h.ch)
	close(h.ch)
}

func (h *SignalHandler) loop() {
	for sig := range h.ch {
		switch sig {
		case os.Interrupt:
			h.aborted.Store(true)
		case unix.SIGSEGV:
			h.handleSegv()
		}
	}
}

func (h *SignalHandler) handleSegv() {
	if h.inHandler.Swap(true) {
		// Reentry within the same handler: escalate to default
		// disposition immediately rather than risk a second crash
		// mid-snapshot.
		unix.Kill(os.Getpid(), unix.SIGSEGV)
		return
	}
	c := h.counters()
	fmt.Fprintf(os.Stderr, "cg1sim: SIGSEGV at frame=%d batch=%d triangle=%d cycles(gpu=%d shader=%d mem=%d)\n",
		c.Frame, c.Batch, c.Triangle, c.GPUCycle, c.ShaderCycle, c.MemCycle)
	if h.snapshot != nil {
		if err := h.snapshot(); err != nil {
			fmt.Fprintf(os.Stderr, "cg1sim: snapshot failed: %v\n", err)
		}
	}
	signal.Reset(unix.SIGSEGV)
	unix.Kill(os.Getpid(), unix.SIGSEGV)
}
