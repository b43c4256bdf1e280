// Package signal implements the pipeline-skeleton primitives of spec.md
// §4.1: Signal (a bounded-bandwidth, fixed-latency delay buffer — the
// only allowed cross-stage communication primitive), Queue (an
// intra-stage staging FIFO), and Scheduler (the deterministic per-cycle
// stage invocation order, including the multi-clock mode of spec.md §2).
package signal

import (
	"fmt"
	"sync"
)

// Signal is a bounded delay buffer of objects of type T. An object
// written at cycle C becomes readable at cycle C+latency (plus any
// per-write extra latency). At most Bandwidth writes and, independently,
// at most Bandwidth reads may succeed in any one cycle. Reads are FIFO
// per signal; ties among same-cycle writes preserve write order.
type Signal[T any] struct {
	Name      string
	Bandwidth int
	Latency   int
	Tag       string

	mu         sync.Mutex
	pending    map[uint64][]T
	writes     map[uint64]int
	reads      map[uint64]int
	def        T
	hasDefault bool
}

// NewInputSignal and NewOutputSignal are both plain constructors: a
// Signal has no inherent direction, only whichever stage holds the
// writing end versus the reading end. Both names are kept (matching
// spec.md §4.1's operation list) so call sites read the same way the
// spec documents them.
func NewInputSignal[T any](name string, bandwidth, latency int, tag string) *Signal[T] {
	return newSignal[T](name, bandwidth, latency, tag)
}

func NewOutputSignal[T any](name string, bandwidth, latency int, tag string) *Signal[T] {
	return newSignal[T](name, bandwidth, latency, tag)
}

func newSignal[T any](name string, bandwidth, latency int, tag string) *Signal[T] {
	if bandwidth < 1 {
		bandwidth = 1
	}
	if latency < 0 {
		latency = 0
	}
	return &Signal[T]{
		Name:      name,
		Bandwidth: bandwidth,
		Latency:   latency,
		Tag:       tag,
		pending:   make(map[uint64][]T),
		writes:    make(map[uint64]int),
		reads:     make(map[uint64]int),
	}
}

// SetDefault configures the value Read returns (with ok=false) callers
// may substitute when no object is available; most callers simply check
// ok and ignore the zero value, but stages that need an explicit
// "nothing this cycle" sentinel (e.g. a last-fragment marker distinct
// from "no fragment yet") can use it.
func (s *Signal[T]) SetDefault(obj T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = obj
	s.hasDefault = true
}

// Write places obj so it becomes readable at cycle+Latency+extraLatency.
// Returns an error if this call would exceed Bandwidth writes at cycle.
func (s *Signal[T]) Write(cycle uint64, obj T, extraLatency ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writes[cycle] >= s.Bandwidth {
		return fmt.Errorf("signal %q: bandwidth exceeded at cycle %d (max %d writes/cycle)",
			s.Name, cycle, s.Bandwidth)
	}

	extra := 0
	if len(extraLatency) > 0 {
		extra = extraLatency[0]
	}
	deliver := cycle + uint64(s.Latency+extra)
	s.pending[deliver] = append(s.pending[deliver], obj)
	s.writes[cycle]++
	return nil
}

// Read attempts to consume the next object deliverable at cycle. If no
// object has been delivered yet (either none was written, or it was
// written but its latency hasn't elapsed), Read returns false without
// consuming anything — polling early never skips an object. Returns an
// error only if this call would exceed Bandwidth reads at cycle.
func (s *Signal[T]) Read(cycle uint64) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.reads[cycle] >= s.Bandwidth {
		return zero, false, fmt.Errorf("signal %q: bandwidth exceeded at cycle %d (max %d reads/cycle)",
			s.Name, cycle, s.Bandwidth)
	}

	q := s.pending[cycle]
	if len(q) == 0 {
		if s.hasDefault {
			return s.def, false, nil
		}
		return zero, false, nil
	}

	obj := q[0]
	if len(q) == 1 {
		delete(s.pending, cycle)
	} else {
		s.pending[cycle] = q[1:]
	}
	s.reads[cycle]++
	return obj, true, nil
}

// Peek reports whether an object is deliverable at cycle without
// consuming it or counting against Bandwidth. Used by stages (e.g. the
// recursive-descent dispatcher) that need to check readiness before
// committing to a read.
func (s *Signal[T]) Peek(cycle uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[cycle]) > 0
}

// PendingCount returns how many objects are queued for delivery at cycle.
func (s *Signal[T]) PendingCount(cycle uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[cycle])
}

// Prune discards per-cycle write/read bookkeeping strictly before
// beforeCycle. Calling it periodically keeps these maps bounded in
// long-running simulations; neither scheduler in this package calls it.
// Pending objects are never touched.
func (s *Signal[T]) Prune(beforeCycle uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.writes {
		if c < beforeCycle {
			delete(s.writes, c)
		}
	}
	for c := range s.reads {
		if c < beforeCycle {
			delete(s.reads, c)
		}
	}
}
