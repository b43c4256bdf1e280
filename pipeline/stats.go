package pipeline

// Stats accumulates the counters spec.md §7 says drive the simulator's
// end-of-run report: per-stage stall counts (a stage that couldn't
// advance this cycle because a downstream queue was full or an upstream
// signal was empty) alongside the throughput counters each stage
// already tracks internally.
type Stats struct {
	Cycles uint64

	TrianglesAssembled uint64
	DegenerateDropped  uint64
	StampsEmitted      uint64
	StampsHiZRejected  uint64
	FragmentsShaded    uint64

	Stalls map[string]uint64
}

// NewStats builds an empty Stats.
func NewStats() *Stats {
	return &Stats{Stalls: make(map[string]uint64)}
}

// Stall increments the named stage's cooperative-stall counter
// (spec.md §7: "Cache-full / queue-full conditions are cooperative
// stalls (no error)").
func (s *Stats) Stall(stage string) {
	s.Stalls[stage]++
}
