package signal

import "fmt"

// Stage is one cooperating pipeline stage. Tick is invoked exactly once
// per simulated cycle of the stage's clock domain; it must read this
// cycle's inputs, do its work, and write its outputs before returning —
// there is no preemption within a tick (spec.md §4.1, §5).
type Stage interface {
	Name() string
	Tick(cycle uint64) error
}

// Scheduler invokes a fixed, deterministic list of stages once per
// simulated cycle, normally upstream-to-downstream so that a downstream
// stage never observes a same-cycle write from upstream (spec.md §4.1).
// SetReverse flips the order for test harnesses that want to exercise
// the opposite assumption.
type Scheduler struct {
	stages  []Stage
	reverse bool
	cycle   uint64
}

// NewScheduler builds a Scheduler over stages in the given (upstream to
// downstream) order.
func NewScheduler(stages ...Stage) *Scheduler {
	return &Scheduler{stages: stages}
}

// SetReverse toggles reverse invocation order.
func (s *Scheduler) SetReverse(reverse bool) { s.reverse = reverse }

// Cycle returns the next cycle number Step will execute.
func (s *Scheduler) Cycle() uint64 { return s.cycle }

// Step advances the simulation by exactly one cycle, invoking every
// stage's Tick once in the configured order. The first stage error
// aborts the step and is returned to the caller, which decides (per
// spec.md §7) whether it is fatal or a cooperative stall already
// recorded by the stage itself.
func (s *Scheduler) Step() error {
	cycle := s.cycle
	if s.reverse {
		for i := len(s.stages) - 1; i >= 0; i-- {
			if err := s.stages[i].Tick(cycle); err != nil {
				return fmt.Errorf("stage %q at cycle %d: %w", s.stages[i].Name(), cycle, err)
			}
		}
	} else {
		for _, st := range s.stages {
			if err := st.Tick(cycle); err != nil {
				return fmt.Errorf("stage %q at cycle %d: %w", st.Name(), cycle, err)
			}
		}
	}
	s.cycle++
	return nil
}

// Run advances the simulation by n cycles, stopping at the first error.
func (s *Scheduler) Run(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// ClockDomain groups the stages that share one clock period, expressed
// in picoseconds so that multiple domains can be related by a common
// divisor (spec.md §2: "Multi-clock mode runs three coupled schedulers
// (gpu, shader, memory) advancing by LCM of their periods").
type ClockDomain struct {
	Name     string
	PeriodPS uint64
	Stages   []Stage

	cycle       uint64
	accumulated uint64
}

// Cycle returns the domain's current cycle counter.
func (d *ClockDomain) Cycle() uint64 { return d.cycle }

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// MultiClockScheduler coordinates several ClockDomains advancing at
// independent rates. It steps in units of the GCD of all domain periods
// (the "micro-step" of spec.md §2); each micro-step, every domain whose
// accumulated elapsed time has reached its period gets its stages ticked
// exactly once and its own cycle counter incremented.
type MultiClockScheduler struct {
	domains     []*ClockDomain
	microStepPS uint64
}

// NewMultiClockScheduler builds a scheduler over the given domains.
func NewMultiClockScheduler(domains ...*ClockDomain) (*MultiClockScheduler, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("multi-clock scheduler requires at least one domain")
	}
	step := domains[0].PeriodPS
	for _, d := range domains[1:] {
		step = gcd(step, d.PeriodPS)
	}
	if step == 0 {
		return nil, fmt.Errorf("multi-clock scheduler: every domain period must be > 0")
	}
	return &MultiClockScheduler{domains: domains, microStepPS: step}, nil
}

// MicroStepPS returns the computed micro-step duration in picoseconds.
func (m *MultiClockScheduler) MicroStepPS() uint64 { return m.microStepPS }

// MicroStep advances elapsed time by one micro-step, ticking every
// domain that has accumulated at least one full period.
func (m *MultiClockScheduler) MicroStep() error {
	for _, d := range m.domains {
		d.accumulated += m.microStepPS
		for d.accumulated >= d.PeriodPS {
			d.accumulated -= d.PeriodPS
			cycle := d.cycle
			for _, st := range d.Stages {
				if err := st.Tick(cycle); err != nil {
					return fmt.Errorf("domain %q stage %q at cycle %d: %w", d.Name, st.Name(), cycle, err)
				}
			}
			d.cycle++
		}
	}
	return nil
}

// Run advances n micro-steps.
func (m *MultiClockScheduler) Run(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := m.MicroStep(); err != nil {
			return err
		}
	}
	return nil
}

// DomainCycle returns the current cycle counter for the named domain, or
// (0, false) if no such domain exists.
func (m *MultiClockScheduler) DomainCycle(name string) (uint64, bool) {
	for _, d := range m.domains {
		if d.Name == name {
			return d.cycle, true
		}
	}
	return 0, false
}
