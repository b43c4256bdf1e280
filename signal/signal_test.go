package signal

import "testing"

func TestSignalLatencyDelaysDelivery(t *testing.T) {
	s := NewOutputSignal[int]("test", 1, 3, "")

	if err := s.Write(10, 42); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	for c := uint64(10); c < 13; c++ {
		if _, ok, err := s.Read(c); ok || err != nil {
			t.Fatalf("Read(%d) = (_, %v, %v), want (_, false, nil) before latency elapses", c, ok, err)
		}
	}

	v, ok, err := s.Read(13)
	if err != nil || !ok || v != 42 {
		t.Fatalf("Read(13) = (%d, %v, %v), want (42, true, nil)", v, ok, err)
	}
}

func TestSignalZeroLatencyDeliversSameCycle(t *testing.T) {
	s := NewOutputSignal[string]("test", 4, 0, "")
	if err := s.Write(5, "now"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	v, ok, err := s.Read(5)
	if err != nil || !ok || v != "now" {
		t.Fatalf("Read(5) = (%q, %v, %v), want (\"now\", true, nil)", v, ok, err)
	}
}

func TestSignalBandwidthLimitsWritesPerCycle(t *testing.T) {
	s := NewOutputSignal[int]("test", 2, 0, "")
	if err := s.Write(0, 1); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	if err := s.Write(0, 2); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	if err := s.Write(0, 3); err == nil {
		t.Fatalf("third Write() at bandwidth 2 succeeded, want error")
	}
	// a later cycle resets the budget
	if err := s.Write(1, 4); err != nil {
		t.Fatalf("Write() at next cycle error = %v", err)
	}
}

func TestSignalBandwidthLimitsReadsPerCycle(t *testing.T) {
	s := NewOutputSignal[int]("test", 1, 0, "")
	_ = s.Write(0, 1)
	_ = s.Write(0, 2, 0)

	if _, _, err := s.Read(0); err != nil {
		t.Fatalf("first Read() error = %v", err)
	}
	if _, _, err := s.Read(0); err == nil {
		t.Fatalf("second Read() at bandwidth 1 succeeded, want error")
	}
}

func TestSignalReadOrderingIsFIFOWithinCycle(t *testing.T) {
	s := NewOutputSignal[int]("test", 8, 0, "")
	_ = s.Write(0, 1)
	_ = s.Write(0, 2)
	_ = s.Write(0, 3)

	want := []int{1, 2, 3}
	for _, w := range want {
		v, ok, err := s.Read(0)
		if err != nil || !ok || v != w {
			t.Fatalf("Read() = (%d, %v, %v), want (%d, true, nil)", v, ok, err, w)
		}
	}
	if _, ok, _ := s.Read(0); ok {
		t.Fatalf("Read() after draining returned ok=true, want false")
	}
}

func TestSignalReadDoesNotConsumeWhenNothingReady(t *testing.T) {
	s := NewOutputSignal[int]("test", 4, 5, "")
	_ = s.Write(0, 99)

	// poll several cycles before delivery; none of these should consume it
	for c := uint64(0); c < 5; c++ {
		s.Read(c)
	}
	v, ok, err := s.Read(5)
	if err != nil || !ok || v != 99 {
		t.Fatalf("Read(5) = (%d, %v, %v), want (99, true, nil) — object should not have been dropped", v, ok, err)
	}
}

func TestSignalDefaultValue(t *testing.T) {
	s := NewOutputSignal[int]("test", 1, 0, "")
	s.SetDefault(-1)
	v, ok, err := s.Read(0)
	if err != nil || ok || v != -1 {
		t.Fatalf("Read() on empty signal with default = (%d, %v, %v), want (-1, false, nil)", v, ok, err)
	}
}

func TestSignalPeekAndPendingCount(t *testing.T) {
	s := NewOutputSignal[int]("test", 8, 0, "")
	if s.Peek(0) {
		t.Fatalf("Peek() on empty signal = true, want false")
	}
	_ = s.Write(0, 1)
	_ = s.Write(0, 2)
	if !s.Peek(0) {
		t.Fatalf("Peek() after write = false, want true")
	}
	if got := s.PendingCount(0); got != 2 {
		t.Fatalf("PendingCount() = %d, want 2", got)
	}
}

func TestSignalExtraLatencyOnWrite(t *testing.T) {
	s := NewOutputSignal[int]("test", 4, 2, "")
	_ = s.Write(0, 1, 3) // total delay 2+3 = 5

	if _, ok, _ := s.Read(2); ok {
		t.Fatalf("Read(2) delivered early, extra latency was ignored")
	}
	if v, ok, err := s.Read(5); err != nil || !ok || v != 1 {
		t.Fatalf("Read(5) = (%d, %v, %v), want (1, true, nil)", v, ok, err)
	}
}

func TestSignalPruneLeavesPendingUntouched(t *testing.T) {
	s := NewOutputSignal[int]("test", 4, 10, "")
	_ = s.Write(0, 1)
	s.Prune(100)

	if v, ok, err := s.Read(10); err != nil || !ok || v != 1 {
		t.Fatalf("Read(10) after Prune = (%d, %v, %v), want (1, true, nil)", v, ok, err)
	}
}

func TestNewSignalClampsInvalidBandwidthAndLatency(t *testing.T) {
	s := newSignal[int]("test", 0, -5, "")
	if s.Bandwidth != 1 {
		t.Fatalf("Bandwidth = %d, want clamped to 1", s.Bandwidth)
	}
	if s.Latency != 0 {
		t.Fatalf("Latency = %d, want clamped to 0", s.Latency)
	}
}
