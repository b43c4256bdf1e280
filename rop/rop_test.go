package rop

import (
	"testing"

	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/memctl"
	"github.com/cg1sim/cg1sim/ropcache"
	"github.com/cg1sim/cg1sim/types"
)

func newTestROP(t *testing.T, readData bool) (*ROP, []geom.Stamp) {
	t.Helper()
	mem := memctl.New(1, 4)
	cache := ropcache.New(ropcache.Config{Ways: 2, Lines: 4, PixelsPerLine: 4, BytesPerPixel: 4}, mem)

	var completed []geom.Stamp
	cfg := Config{
		StampsCycle: 1, RopRate: 1, RopLatency: 1,
		ReadQueueSize: 4, OpQueueSize: 4, WriteQueueSize: 4, FetchQueueSize: 4, InputQueueSize: 4,
		ReadDataROP: readData,
	}
	passAll := func(s *geom.Stamp, data []byte) ([4]bool, []byte) {
		return [4]bool{true, true, true, true}, make([]byte, 16)
	}
	r := New(cfg, cache, passAll)
	r.SetWriteCompleteCallback(func(s geom.Stamp, survived [4]bool) {
		completed = append(completed, s)
	})
	r.Dispatch(types.VerbReset, 0)
	r.Dispatch(types.VerbDraw, 0)
	return r, completed
}

func TestROPDropsFullyCulledStampBeforeEnteringPipeline(t *testing.T) {
	r, _ := newTestROP(t, false)
	if err := r.Input(geom.Stamp{}, 0x1000, [4]bool{true, true, true, true}); err != nil {
		t.Fatalf("Input() error = %v", err)
	}
	if r.Culled != 1 {
		t.Fatalf("Culled = %d, want 1", r.Culled)
	}
	if len(r.inQueue) != 0 {
		t.Fatalf("fully-culled stamp entered the input queue")
	}
}

func TestROPDrainsWriteOnlyStampToCompletion(t *testing.T) {
	r, _ := newTestROP(t, false)
	if err := r.Input(geom.Stamp{}, 0x2000, [4]bool{false, false, false, false}); err != nil {
		t.Fatalf("Input() error = %v", err)
	}

	var completed []geom.Stamp
	r.SetWriteCompleteCallback(func(s geom.Stamp, survived [4]bool) {
		completed = append(completed, s)
	})

	for cycle := uint64(1); cycle <= 20 && len(completed) == 0; cycle++ {
		r.Tick(cycle, true)
	}
	if len(completed) != 1 {
		t.Fatalf("stamp never reached the write-complete callback within 20 cycles")
	}
}

func TestROPRawHazardStallsReadUntilWritten(t *testing.T) {
	r, _ := newTestROP(t, true)

	// Prime the cache so fetch succeeds immediately: a prior allocate+write.
	r.cache.Allocate(0x3000)
	r.cache.Write(0x3000, 0, make([]byte, 16), nil)

	_ = r.Input(geom.Stamp{}, 0x3000, [4]bool{false, false, false, false})
	_ = r.Input(geom.Stamp{}, 0x3000, [4]bool{false, false, false, false})

	var completed int
	r.SetWriteCompleteCallback(func(s geom.Stamp, survived [4]bool) { completed++ })

	for cycle := uint64(1); cycle <= 40 && completed < 2; cycle++ {
		r.Tick(cycle, true)
	}
	if completed != 2 {
		t.Fatalf("completed = %d, want both same-address stamps to eventually complete", completed)
	}
}

func TestROPIgnoresInputOutsideDrawingState(t *testing.T) {
	mem := memctl.New(1, 4)
	cache := ropcache.New(ropcache.Config{Ways: 2, Lines: 4, PixelsPerLine: 4, BytesPerPixel: 4}, mem)
	r := New(Config{StampsCycle: 1, RopRate: 1, RopLatency: 1, ReadQueueSize: 2, OpQueueSize: 2, WriteQueueSize: 2, FetchQueueSize: 2, InputQueueSize: 2},
		cache, func(s *geom.Stamp, data []byte) ([4]bool, []byte) { return [4]bool{}, nil })
	// state starts at StateReset, never dispatched to DRAWING
	_ = r.Input(geom.Stamp{}, 0, [4]bool{false, false, false, false})
	r.Tick(1, true)
	if len(r.writeQueue) != 0 {
		t.Fatalf("ROP advanced a stamp while not in DRAWING/END state")
	}
}

func TestConfigSizeCAMMatchesSourceFormula(t *testing.T) {
	cfg := Config{ReadQueueSize: 3, RopLatency: 2, OpQueueSize: 5}
	if got := cfg.sizeCAM(); got != 10 {
		t.Fatalf("sizeCAM() = %d, want 10 (readQueue+ropLatency+opQueue)", got)
	}
}

func TestSaveStateStreamsAcrossCyclesThenReturnsToReady(t *testing.T) {
	r, _ := newTestROP(t, false)
	r.Dispatch(types.VerbSaveColorState, 0x01000000)
	if r.State() != StateSaveState {
		t.Fatalf("State() = %v, want StateSaveState", r.State())
	}
	for cycle := uint64(1); cycle <= 100 && r.State() == StateSaveState; cycle++ {
		r.Tick(cycle, true)
	}
	if r.State() != StateReady {
		t.Fatalf("State() = %v, want StateReady after SaveState streaming completes", r.State())
	}
}

func TestSaveStateThenRestoreStateRoundTripsCacheContentsThroughDispatch(t *testing.T) {
	r, _ := newTestROP(t, false)
	r.cache.Allocate(0x2000)
	want := make([]byte, 16)
	copy(want, []byte{1, 2, 3, 4})
	r.cache.Write(0x2000, 0, want, nil)

	const addr = 0x01000000
	r.Dispatch(types.VerbSaveColorState, addr)
	for cycle := uint64(1); cycle <= 100 && r.State() == StateSaveState; cycle++ {
		r.Tick(cycle, true)
	}

	r.Dispatch(types.VerbResetColorState, 0)
	dst := make([]byte, 16)
	if r.cache.Read(0x2000, 0, 16, dst) {
		t.Fatalf("Read() succeeded on a line that RESET should have invalidated")
	}

	r.Dispatch(types.VerbRestoreColorState, addr)
	for cycle := uint64(1); cycle <= 100 && r.State() == StateRestoreState; cycle++ {
		r.Tick(cycle, true)
	}
	if r.State() != StateReady {
		t.Fatalf("State() = %v, want StateReady after RestoreState streaming completes", r.State())
	}

	if !r.cache.Read(0x2000, 0, 16, dst) {
		t.Fatalf("Read() failed after RestoreState should have repopulated the line")
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("restored byte %d = %#x, want %#x", i, dst[i], want[i])
		}
	}
}

func TestFlushDrainsQueuesThenReturnsToReady(t *testing.T) {
	r, completed := newTestROP(t, false)
	_ = r.Input(geom.Stamp{}, 0x4000, [4]bool{false, false, false, false})
	r.Dispatch(types.VerbFlushColor, 0)
	if r.State() != StateFlush {
		t.Fatalf("State() = %v, want StateFlush", r.State())
	}
	for cycle := uint64(1); cycle <= 40 && r.State() == StateFlush; cycle++ {
		r.Tick(cycle, true)
	}
	if r.State() != StateReady {
		t.Fatalf("State() = %v, want StateReady after FLUSH drains its queues", r.State())
	}
	_ = completed
}

func TestClearWritesPatternAcrossEveryLine(t *testing.T) {
	mem := memctl.New(1, 4)
	cache := ropcache.New(ropcache.Config{Ways: 2, Lines: 2, PixelsPerLine: 1, BytesPerPixel: 4}, mem)
	r := New(Config{StampsCycle: 1, RopRate: 1, RopLatency: 1, ReadQueueSize: 1, OpQueueSize: 1, WriteQueueSize: 1, FetchQueueSize: 1, InputQueueSize: 1},
		cache, func(s *geom.Stamp, data []byte) ([4]bool, []byte) { return [4]bool{}, nil })

	r.Clear([]byte{0, 255, 0, 0})

	got := make([]byte, 4)
	if !cache.Read(0, 0, 4, got) {
		t.Fatalf("Read() reported a miss right after Clear")
	}
	want := []byte{0, 255, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Read() = %v, want %v", got, want)
		}
	}
}
