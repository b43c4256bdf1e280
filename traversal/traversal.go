// Package traversal implements the scanline variant of the rasterizer's
// triangle-traversal stage (spec.md §4.5): it drains SetupTriangles into
// a bounded queue, walks the active triangle's bounding box in 2x2 stamp
// steps, performs the inside test against the (already orientation-
// normalized, see setup.Triangle) edge equations, and assigns emitted
// stamps to a downstream unit via the tile-to-unit PixelMapper policy.
package traversal

import (
	"fmt"

	"github.com/cg1sim/cg1sim/cgerr"
	"github.com/cg1sim/cg1sim/dynobj"
	"github.com/cg1sim/cg1sim/geom"
)

// Config parameterizes one Traversal instance.
type Config struct {
	QueueCapacity   int // Q
	TriangleCycle   int // max triangles drained per cycle
	StampsCycle     int // max stamps emitted per cycle
	SamplesPerCycle int // multisample depth-sample generation rate; 0 disables multisampling
	NumSamples      int
	UnitPolicy      geom.UnitPolicy
	NumUnits        int
}

// CyclesPerStamp returns how many cycles the sample generator needs for
// one stamp under multisampling, ceil(samples/samplesPerCycle) per
// spec.md §4.5. With multisampling disabled this is always 1.
func (c Config) CyclesPerStamp() int {
	if c.SamplesPerCycle <= 0 || c.NumSamples <= 0 {
		return 1
	}
	return (c.NumSamples + c.SamplesPerCycle - 1) / c.SamplesPerCycle
}

// entry is one queued triangle awaiting or undergoing traversal.
type entry struct {
	handle dynobj.Handle
}

// Traversal is the scanline rasterizer's per-triangle traversal state
// machine.
type Traversal struct {
	cfg   Config
	arena *dynobj.Arena[geom.SetupTriangle]

	queue []entry

	active    dynobj.Handle
	activeTri geom.SetupTriangle
	hasActive bool
	cursorX   int32
	cursorY   int32

	sawLastTriangle bool
	atEnd           bool

	StampsEmitted      uint64
	TrianglesCompleted uint64
	QueueFullStalls    uint64
}

// New builds a Traversal backed by arena.
func New(arena *dynobj.Arena[geom.SetupTriangle], cfg Config) *Traversal {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1
	}
	if cfg.StampsCycle <= 0 {
		cfg.StampsCycle = 1
	}
	return &Traversal{cfg: cfg, arena: arena}
}

// QueueLen reports the number of triangles currently buffered (not
// counting the in-progress active triangle).
func (t *Traversal) QueueLen() int { return len(t.queue) }

// ReadyForMore reports whether the drain step has headroom, per spec.md
// §4.5 step 5: "Requests more triangles from setup whenever
// stored+requested+triangleCycle <= Q". Since this package has no
// separate "requested" counter (that bookkeeping belongs to the signal
// wiring in the pipeline package), it approximates with the queue's
// current occupancy.
func (t *Traversal) ReadyForMore() bool {
	return len(t.queue)+t.cfg.TriangleCycle <= t.cfg.QueueCapacity
}

// Enqueue admits a newly setup triangle, taking ownership of the caller's
// arena reference (spec.md §3: "reference-acquired by the rasterizer") —
// the caller must not Release h itself; traversal releases it exactly
// once, when the triangle finishes or the queue is Reset.
// lastTriangle marks the end-of-batch sentinel triangle.
func (t *Traversal) Enqueue(h dynobj.Handle, lastTriangle bool) error {
	if len(t.queue) >= t.cfg.QueueCapacity {
		t.QueueFullStalls++
		return fmt.Errorf("traversal: queue full (capacity %d)", t.cfg.QueueCapacity)
	}
	t.queue = append(t.queue, entry{handle: h})
	if lastTriangle {
		t.sawLastTriangle = true
	}
	return nil
}

func (t *Traversal) startNextTriangle() (bool, error) {
	if t.hasActive || len(t.queue) == 0 {
		return false, nil
	}
	e := t.queue[0]
	t.queue = t.queue[1:]
	tri, err := t.arena.Get(e.handle)
	if err != nil {
		return false, fmt.Errorf("traversal: Get active triangle: %w", err)
	}
	t.active = e.handle
	t.activeTri = tri
	t.hasActive = true
	t.cursorX = alignDown2(tri.BBoxInt.MinX)
	t.cursorY = alignDown2(tri.BBoxInt.MinY)
	return true, nil
}

func alignDown2(v int32) int32 {
	if v%2 != 0 {
		return v - 1
	}
	return v
}

// insideTest evaluates the triangle's three edge equations at (x, y).
// Edges are normalized by setup.Triangle to read >=0 on the interior for
// both front- and (inverted) back-facing survivors.
func insideTest(tri *geom.SetupTriangle, x, y float64) bool {
	return tri.Edge1.Evaluate(x, y) >= 0 &&
		tri.Edge2.Evaluate(x, y) >= 0 &&
		tri.Edge3.Evaluate(x, y) >= 0
}

// sampleOffsets gives n sub-pixel sample positions within the unit
// pixel square for multisample coverage testing. The original source's
// MSAA sample-position table sits outside the retrieved sources; these
// are a standard rotated-grid-style pattern, not required to be
// bit-exact per spec.md's Non-goals.
var sampleOffsets = map[int][][2]float64{
	1: {{0.5, 0.5}},
	2: {{0.25, 0.25}, {0.75, 0.75}},
	4: {{0.375, 0.125}, {0.875, 0.375}, {0.125, 0.625}, {0.625, 0.875}},
	8: {
		{0.5625, 0.3125}, {0.4375, 0.6875}, {0.8125, 0.5625}, {0.3125, 0.1875},
		{0.1875, 0.8125}, {0.0625, 0.4375}, {0.6875, 0.9375}, {0.9375, 0.0625},
	},
	16: {
		{0.5625, 0.4375}, {0.4375, 0.5625}, {0.3125, 0.3750}, {0.7500, 0.5000},
		{0.1875, 0.6250}, {0.6250, 0.1875}, {0.1875, 0.3125}, {0.6875, 0.8125},
		{0.8750, 0.2500}, {0.5000, 0.7500}, {0.3750, 0.8750}, {0.2500, 0.1250},
		{0.0000, 0.5000}, {0.9375, 0.7500}, {0.8125, 0.0625}, {0.0625, 0.0000},
	},
}

func sampleOffsetsFor(n int) [][2]float64 {
	if offs, ok := sampleOffsets[n]; ok {
		return offs
	}
	return sampleOffsets[1]
}

func (t *Traversal) buildStamp(stampX, stampY int32) geom.Stamp {
	var s geom.Stamp
	s.Triangle = t.active
	s.Tile = geom.TileIdentifier{X: stampX / 2, Y: stampY / 2}

	offsets := [4][2]int32{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, off := range offsets {
		fx, fy := stampX+off[0], stampY+off[1]
		frag := &s.Fragments[i]
		frag.X, frag.Y = fx, fy
		frag.Triangle = t.active

		if t.cfg.NumSamples > 0 {
			// Multisampling: coverage is the OR of every sample's own
			// inside-test at its sub-pixel offset, not the pixel center
			// (spec.md §4.8 scenario 6: a fragment can carry coverage
			// from a single edge-grazing sample alone).
			frag.NumSamples = t.cfg.NumSamples
			offs := sampleOffsetsFor(t.cfg.NumSamples)
			covered := 0
			for si := 0; si < t.cfg.NumSamples && si < geom.MaxMultisamples; si++ {
				sx := float64(fx) + offs[si%len(offs)][0]
				sy := float64(fy) + offs[si%len(offs)][1]
				if insideTest(&t.activeTri, sx, sy) {
					frag.SampleCoverage[si] = true
					covered++
					frag.SampleDepths[si] = geom.ClampDepth24(t.activeTri.ZEq.Evaluate(sx, sy))
				}
			}
			frag.InsideTriangle = covered > 0
			if covered > 0 {
				frag.Z = geom.ClampDepth24(t.activeTri.ZEq.Evaluate(float64(fx)+0.5, float64(fy)+0.5))
			}
			continue
		}

		inside := insideTest(&t.activeTri, float64(fx)+0.5, float64(fy)+0.5)
		frag.InsideTriangle = inside
		if inside {
			frag.Z = geom.ClampDepth24(t.activeTri.ZEq.Evaluate(float64(fx)+0.5, float64(fy)+0.5))
		}
	}
	return s
}

// EmitStamps advances the active triangle's traversal, emitting up to
// StampsCycle stamps that have at least one fragment inside the
// triangle; stamps entirely outside the triangle are
// skipped without counting against the budget (matching a real
// traversal's early reject). hiZReady gates emission: when false, no
// stamps are produced this call, matching spec.md §4.5 step 3 ("While
// downstream Hierarchical-Z reports READY...").
func (t *Traversal) EmitStamps(hiZReady bool) ([]geom.Stamp, error) {
	if !hiZReady {
		return nil, nil
	}
	if _, err := t.startNextTriangle(); err != nil {
		return nil, err
	}
	if !t.hasActive {
		return nil, nil
	}

	var out []geom.Stamp
	for len(out) < t.cfg.StampsCycle {
		if t.cursorY > t.activeTri.BBoxInt.MaxY {
			if err := t.finishActiveTriangle(); err != nil {
				return out, err
			}
			if more, err := t.startNextTriangle(); err != nil {
				return out, err
			} else if !more {
				break
			}
			continue
		}

		x, y := t.cursorX, t.cursorY
		t.advanceCursor()

		stamp := t.buildStamp(x, y)
		if !anyInside(&stamp) {
			continue // entirely outside; doesn't count against the budget
		}
		t.StampsEmitted++
		out = append(out, stamp)
	}
	return out, nil
}

func anyInside(s *geom.Stamp) bool {
	for i := range s.Fragments {
		if s.Fragments[i].InsideTriangle {
			return true
		}
	}
	return false
}

func (t *Traversal) advanceCursor() {
	t.cursorX += 2
	if t.cursorX > t.activeTri.BBoxInt.MaxX {
		t.cursorX = alignDown2(t.activeTri.BBoxInt.MinX)
		t.cursorY += 2
	}
}

func (t *Traversal) finishActiveTriangle() error {
	_, err := t.arena.Release(t.active)
	if err != nil {
		return fmt.Errorf("traversal: Release completed triangle: %w", err)
	}
	t.TrianglesCompleted++
	t.hasActive = false
	t.activeTri = geom.SetupTriangle{}
	t.active = dynobj.Handle{}
	if t.sawLastTriangle && len(t.queue) == 0 {
		t.atEnd = true
	}
	return nil
}

// AtEnd reports whether the last-triangle sentinel has been drained and
// every queued triangle fully traversed — spec.md §4.5 step 6's END
// transition.
func (t *Traversal) AtEnd() bool { return t.atEnd }

// Reset clears traversal state for a new batch, releasing any queued
// triangle references back to the arena.
func (t *Traversal) Reset() error {
	if t.hasActive {
		if _, err := t.arena.Release(t.active); err != nil && !cgerrIsExpected(err) {
			return err
		}
	}
	for _, e := range t.queue {
		if _, err := t.arena.Release(e.handle); err != nil && !cgerrIsExpected(err) {
			return err
		}
	}
	t.queue = nil
	t.hasActive = false
	t.sawLastTriangle = false
	t.atEnd = false
	return nil
}

func cgerrIsExpected(err error) bool {
	return err == cgerr.ErrInvalidHandle
}
