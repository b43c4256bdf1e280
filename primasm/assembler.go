// Package primasm implements primitive assembly (spec.md §4.3): it
// collects streamed vertices into a small circular per-stream queue and
// forms triangles from them according to the active PrimitiveMode,
// dropping degenerate triangles before they reach triangle setup.
package primasm

import (
	"fmt"

	"github.com/cg1sim/cg1sim/dynobj"
	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/types"
)

// AssembledTriangle is one triangle formed by the Assembler: the three
// source vertices (in winding order) plus the monotonically increasing
// triangle ID and the cookie chain of the DRAW command it came from
// (spec.md §4.3).
type AssembledTriangle struct {
	ID       uint64
	Vertices [3]geom.Vertex
	Cookie   dynobj.CookieStack
}

// Assembler holds the per-stream vertex queue and triangle-formation
// state for one active primitive mode. Reset returns it to its initial
// queue state so it can be reused for another DRAW batch.
type Assembler struct {
	Mode types.PrimitiveMode

	queueSize int
	slots     []geom.Vertex

	insertPtr    int
	lastVertex   int
	storedVertex int

	oddTriangle bool

	nextTriangleID  uint64
	DegenerateCount uint64
	TriangleCount   uint64
	VertexCount     uint64
}

// NewAssembler builds an Assembler with a queue of queueSize vertex
// slots, matching the source's paQueueSize parameter.
func NewAssembler(mode types.PrimitiveMode, queueSize int) *Assembler {
	if queueSize < 4 {
		queueSize = 4
	}
	return &Assembler{
		Mode:        mode,
		queueSize:   queueSize,
		slots:       make([]geom.Vertex, queueSize),
		// lastVertex names the final slot of the first primitive.
		lastVertex:  minVerticesForTriangle(mode) - 1,
		oddTriangle: true,
	}
}

func pmod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Push stores a newly streamed vertex into the queue's next insertion
// slot. Returns an error if the queue has no free entry (the caller is
// expected to have already checked headroom per spec.md §4.3's request
// throttling, so this is an invariant violation, not a stall).
func (a *Assembler) Push(v geom.Vertex) error {
	if a.storedVertex >= a.queueSize {
		return fmt.Errorf("primasm: no free assembly queue entry (queue size %d)", a.queueSize)
	}
	a.slots[a.insertPtr] = v
	a.storedVertex++
	a.VertexCount++

	if a.Mode == types.PrimitiveTriangleFan {
		// A fan always keeps vertex 0; skip it when advancing.
		if a.insertPtr == a.queueSize-1 {
			a.insertPtr = 1
		} else {
			a.insertPtr = pmod(a.insertPtr+1, a.queueSize)
		}
	} else {
		a.insertPtr = pmod(a.insertPtr+1, a.queueSize)
	}
	return nil
}

// minVerticesForTriangle returns how many buffered vertices a mode needs
// before it can form its next primitive.
func minVerticesForTriangle(mode types.PrimitiveMode) int {
	switch mode {
	case types.PrimitiveQuad, types.PrimitiveQuadStrip:
		return 4
	default:
		return 3
	}
}

// Ready reports whether enough buffered vertices exist to assemble
// another triangle.
func (a *Assembler) Ready() bool {
	return a.storedVertex >= minVerticesForTriangle(a.Mode)
}

// Assemble forms the next triangle from the buffered vertices according
// to Mode, advancing the queue's read pointers and dropping degenerate
// triangles (any two vertex indices equal) without emitting them
// (spec.md §4.3). Returns (triangle, true) on a non-degenerate result,
// (zero, false) with DegenerateCount bumped on a degenerate one, or an
// error if Ready() was false.
func (a *Assembler) Assemble(cookie dynobj.CookieStack) (AssembledTriangle, bool, error) {
	if !a.Ready() {
		return AssembledTriangle{}, false, fmt.Errorf("primasm: not enough buffered vertices to assemble a %v", a.Mode)
	}

	var v1, v2, v3 int
	switch a.Mode {
	case types.PrimitiveTriangle:
		a.storedVertex -= 3
		v1 = pmod(a.lastVertex-2, a.queueSize)
		v2 = pmod(a.lastVertex-1, a.queueSize)
		v3 = a.lastVertex
		a.lastVertex = pmod(a.lastVertex+3, a.queueSize)

	case types.PrimitiveTriangleStrip:
		a.storedVertex -= 1
		if a.oddTriangle {
			v1 = pmod(a.lastVertex-2, a.queueSize)
			v2 = pmod(a.lastVertex-1, a.queueSize)
			a.oddTriangle = false
		} else {
			v1 = pmod(a.lastVertex-1, a.queueSize)
			v2 = pmod(a.lastVertex-2, a.queueSize)
			a.oddTriangle = true
		}
		v3 = a.lastVertex
		a.lastVertex = pmod(a.lastVertex+1, a.queueSize)

	case types.PrimitiveTriangleFan:
		a.storedVertex -= 1
		v1 = 0
		if a.lastVertex == 1 {
			v2 = a.queueSize - 1
		} else {
			v2 = pmod(a.lastVertex-1, a.queueSize)
		}
		v3 = a.lastVertex
		if a.lastVertex == a.queueSize-1 {
			a.lastVertex = 1
		} else {
			a.lastVertex = pmod(a.lastVertex+1, a.queueSize)
		}

	case types.PrimitiveQuad:
		if a.oddTriangle {
			v1 = pmod(a.lastVertex-3, a.queueSize)
			v2 = pmod(a.lastVertex-2, a.queueSize)
			v3 = a.lastVertex
			a.oddTriangle = false
		} else {
			a.storedVertex -= 4
			v1 = pmod(a.lastVertex-2, a.queueSize)
			v2 = pmod(a.lastVertex-1, a.queueSize)
			v3 = a.lastVertex
			a.oddTriangle = true
			a.lastVertex = pmod(a.lastVertex+4, a.queueSize)
		}

	case types.PrimitiveQuadStrip:
		if a.oddTriangle {
			v1 = pmod(a.lastVertex-3, a.queueSize)
			v2 = pmod(a.lastVertex-2, a.queueSize)
			v3 = a.lastVertex
			a.oddTriangle = false
		} else {
			a.storedVertex -= 2
			v1 = pmod(a.lastVertex-1, a.queueSize)
			v2 = pmod(a.lastVertex-3, a.queueSize)
			v3 = a.lastVertex
			a.oddTriangle = true
			a.lastVertex = pmod(a.lastVertex+2, a.queueSize)
		}

	default:
		return AssembledTriangle{}, false, fmt.Errorf("primasm: unsupported primitive mode %v", a.Mode)
	}

	va, vb, vc := a.slots[v1], a.slots[v2], a.slots[v3]
	a.TriangleCount++

	if va.Index == vb.Index || vb.Index == vc.Index || va.Index == vc.Index {
		a.DegenerateCount++
		return AssembledTriangle{}, false, nil
	}

	a.nextTriangleID++
	return AssembledTriangle{
		ID:       a.nextTriangleID,
		Vertices: [3]geom.Vertex{va, vb, vc},
		Cookie:   cookie,
	}, true, nil
}

// Reset clears the assembler's queue state for reuse at the start of a
// new DRAW batch, keeping Mode and queue size.
func (a *Assembler) Reset() {
	a.insertPtr = 0
	a.lastVertex = minVerticesForTriangle(a.Mode) - 1
	a.storedVertex = 0
	a.oddTriangle = true
	for i := range a.slots {
		a.slots[i] = geom.Vertex{}
	}
}
