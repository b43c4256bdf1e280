package geom

import "github.com/cg1sim/cg1sim/dynobj"

// MaxMultisamples bounds the per-fragment sample-point arrays used when
// multisampling is enabled (spec.md §3: "up to 16 sample-point depth
// values and coverage flags").
const MaxMultisamples = 16

// Fragment is one shaded screen sample produced by rasterization and
// consumed by the interpolator and ROP (spec.md §3). Triangle is a
// non-owning handle: traversal holds the one arena reference for the
// whole active triangle and releases it once, when the triangle
// finishes; a fragment's copy of the handle is only ever used to Get
// the triangle's data, never to Release it.
type Fragment struct {
	X, Y int32
	Z    uint32 // unsigned 24-bit depth in the interpolator's default configuration

	// Bary holds the three barycentric/edge coordinates at (X, Y).
	Bary [3]float64

	InterpZOverW   float64
	InterpOneOverW float64

	Triangle dynobj.Handle

	InsideTriangle bool
	LastFragment   bool

	NumSamples      int
	SampleDepths    [MaxMultisamples]uint32
	SampleCoverage  [MaxMultisamples]bool

	// Attributes holds the fragment's interpolated attribute array, set
	// by the Interpolator; HasAttributes distinguishes "not yet
	// interpolated" from a legitimately all-zero attribute set.
	Attributes    [MaxVertexAttributes]Attribute
	HasAttributes bool
}

// MaxDepth24 is the 24-bit depth precision's maximum representable value,
// used by the interpolator when normalizing z/zmax (spec.md §4.7).
const MaxDepth24 = (1 << 24) - 1

// ClampDepth24 converts a [0,1] depth value into the fixed 24-bit depth
// representation used throughout the rasterizer, clamping out-of-range
// input rather than wrapping it.
func ClampDepth24(z float64) uint32 {
	if z < 0 {
		return 0
	}
	v := uint32(z * float64(MaxDepth24))
	if v > MaxDepth24 {
		return MaxDepth24
	}
	return v
}
