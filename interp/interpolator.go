// Package interp implements the attribute interpolator (spec.md §4.7):
// per fragment, it either perspective-correctly interpolates each active
// vertex attribute from the triangle's vertices or copies it flat from
// the provoking vertex, then overwrites the position and face attribute
// slots and fills every inactive slot with a configured default.
package interp

import (
	"github.com/cg1sim/cg1sim/dynobj"
	"github.com/cg1sim/cg1sim/geom"
)

// DepthBitPrecision is zmax's bit width: zmax = (1<<DepthBitPrecision)-1
// (spec.md §4.7).
const DepthBitPrecision = 24

// Config parameterizes one Interpolator instance.
type Config struct {
	// ActiveAttributes masks which of the MaxVertexAttributes slots this
	// stage's shader actually consumes (FRAGMENT_INPUT_ATTRIBUTES[i]).
	ActiveAttributes [geom.MaxVertexAttributes]bool
	// Interpolate selects, per active attribute, perspective-correct
	// interpolation (true) or flat-shading from the provoking vertex
	// (false) — spec.md §4.7's INTERPOLATION[i].
	Interpolate [geom.MaxVertexAttributes]bool
	// Default is written into every inactive attribute slot.
	Default [geom.MaxVertexAttributes]geom.Attribute

	// Interpolators is the number of parallel interpolation units,
	// used to derive the per-fragment cycle budget.
	Interpolators int
	// Latency is the fixed INTERPOLATION_LATENCY, in cycles, between a
	// fragment entering and its interpolated attributes being ready.
	Latency int
}

// ActiveAttributeCount counts how many attribute slots are active.
func (c Config) ActiveAttributeCount() int {
	n := 0
	for _, active := range c.ActiveAttributes {
		if active {
			n++
		}
	}
	return n
}

// CyclesPerFragment returns ceil(active_attribute_count/interpolators),
// the cycle budget spec.md §4.7 names.
func (c Config) CyclesPerFragment() int {
	n := c.ActiveAttributeCount()
	units := c.Interpolators
	if units <= 0 {
		units = 1
	}
	if n == 0 {
		return 1
	}
	return (n + units - 1) / units
}

// ProvokingVertex is the triangle vertex index whose attributes are used
// verbatim for flat-shaded attributes (spec.md §4.7: "the third vertex
// of the triangle").
const ProvokingVertex = 2

// Interpolator drives the per-fragment attribute-interpolation pipeline.
type Interpolator struct {
	cfg Config

	FragmentsProcessed uint64
	SentinelsForwarded uint64
}

// New builds an Interpolator from cfg.
func New(cfg Config) *Interpolator {
	return &Interpolator{cfg: cfg}
}

// barycentric returns the triangle's three barycentric weights at the
// fragment's pixel center, derived from the same edge equations setup
// uses (opposite-vertex edge i evaluates to the unnormalized weight of
// vertex i, summing to the triangle's doubled signed area).
func barycentric(tri *geom.SetupTriangle, x, y float64) [3]float64 {
	denom := 2 * tri.Area
	if denom == 0 {
		return [3]float64{}
	}
	return [3]float64{
		tri.Edge1.Evaluate(x, y) / denom,
		tri.Edge2.Evaluate(x, y) / denom,
		tri.Edge3.Evaluate(x, y) / denom,
	}
}

// Process computes the interpolated attribute set for one fragment. The
// sentinel empty fragment (an invalid Triangle handle) is forwarded
// unchanged, per spec.md §4.7.
func (it *Interpolator) Process(f *geom.Fragment, tri *geom.SetupTriangle) {
	if f.Triangle.IsZero() {
		it.SentinelsForwarded++
		return
	}
	it.FragmentsProcessed++

	bary := barycentric(tri, float64(f.X)+0.5, float64(f.Y)+0.5)
	f.Bary = bary

	var out [geom.MaxVertexAttributes]geom.Attribute
	for i := 0; i < geom.MaxVertexAttributes; i++ {
		if !it.cfg.ActiveAttributes[i] {
			out[i] = it.cfg.Default[i]
			continue
		}
		if it.cfg.Interpolate[i] {
			out[i] = perspectiveInterpolate(tri, bary, i)
		} else {
			out[i] = tri.VertexAttrs[ProvokingVertex][i]
		}
	}

	zmax := float32((1 << DepthBitPrecision) - 1)
	out[geom.PositionAttribute] = geom.Attribute{
		float32(f.X), float32(f.Y), float32(f.Z) / zmax, 1.0,
	}
	out[geom.FaceAttribute][3] = float32(tri.Area)

	f.Attributes = out
	f.HasAttributes = true
}

func perspectiveInterpolate(tri *geom.SetupTriangle, bary [3]float64, attr int) geom.Attribute {
	w0 := float64(tri.Perspective[0].OneOverW)
	w1 := float64(tri.Perspective[1].OneOverW)
	w2 := float64(tri.Perspective[2].OneOverW)

	invWInterp := bary[0]*w0 + bary[1]*w1 + bary[2]*w2
	if invWInterp == 0 {
		return tri.VertexAttrs[ProvokingVertex][attr]
	}

	var out geom.Attribute
	for lane := 0; lane < 4; lane++ {
		v0 := float64(tri.VertexAttrs[0][attr][lane]) * w0
		v1 := float64(tri.VertexAttrs[1][attr][lane]) * w1
		v2 := float64(tri.VertexAttrs[2][attr][lane]) * w2
		out[lane] = float32((bary[0]*v0 + bary[1]*v1 + bary[2]*v2) / invWInterp)
	}
	return out
}

// EmptyFragmentHandle is the sentinel handle Process() recognizes as
// "forward unchanged, no attributes".
var EmptyFragmentHandle = dynobj.Handle{}
