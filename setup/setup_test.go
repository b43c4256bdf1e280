package setup

import (
	"math"
	"testing"

	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/types"
)

func clipVertex(x, y, z float32) geom.Vertex {
	var v geom.Vertex
	v.Set(geom.PositionAttribute, geom.Attribute{x, y, z, 1})
	return v
}

func TestTriangleComputesEdgeEquationsAndBBox(t *testing.T) {
	cfg := Config{ViewportWidth: 100, ViewportHeight: 100, SubpixelBits: 4, CullMode: types.CullNone}
	verts := [3]geom.Vertex{
		clipVertex(-0.5, -0.5, 0),
		clipVertex(0.5, -0.5, 0),
		clipVertex(0, 0.5, 0),
	}
	res, err := Triangle(cfg, 1, verts, false)
	if err != nil {
		t.Fatalf("Triangle() error = %v", err)
	}
	if res.Culled {
		t.Fatalf("Triangle() culled an unculled-mode triangle")
	}
	if res.Triangle.Area == 0 {
		t.Fatalf("Area = 0, want nonzero")
	}
	if res.Triangle.BBoxInt.MinX >= res.Triangle.BBoxInt.MaxX {
		t.Fatalf("BBoxInt = %+v, want MinX < MaxX", res.Triangle.BBoxInt)
	}
}

func TestTriangleAppliesCullBack(t *testing.T) {
	cfg := Config{ViewportWidth: 100, ViewportHeight: 100, SubpixelBits: 4, CullMode: types.CullBack}

	// Clockwise in screen space (after y-flip) comes out back-facing under
	// this package's CCW-front convention.
	cw := [3]geom.Vertex{
		clipVertex(-0.5, 0.5, 0),
		clipVertex(0.5, 0.5, 0),
		clipVertex(0, -0.5, 0),
	}
	res, err := Triangle(cfg, 1, cw, false)
	if err != nil {
		t.Fatalf("Triangle() error = %v", err)
	}
	if !res.Culled {
		t.Fatalf("back-facing triangle not culled under CullBack")
	}
}

func TestTriangleInvertsEdgesForSurvivingBackFace(t *testing.T) {
	cfg := Config{ViewportWidth: 100, ViewportHeight: 100, SubpixelBits: 4, CullMode: types.CullNone}
	cw := [3]geom.Vertex{
		clipVertex(-0.5, 0.5, 0),
		clipVertex(0.5, 0.5, 0),
		clipVertex(0, -0.5, 0),
	}
	ccw := [3]geom.Vertex{cw[2], cw[1], cw[0]}

	resCW, err := Triangle(cfg, 1, cw, false)
	if err != nil {
		t.Fatalf("Triangle(cw) error = %v", err)
	}
	resCCW, err := Triangle(cfg, 2, ccw, false)
	if err != nil {
		t.Fatalf("Triangle(ccw) error = %v", err)
	}
	if resCW.Culled || resCCW.Culled {
		t.Fatalf("CullNone culled a triangle: cw=%v ccw=%v", resCW.Culled, resCCW.Culled)
	}

	// Both orderings describe the same physical triangle, so after
	// back-face edge inversion every edge should evaluate with the same
	// sign at an interior point (the centroid) for both.
	cx, cy := 50.0, 125.0/3 // centroid in screen space; any interior point works
	signCW := math.Signbit(resCW.Triangle.Edge1.Evaluate(cx, cy))
	signCCW := math.Signbit(resCCW.Triangle.Edge1.Evaluate(cx, cy))
	if signCW != signCCW {
		t.Fatalf("inside-test sign mismatch after inversion: cw=%v ccw=%v", signCW, signCCW)
	}
}

func TestTriangleRejectsNonPositiveViewport(t *testing.T) {
	cfg := Config{ViewportWidth: 0, ViewportHeight: 100}
	_, err := Triangle(cfg, 1, [3]geom.Vertex{}, false)
	if err == nil {
		t.Fatalf("Triangle() with zero viewport width succeeded, want error")
	}
}

func TestTriangleDegenerateCoincidentVerticesIsCulled(t *testing.T) {
	cfg := Config{ViewportWidth: 100, ViewportHeight: 100, SubpixelBits: 4, CullMode: types.CullNone}
	verts := [3]geom.Vertex{
		clipVertex(0, 0, 0),
		clipVertex(0, 0, 0),
		clipVertex(0, 0, 0),
	}
	res, err := Triangle(cfg, 1, verts, false)
	if err != nil {
		t.Fatalf("Triangle() error = %v", err)
	}
	if !res.Culled {
		t.Fatalf("degenerate (zero-area) triangle was not culled")
	}
}

func TestTriangleLastTriangleSentinelPropagates(t *testing.T) {
	cfg := Config{ViewportWidth: 100, ViewportHeight: 100, SubpixelBits: 4, CullMode: types.CullNone}
	verts := [3]geom.Vertex{
		clipVertex(-0.5, -0.5, 0),
		clipVertex(0.5, -0.5, 0),
		clipVertex(0, 0.5, 0),
	}
	res, err := Triangle(cfg, 9, verts, true)
	if err != nil {
		t.Fatalf("Triangle() error = %v", err)
	}
	if !res.LastTriangle {
		t.Fatalf("LastTriangle = false, want true")
	}
}
