// Package setup implements triangle setup (spec.md §4.4): it turns three
// homogeneous-clip-space vertices into a geom.SetupTriangle carrying edge
// equations, a z-interpolation equation, bounding boxes, signed area, and
// per-vertex perspective terms, applying face culling and back-face edge
// inversion along the way.
package setup

import (
	"fmt"
	"math"

	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/types"
)

// Config parameterizes triangle setup: the viewport transform from NDC to
// screen space, the sub-pixel fixed-point precision used for the
// rasterizer bounding box, and the active face-culling mode.
type Config struct {
	ViewportWidth, ViewportHeight int
	SubpixelBits                  int
	CullMode                      types.CullMode
}

// screenVertex is a vertex's position after the viewport transform.
type screenVertex struct {
	x, y, z, oneOverW float64
}

func toScreen(cfg Config, v geom.Vertex) screenVertex {
	pos := v.Get(geom.PositionAttribute)
	w := float64(pos[3])
	if w == 0 {
		w = 1e-9 // a degenerate w is handled by the caller via area==0 discard, not a divide fault here
	}
	invW := 1.0 / w
	ndcX := float64(pos[0]) * invW
	ndcY := float64(pos[1]) * invW
	ndcZ := float64(pos[2]) * invW

	halfW := float64(cfg.ViewportWidth) / 2
	halfH := float64(cfg.ViewportHeight) / 2
	return screenVertex{
		x:       ndcX*halfW + halfW,
		y:       halfH - ndcY*halfH, // screen y grows downward
		z:       ndcZ,
		oneOverW: invW,
	}
}

func edgeEquation(ax, ay, bx, by float64) geom.EdgeEquation {
	return geom.EdgeEquation{
		A: by - ay,
		B: -(bx - ax),
		C: bx*ay - ax*by,
	}
}

// planeEquation fits a*x + b*y + c = z through three points, used for the
// z-interpolation equation.
func planeEquation(x0, y0, z0, x1, y1, z1, x2, y2, z2, denom float64) geom.EdgeEquation {
	a := ((z1-z0)*(y2-y0) - (z2-z0)*(y1-y0)) / denom
	b := ((x1-x0)*(z2-z0) - (x2-x0)*(z1-z0)) / denom
	c := z0 - a*x0 - b*y0
	return geom.EdgeEquation{A: a, B: b, C: c}
}

// Result wraps the output SetupTriangle with the "last triangle" sentinel
// spec.md §4.4 says Setup's output signal carries alongside the triangle
// ID.
type Result struct {
	Triangle      geom.SetupTriangle
	Culled        bool
	LastTriangle  bool
}

// Triangle computes the SetupTriangle for the three given clip-space
// vertices (spec.md §4.4). id is the triangle ID assigned by primitive
// assembly; lastTriangle propagates the end-of-batch sentinel.
func Triangle(cfg Config, id uint64, verts [3]geom.Vertex, lastTriangle bool) (Result, error) {
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		return Result{}, fmt.Errorf("setup: viewport must be positive, got %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}

	s0 := toScreen(cfg, verts[0])
	s1 := toScreen(cfg, verts[1])
	s2 := toScreen(cfg, verts[2])

	area := 0.5 * ((s1.x-s0.x)*(s2.y-s0.y) - (s2.x-s0.x)*(s1.y-s0.y))

	// Screen y grows downward, so a counter-clockwise (front-facing)
	// triangle has a negative area here.
	backFacing := area > 0
	if backFacing && cfg.CullMode == types.CullBack {
		return Result{Culled: true}, nil
	}
	if !backFacing && cfg.CullMode == types.CullFront {
		return Result{Culled: true}, nil
	}

	tri := geom.SetupTriangle{ID: id}
	for i, v := range verts {
		tri.VertexAttrs[i] = v.Attributes
	}
	tri.Perspective[0] = geom.PerspectiveVertex{XOverW: float32(s0.x * s0.oneOverW), YOverW: float32(s0.y * s0.oneOverW), ZOverW: float32(s0.z * s0.oneOverW), OneOverW: float32(s0.oneOverW)}
	tri.Perspective[1] = geom.PerspectiveVertex{XOverW: float32(s1.x * s1.oneOverW), YOverW: float32(s1.y * s1.oneOverW), ZOverW: float32(s1.z * s1.oneOverW), OneOverW: float32(s1.oneOverW)}
	tri.Perspective[2] = geom.PerspectiveVertex{XOverW: float32(s2.x * s2.oneOverW), YOverW: float32(s2.y * s2.oneOverW), ZOverW: float32(s2.z * s2.oneOverW), OneOverW: float32(s2.oneOverW)}

	tri.Edge1 = edgeEquation(s1.x, s1.y, s2.x, s2.y) // opposite v0
	tri.Edge2 = edgeEquation(s2.x, s2.y, s0.x, s0.y) // opposite v1
	tri.Edge3 = edgeEquation(s0.x, s0.y, s1.x, s1.y) // opposite v2

	denom := (s1.x-s0.x)*(s2.y-s0.y) - (s2.x-s0.x)*(s1.y-s0.y)
	if denom == 0 {
		return Result{Culled: true}, nil
	}
	tri.ZEq = planeEquation(s0.x, s0.y, s0.z, s1.x, s1.y, s1.z, s2.x, s2.y, s2.z, denom)

	tri.Area = area
	viewportArea := float64(cfg.ViewportWidth * cfg.ViewportHeight)
	if viewportArea > 0 {
		tri.ScreenAreaFraction = math.Abs(area) / viewportArea
	}

	minX, maxX := minmax3(s0.x, s1.x, s2.x)
	minY, maxY := minmax3(s0.y, s1.y, s2.y)
	tri.BBoxInt = geom.Rect{
		MinX: int32(math.Floor(minX)), MinY: int32(math.Floor(minY)),
		MaxX: int32(math.Ceil(maxX)), MaxY: int32(math.Ceil(maxY)),
	}
	scale := float64(int(1) << uint(cfg.SubpixelBits))
	tri.BBoxSubpixel = geom.Rect{
		MinX: int32(math.Floor(minX * scale)), MinY: int32(math.Floor(minY * scale)),
		MaxX: int32(math.Ceil(maxX * scale)), MaxY: int32(math.Ceil(maxY * scale)),
	}

	if backFacing {
		tri.InvertEdges()
	}

	return Result{Triangle: tri, LastTriangle: lastTriangle}, nil
}

func minmax3(a, b, c float64) (min, max float64) {
	min, max = a, a
	for _, v := range []float64{b, c} {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}
