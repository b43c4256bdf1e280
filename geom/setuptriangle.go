package geom

// EdgeEquation is a linear rasterizer edge (or z-interpolation) function
// of the form a*x + b*y + c, evaluated at a screen position (spec.md §3,
// §4.4).
type EdgeEquation struct {
	A, B, C float64
}

// Evaluate returns the edge function's value at (x, y).
func (e EdgeEquation) Evaluate(x, y float64) float64 {
	return e.A*x + e.B*y + e.C
}

// Inverted negates all three coefficients, the operation triangle setup
// applies to every edge of a back-facing, non-culled triangle so that
// downstream traversal can always assume front-facing sign conventions
// (spec.md §4.4).
func (e EdgeEquation) Inverted() EdgeEquation {
	return EdgeEquation{A: -e.A, B: -e.B, C: -e.C}
}

// Rect is an axis-aligned integer bounding box, used both for the
// whole-pixel screen bounding box and, scaled by the rasterizer's
// sub-pixel precision, the fixed-point one (spec.md §3).
type Rect struct {
	MinX, MinY, MaxX, MaxY int32
}

// Saved-position slot indices (spec.md §3: "up to eight saved positions
// (right/down/up, four tile-save slots, raster-start)").
const (
	SavedRight = iota
	SavedDown
	SavedUp
	SavedTile0
	SavedTile1
	SavedTile2
	SavedTile3
	SavedRasterStart
	numSavedPositions
)

// SavedPosition snapshots the incremental rasterization state so
// traversal can resume from a previously visited point instead of
// re-evaluating the edge equations from scratch.
type SavedPosition struct {
	Edge1C, Edge2C, Edge3C, ZEqC float64
	X, Y                         int32
	Valid                        bool
}

// PerspectiveVertex holds one triangle vertex's non-homogeneous,
// perspective-divided coordinates, needed by the interpolator for
// perspective-correct attribute interpolation (spec.md §3).
type PerspectiveVertex struct {
	XOverW, YOverW, ZOverW, OneOverW float32
}

// SetupTriangle is the core geometric entity produced by triangle setup
// and consumed by every downstream rasterizer stage (spec.md §3, §4.4).
// It is stored by value in a dynobj.Arena[SetupTriangle]; the arena slot
// carries the reference count described there, not a field here.
type SetupTriangle struct {
	ID uint64

	// VertexAttrs holds the three input vertices' full attribute arrays,
	// indexed [vertex][attribute].
	VertexAttrs [3][MaxVertexAttributes]Attribute

	Edge1, Edge2, Edge3 EdgeEquation
	ZEq                 EdgeEquation

	BBoxInt      Rect
	BBoxSubpixel Rect

	Area                float64
	ScreenAreaFraction  float64

	CurrentX, CurrentY int32
	SavedPositions     [numSavedPositions]SavedPosition

	Direction     Direction
	TileDirection Direction

	FirstStamp       bool
	LastFragment     bool
	PreBoundTriangle bool

	Perspective [3]PerspectiveVertex
}

// SaveRasterPosition stores the triangle's current incremental state
// into the named slot.
func (t *SetupTriangle) SaveRasterPosition(slot int) {
	if slot < 0 || slot >= numSavedPositions {
		return
	}
	t.SavedPositions[slot] = SavedPosition{
		Edge1C: t.Edge1.C, Edge2C: t.Edge2.C, Edge3C: t.Edge3.C, ZEqC: t.ZEq.C,
		X: t.CurrentX, Y: t.CurrentY, Valid: true,
	}
}

// RestoreRasterPosition reloads the incremental state from the named
// slot, reporting false if that slot was never saved.
func (t *SetupTriangle) RestoreRasterPosition(slot int) bool {
	if slot < 0 || slot >= numSavedPositions {
		return false
	}
	sp := t.SavedPositions[slot]
	if !sp.Valid {
		return false
	}
	t.Edge1.C, t.Edge2.C, t.Edge3.C, t.ZEq.C = sp.Edge1C, sp.Edge2C, sp.Edge3C, sp.ZEqC
	t.CurrentX, t.CurrentY = sp.X, sp.Y
	return true
}

// InvertEdges negates all three edge equations, matching the source's
// back-face handling (spec.md §4.4): "for back-facing triangles that are
// not culled, inverts all three edge equations".
func (t *SetupTriangle) InvertEdges() {
	t.Edge1 = t.Edge1.Inverted()
	t.Edge2 = t.Edge2.Inverted()
	t.Edge3 = t.Edge3.Inverted()
}
