package geom

import (
	"fmt"

	"github.com/cg1sim/cg1sim/dynobj"
)

// MaxTileTriangles bounds how many setup triangles one Tile can have
// under concurrent evaluation (spec.md §3).
const MaxTileTriangles = 32

// TileTriangleEntry is one triangle's rasterization state as seen from a
// single Tile: the edge and z equations evaluated at the tile's top-left
// corner, plus whether that corner is inside the triangle.
type TileTriangleEntry struct {
	Triangle                    dynobj.Handle
	Edge1At, Edge2At, Edge3At    float64
	ZEqAt                        float64
	Inside                       bool
}

// Tile is an axis-aligned rectangular region of pixels at a known level
// in a power-of-two descent (spec.md §3). StampLevel marks the base case
// whose evaluation emits a single Stamp of four fragments; non-stamp
// tiles are further subdivided by a TileEvaluator into child tiles.
type Tile struct {
	ID    TileIdentifier
	Level int

	// Bounds is the tile's pixel-space extent at Level.
	Bounds Rect

	Triangles    [MaxTileTriangles]TileTriangleEntry
	NumTriangles int

	StampLevel bool

	// EndTile marks the last child tile produced from one parent
	// subdivision, so the dispatcher releases the parent's
	// MAXGENERATEDTILES reservation when this tile is processed
	// (spec.md §4.6).
	EndTile bool
}

// AddTriangle appends a triangle entry, reporting an error if the tile
// is already at MaxTileTriangles capacity.
func (t *Tile) AddTriangle(entry TileTriangleEntry) error {
	if t.NumTriangles >= MaxTileTriangles {
		return fmt.Errorf("geom: tile already references %d triangles (max %d)", t.NumTriangles, MaxTileTriangles)
	}
	t.Triangles[t.NumTriangles] = entry
	t.NumTriangles++
	return nil
}

// ActiveTriangles returns the slice of currently referenced triangle
// entries.
func (t *Tile) ActiveTriangles() []TileTriangleEntry {
	return t.Triangles[:t.NumTriangles]
}
