// Package hiz implements Hierarchical-Z early coarse-grained depth
// rejection (spec.md §4.7): it keeps a per-tile conservative depth
// extreme cached from prior writes and uses it to reject whole tiles or
// stamps before they reach the Interpolator and ROP, without ever
// producing a false reject.
package hiz

import (
	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/types"
)

// State mirrors the source's HZStateInfo signal carried from
// Hierarchical-Z back to triangle traversal: a coarse READY/BUSY
// handshake gating stamp emission (spec.md §4.5 step 3).
type State uint8

const (
	StateReady State = iota
	StateBusy
)

// tileEntry is the cached conservative depth boundary for one tile: the
// bound a new write must beat to have any chance of passing the active
// depth test.
type tileEntry struct {
	value uint32
	valid bool
}

// HierarchicalZ caches one conservative depth boundary per tile and
// rejects triangles or stamps that cannot possibly pass the configured
// depth comparison against it.
type HierarchicalZ struct {
	compare  types.CompareFunc
	tileSize int32

	tiles map[geom.TileIdentifier]tileEntry

	state State

	TilesTested    uint64
	TilesRejected  uint64
	StampsTested   uint64
	StampsRejected uint64
}

// New builds a HierarchicalZ cache. tileSize is the edge length, in
// pixels, of the coarse tile grid the cache indexes by.
func New(compare types.CompareFunc, tileSize int32) *HierarchicalZ {
	if tileSize <= 0 {
		tileSize = 8
	}
	return &HierarchicalZ{
		compare:  compare,
		tileSize: tileSize,
		tiles:    make(map[geom.TileIdentifier]tileEntry),
	}
}

// SetCompareFunc updates the active depth comparison, e.g. on a
// register write from the command processor.
func (h *HierarchicalZ) SetCompareFunc(c types.CompareFunc) { h.compare = c }

// State reports the cache's current READY/BUSY handshake value.
func (h *HierarchicalZ) State() State { return h.state }

// SetState lets a Tick implementation (or a test) force BUSY, e.g. while
// the cache is mid-update from a block of writes.
func (h *HierarchicalZ) SetState(s State) { h.state = s }

// tileFor maps a pixel-space coordinate to its coarse hiz tile.
func (h *HierarchicalZ) tileFor(x, y int32) geom.TileIdentifier {
	return geom.TileIdentifier{X: floorDiv(x, h.tileSize), Y: floorDiv(y, h.tileSize)}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// conservativeZAtTile evaluates a triangle's z-plane equation at the
// four corners of a tile's pixel bounds and returns the extreme value
// that is *least favorable* to the triangle under the active compare
// function — i.e. the value that, if it still fails, proves every pixel
// in the tile fails (no false rejects).
func conservativeZAtTile(tri *geom.SetupTriangle, bounds geom.Rect, compare types.CompareFunc) uint32 {
	corners := [4][2]float64{
		{float64(bounds.MinX), float64(bounds.MinY)},
		{float64(bounds.MaxX), float64(bounds.MinY)},
		{float64(bounds.MinX), float64(bounds.MaxY)},
		{float64(bounds.MaxX), float64(bounds.MaxY)},
	}
	var best float64
	first := true
	for _, c := range corners {
		z := tri.ZEq.Evaluate(c[0], c[1])
		if first {
			best = z
			first = false
			continue
		}
		switch compare {
		case types.CompareLess, types.CompareLessEqual:
			if z > best {
				best = z // worst case is the farthest (largest) z
			}
		default:
			if z < best {
				best = z // worst case is the nearest (smallest) z
			}
		}
	}
	return geom.ClampDepth24(best)
}

// TestTile reports whether the given triangle can possibly produce a
// surviving fragment anywhere within bounds, given the tile's currently
// cached depth boundary. A tile with no cached boundary always passes
// (nothing has ever been written there).
func (h *HierarchicalZ) TestTile(tile geom.TileIdentifier, tri *geom.SetupTriangle, bounds geom.Rect) bool {
	h.TilesTested++
	entry, ok := h.tiles[tile]
	if !ok || !entry.valid {
		return true
	}
	z := conservativeZAtTile(tri, bounds, h.compare)
	if h.compare.Evaluate(z, entry.value) {
		return true
	}
	h.TilesRejected++
	return false
}

// TestStamp performs the same coarse rejection at stamp granularity
// (spec.md §4.7: "per-stamp samples"), using the tile the stamp's
// top-left fragment falls in.
func (h *HierarchicalZ) TestStamp(s *geom.Stamp) bool {
	h.StampsTested++
	tile := h.tileFor(s.Fragments[0].X, s.Fragments[0].Y)
	entry, ok := h.tiles[tile]
	if !ok || !entry.valid {
		return true
	}
	for i := range s.Fragments {
		f := &s.Fragments[i]
		if !f.InsideTriangle {
			continue
		}
		if h.compare.Evaluate(f.Z, entry.value) {
			return true
		}
	}
	h.StampsRejected++
	return false
}

// Update records a newly written depth value for the tile containing
// (x, y), tightening the cached boundary whenever the new value is
// strictly more restrictive than what's cached (spec.md §4.8's ROP
// write stage feeds this after every successful depth write).
func (h *HierarchicalZ) Update(x, y int32, z uint32) {
	tile := h.tileFor(x, y)
	entry := h.tiles[tile]
	if !entry.valid {
		h.tiles[tile] = tileEntry{value: z, valid: true}
		return
	}
	switch h.compare {
	case types.CompareLess, types.CompareLessEqual:
		if z < entry.value {
			entry.value = z
		}
	default:
		if z > entry.value {
			entry.value = z
		}
	}
	h.tiles[tile] = entry
}

// Reset clears every cached tile boundary, e.g. on a depth-buffer clear
// or a RESET command-processor verb.
func (h *HierarchicalZ) Reset() {
	h.tiles = make(map[geom.TileIdentifier]tileEntry)
	h.TilesTested, h.TilesRejected = 0, 0
	h.StampsTested, h.StampsRejected = 0, 0
}
