package geom

import "github.com/cg1sim/cg1sim/dynobj"

// Stamp is a 2x2 group of fragments sharing a triangle and a tile — the
// atomic unit passed through the rasterizer's downstream stages and
// processed in lock-step by the fragment shader (spec.md §3).
type Stamp struct {
	Fragments [4]Fragment
	Triangle  dynobj.Handle
	Tile      TileIdentifier
	Level     int
}

// AllInside reports whether every fragment of the stamp is inside the
// triangle — the case a fully tile-aligned, fully-covered 2x2 stamp
// always produces (spec.md §8).
func (s *Stamp) AllInside() bool {
	for i := range s.Fragments {
		if !s.Fragments[i].InsideTriangle {
			return false
		}
	}
	return true
}

// LastFragment reports whether any lane of the stamp carries the
// last-fragment sentinel; the traversal stage propagates it down every
// stamp lane together (spec.md §4.5 step 6).
func (s *Stamp) LastFragment() bool {
	for i := range s.Fragments {
		if s.Fragments[i].LastFragment {
			return true
		}
	}
	return false
}
