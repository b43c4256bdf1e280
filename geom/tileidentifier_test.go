package geom

import "testing"

func TestUnitHorizontalStripes(t *testing.T) {
	id := TileIdentifier{X: 5, Y: 7}
	got, err := id.Unit(UnitHorizontalStripes, 4)
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if want := 7 % 4; got != want {
		t.Fatalf("Unit() = %d, want %d", got, want)
	}
}

func TestUnitVerticalStripes(t *testing.T) {
	id := TileIdentifier{X: 9, Y: 2}
	got, err := id.Unit(UnitVerticalStripes, 4)
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if want := 9 % 4; got != want {
		t.Fatalf("Unit() = %d, want %d", got, want)
	}
}

func TestUnitInterleavedDiagonal(t *testing.T) {
	id := TileIdentifier{X: 3, Y: 5}
	got, err := id.Unit(UnitInterleavedDiagonal, 4)
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if want := (3 + 5) % 4; got != want {
		t.Fatalf("Unit() = %d, want %d", got, want)
	}
}

func TestUnitMortonRequiresPowerOfTwoUpTo16(t *testing.T) {
	id := TileIdentifier{X: 1, Y: 1}
	for _, n := range []int{1, 2, 4, 8, 16} {
		if _, err := id.Unit(UnitMorton, n); err != nil {
			t.Fatalf("Unit(Morton, %d) error = %v, want nil", n, err)
		}
	}
	if _, err := id.Unit(UnitMorton, 6); err == nil {
		t.Fatalf("Unit(Morton, 6) succeeded, want error (not a power of two)")
	}
	if _, err := id.Unit(UnitMorton, 32); err == nil {
		t.Fatalf("Unit(Morton, 32) succeeded, want error (exceeds 16)")
	}
}

func TestUnitCountThreeRejectedUniversally(t *testing.T) {
	id := TileIdentifier{X: 0, Y: 0}
	for _, p := range []UnitPolicy{UnitHorizontalStripes, UnitVerticalStripes, UnitInterleavedDiagonal, UnitMorton} {
		if _, err := id.Unit(p, 3); err == nil {
			t.Fatalf("Unit(%v, 3) succeeded, want error", p)
		}
	}
}

func TestUnitMortonCheckserboardForTwoUnits(t *testing.T) {
	// horizontally adjacent tiles must land on different units for a
	// 2-unit split: the Morton code's lowest bit is the tile's x bit
	// (spec.md §8).
	a := TileIdentifier{X: 0, Y: 0}
	b := TileIdentifier{X: 1, Y: 0}
	ua, _ := a.Unit(UnitMorton, 2)
	ub, _ := b.Unit(UnitMorton, 2)
	if ua == ub {
		t.Fatalf("adjacent tiles %v and %v mapped to the same unit %d under 2-way Morton split", a, b, ua)
	}
}

func TestUnitRejectsNonPositiveCount(t *testing.T) {
	id := TileIdentifier{}
	if _, err := id.Unit(UnitHorizontalStripes, 0); err == nil {
		t.Fatalf("Unit(_, 0) succeeded, want error")
	}
}

func TestUnitNegativeTileCoordinates(t *testing.T) {
	id := TileIdentifier{X: -1, Y: -3}
	got, err := id.Unit(UnitHorizontalStripes, 4)
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if got < 0 || got >= 4 {
		t.Fatalf("Unit() = %d, want value in [0,4)", got)
	}
}
