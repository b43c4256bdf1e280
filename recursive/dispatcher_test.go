package recursive

import (
	"testing"

	"github.com/cg1sim/cg1sim/geom"
)

// fakeModel is a BehaviorModel stub: every non-stamp tile splits into
// MaxGeneratedTiles children one level deeper, down to a fixed leaf
// level where tiles are marked StampLevel.
type fakeModel struct {
	leafLevel int
}

func (m *fakeModel) TopLevelTiles(batchID uint64) []geom.Tile {
	return []geom.Tile{
		{ID: geom.TileIdentifier{X: 0, Y: 0}, Level: 0, StampLevel: m.leafLevel == 0},
	}
}

func (m *fakeModel) ChildTiles(parent geom.Tile) []geom.Tile {
	children := make([]geom.Tile, 0, MaxGeneratedTiles)
	for i := 0; i < MaxGeneratedTiles; i++ {
		children = append(children, geom.Tile{
			ID:         geom.TileIdentifier{X: parent.ID.X*2 + int32(i%2), Y: parent.ID.Y*2 + int32(i/2)},
			Level:      parent.Level + 1,
			StampLevel: parent.Level+1 >= m.leafLevel,
		})
	}
	return children
}

func (m *fakeModel) Stamp(tile geom.Tile) geom.Stamp {
	return geom.Stamp{Tile: tile.ID, Level: tile.Level}
}

func TestDispatcherSubdividesToStampLevel(t *testing.T) {
	model := &fakeModel{leafLevel: 2}
	d := New(model, 2, 64, 64, 16)
	for i := range d.evaluators {
		d.SetEvaluatorState(i, EvaluatorReady)
	}
	if err := d.StartBatch(1); err != nil {
		t.Fatalf("StartBatch() error = %v", err)
	}

	var stampsSeen int
	for step := 0; step < 200 && stampsSeen < 16; step++ {
		for i := range d.evaluators {
			stamp, err := d.StepEvaluator(i)
			if err != nil {
				t.Fatalf("StepEvaluator(%d) error = %v", i, err)
			}
			if stamp != nil {
				stampsSeen++
			}
		}
		if err := d.CheckInvariants(); err != nil {
			t.Fatalf("CheckInvariants() error = %v", err)
		}
	}
	if stampsSeen != 16 {
		t.Fatalf("stampsSeen = %d, want 16 (MaxGeneratedTiles^leafLevel)", stampsSeen)
	}
}

func TestDispatcherLoadBalancesAcrossIdleEvaluators(t *testing.T) {
	model := &fakeModel{leafLevel: 1}
	d := New(model, 3, 64, 64, 16)
	for i := range d.evaluators {
		d.SetEvaluatorState(i, EvaluatorReady)
	}
	_ = d.StartBatch(1) // lands entirely on evaluator 0

	if depth := d.EvaluatorStackDepth(0); depth != 1 {
		t.Fatalf("evaluator 0 depth = %d, want 1 before subdivision", depth)
	}

	if _, err := d.StepEvaluator(0); err != nil {
		t.Fatalf("StepEvaluator(0) error = %v", err)
	}

	total := 0
	for i := range d.evaluators {
		total += d.EvaluatorStackDepth(i)
	}
	if total != MaxGeneratedTiles {
		t.Fatalf("total queued children = %d, want %d", total, MaxGeneratedTiles)
	}
	if d.EvaluatorStackDepth(1) == 0 && d.EvaluatorStackDepth(2) == 0 {
		t.Fatalf("children were not redirected to any idle evaluator")
	}
}

func TestDispatcherRejectsOverflowingTileStack(t *testing.T) {
	model := &fakeModel{leafLevel: 1}
	d := New(model, 1, 1, 64, 16)
	if err := d.StartBatch(1); err != nil {
		t.Fatalf("first StartBatch() error = %v", err)
	}
	if err := d.StartBatch(2); err == nil {
		t.Fatalf("StartBatch() into a full tile stack succeeded, want error")
	}
}

func TestDispatcherNotReadyEvaluatorProducesNothing(t *testing.T) {
	model := &fakeModel{leafLevel: 0}
	d := New(model, 1, 16, 16, 16)
	_ = d.StartBatch(1)
	// evaluator state defaults to EvaluatorReady's zero value, so force FULL
	d.SetEvaluatorState(0, EvaluatorFull)

	stamp, err := d.StepEvaluator(0)
	if err != nil {
		t.Fatalf("StepEvaluator() error = %v", err)
	}
	if stamp != nil {
		t.Fatalf("StepEvaluator() on a FULL evaluator produced a stamp")
	}
	if d.EvaluatorStackDepth(0) != 1 {
		t.Fatalf("tile was consumed from a FULL evaluator's stack")
	}
}

func TestTileEvaluatorReportsFullAboveInputCap(t *testing.T) {
	model := &fakeModel{leafLevel: 1}
	d := New(model, 1, 16, 16, 16)
	_ = d.StartBatch(1)

	te := NewTileEvaluator(0, d, 0) // inputCap 0: any occupancy is FULL
	if err := te.Tick(1); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(te.DrainStamps()) != 0 {
		t.Fatalf("FULL evaluator produced stamps")
	}
}
