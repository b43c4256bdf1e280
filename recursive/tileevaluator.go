package recursive

import "github.com/cg1sim/cg1sim/geom"

// TileEvaluator is the per-unit stage that sits behind one Dispatcher
// tile stack: it pulls the top tile, asks the BehaviorModel to either
// resolve it (stamp level) or subdivide it (otherwise), and reports a
// READY/FULL state back to the dispatcher each cycle (spec.md §4.6).
//
// This type is a thin per-unit wrapper around Dispatcher.StepEvaluator;
// it exists so the pipeline package can treat each unit as an
// independent signal.Stage without reaching into the dispatcher's
// internals.
type TileEvaluator struct {
	index      int
	dispatcher *Dispatcher
	inputCap   int

	stampsOut []StampResult
}

// StampResult pairs an emitted stamp with the unit that produced it, so
// downstream stages can route it the way spec.md §4.5's PixelMapper
// does for the scanline variant.
type StampResult struct {
	UnitIndex int
	Stamp     geom.Stamp
}

// NewTileEvaluator builds the evaluator for dispatcher slot index.
// inputCap is the tile-stack occupancy at or above which the evaluator reports
// EvaluatorFull instead of EvaluatorReady.
func NewTileEvaluator(index int, d *Dispatcher, inputCap int) *TileEvaluator {
	return &TileEvaluator{index: index, dispatcher: d, inputCap: inputCap}
}

// Name implements signal.Stage.
func (te *TileEvaluator) Name() string {
	return "tileevaluator"
}

// Tick implements signal.Stage: it updates the dispatcher's view of this
// evaluator's readiness, then steps one tile through it.
func (te *TileEvaluator) Tick(cycle uint64) error {
	depth := te.dispatcher.EvaluatorStackDepth(te.index)
	if depth >= te.inputCap {
		te.dispatcher.SetEvaluatorState(te.index, EvaluatorFull)
	} else {
		te.dispatcher.SetEvaluatorState(te.index, EvaluatorReady)
	}

	stamp, err := te.dispatcher.StepEvaluator(te.index)
	if err != nil {
		return err
	}
	if stamp != nil {
		te.stampsOut = append(te.stampsOut, StampResult{UnitIndex: te.index, Stamp: *stamp})
	}
	return nil
}

// DrainStamps returns and clears the stamps this evaluator has produced
// since the last drain.
func (te *TileEvaluator) DrainStamps() []StampResult {
	out := te.stampsOut
	te.stampsOut = nil
	return out
}
