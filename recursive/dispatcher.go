// Package recursive implements the recursive-descent rasterizer variant
// (spec.md §4.6): a dispatcher that owns per-evaluator tile stacks and a
// fragment reorder buffer, a set of TileEvaluators that subdivide or
// resolve tiles, and the load-balancing and backpressure invariants that
// keep the tree-descent work roughly even across evaluators.
package recursive

import (
	"fmt"

	"github.com/cg1sim/cg1sim/geom"
)

// MaxGeneratedTiles bounds how many child tiles one non-stamp-level tile
// subdivision produces (spec.md §4.6's `MAXGENERATEDTILES`). The source
// leaves this constant's definition outside the files retrieved for this
// port; a quad-tree split of a power-of-two tile hierarchy is the
// natural choice and is what spec.md §3's "power-of-two descent" implies.
const MaxGeneratedTiles = 4

// BehaviorModel supplies the actual geometric answers a TileEvaluator
// needs: given a tile, either the stamp it resolves to (at stamp level)
// or its child tiles (otherwise). The cycle-accurate shell in this
// package never computes triangle/tile intersections itself — spec.md
// §4.6 describes this as "asks the behavior model", i.e. a black-box
// functional core the timing shell wraps.
type BehaviorModel interface {
	// TopLevelTiles builds the initial tile set for a new batch.
	TopLevelTiles(batchID uint64) []geom.Tile
	// ChildTiles returns up to MaxGeneratedTiles child tiles of parent.
	ChildTiles(parent geom.Tile) []geom.Tile
	// Stamp resolves a stamp-level tile into its fragment stamp.
	Stamp(tile geom.Tile) geom.Stamp
}

// EvaluatorState mirrors the READY/FULL handshake a TileEvaluator
// reports back to the dispatcher (spec.md §4.6).
type EvaluatorState uint8

const (
	EvaluatorReady EvaluatorState = iota
	EvaluatorFull
)

// evaluatorSlot is the dispatcher's bookkeeping for one TileEvaluator's
// tile stack.
type evaluatorSlot struct {
	stack         []geom.Tile // LIFO
	reservedTiles int
	state         EvaluatorState
}

// Dispatcher owns the setup-triangle-driven tile stacks and fragment
// reorder buffer described in spec.md §4.6.
type Dispatcher struct {
	model BehaviorModel

	tileStackSize      int
	fragmentBufferSize int

	evaluators []*evaluatorSlot

	fragmentBuffer   []geom.Fragment
	reservedFragments int

	outputBufferSize int
	outputTiles      []geom.Tile
	reservedOutputs  int
}

// New builds a Dispatcher with numEvaluators per-evaluator tile stacks.
func New(model BehaviorModel, numEvaluators, tileStackSize, fragmentBufferSize, outputBufferSize int) *Dispatcher {
	d := &Dispatcher{
		model:              model,
		tileStackSize:      tileStackSize,
		fragmentBufferSize: fragmentBufferSize,
		outputBufferSize:   outputBufferSize,
	}
	for i := 0; i < numEvaluators; i++ {
		d.evaluators = append(d.evaluators, &evaluatorSlot{})
	}
	return d
}

// StartBatch asks the behavior model for a batch's top-level tiles and
// distributes them round-robin across evaluators.
func (d *Dispatcher) StartBatch(batchID uint64) error {
	tiles := d.model.TopLevelTiles(batchID)
	for i, tile := range tiles {
		ev := d.evaluators[i%len(d.evaluators)]
		if err := d.pushTile(ev, tile); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) pushTile(ev *evaluatorSlot, tile geom.Tile) error {
	if len(ev.stack)+ev.reservedTiles >= d.tileStackSize {
		return fmt.Errorf("recursive: tile stack overflow: stored=%d reserved=%d capacity=%d",
			len(ev.stack), ev.reservedTiles, d.tileStackSize)
	}
	ev.stack = append(ev.stack, tile)
	return nil
}

// pickBalanceTarget implements the load-balancing rule: a newly produced
// tile from evaluator i is redirected to the first evaluator j that has
// an empty stack and no reservations, otherwise it stays with i
// (spec.md §4.6).
func (d *Dispatcher) pickBalanceTarget(i int) int {
	for j, ev := range d.evaluators {
		if j == i {
			continue
		}
		if len(ev.stack) == 0 && ev.reservedTiles == 0 {
			return j
		}
	}
	return i
}

// StepEvaluator processes the top tile of evaluator i's stack, if ready,
// subdividing or resolving it via the behavior model and applying the
// backpressure reservations spec.md §4.6 names. Returns the stamp
// produced, if any (only stamp-level tiles produce one per step).
func (d *Dispatcher) StepEvaluator(i int) (*geom.Stamp, error) {
	if i < 0 || i >= len(d.evaluators) {
		return nil, fmt.Errorf("recursive: evaluator index %d out of range", i)
	}
	ev := d.evaluators[i]
	if len(ev.stack) == 0 || ev.state != EvaluatorReady {
		return nil, nil
	}

	tile := ev.stack[len(ev.stack)-1]
	ev.stack = ev.stack[:len(ev.stack)-1]

	if tile.StampLevel {
		if d.reservedFragments+4 > d.fragmentBufferSize {
			// put the tile back; no room to reserve fragment slots this cycle
			ev.stack = append(ev.stack, tile)
			return nil, nil
		}
		d.reservedFragments += 4
		stamp := d.model.Stamp(tile)
		d.releaseFragmentReservation(4)
		return &stamp, nil
	}

	if len(ev.stack)+ev.reservedTiles+MaxGeneratedTiles > d.tileStackSize {
		ev.stack = append(ev.stack, tile)
		return nil, nil
	}
	ev.reservedTiles += MaxGeneratedTiles
	children := d.model.ChildTiles(tile)
	if len(children) > MaxGeneratedTiles {
		children = children[:MaxGeneratedTiles]
	}
	for idx, child := range children {
		if idx == len(children)-1 {
			child.EndTile = true
		}
		target := d.pickBalanceTarget(i)
		if err := d.pushTile(d.evaluators[target], child); err != nil {
			return nil, err
		}
	}
	ev.reservedTiles -= MaxGeneratedTiles
	return nil, nil
}

func (d *Dispatcher) releaseFragmentReservation(n int) {
	d.reservedFragments -= n
	if d.reservedFragments < 0 {
		d.reservedFragments = 0
	}
}

// SetEvaluatorState lets a TileEvaluator report its READY/FULL state.
func (d *Dispatcher) SetEvaluatorState(i int, s EvaluatorState) {
	if i < 0 || i >= len(d.evaluators) {
		return
	}
	d.evaluators[i].state = s
}

// CheckInvariants validates the backpressure invariants named in spec.md
// §4.6; a violation is an assertion failure, not a cooperative stall.
func (d *Dispatcher) CheckInvariants() error {
	if d.reservedOutputs+len(d.outputTiles) > d.outputBufferSize && d.outputBufferSize > 0 {
		return fmt.Errorf("recursive: output buffer invariant violated: outputTiles=%d reservedOutputs=%d bufferSize=%d",
			len(d.outputTiles), d.reservedOutputs, d.outputBufferSize)
	}
	for i, ev := range d.evaluators {
		if len(ev.stack)+ev.reservedTiles > d.tileStackSize {
			return fmt.Errorf("recursive: tile stack %d invariant violated: stored=%d reserved=%d capacity=%d",
				i, len(ev.stack), ev.reservedTiles, d.tileStackSize)
		}
	}
	if d.reservedFragments+len(d.fragmentBuffer) > d.fragmentBufferSize {
		return fmt.Errorf("recursive: fragment buffer invariant violated: stored=%d reserved=%d capacity=%d",
			len(d.fragmentBuffer), d.reservedFragments, d.fragmentBufferSize)
	}
	return nil
}

// EvaluatorStackDepth reports evaluator i's current stack depth, for
// tests and diagnostics.
func (d *Dispatcher) EvaluatorStackDepth(i int) int {
	if i < 0 || i >= len(d.evaluators) {
		return 0
	}
	return len(d.evaluators[i].stack)
}
