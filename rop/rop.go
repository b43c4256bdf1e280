// Package rop implements the generic ROP engine (spec.md §4.8),
// instantiated once as the Z/Stencil unit and once as the Color Write
// unit. It models the seven-stage sub-pipeline input → fetch → read →
// operation-start → operation-end → write → terminate as a single
// signal.Stage, backed by a ropcache.Cache and gated by a RAW-hazard
// CAM sized exactly the way the source sizes it.
package rop

import (
	"fmt"

	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/ropcache"
	"github.com/cg1sim/cg1sim/signal"
	"github.com/cg1sim/cg1sim/types"
)

// State is the ROP instance's command-driven state machine (spec.md
// §4.8): RESET -> READY -> DRAWING -> END, with END able to reach any of
// the maintenance states before returning to READY.
type State uint8

const (
	StateReset State = iota
	StateReady
	StateDrawing
	StateEnd
	StateSwap
	StateFlush
	StateSaveState
	StateRestoreState
	StateResetState
	StateClear
)

// Config parameterizes one ROP instance.
type Config struct {
	StampsCycle int
	RopRate     int
	RopLatency  int

	ReadQueueSize, OpQueueSize, WriteQueueSize, FetchQueueSize, InputQueueSize int

	ReadDataROP bool // false: write-only (allocate instead of fetch)
	BypassROP   bool

	Multisampling bool
	NumSamples    int
}

// sizeCAM matches the source's RAW CAM sizing exactly (spec.md §4.8:
// "a small RAW-detection CAM of size = read-queue + rop-latency +
// op-queue positions"); `original_source/arch/funcmodel/FragmentOperator/
// cmGenericROP.cpp` computes `sizeCAM = readQueueSize + ropLatency +
// opQueueSize`, which resolves the sizing Open Question.
func (c Config) sizeCAM() int {
	return c.ReadQueueSize + c.RopLatency + c.OpQueueSize
}

// pendingStamp is one stamp's progress through the sub-pipeline.
type pendingStamp struct {
	stamp   geom.Stamp
	address uint64
	culled  [4]bool // per-fragment cull flags
	data    []byte   // bytes read from the cache, filled by the read stage
}

func (p *pendingStamp) allCulled() bool {
	for _, c := range p.culled {
		if !c {
			return false
		}
	}
	return true
}

// OperateCallback performs the per-ROP-instance operation (Z-test,
// stencil-test, or blend) on a stamp's fetched data, returning the
// per-fragment pass/fail mask.
type OperateCallback func(stamp *geom.Stamp, data []byte) (pass [4]bool, result []byte)

// ROP is one instance of the generic ROP engine.
type ROP struct {
	cfg      Config
	cache    *ropcache.Cache
	operate  OperateCallback
	onWriteComplete func(stamp geom.Stamp, survived [4]bool)

	state State

	inQueue    []*pendingStamp
	fetchQueue []*pendingStamp
	readQueue  []*pendingStamp
	opQueue    []*pendingStamp
	writeQueue []*pendingStamp

	rawCAM      []*pendingStamp
	rawCAMFirst int
	rawCAMCount int

	opBusyUntil uint64

	// stateAddress is the state-buffer address the last SAVE_*_STATE or
	// RESTORE_*_STATE verb carried, consumed once Tick drives the cache's
	// SaveState/RestoreState iterator to completion.
	stateAddress uint64

	Inputs, Operated, Culled, RAWDependencies uint64
}

// New builds a ROP instance backed by cache and driven by operate.
func New(cfg Config, cache *ropcache.Cache, operate OperateCallback) *ROP {
	if cfg.StampsCycle < 1 {
		cfg.StampsCycle = 1
	}
	if cfg.RopRate < 1 {
		cfg.RopRate = 1
	}
	if cfg.RopLatency < 1 {
		cfg.RopLatency = 1
	}
	r := &ROP{cfg: cfg, cache: cache, operate: operate, state: StateReset}
	r.rawCAM = make([]*pendingStamp, cfg.sizeCAM())
	return r
}

// SetWriteCompleteCallback registers the post-write callback spec.md
// §4.8 names (the Z-test instance forwards a surviving stamp into the
// color unit).
func (r *ROP) SetWriteCompleteCallback(f func(stamp geom.Stamp, survived [4]bool)) {
	r.onWriteComplete = f
}

// State reports the ROP instance's current state-machine value.
func (r *ROP) State() State { return r.state }

// Dispatch applies a command-processor verb to this ROP instance's
// state machine (spec.md §4.8). address carries the state-buffer
// address SAVE_*_STATE/RESTORE_*_STATE verbs target; every other verb
// ignores it.
func (r *ROP) Dispatch(v types.Verb, address uint64) {
	switch v {
	case types.VerbReset, types.VerbResetColorState, types.VerbResetZStencilState:
		r.reset()
	case types.VerbDraw:
		r.state = StateDrawing
	case types.VerbSwapBuffers:
		r.state = StateSwap
	case types.VerbFlushColor, types.VerbFlushZStencil:
		r.state = StateFlush
	case types.VerbSaveColorState, types.VerbSaveZStencilState:
		r.stateAddress = address
		r.state = StateSaveState
	case types.VerbRestoreColorState, types.VerbRestoreZStencilState:
		r.stateAddress = address
		r.state = StateRestoreState
	}
}

// Clear force-writes pixel across the entire cache (CLEAR_COLOR/
// CLEAR_ZSTENCIL). Unlike SAVE_STATE/RESTORE_STATE this
// completes in a single call rather than streaming across cycles: the
// source treats a clear as instantaneous relative to the per-stamp
// pipeline, and this engine has no prior contents to preserve while
// clearing.
func (r *ROP) Clear(pixel []byte) {
	r.cache.Clear(pixel)
}

// reset implements the RESET register contract: zero counters,
// re-initialize the cache, and return to READY.
func (r *ROP) reset() {
	r.cache.Reset()
	r.Inputs, r.Operated, r.Culled, r.RAWDependencies = 0, 0, 0, 0
	r.inQueue, r.fetchQueue, r.readQueue, r.opQueue, r.writeQueue = nil, nil, nil, nil, nil
	for i := range r.rawCAM {
		r.rawCAM[i] = nil
	}
	r.rawCAMFirst, r.rawCAMCount = 0, 0
	r.state = StateReady
}

// Input accepts a stamp in stamp-sized groups; if every per-stamp cull
// flag is set, the stamp is dropped before entering the pipeline
// (spec.md §4.8 step 1).
func (r *ROP) Input(s geom.Stamp, address uint64, culled [4]bool) error {
	r.Inputs++
	p := &pendingStamp{stamp: s, address: address, culled: culled}
	if p.allCulled() {
		r.Culled++
		return nil
	}
	if len(r.inQueue) >= r.cfg.InputQueueSize && r.cfg.InputQueueSize > 0 {
		return fmt.Errorf("rop: input queue full (capacity %d)", r.cfg.InputQueueSize)
	}
	r.inQueue = append(r.inQueue, p)
	return nil
}

// fetch implements stage 2 (spec.md §4.8): fetch read data, or allocate
// a write-only line, advancing the stamp to the read queue once ready.
func (r *ROP) fetch(cycle uint64) {
	if r.cfg.BypassROP {
		if len(r.inQueue) == 0 || len(r.writeQueue) >= r.cfg.WriteQueueSize {
			return
		}
		p := r.inQueue[0]
		r.inQueue = r.inQueue[1:]
		r.writeQueue = append(r.writeQueue, p)
		return
	}
	if len(r.inQueue) == 0 {
		return
	}
	p := r.inQueue[0]
	if r.cfg.ReadDataROP {
		if len(r.fetchQueue) >= r.cfg.FetchQueueSize {
			return
		}
		if r.cache.Fetch(cycle, p.address) {
			r.inQueue = r.inQueue[1:]
			r.fetchQueue = append(r.fetchQueue, p)
		}
		return
	}
	if len(r.readQueue) >= r.cfg.ReadQueueSize {
		return
	}
	if r.cache.Allocate(p.address) {
		r.inQueue = r.inQueue[1:]
		r.readQueue = append(r.readQueue, p)
	}
}

// read implements stage 3: RAW-hazard check against the CAM, then the
// actual cache read, inserting the stamp into the CAM on the first
// sample of the first buffer.
func (r *ROP) read() {
	if len(r.fetchQueue) == 0 {
		return
	}
	p := r.fetchQueue[0]

	for i, n := r.rawCAMFirst, r.rawCAMCount; n > 0; n, i = n-1, (i+1)%len(r.rawCAM) {
		if r.rawCAM[i] != p && r.rawCAM[i] != nil && r.rawCAM[i].address == p.address {
			r.RAWDependencies++
			return
		}
	}

	if len(r.readQueue) >= r.cfg.ReadQueueSize {
		return
	}
	bytes := make([]byte, 4*len(p.stamp.Fragments))
	if !r.cache.Read(p.address, 0, len(bytes), bytes) {
		return
	}
	p.data = bytes
	r.insertCAM(p)
	r.fetchQueue = r.fetchQueue[1:]
	r.readQueue = append(r.readQueue, p)
}

func (r *ROP) insertCAM(p *pendingStamp) {
	free := (r.rawCAMFirst + r.rawCAMCount) % len(r.rawCAM)
	r.rawCAM[free] = p
	r.rawCAMCount++
}

// opStart implements stage 4: at most one in-flight operation, paced by
// ropRate cycles between issues.
func (r *ROP) opStart(cycle uint64) {
	if len(r.readQueue) == 0 || cycle < r.opBusyUntil {
		return
	}
	if len(r.opQueue) >= r.cfg.OpQueueSize {
		return
	}
	p := r.readQueue[0]
	r.readQueue = r.readQueue[1:]
	r.opQueue = append(r.opQueue, p)
	r.opBusyUntil = cycle + uint64(r.cfg.RopRate)
}

// opEnd implements stage 5: deliver to the operate callback.
func (r *ROP) opEnd() {
	if len(r.opQueue) == 0 {
		return
	}
	p := r.opQueue[0]
	r.opQueue = r.opQueue[1:]
	pass, data := r.operate(&p.stamp, p.data)
	r.Operated++
	for i := range p.culled {
		if !pass[i] {
			p.culled[i] = true
		}
	}
	if len(r.writeQueue) < r.cfg.WriteQueueSize || r.cfg.WriteQueueSize == 0 {
		r.writeQueue = append(r.writeQueue, p)
	}
	r.writeResult(p, data)
}

func (r *ROP) writeResult(p *pendingStamp, data []byte) {
	r.cache.Write(p.address, 0, data, nil)
	r.releaseCAM(p)
}

func (r *ROP) releaseCAM(p *pendingStamp) {
	if r.rawCAMCount == 0 {
		return
	}
	if r.rawCAM[r.rawCAMFirst] == p {
		r.rawCAM[r.rawCAMFirst] = nil
		r.rawCAMFirst = (r.rawCAMFirst + 1) % len(r.rawCAM)
		r.rawCAMCount--
	}
}

// terminate implements stage 7: pop the written queue and invoke the
// post-write callback once the consumer is ready.
func (r *ROP) terminate(consumerReady bool) {
	if !consumerReady || len(r.writeQueue) == 0 {
		return
	}
	p := r.writeQueue[0]
	r.writeQueue = r.writeQueue[1:]
	if r.onWriteComplete != nil {
		var survived [4]bool
		for i := range survived {
			survived[i] = !p.culled[i]
		}
		r.onWriteComplete(p.stamp, survived)
	}
}

// Tick runs one cycle of every sub-stage, in reverse pipeline order so a
// stamp can advance at most one stage per cycle (matching the fixed
// per-cycle advancement spec.md §5 describes for cooperative stages).
//
// While SAVE_STATE or RESTORE_STATE is active, Tick instead polls the
// cache's line iterator (spec.md §4.9: "each call returns false while
// work remains") and returns to READY once it reports completion, so
// those states span one cycle per BlocksPerCycle cache lines (sets x
// ways) rather than completing instantly. StateResetState drives the
// cache's ResetState the same way, but Dispatch never enters it: the
// RESET_*_STATE verbs reset the instance at once.
func (r *ROP) Tick(cycle uint64, consumerReady bool) {
	switch r.state {
	case StateSaveState:
		if r.cache.SaveState(r.stateAddress) {
			r.state = StateReady
		}
		return
	case StateRestoreState:
		if r.cache.RestoreState(r.stateAddress) {
			r.state = StateReady
		}
		return
	case StateResetState:
		if r.cache.ResetState() {
			r.state = StateReady
		}
		return
	case StateSwap:
		// This instance's cache is not bound to a distinct per-buffer
		// base address (stampAddress packs tile coordinates, not a
		// buffer offset), so SWAP_BUFFERS only needs to flush the
		// cache's lines back to memory before the next DRAW begins.
		r.cache.Swap(0)
		r.state = StateReady
		return
	case StateFlush:
		if len(r.inQueue) == 0 && len(r.fetchQueue) == 0 && len(r.readQueue) == 0 &&
			len(r.opQueue) == 0 && len(r.writeQueue) == 0 && r.rawCAMCount == 0 {
			r.state = StateReady
			return
		}
		r.terminate(consumerReady)
		r.opEnd()
		r.opStart(cycle)
		r.read()
		r.fetch(cycle)
		r.cache.Update(cycle)
		return
	case StateDrawing, StateEnd:
		r.terminate(consumerReady)
		r.opEnd()
		r.opStart(cycle)
		r.read()
		r.fetch(cycle)
		r.cache.Update(cycle)
	}
}

// Name implements signal.Stage.
func (r *ROP) Name() string { return "rop" }

var _ signal.Stage = (*tickAdapter)(nil)

// tickAdapter lets a ROP be wired directly into a signal.Scheduler when
// the consumer-ready signal is always true (e.g. tests); the pipeline
// package wires ROP.Tick directly when it needs the real backpressure
// value.
type tickAdapter struct {
	rop *ROP
}

func (t *tickAdapter) Name() string { return t.rop.Name() }
func (t *tickAdapter) Tick(cycle uint64) error {
	t.rop.Tick(cycle, true)
	return nil
}
