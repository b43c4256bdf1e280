// Package pipeline assembles every rasterizer stage built in this
// module into the cycle-accurate device spec.md describes: a
// trace-driven command stream feeding vertex fetch, primitive assembly,
// triangle setup, scanline traversal, Hierarchical-Z, the interpolator,
// the unified shader dispatch, and two Generic ROP instances (Z/Stencil
// then Color), scheduled across the gpu/shader/memory clock domains
// spec.md §2 names.
package pipeline

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cg1sim/cg1sim/cg1log"
	"github.com/cg1sim/cg1sim/dynobj"
	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/hiz"
	"github.com/cg1sim/cg1sim/interp"
	"github.com/cg1sim/cg1sim/memctl"
	"github.com/cg1sim/cg1sim/primasm"
	"github.com/cg1sim/cg1sim/regfile"
	"github.com/cg1sim/cg1sim/rop"
	"github.com/cg1sim/cg1sim/ropcache"
	"github.com/cg1sim/cg1sim/setup"
	"github.com/cg1sim/cg1sim/shaderstage"
	"github.com/cg1sim/cg1sim/signal"
	"github.com/cg1sim/cg1sim/tracefile"
	"github.com/cg1sim/cg1sim/traversal"
	"github.com/cg1sim/cg1sim/types"
)

// Register IDs the pipeline itself owns, covering the vertex-fetch
// control block a DRAW verb consults (spec.md §4.2/§6: the command
// stream addresses vertex data by a base address + stride + count
// register triple rather than inlining vertices in verbs).
const (
	RegVertexBufferAddr regfile.RegisterID = iota + 0x1000
	RegVertexStride
	RegVertexCount
	RegVertexAttribCount
)

// RegClearColor/RegClearDepth hold the fill values CLEAR_COLOR/
// CLEAR_ZSTENCIL apply, set by a register write that precedes the verb
// (spec.md §4.8 scenario 1: "issue CLEAR_COLOR with clear-color
// {0,1,0,0}").
const (
	RegClearColor regfile.RegisterID = iota + 0x1100
	RegClearDepth
)

// Config aggregates every sub-stage's configuration plus the clock
// domain periods spec.md §2's multi-clock mode needs. Values are
// normally populated from a paramfile.Store by the CLI entry point.
type Config struct {
	Setup     setup.Config
	Traversal traversal.Config
	Assembler struct {
		Mode      types.PrimitiveMode
		QueueSize int
	}
	TileSize int32
	ZCompare types.CompareFunc
	Interp   interp.Config
	ZROP     rop.Config
	ColorROP rop.Config
	ZCache   ropcache.Config
	ColorCache ropcache.Config
	Blend    rop.BlendState
	MemLatency, MemBandwidth int

	GPUPeriodPS, ShaderPeriodPS, MemPeriodPS uint64
}

// Pipeline wires one complete simulated device.
type Pipeline struct {
	cfg Config

	arena   *dynobj.Arena[geom.SetupTriangle]
	cookies *dynobj.CookieAllocator

	cmdProc *regfile.CommandProcessor
	trace   *tracefile.Reader

	vfetch     *vertexFetch
	assembler  *primasm.Assembler
	traverse   *traversal.Traversal
	hz         *hiz.HierarchicalZ
	interp     *interp.Interpolator
	vertexUnit *shaderstage.VertexUnit
	fragUnit   *shaderstage.FragmentUnit

	zMem       *memctl.Controller
	colorMem   *memctl.Controller
	zCache     *ropcache.Cache
	colorCache *ropcache.Cache
	zROP       *rop.ROP
	colorROP   *rop.ROP

	mem *SimMemory

	stampQueue []geom.Stamp

	clearColor [4]float32
	clearDepth uint32

	scheduler *signal.MultiClockScheduler

	Stats *Stats

	frame, batch, triangle uint64
}

// VertexPrograms installs the shader units a drawn vertex/fragment
// passes through; either may be left nil to pass attributes through
// unshaded (used by tests that only exercise rasterization).
func (p *Pipeline) VertexPrograms(v *shaderstage.VertexUnit, f *shaderstage.FragmentUnit) {
	p.vertexUnit = v
	p.fragUnit = f
}

// New builds a Pipeline from cfg, reading its command stream from tr.
func New(cfg Config, tr *tracefile.Reader, mem *SimMemory) (*Pipeline, error) {
	p := &Pipeline{
		cfg:     cfg,
		arena:   dynobj.NewArena[geom.SetupTriangle](),
		cookies: &dynobj.CookieAllocator{},
		trace:   tr,
		mem:     mem,
		Stats:   NewStats(),
	}

	p.vfetch = &vertexFetch{mem: mem, attribCount: 1}
	p.assembler = primasm.NewAssembler(cfg.Assembler.Mode, cfg.Assembler.QueueSize)
	p.traverse = traversal.New(p.arena, cfg.Traversal)
	p.hz = hiz.New(cfg.ZCompare, cfg.TileSize)
	p.interp = interp.New(cfg.Interp)

	p.zMem = memctl.New(cfg.MemLatency, cfg.MemBandwidth)
	p.colorMem = memctl.New(cfg.MemLatency, cfg.MemBandwidth)
	p.zCache = ropcache.New(cfg.ZCache, p.zMem)
	p.colorCache = ropcache.New(cfg.ColorCache, p.colorMem)

	p.colorROP = rop.New(cfg.ColorROP, p.colorCache, p.colorOperate)
	p.zROP = rop.New(cfg.ZROP, p.zCache, p.zOperate)
	p.zROP.SetWriteCompleteCallback(p.forwardSurvivingStampToColor)

	p.cmdProc = regfile.NewCommandProcessor(p.cookies)
	p.cmdProc.SetMemoryWriter(mem)
	p.cmdProc.AddVerbHandler(drawHandler{p: p})
	p.cmdProc.AddVerbHandler(ropVerbHandler{rop: p.zROP})
	p.cmdProc.AddVerbHandler(ropVerbHandler{rop: p.colorROP})

	gpuPS, shaderPS, memPS := cfg.GPUPeriodPS, cfg.ShaderPeriodPS, cfg.MemPeriodPS
	if gpuPS == 0 {
		gpuPS = 1000
	}
	if shaderPS == 0 {
		shaderPS = 1000
	}
	if memPS == 0 {
		memPS = 1000
	}
	gpuDomain := &signal.ClockDomain{Name: "gpu", PeriodPS: gpuPS, Stages: []signal.Stage{namedStage{"gpu", p.tickGPU}}}
	shaderDomain := &signal.ClockDomain{Name: "shader", PeriodPS: shaderPS, Stages: []signal.Stage{namedStage{"shader", p.tickShader}}}
	memDomain := &signal.ClockDomain{Name: "memory", PeriodPS: memPS, Stages: []signal.Stage{namedStage{"memory", p.tickMemory}}}

	sched, err := signal.NewMultiClockScheduler(gpuDomain, shaderDomain, memDomain)
	if err != nil {
		return nil, err
	}
	p.scheduler = sched

	return p, nil
}

// namedStage adapts a plain tick function into a signal.Stage.
type namedStage struct {
	name string
	fn   func(cycle uint64) error
}

func (s namedStage) Name() string            { return s.name }
func (s namedStage) Tick(cycle uint64) error { return s.fn(cycle) }

// vertexFetch owns the base-address/stride/count/attribute-count
// registers a DRAW verb uses to locate the active vertex buffer in
// SimMemory (spec.md §4.2: vertex data arrives via memory-write
// records, addressed by register, not inlined in the verb itself).
// It is updated directly from tickGPU rather than through the
// RegisterOwner contract, since its four registers share one struct
// but carry different Go-typed fields that a single ApplyRegister(sub,
// value) call cannot disambiguate from sub-index alone.
type vertexFetch struct {
	mem *SimMemory

	addr        uint64
	stride      uint32
	count       uint32
	attribCount uint32
}

func (f *vertexFetch) apply(reg regfile.RegisterID, v types.RegValue) error {
	switch reg {
	case RegVertexBufferAddr:
		if u, ok := v.Uint(); ok {
			f.addr = u
		}
	case RegVertexStride:
		if u, ok := v.Uint(); ok {
			f.stride = uint32(u)
		}
	case RegVertexCount:
		if u, ok := v.Uint(); ok {
			f.count = uint32(u)
		}
	case RegVertexAttribCount:
		if u, ok := v.Uint(); ok {
			f.attribCount = uint32(u)
		}
	}
	return nil
}

// fetch reads f.count vertices starting at f.addr, stride bytes apart,
// each holding f.attribCount packed float32x4 attribute slots.
func (f *vertexFetch) fetch() []geom.Vertex {
	if f.count == 0 {
		return nil
	}
	attribs := f.attribCount
	if attribs == 0 {
		attribs = 1
	}
	if attribs > geom.MaxVertexAttributes {
		attribs = geom.MaxVertexAttributes
	}
	stride := uint64(f.stride)
	if stride == 0 {
		stride = uint64(attribs) * 16
	}
	out := make([]geom.Vertex, f.count)
	for i := uint32(0); i < f.count; i++ {
		raw := f.mem.ReadBytes(f.addr+uint64(i)*stride, int(attribs)*16)
		var v geom.Vertex
		v.Index = i
		for a := uint32(0); a < attribs; a++ {
			off := int(a) * 16
			var attr geom.Attribute
			for lane := 0; lane < 4; lane++ {
				bits := binary.LittleEndian.Uint32(raw[off+lane*4 : off+lane*4+4])
				attr[lane] = math.Float32frombits(bits)
			}
			v.Set(int(a), attr)
		}
		out[i] = v
	}
	return out
}

// drawHandler pulls the vertex buffer described by the vertex-fetch
// registers into primitive assembly when a DRAW verb arrives.
type drawHandler struct{ p *Pipeline }

func (h drawHandler) HandleVerb(v types.Verb, _ uint64, _ dynobj.CookieStack) error {
	if v != types.VerbDraw {
		return nil
	}
	verts := h.p.vfetch.fetch()
	for i := range verts {
		vtx := verts[i]
		if h.p.vertexUnit != nil {
			vtx = h.p.vertexUnit.Execute(vtx)
		}
		if err := h.p.assembler.Push(vtx); err != nil {
			h.p.Stats.Stall("assembler-push")
		}
	}
	return nil
}

// ropVerbHandler forwards command-processor verbs to one ROP instance's
// Dispatch, implementing regfile.VerbHandler.
type ropVerbHandler struct {
	rop *rop.ROP
}

func (h ropVerbHandler) HandleVerb(v types.Verb, address uint64, _ dynobj.CookieStack) error {
	h.rop.Dispatch(v, address)
	return nil
}

// Run advances n micro-steps of the multi-clock scheduler, honoring
// abort between cycles (spec.md §5's cooperative cancellation).
func (p *Pipeline) Run(n uint64, aborted func() bool) error {
	for i := uint64(0); i < n; i++ {
		if aborted != nil && aborted() {
			cg1log.Logger().Info("pipeline: aborted on SIGINT")
			return nil
		}
		if err := p.scheduler.MicroStep(); err != nil {
			cg1log.Logger().Error("pipeline: fatal", "err", err)
			return err
		}
		p.Stats.Cycles++
		p.Stats.DegenerateDropped = p.assembler.DegenerateCount
	}
	return nil
}

// Counters reports the diagnostic state a SIGSEGV handler prints.
func (p *Pipeline) Counters() Counters {
	gpu, _ := p.scheduler.DomainCycle("gpu")
	shader, _ := p.scheduler.DomainCycle("shader")
	mem, _ := p.scheduler.DomainCycle("memory")
	return Counters{
		Frame: p.frame, Batch: p.batch, Triangle: p.triangle,
		GPUCycle: gpu, ShaderCycle: shader, MemCycle: mem,
	}
}

// tickGPU drains one command-stream record (if any) and advances
// primitive assembly and scanline traversal.
func (p *Pipeline) tickGPU(cycle uint64) error {
	if p.trace != nil {
		rec, err := p.trace.ReadRecord()
		if err == nil {
			if rec.Kind == regfile.RecordVerb && rec.Verb == types.VerbDraw {
				p.batch++
			}
			if rec.Kind == regfile.RecordRegisterWrite {
				switch rec.Register {
				case RegVertexBufferAddr, RegVertexStride, RegVertexCount, RegVertexAttribCount:
					if err := p.vfetch.apply(rec.Register, rec.Value); err != nil {
						p.Stats.Stall("vertex-fetch-register")
					}
				case RegClearColor:
					if v, ok := rec.Value.Vec4(); ok {
						p.clearColor = v
					}
				case RegClearDepth:
					if u, ok := rec.Value.Uint(); ok {
						p.clearDepth = uint32(u)
					}
				}
			}
			if rec.Kind == regfile.RecordVerb {
				switch rec.Verb {
				case types.VerbClearColor:
					p.colorROP.Clear(colorBytes(p.clearColor))
				case types.VerbClearZStencil:
					p.zROP.Clear(depthBytes(p.clearDepth))
				}
			}
			if err := p.cmdProc.Dispatch(rec); err != nil {
				p.Stats.Stall("command")
			}
		}
	}

	if p.assembler.Ready() {
		at, ok, err := p.assembler.Assemble(p.cmdProc.CurrentCookie())
		if err != nil {
			return err
		}
		if ok {
			p.triangle++
			lastTriangle := !p.assembler.Ready()
			res, err := setup.Triangle(p.cfg.Setup, at.ID, at.Vertices, lastTriangle)
			if err != nil {
				return err
			}
			if !res.Culled {
				h := p.arena.Alloc(res.Triangle)
				if err := p.traverse.Enqueue(h, res.LastTriangle); err != nil {
					p.Stats.Stall("traversal")
				} else {
					p.Stats.TrianglesAssembled++
				}
			}
		}
	}

	stamps, err := p.traverse.EmitStamps(p.hz.State() == hiz.StateReady)
	if err != nil {
		return err
	}
	for _, st := range stamps {
		p.Stats.StampsEmitted++
		p.stampQueue = append(p.stampQueue, st)
	}
	return nil
}

// tickShader drains one queued stamp through Hierarchical-Z rejection,
// the interpolator, and the fragment shader, then feeds the surviving
// stamp into the Z ROP's input stage.
func (p *Pipeline) tickShader(cycle uint64) error {
	if len(p.stampQueue) == 0 {
		return nil
	}
	st := p.stampQueue[0]

	if !p.hz.TestStamp(&st) {
		p.Stats.StampsHiZRejected++
		p.stampQueue = p.stampQueue[1:]
		return nil
	}

	tri, err := p.arena.Get(st.Triangle)
	if err != nil {
		return fmt.Errorf("pipeline: stamp triangle handle invalid: %w", err)
	}

	var culled [4]bool
	for i := range st.Fragments {
		f := &st.Fragments[i]
		if !f.InsideTriangle {
			culled[i] = true
			continue
		}
		p.interp.Process(f, &tri)
		if p.fragUnit != nil {
			f.Attributes = p.fragUnit.Execute(f)
		}
		p.Stats.FragmentsShaded++
	}

	addr := stampAddress(&st)
	if err := p.zROP.Input(st, addr, culled); err != nil {
		p.Stats.Stall("zrop-input")
		return nil
	}
	p.stampQueue = p.stampQueue[1:]
	return nil
}

// tickMemory advances both ROP sub-pipelines (each owns its cache's
// memory-transaction draining internally).
func (p *Pipeline) tickMemory(cycle uint64) error {
	p.zROP.Tick(cycle, p.colorROP.State() != rop.StateReset)
	p.colorROP.Tick(cycle, true)
	return nil
}

// forwardSurvivingStampToColor is the Z ROP's post-write callback
// (spec.md §4.8: the Z-test instance forwards a surviving stamp into
// the color unit).
func (p *Pipeline) forwardSurvivingStampToColor(s geom.Stamp, survived [4]bool) {
	if !anySurvived(survived) {
		return
	}
	addr := stampAddress(&s)
	if err := p.colorROP.Input(s, addr, invert(survived)); err != nil {
		p.Stats.Stall("colorrop-input")
	}
}

func anySurvived(s [4]bool) bool {
	for _, v := range s {
		if v {
			return true
		}
	}
	return false
}

func invert(s [4]bool) [4]bool {
	var out [4]bool
	for i, v := range s {
		out[i] = !v
	}
	return out
}

func stampAddress(s *geom.Stamp) uint64 {
	return uint64(uint32(s.Tile.X))<<32 | uint64(uint32(s.Tile.Y))
}

// zOperate performs the depth test against the stored depth buffer, one
// 32-bit word per fragment (under multisampling each fragment's Z is
// tested once; per-sample depths are neither tested nor stored), writing the new depth value when the test passes and
// updating Hierarchical-Z's cached boundary.
func (p *Pipeline) zOperate(s *geom.Stamp, data []byte) ([4]bool, []byte) {
	var pass [4]bool
	out := make([]byte, len(data))
	copy(out, data)
	for i := range s.Fragments {
		f := &s.Fragments[i]
		if !f.InsideTriangle {
			continue
		}
		off := i * 4
		if off+4 > len(out) {
			continue
		}
		stored := readU32(out, off)
		ok := stored == 0 || p.cfg.ZCompare.Evaluate(f.Z, stored)
		pass[i] = ok
		if ok {
			writeU32(out, off, f.Z)
			p.hz.Update(f.X, f.Y, f.Z)
		}
	}
	return pass, out
}

// colorOperate blends the shaded color over the stored destination per
// the configured BlendState (SPEC_FULL's blend equation table), or
// writes it unconditionally when blending is disabled. Under
// multisampling, a fragment's contribution is weighted by its live
// coverage-bit fraction (spec.md §4.8 scenario 6: "participates in
// blend with per-sample weight 1/4") rather than written at full
// strength whenever any sample is covered.
func (p *Pipeline) colorOperate(s *geom.Stamp, data []byte) ([4]bool, []byte) {
	var pass [4]bool
	out := make([]byte, len(data))
	copy(out, data)
	for i := range s.Fragments {
		f := &s.Fragments[i]
		if !f.InsideTriangle {
			continue
		}
		pass[i] = true
		off := i * 4
		if off+4 > len(out) {
			continue
		}
		src := f.Attributes[2]
		dst := [4]float32{
			float32(out[off]) / 255,
			float32(out[off+1]) / 255,
			float32(out[off+2]) / 255,
			float32(out[off+3]) / 255,
		}
		result := rop.Blend(p.cfg.Blend, src, dst)
		weight := coverageWeight(f)
		for c := 0; c < 4; c++ {
			blended := dst[c] + (result[c]-dst[c])*weight
			out[off+c] = byte(clamp01(blended) * 255)
		}
	}
	return pass, out
}

// coverageWeight returns the fraction of a fragment's sample set that is
// actually covered, 1 when multisampling is disabled for this fragment
// (NumSamples == 0, the common case).
func coverageWeight(f *geom.Fragment) float32 {
	if f.NumSamples <= 0 {
		return 1
	}
	covered := 0
	for si := 0; si < f.NumSamples && si < geom.MaxMultisamples; si++ {
		if f.SampleCoverage[si] {
			covered++
		}
	}
	return float32(covered) / float32(f.NumSamples)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// colorBytes packs a clear color into the RGBA8 layout colorOperate
// writes, matching scenario 1's "RGBA = (0,255,0,0)" expectation.
func colorBytes(c [4]float32) []byte {
	return []byte{
		byte(clamp01(c[0]) * 255),
		byte(clamp01(c[1]) * 255),
		byte(clamp01(c[2]) * 255),
		byte(clamp01(c[3]) * 255),
	}
}

// depthBytes packs a clear depth into the little-endian 32-bit layout
// zOperate reads/writes.
func depthBytes(z uint32) []byte {
	b := make([]byte, 4)
	writeU32(b, 0, z)
	return b
}

func readU32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

func writeU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
