package pipeline

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/regfile"
	"github.com/cg1sim/cg1sim/ropcache"
	"github.com/cg1sim/cg1sim/rop"
	"github.com/cg1sim/cg1sim/setup"
	"github.com/cg1sim/cg1sim/tracefile"
	"github.com/cg1sim/cg1sim/traversal"
	"github.com/cg1sim/cg1sim/types"
)

func testConfig() Config {
	var cfg Config
	cfg.Setup = setup.Config{ViewportWidth: 64, ViewportHeight: 64, SubpixelBits: 4, CullMode: types.CullNone}
	cfg.Traversal = traversal.Config{QueueCapacity: 4, TriangleCycle: 1, StampsCycle: 4}
	cfg.Assembler.Mode = types.PrimitiveTriangle
	cfg.Assembler.QueueSize = 16
	cfg.TileSize = 8
	cfg.ZCompare = types.CompareLess
	cfg.ZROP = rop.Config{
		StampsCycle: 1, RopRate: 1, RopLatency: 1,
		ReadQueueSize: 4, OpQueueSize: 4, WriteQueueSize: 4, FetchQueueSize: 4, InputQueueSize: 4,
	}
	cfg.ColorROP = cfg.ZROP
	cfg.ZCache = ropcache.Config{Ways: 2, Lines: 4, PixelsPerLine: 4, BytesPerPixel: 4}
	cfg.ColorCache = cfg.ZCache
	cfg.MemLatency = 1
	cfg.MemBandwidth = 4
	cfg.GPUPeriodPS = 1
	cfg.ShaderPeriodPS = 1
	cfg.MemPeriodPS = 1
	return cfg
}

// writeVertexBuffer packs three vertices' position attribute (slot 0)
// as float32x4 at addr in mem, matching vertexFetch.fetch's layout.
func writeVertexBuffer(mem *SimMemory, addr uint64, verts [3][4]float32) {
	buf := make([]byte, 0, 3*16)
	for _, v := range verts {
		for _, lane := range v {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(lane))
			buf = append(buf, b[:]...)
		}
	}
	mem.WriteBytes(addr, buf)
}

func buildTrianglePipeline(t *testing.T) (*Pipeline, *SimMemory) {
	t.Helper()
	mem := NewSimMemory(256)
	writeVertexBuffer(mem, 0, [3][4]float32{
		{-0.5, -0.5, 0.5, 1},
		{0.5, -0.5, 0.5, 1},
		{0, 0.5, 0.5, 1},
	})

	p, err := New(testConfig(), nil, mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, mem
}

func TestDrawVerbFetchesVerticesAndProducesStamps(t *testing.T) {
	p, _ := buildTrianglePipeline(t)

	recs := []regfile.Record{
		regfile.NewRegisterWrite(RegVertexBufferAddr, 0, types.UintValue(0)),
		regfile.NewRegisterWrite(RegVertexStride, 0, types.UintValue(16)),
		regfile.NewRegisterWrite(RegVertexCount, 0, types.UintValue(3)),
		regfile.NewRegisterWrite(RegVertexAttribCount, 0, types.UintValue(1)),
		regfile.NewVerbRecord(types.VerbDraw),
	}
	for _, r := range recs {
		if err := p.cmdProc.Dispatch(r); err != nil {
			t.Fatalf("Dispatch(%+v) error = %v", r, err)
		}
		if r.Kind == regfile.RecordRegisterWrite {
			if err := p.vfetch.apply(r.Register, r.Value); err != nil {
				t.Fatalf("vfetch.apply error = %v", err)
			}
		}
	}

	if p.assembler.VertexCount != 3 {
		t.Fatalf("VertexCount = %d, want 3", p.assembler.VertexCount)
	}

	drainedStamps := false
	for cycle := 0; cycle < 200; cycle++ {
		if err := p.Run(1, nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if p.Stats.StampsEmitted > 0 {
			drainedStamps = true
			break
		}
	}
	if !drainedStamps {
		t.Fatalf("no stamps emitted after 200 cycles; TrianglesAssembled=%d", p.Stats.TrianglesAssembled)
	}
	if p.Stats.TrianglesAssembled == 0 {
		t.Fatalf("TrianglesAssembled = 0")
	}
}

func TestRunHonorsAbortFlag(t *testing.T) {
	p, _ := buildTrianglePipeline(t)
	calls := 0
	aborted := func() bool {
		calls++
		return calls > 2
	}
	if err := p.Run(100, aborted); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.Stats.Cycles != 2 {
		t.Fatalf("Cycles = %d, want 2 (aborted after 2 ticks)", p.Stats.Cycles)
	}
}

func TestSimMemoryRoundTripsAcrossPageBoundary(t *testing.T) {
	mem := NewSimMemory(8)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if err := mem.WriteBytes(4, data); err != nil {
		t.Fatalf("WriteBytes() error = %v", err)
	}
	got := mem.ReadBytes(4, len(data))
	for i, want := range data {
		if got[i] != want {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestSimMemoryReadsUnwrittenPagesAsZero(t *testing.T) {
	mem := NewSimMemory(64)
	got := mem.ReadBytes(1000, 16)
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestCountersReportsDomainCycles(t *testing.T) {
	p, _ := buildTrianglePipeline(t)
	if err := p.Run(3, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	c := p.Counters()
	if c.GPUCycle == 0 && c.ShaderCycle == 0 && c.MemCycle == 0 {
		t.Fatalf("Counters() reported no domain progress: %+v", c)
	}
}

func TestVertexFetchReadsPackedAttributes(t *testing.T) {
	mem := NewSimMemory(256)
	writeVertexBuffer(mem, 32, [3][4]float32{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	})
	vf := &vertexFetch{mem: mem, addr: 32, stride: 16, count: 3, attribCount: 1}
	verts := vf.fetch()
	if len(verts) != 3 {
		t.Fatalf("fetch() returned %d vertices, want 3", len(verts))
	}
	got := verts[1].Get(0)
	want := [4]float32{5, 6, 7, 8}
	if got != want {
		t.Fatalf("verts[1].Get(0) = %v, want %v", got, want)
	}
}

func TestColorOperateAppliesConfiguredBlend(t *testing.T) {
	p, _ := buildTrianglePipeline(t)
	p.cfg.Blend.Enable = true
	p.cfg.Blend.Src = types.BlendFuncOne
	p.cfg.Blend.Dst = types.BlendFuncOne
	p.cfg.Blend.Equation = types.BlendEquationAdd

	var s geom.Stamp
	s.Fragments[0].InsideTriangle = true
	s.Fragments[0].Attributes[2] = geom.Attribute{1, 0, 0, 1}

	dst := []byte{0, 64, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	pass, out := p.colorOperate(&s, dst)
	if !pass[0] {
		t.Fatalf("pass[0] = false, want true")
	}
	if out[0] != 255 || out[1] != 64 {
		t.Fatalf("out[0:2] = %d,%d, want 255,64 (additive blend of src+dst)", out[0], out[1])
	}
}

func TestClearColorFillsColorCacheAcrossEveryLine(t *testing.T) {
	p, _ := buildTrianglePipeline(t)

	recs := []regfile.Record{
		regfile.NewRegisterWrite(RegClearColor, 0, types.Vec4Value([4]float32{0, 1, 0, 0})),
		regfile.NewVerbRecord(types.VerbClearColor),
	}
	for _, r := range recs {
		if err := p.cmdProc.Dispatch(r); err != nil {
			t.Fatalf("Dispatch(%+v) error = %v", r, err)
		}
		if r.Kind == regfile.RecordRegisterWrite && r.Register == RegClearColor {
			if v, ok := r.Value.Vec4(); ok {
				p.clearColor = v
			}
		}
		if r.Kind == regfile.RecordVerb && r.Verb == types.VerbClearColor {
			p.colorROP.Clear(colorBytes(p.clearColor))
		}
	}

	got := make([]byte, 4)
	if !p.colorCache.Read(0, 0, 4, got) {
		t.Fatalf("Read() reported a miss right after CLEAR_COLOR")
	}
	want := []byte{0, 255, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("colorCache after clear = %v, want %v", got, want)
		}
	}
}

func TestTraceReaderFeedsCommandProcessor(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/trace.bin"
	hdr := tracefile.Header{StartFrame: 0, FrameCount: 1, MemSize: 1 << 20}
	w, closer, err := tracefile.NewWriter(path, hdr)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if err := w.WriteRecord(regfile.NewVerbRecord(types.VerbDraw)); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	closer.Close()

	r, rc, err := tracefile.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer rc.Close()

	mem := NewSimMemory(64)
	p, err := New(testConfig(), r, mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Run(1, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if p.batch != 1 {
		t.Fatalf("batch = %d, want 1", p.batch)
	}
}
