package main

import (
	"github.com/cg1sim/cg1sim/interp"
	"github.com/cg1sim/cg1sim/paramfile"
	"github.com/cg1sim/cg1sim/pipeline"
	"github.com/cg1sim/cg1sim/rop"
	"github.com/cg1sim/cg1sim/ropcache"
	"github.com/cg1sim/cg1sim/setup"
	"github.com/cg1sim/cg1sim/traversal"
	"github.com/cg1sim/cg1sim/types"
)

// blendFuncDefaultSrc is GPU_ONE and blendFuncDefaultDst is GPU_ZERO: a disabled blend unit reduces to an
// unweighted overwrite, matching colorOperate's pre-blend behavior.
const (
	blendFuncDefaultSrc = uint32(types.BlendFuncOne)
	blendFuncDefaultDst = uint32(types.BlendFuncZero)
)

// buildConfig translates a loaded parameter store into a
// pipeline.Config, falling back to defaults for every parameter the CSV
// doesn't define (spec.md §6: "missing parameters use a compiled-in
// default").
func buildConfig(store *paramfile.Store) pipeline.Config {
	var cfg pipeline.Config

	cfg.Setup = setup.Config{
		ViewportWidth:  int(store.Uint32Default("VIEWPORT_WIDTH", 1920)),
		ViewportHeight: int(store.Uint32Default("VIEWPORT_HEIGHT", 1080)),
		SubpixelBits:   int(store.Uint32Default("SUBPIXEL_BITS", 4)),
		CullMode:       types.CullMode(store.Uint32Default("CULL_MODE", uint32(types.CullNone))),
	}

	cfg.Traversal = traversal.Config{
		QueueCapacity:   int(store.Uint32Default("TRAVERSAL_QUEUE_DEPTH", 8)),
		TriangleCycle:   int(store.Uint32Default("TRAVERSAL_TRIANGLES_PER_CYCLE", 1)),
		StampsCycle:     int(store.Uint32Default("TRAVERSAL_STAMPS_PER_CYCLE", 1)),
		SamplesPerCycle: int(store.Uint32Default("MULTISAMPLE_SAMPLES_PER_CYCLE", 0)),
		NumSamples:      int(store.Uint32Default("MULTISAMPLE_COUNT", 0)),
		NumUnits:        int(store.Uint32Default("RASTER_UNIT_COUNT", 1)),
	}

	cfg.Assembler.Mode = types.PrimitiveMode(store.Uint32Default("PRIMITIVE_MODE", uint32(types.PrimitiveTriangle)))
	cfg.Assembler.QueueSize = int(store.Uint32Default("PRIMITIVE_ASSEMBLY_QUEUE_SIZE", 16))

	cfg.TileSize = int32(store.Uint32Default("TILE_SIZE", 8))
	cfg.ZCompare = types.CompareFunc(store.Uint32Default("Z_COMPARE_FUNC", uint32(types.CompareLess)))

	cfg.Interp = interp.Config{
		Interpolators: int(store.Uint32Default("INTERPOLATOR_COUNT", 1)),
		Latency:       int(store.Uint32Default("INTERPOLATION_LATENCY", 1)),
	}
	for i := range cfg.Interp.ActiveAttributes {
		cfg.Interp.ActiveAttributes[i] = i < 2
		cfg.Interp.Interpolate[i] = i < 2
	}

	ropDefaults := rop.Config{
		StampsCycle:    int(store.Uint32Default("ROP_STAMPS_PER_CYCLE", 1)),
		RopRate:        int(store.Uint32Default("ROP_RATE", 1)),
		RopLatency:     int(store.Uint32Default("ROP_LATENCY", 1)),
		ReadQueueSize:  int(store.Uint32Default("ROP_READ_QUEUE_SIZE", 4)),
		OpQueueSize:    int(store.Uint32Default("ROP_OP_QUEUE_SIZE", 4)),
		WriteQueueSize: int(store.Uint32Default("ROP_WRITE_QUEUE_SIZE", 4)),
		FetchQueueSize: int(store.Uint32Default("ROP_FETCH_QUEUE_SIZE", 4)),
		InputQueueSize: int(store.Uint32Default("ROP_INPUT_QUEUE_SIZE", 4)),
		ReadDataROP:    store.BoolDefault("Z_READ_DATA_ROP", true),
	}
	cfg.ZROP = ropDefaults
	cfg.ColorROP = ropDefaults
	cfg.ColorROP.ReadDataROP = store.BoolDefault("COLOR_READ_DATA_ROP", false)

	cacheDefaults := ropcache.Config{
		Ways:           int(store.Uint32Default("CACHE_WAYS", 4)),
		Lines:          int(store.Uint32Default("CACHE_LINES", 64)),
		PixelsPerLine:  int(store.Uint32Default("CACHE_PIXELS_PER_LINE", 4)),
		BytesPerPixel:  int(store.Uint32Default("CACHE_BYTES_PER_PIXEL", 4)),
		BlocksPerCycle: int(store.Uint32Default("CACHE_STATE_BLOCKS_PER_CYCLE", 4)),
	}
	cfg.ZCache = cacheDefaults
	cfg.ColorCache = cacheDefaults

	cfg.Blend = rop.BlendState{
		Enable:   store.BoolDefault("BLEND_ENABLE", false),
		Src:      types.BlendFunc(store.Uint32Default("BLEND_SRC_FUNC", blendFuncDefaultSrc)),
		Dst:      types.BlendFunc(store.Uint32Default("BLEND_DST_FUNC", blendFuncDefaultDst)),
		Equation: types.BlendEquation(store.Uint32Default("BLEND_EQUATION", uint32(types.BlendEquationAdd))),
		Constant: [4]float32{
			float32(store.Float64Default("BLEND_CONSTANT_R", 0)),
			float32(store.Float64Default("BLEND_CONSTANT_G", 0)),
			float32(store.Float64Default("BLEND_CONSTANT_B", 0)),
			float32(store.Float64Default("BLEND_CONSTANT_A", 0)),
		},
	}

	cfg.MemLatency = int(store.Uint32Default("MEM_LATENCY", 4))
	cfg.MemBandwidth = int(store.Uint32Default("MEM_BANDWIDTH", 16))

	cfg.GPUPeriodPS = store.Uint64Default("GPU_CLOCK_PERIOD_PS", 1000)
	cfg.ShaderPeriodPS = store.Uint64Default("SHADER_CLOCK_PERIOD_PS", 1000)
	cfg.MemPeriodPS = store.Uint64Default("MEMORY_CLOCK_PERIOD_PS", 1000)

	return cfg
}
