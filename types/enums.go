package types

// PrimitiveMode selects the triangle-formation rule primitive assembly
// applies to the per-stream vertex queue (spec.md §4.3).
type PrimitiveMode uint8

const (
	PrimitiveTriangle PrimitiveMode = iota
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
	PrimitiveQuad
	PrimitiveQuadStrip
)

func (m PrimitiveMode) String() string {
	switch m {
	case PrimitiveTriangle:
		return "TRIANGLE"
	case PrimitiveTriangleStrip:
		return "TRIANGLE_STRIP"
	case PrimitiveTriangleFan:
		return "TRIANGLE_FAN"
	case PrimitiveQuad:
		return "QUAD"
	case PrimitiveQuadStrip:
		return "QUAD_STRIP"
	default:
		return "PRIMITIVE_UNKNOWN"
	}
}

// CompareFunc specifies a depth or stencil comparison function.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// Evaluate applies the comparison: src compare dst.
func (c CompareFunc) Evaluate(src, dst uint32) bool {
	switch c {
	case CompareNever:
		return false
	case CompareLess:
		return src < dst
	case CompareEqual:
		return src == dst
	case CompareLessEqual:
		return src <= dst
	case CompareGreater:
		return src > dst
	case CompareNotEqual:
		return src != dst
	case CompareGreaterEqual:
		return src >= dst
	case CompareAlways:
		return true
	default:
		return false
	}
}

// CullMode selects which triangle faces triangle setup discards.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// StencilOp specifies the operation applied to the stencil buffer.
type StencilOp uint8

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrementClamp
	StencilOpDecrementClamp
	StencilOpInvert
	StencilOpIncrementWrap
	StencilOpDecrementWrap
)

// BlendFunc is a multiplicand used in a blend equation (spec.md §4.8,
// expanded per SPEC_FULL.md's blend equation table).
type BlendFunc uint8

const (
	BlendFuncZero BlendFunc = iota
	BlendFuncOne
	BlendFuncSrcColor
	BlendFuncOneMinusSrcColor
	BlendFuncDstColor
	BlendFuncOneMinusDstColor
	BlendFuncSrcAlpha
	BlendFuncOneMinusSrcAlpha
	BlendFuncDstAlpha
	BlendFuncOneMinusDstAlpha
	BlendFuncConstantColor
	BlendFuncOneMinusConstantColor
)

// BlendEquation combines the weighted source and destination terms.
type BlendEquation uint8

const (
	BlendEquationAdd BlendEquation = iota
	BlendEquationSubtract
	BlendEquationReverseSubtract
	BlendEquationMin
	BlendEquationMax
)

// TextureFormat enumerates the pixel formats the simulator understands
// for bound textures and render targets.
type TextureFormat uint8

const (
	TextureFormatRGBA8888 TextureFormat = iota
	TextureFormatRGB565
	TextureFormatDepth24Stencil8
	TextureFormatR32Float
)

// BytesPerPixel returns the storage size of one texel in this format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8888:
		return 4
	case TextureFormatRGB565:
		return 2
	case TextureFormatDepth24Stencil8:
		return 4
	case TextureFormatR32Float:
		return 4
	default:
		return 4
	}
}

// TextureFilter selects the sampling filter for a texture unit
// (SPEC_FULL.md texture sampling addition).
type TextureFilter uint8

const (
	TextureFilterNearest TextureFilter = iota
	TextureFilterLinear
)

// Verb is a command-processor opcode (spec.md §4.2, §6).
type Verb uint8

const (
	VerbDraw Verb = iota
	VerbClearColor
	VerbClearZStencil
	VerbSwapBuffers
	VerbFlushColor
	VerbFlushZStencil
	VerbSaveColorState
	VerbSaveZStencilState
	VerbRestoreColorState
	VerbRestoreZStencilState
	VerbResetColorState
	VerbResetZStencilState
	VerbLoadVertexProgram
	VerbLoadFragmentProgram
	VerbReset
)

func (v Verb) String() string {
	switch v {
	case VerbDraw:
		return "DRAW"
	case VerbClearColor:
		return "CLEAR_COLOR"
	case VerbClearZStencil:
		return "CLEAR_ZSTENCIL"
	case VerbSwapBuffers:
		return "SWAP_BUFFERS"
	case VerbFlushColor:
		return "FLUSH_COLOR"
	case VerbFlushZStencil:
		return "FLUSH_ZSTENCIL"
	case VerbSaveColorState:
		return "SAVE_COLOR_STATE"
	case VerbSaveZStencilState:
		return "SAVE_ZSTENCIL_STATE"
	case VerbRestoreColorState:
		return "RESTORE_COLOR_STATE"
	case VerbRestoreZStencilState:
		return "RESTORE_ZSTENCIL_STATE"
	case VerbResetColorState:
		return "RESET_COLOR_STATE"
	case VerbResetZStencilState:
		return "RESET_ZSTENCIL_STATE"
	case VerbLoadVertexProgram:
		return "LOAD_VERTEX_PROGRAM"
	case VerbLoadFragmentProgram:
		return "LOAD_FRAGMENT_PROGRAM"
	case VerbReset:
		return "RESET"
	default:
		return "VERB_UNKNOWN"
	}
}

// StageState is the command-processor-visible lifecycle of a pipeline
// stage (spec.md §4.2, §4.8).
type StageState uint8

const (
	StageReset StageState = iota
	StageReady
	StageDrawing
	StageEnd
	StageSwap
	StageFlush
	StageSaveState
	StageRestoreState
	StageResetState
	StageClear
)

func (s StageState) String() string {
	switch s {
	case StageReset:
		return "RESET"
	case StageReady:
		return "READY"
	case StageDrawing:
		return "DRAWING"
	case StageEnd:
		return "END"
	case StageSwap:
		return "SWAP"
	case StageFlush:
		return "FLUSH"
	case StageSaveState:
		return "SAVE_STATE"
	case StageRestoreState:
		return "RESTORE_STATE"
	case StageResetState:
		return "RESET_STATE"
	case StageClear:
		return "CLEAR"
	default:
		return "STATE_UNKNOWN"
	}
}
