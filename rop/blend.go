package rop

import "github.com/cg1sim/cg1sim/types"

// BlendState selects the source/destination multiplicands and combining
// equation for a Color ROP instance (SPEC_FULL's blend equation table,
// expanding the original's single-enum cmBlendOperation.cpp dispatch).
type BlendState struct {
	Enable   bool
	Src, Dst types.BlendFunc
	Equation types.BlendEquation
	Constant [4]float32
}

// factor returns the RGBA multiplicand named by f, given the source,
// destination and constant colors it may reference.
func factor(f types.BlendFunc, src, dst, constant [4]float32) [4]float32 {
	switch f {
	case types.BlendFuncZero:
		return [4]float32{0, 0, 0, 0}
	case types.BlendFuncOne:
		return [4]float32{1, 1, 1, 1}
	case types.BlendFuncSrcColor:
		return src
	case types.BlendFuncOneMinusSrcColor:
		return oneMinus(src)
	case types.BlendFuncDstColor:
		return dst
	case types.BlendFuncOneMinusDstColor:
		return oneMinus(dst)
	case types.BlendFuncSrcAlpha:
		return splat(src[3])
	case types.BlendFuncOneMinusSrcAlpha:
		return splat(1 - src[3])
	case types.BlendFuncDstAlpha:
		return splat(dst[3])
	case types.BlendFuncOneMinusDstAlpha:
		return splat(1 - dst[3])
	case types.BlendFuncConstantColor:
		return constant
	case types.BlendFuncOneMinusConstantColor:
		return oneMinus(constant)
	default:
		return [4]float32{1, 1, 1, 1}
	}
}

func oneMinus(c [4]float32) [4]float32 {
	return [4]float32{1 - c[0], 1 - c[1], 1 - c[2], 1 - c[3]}
}

func splat(v float32) [4]float32 {
	return [4]float32{v, v, v, v}
}

// Blend combines src over dst per the state's equation, weighting each
// term by its configured factor.
func Blend(state BlendState, src, dst [4]float32) [4]float32 {
	if !state.Enable {
		return src
	}
	sf := factor(state.Src, src, dst, state.Constant)
	df := factor(state.Dst, src, dst, state.Constant)
	var weightedSrc, weightedDst [4]float32
	for i := 0; i < 4; i++ {
		weightedSrc[i] = src[i] * sf[i]
		weightedDst[i] = dst[i] * df[i]
	}

	var out [4]float32
	switch state.Equation {
	case types.BlendEquationAdd:
		for i := 0; i < 4; i++ {
			out[i] = weightedSrc[i] + weightedDst[i]
		}
	case types.BlendEquationSubtract:
		for i := 0; i < 4; i++ {
			out[i] = weightedSrc[i] - weightedDst[i]
		}
	case types.BlendEquationReverseSubtract:
		for i := 0; i < 4; i++ {
			out[i] = weightedDst[i] - weightedSrc[i]
		}
	case types.BlendEquationMin:
		for i := 0; i < 4; i++ {
			out[i] = min32(weightedSrc[i], weightedDst[i])
		}
	case types.BlendEquationMax:
		for i := 0; i < 4; i++ {
			out[i] = max32(weightedSrc[i], weightedDst[i])
		}
	default:
		out = weightedSrc
	}
	return out
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
