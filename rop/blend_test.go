package rop

import (
	"testing"

	"github.com/cg1sim/cg1sim/types"
)

func TestBlendDisabledReturnsSourceUnchanged(t *testing.T) {
	src := [4]float32{0.2, 0.4, 0.6, 0.8}
	dst := [4]float32{0.9, 0.9, 0.9, 0.9}
	got := Blend(BlendState{Enable: false}, src, dst)
	if got != src {
		t.Fatalf("Blend(disabled) = %v, want %v", got, src)
	}
}

func TestBlendSrcAlphaOverDstOneMinusSrcAlpha(t *testing.T) {
	state := BlendState{
		Enable:   true,
		Src:      types.BlendFuncSrcAlpha,
		Dst:      types.BlendFuncOneMinusSrcAlpha,
		Equation: types.BlendEquationAdd,
	}
	src := [4]float32{1, 0, 0, 0.5}
	dst := [4]float32{0, 1, 0, 1}
	got := Blend(state, src, dst)
	want := [4]float32{0.5, 0.5, 0, 0.75}
	for i := range want {
		if diff := got[i] - want[i]; diff < -0.0001 || diff > 0.0001 {
			t.Fatalf("Blend() = %v, want %v", got, want)
		}
	}
}

func TestBlendEquationMinMax(t *testing.T) {
	src := [4]float32{0.2, 0.8, 0.2, 0.8}
	dst := [4]float32{0.8, 0.2, 0.8, 0.2}
	state := BlendState{Enable: true, Src: types.BlendFuncOne, Dst: types.BlendFuncOne}

	state.Equation = types.BlendEquationMin
	got := Blend(state, src, dst)
	want := [4]float32{0.2, 0.2, 0.2, 0.2}
	if got != want {
		t.Fatalf("Blend(min) = %v, want %v", got, want)
	}

	state.Equation = types.BlendEquationMax
	got = Blend(state, src, dst)
	want = [4]float32{0.8, 0.8, 0.8, 0.8}
	if got != want {
		t.Fatalf("Blend(max) = %v, want %v", got, want)
	}
}

func TestBlendConstantColorFactor(t *testing.T) {
	state := BlendState{
		Enable:   true,
		Src:      types.BlendFuncConstantColor,
		Dst:      types.BlendFuncZero,
		Equation: types.BlendEquationAdd,
		Constant: [4]float32{0.5, 0.5, 0.5, 1},
	}
	src := [4]float32{1, 1, 1, 1}
	got := Blend(state, src, [4]float32{})
	want := [4]float32{0.5, 0.5, 0.5, 1}
	if got != want {
		t.Fatalf("Blend(constant) = %v, want %v", got, want)
	}
}
