package shaderstage

import (
	"testing"

	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/types"
)

// passthrough has the shape of the test-scenario program, with the color
// read from input slot 2 (the slot colorOperate treats as color) rather
// than attrib[1]:
//   mov result.position, vertex.position
//   mov result.color, vertex.attrib[2]
//   end
func passthrough() Program {
	return Program{Instructions: []Instruction{
		{Op: OpMov, Dst: Operand{OperandOutput, geom.PositionAttribute}, Src0: Operand{OperandInput, geom.PositionAttribute}},
		{Op: OpMov, Dst: Operand{OperandOutput, 2}, Src0: Operand{OperandInput, 2}},
		{Op: OpEnd},
	}}
}

func TestRunPassthroughCopiesPositionAndColor(t *testing.T) {
	var in [geom.MaxVertexAttributes]geom.Attribute
	in[geom.PositionAttribute] = geom.Attribute{1, 2, 3, 1}
	in[2] = geom.Attribute{0.5, 0.25, 0.1, 1}

	out := Run(passthrough(), in, [geom.MaxVertexAttributes]geom.Attribute{}, nil)
	if out[geom.PositionAttribute] != in[geom.PositionAttribute] {
		t.Fatalf("position = %v, want %v", out[geom.PositionAttribute], in[geom.PositionAttribute])
	}
	if out[2] != in[2] {
		t.Fatalf("color = %v, want %v", out[2], in[2])
	}
}

func TestRunStopsAtEnd(t *testing.T) {
	prog := Program{Instructions: []Instruction{
		{Op: OpEnd},
		{Op: OpMov, Dst: Operand{OperandOutput, 0}, Src0: Operand{OperandConstant, 0}},
	}}
	var constants [geom.MaxVertexAttributes]geom.Attribute
	constants[0] = geom.Attribute{9, 9, 9, 9}

	out := Run(prog, [geom.MaxVertexAttributes]geom.Attribute{}, constants, nil)
	if out[0] != (geom.Attribute{}) {
		t.Fatalf("instruction after END executed: out[0] = %v", out[0])
	}
}

func TestRunMadComputesMultiplyAdd(t *testing.T) {
	prog := Program{Instructions: []Instruction{
		{Op: OpMad, Dst: Operand{OperandOutput, 0}, Src0: Operand{OperandInput, 0}, Src1: Operand{OperandInput, 1}, Src2: Operand{OperandInput, 2}},
		{Op: OpEnd},
	}}
	var in [geom.MaxVertexAttributes]geom.Attribute
	in[0] = geom.Attribute{2, 2, 2, 2}
	in[1] = geom.Attribute{3, 3, 3, 3}
	in[2] = geom.Attribute{1, 1, 1, 1}

	out := Run(prog, in, [geom.MaxVertexAttributes]geom.Attribute{}, nil)
	want := geom.Attribute{7, 7, 7, 7}
	if out[0] != want {
		t.Fatalf("mad result = %v, want %v", out[0], want)
	}
}

func TestRunTexIssuesTextureFetch(t *testing.T) {
	prog := Program{Instructions: []Instruction{
		{Op: OpTex, Dst: Operand{OperandOutput, 0}, Src0: Operand{OperandInput, 0}, Src1: Operand{OperandTexture, 3}},
		{Op: OpEnd},
	}}
	var in [geom.MaxVertexAttributes]geom.Attribute
	in[0] = geom.Attribute{0.5, 0.5, 0, 0}

	var gotUnit int
	var gotCoord geom.Attribute
	fetch := func(unit int, coord geom.Attribute) geom.Attribute {
		gotUnit, gotCoord = unit, coord
		return geom.Attribute{1, 0, 0, 1}
	}

	out := Run(prog, in, [geom.MaxVertexAttributes]geom.Attribute{}, fetch)
	if gotUnit != 3 || gotCoord != in[0] {
		t.Fatalf("fetch called with unit=%d coord=%v", gotUnit, gotCoord)
	}
	if out[0] != (geom.Attribute{1, 0, 0, 1}) {
		t.Fatalf("tex result = %v", out[0])
	}
}

func TestDecodeRoundTripsInstructions(t *testing.T) {
	code := []byte{
		byte(OpMov), byte(OperandOutput), 0, byte(OperandInput), 0, 0, 0, 0, 0,
		byte(OpEnd), 0, 0, 0, 0, 0, 0, 0, 0,
	}
	prog := Decode(code, 0)
	if len(prog.Instructions) != 2 {
		t.Fatalf("len(Instructions) = %d, want 2", len(prog.Instructions))
	}
	if prog.Instructions[0].Op != OpMov || prog.Instructions[1].Op != OpEnd {
		t.Fatalf("decoded ops = %v, %v", prog.Instructions[0].Op, prog.Instructions[1].Op)
	}
}

func TestVertexUnitExecuteReplacesAttributes(t *testing.T) {
	u := &VertexUnit{Program: passthrough()}
	v := geom.Vertex{Index: 5}
	v.Set(geom.PositionAttribute, geom.Attribute{1, 1, 1, 1})
	v.Set(2, geom.Attribute{0.2, 0.4, 0.6, 1})

	out := u.Execute(v)
	if out.Index != 5 {
		t.Fatalf("Index = %d, want 5 (unaffected by shading)", out.Index)
	}
	if out.Get(geom.PositionAttribute) != v.Get(geom.PositionAttribute) {
		t.Fatalf("position not passed through")
	}
}

func TestFragmentUnitExecuteSamplesBoundTexture(t *testing.T) {
	tex := &TextureUnit{Width: 2, Height: 2, TileX: 1, TileY: 1, Filter: types.TextureFilterNearest,
		Data: []byte{
			255, 0, 0, 255, 0, 255, 0, 255,
			0, 0, 255, 255, 255, 255, 0, 255,
		}}
	prog := Program{Instructions: []Instruction{
		{Op: OpTex, Dst: Operand{OperandOutput, 2}, Src0: Operand{OperandInput, 3}, Src1: Operand{OperandTexture, 0}},
		{Op: OpEnd},
	}}
	fu := &FragmentUnit{Program: prog, Textures: []*TextureUnit{tex}}

	var f geom.Fragment
	f.Attributes[3] = geom.Attribute{0.25, 0.25, 0, 0}
	out := fu.Execute(&f)
	want := geom.Attribute{1, 0, 0, 1}
	if out[2] != want {
		t.Fatalf("sampled color = %v, want %v", out[2], want)
	}
}
