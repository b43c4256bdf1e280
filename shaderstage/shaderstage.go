// Package shaderstage implements the unified vertex/fragment dispatch
// interface (spec.md §1, §4.7). The core never compiles or assembles
// shader source: it loads pre-encoded binary microcode (the same
// contract `cglLoadVertexShader`/`cglLoadFragmentShader` expose) and
// dispatches it through a single execution model shared by both
// program kinds, parameterized only by which attribute slots are
// inputs versus outputs. The execution unit's internal timing is a
// black box; this package only defines the instruction encoding, the
// program store, and the functional result of running a program over
// one vertex or one fragment's attributes.
package shaderstage

import "github.com/cg1sim/cg1sim/geom"

// Opcode is one microcode instruction's operation.
type Opcode uint8

const (
	OpMov Opcode = iota
	OpAdd
	OpMul
	OpMad
	OpDP3
	OpDP4
	OpRcp
	OpTex
	OpEnd
)

// OperandKind selects which register file an operand addresses.
type OperandKind uint8

const (
	OperandInput OperandKind = iota // vertex.attrib[n] / fragment.attrib[n]
	OperandOutput
	OperandConstant
	OperandTexture // texture unit index, used only by OpTex's second source
)

// Operand addresses one attribute slot (or constant, or texture unit).
type Operand struct {
	Kind  OperandKind
	Index int
}

// Instruction is one decoded microcode instruction. Programs are built
// from a fixed-size instruction list rather than a byte stream; Decode
// turns the pre-encoded binary bytes spec.md's loader verbs carry into
// this form.
type Instruction struct {
	Op   Opcode
	Dst  Operand
	Src0 Operand
	Src1 Operand
	Src2 Operand // OpMad's third source
}

// Program is one loaded vertex or fragment shader: a flat instruction
// list plus the starting program counter a load can target (spec.md's
// loader verbs carry an explicit `pc`, letting a reload patch in place).
type Program struct {
	Instructions []Instruction
	EntryPC      int
}

// instrSize is the encoded byte width of one microcode instruction:
// one opcode byte followed by four 2-byte (kind,index) operand pairs.
const instrSize = 1 + 4*2

// Decode turns pre-encoded binary shader bytes into a Program, starting
// execution at pc. It performs no assembly or validation of source
// text — the assembler that produces this encoding is out of scope;
// this is purely the core's consumption side of the binary contract.
func Decode(code []byte, pc int) Program {
	n := len(code) / instrSize
	prog := Program{Instructions: make([]Instruction, 0, n), EntryPC: pc}
	for off := 0; off+instrSize <= len(code); off += instrSize {
		b := code[off:]
		prog.Instructions = append(prog.Instructions, Instruction{
			Op:   Opcode(b[0]),
			Dst:  Operand{OperandKind(b[1]), int(b[2])},
			Src0: Operand{OperandKind(b[3]), int(b[4])},
			Src1: Operand{OperandKind(b[5]), int(b[6])},
			Src2: Operand{OperandKind(b[7]), int(b[8])},
		})
	}
	return prog
}

// registers is the attribute-slot file one program invocation operates
// over: input attributes (read-only), output attributes (write target),
// and a small constant bank a program can reference.
type registers struct {
	input     [geom.MaxVertexAttributes]geom.Attribute
	output    [geom.MaxVertexAttributes]geom.Attribute
	constants [geom.MaxVertexAttributes]geom.Attribute
}

func (r *registers) read(o Operand) geom.Attribute {
	switch o.Kind {
	case OperandOutput:
		return at(r.output[:], o.Index)
	case OperandConstant:
		return at(r.constants[:], o.Index)
	default:
		return at(r.input[:], o.Index)
	}
}

func at(slots []geom.Attribute, i int) geom.Attribute {
	if i < 0 || i >= len(slots) {
		return geom.Attribute{}
	}
	return slots[i]
}

func (r *registers) write(o Operand, v geom.Attribute) {
	if o.Kind == OperandOutput && o.Index >= 0 && o.Index < len(r.output) {
		r.output[o.Index] = v
	}
}

// TextureFetch samples a bound texture unit, used to service OpTex.
type TextureFetch func(unit int, coord geom.Attribute) geom.Attribute

// Run executes prog over input, starting at prog.EntryPC, until OpEnd or
// the instruction list is exhausted, returning the resulting output
// attribute slots. fetch may be nil for a program that never issues
// OpTex (a vertex program, typically).
func Run(prog Program, input [geom.MaxVertexAttributes]geom.Attribute, constants [geom.MaxVertexAttributes]geom.Attribute, fetch TextureFetch) [geom.MaxVertexAttributes]geom.Attribute {
	r := registers{input: input, constants: constants}
	for pc := prog.EntryPC; pc >= 0 && pc < len(prog.Instructions); pc++ {
		in := prog.Instructions[pc]
		switch in.Op {
		case OpEnd:
			return r.output
		case OpMov:
			r.write(in.Dst, r.read(in.Src0))
		case OpAdd:
			r.write(in.Dst, addAttr(r.read(in.Src0), r.read(in.Src1)))
		case OpMul:
			r.write(in.Dst, mulAttr(r.read(in.Src0), r.read(in.Src1)))
		case OpMad:
			r.write(in.Dst, addAttr(mulAttr(r.read(in.Src0), r.read(in.Src1)), r.read(in.Src2)))
		case OpDP3:
			r.write(in.Dst, splat(dot(r.read(in.Src0), r.read(in.Src1), 3)))
		case OpDP4:
			r.write(in.Dst, splat(dot(r.read(in.Src0), r.read(in.Src1), 4)))
		case OpRcp:
			r.write(in.Dst, rcp(r.read(in.Src0)))
		case OpTex:
			if fetch != nil {
				r.write(in.Dst, fetch(in.Src1.Index, r.read(in.Src0)))
			}
		}
	}
	return r.output
}

func addAttr(a, b geom.Attribute) geom.Attribute {
	var out geom.Attribute
	for i := range out {
		out[i] = a[i] + b[i]
	}
	return out
}

func mulAttr(a, b geom.Attribute) geom.Attribute {
	var out geom.Attribute
	for i := range out {
		out[i] = a[i] * b[i]
	}
	return out
}

func dot(a, b geom.Attribute, lanes int) float32 {
	var sum float32
	for i := 0; i < lanes; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func splat(v float32) geom.Attribute {
	return geom.Attribute{v, v, v, v}
}

func rcp(a geom.Attribute) geom.Attribute {
	var out geom.Attribute
	for i := range out {
		if a[i] != 0 {
			out[i] = 1 / a[i]
		}
	}
	return out
}

// VertexUnit runs the loaded vertex program over streamed vertices.
type VertexUnit struct {
	Program   Program
	Constants [geom.MaxVertexAttributes]geom.Attribute
}

// Execute runs the vertex program over v's attributes, returning the
// shaded vertex with its attributes replaced by the program's outputs.
func (u *VertexUnit) Execute(v geom.Vertex) geom.Vertex {
	out := Run(u.Program, v.Attributes, u.Constants, nil)
	return geom.Vertex{Index: v.Index, Attributes: out}
}

// FragmentUnit runs the loaded fragment program over interpolated
// fragment attributes, with texture sampling serviced by Textures.
type FragmentUnit struct {
	Program   Program
	Constants [geom.MaxVertexAttributes]geom.Attribute
	Textures  []*TextureUnit
}

func (u *FragmentUnit) fetch(unit int, coord geom.Attribute) geom.Attribute {
	if unit < 0 || unit >= len(u.Textures) || u.Textures[unit] == nil {
		return geom.Attribute{}
	}
	return u.Textures[unit].Sample(float64(coord[0]), float64(coord[1]))
}

// Execute runs the fragment program over f's interpolated attributes,
// returning the shaded color attribute array.
func (u *FragmentUnit) Execute(f *geom.Fragment) [geom.MaxVertexAttributes]geom.Attribute {
	return Run(u.Program, f.Attributes, u.Constants, u.fetch)
}
