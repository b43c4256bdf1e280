// Package types holds the data types shared across every simulator stage:
// the register-file tagged union, primitive/compare/blend enumerations,
// and the verb opcodes the command processor dispatches (spec.md §4.2, §6).
package types

import "fmt"

// RegKind identifies the active variant of a RegValue.
type RegKind uint8

const (
	RegKindBool RegKind = iota
	RegKindUint
	RegKindInt
	RegKindFloat
	RegKindVec4F
	RegKindTextureFormat
	RegKindPrimitiveMode
	RegKindBlendFunc
	RegKindBlendEquation
	RegKindCompareFunc
	RegKindCullMode
)

// RegValue is the tagged union carried by every register-write record
// (spec.md §4.2, §9: "Tagged-union register values"). Exactly one of
// the typed accessors is meaningful, selected by Kind.
type RegValue struct {
	Kind RegKind

	boolVal  bool
	uintVal  uint64
	intVal   int64
	floatVal float64
	vec4     [4]float32
	fmtVal   TextureFormat
	primVal  PrimitiveMode
	bfVal    BlendFunc
	beVal    BlendEquation
	cmpVal   CompareFunc
	cullVal  CullMode
}

func BoolValue(v bool) RegValue           { return RegValue{Kind: RegKindBool, boolVal: v} }
func UintValue(v uint64) RegValue         { return RegValue{Kind: RegKindUint, uintVal: v} }
func IntValue(v int64) RegValue           { return RegValue{Kind: RegKindInt, intVal: v} }
func FloatValue(v float64) RegValue       { return RegValue{Kind: RegKindFloat, floatVal: v} }
func Vec4Value(v [4]float32) RegValue     { return RegValue{Kind: RegKindVec4F, vec4: v} }
func TextureFormatValue(v TextureFormat) RegValue {
	return RegValue{Kind: RegKindTextureFormat, fmtVal: v}
}
func PrimitiveModeValue(v PrimitiveMode) RegValue {
	return RegValue{Kind: RegKindPrimitiveMode, primVal: v}
}
func BlendFuncValue(v BlendFunc) RegValue         { return RegValue{Kind: RegKindBlendFunc, bfVal: v} }
func BlendEquationValue(v BlendEquation) RegValue { return RegValue{Kind: RegKindBlendEquation, beVal: v} }
func CompareFuncValue(v CompareFunc) RegValue     { return RegValue{Kind: RegKindCompareFunc, cmpVal: v} }
func CullModeValue(v CullMode) RegValue           { return RegValue{Kind: RegKindCullMode, cullVal: v} }

// Bool returns the bool variant and whether Kind matched.
func (r RegValue) Bool() (bool, bool) { return r.boolVal, r.Kind == RegKindBool }

// Uint returns the uint64 variant and whether Kind matched.
func (r RegValue) Uint() (uint64, bool) { return r.uintVal, r.Kind == RegKindUint }

// Int returns the int64 variant and whether Kind matched.
func (r RegValue) Int() (int64, bool) { return r.intVal, r.Kind == RegKindInt }

// Float returns the float64 variant and whether Kind matched.
func (r RegValue) Float() (float64, bool) { return r.floatVal, r.Kind == RegKindFloat }

// Vec4 returns the 4-lane float variant and whether Kind matched.
func (r RegValue) Vec4() ([4]float32, bool) { return r.vec4, r.Kind == RegKindVec4F }

// TextureFormat returns the texture-format variant and whether Kind matched.
func (r RegValue) TextureFormat() (TextureFormat, bool) {
	return r.fmtVal, r.Kind == RegKindTextureFormat
}

// PrimitiveMode returns the primitive-mode variant and whether Kind matched.
func (r RegValue) PrimitiveMode() (PrimitiveMode, bool) {
	return r.primVal, r.Kind == RegKindPrimitiveMode
}

// BlendFunc returns the blend-function variant and whether Kind matched.
func (r RegValue) BlendFunc() (BlendFunc, bool) { return r.bfVal, r.Kind == RegKindBlendFunc }

// BlendEquation returns the blend-equation variant and whether Kind matched.
func (r RegValue) BlendEquation() (BlendEquation, bool) {
	return r.beVal, r.Kind == RegKindBlendEquation
}

// CompareFunc returns the compare-function variant and whether Kind matched.
func (r RegValue) CompareFunc() (CompareFunc, bool) { return r.cmpVal, r.Kind == RegKindCompareFunc }

// CullMode returns the cull-mode variant and whether Kind matched.
func (r RegValue) CullMode() (CullMode, bool) { return r.cullVal, r.Kind == RegKindCullMode }

// String renders the active variant for diagnostics and signal traces.
func (r RegValue) String() string {
	switch r.Kind {
	case RegKindBool:
		return fmt.Sprintf("bool(%v)", r.boolVal)
	case RegKindUint:
		return fmt.Sprintf("uint(%d)", r.uintVal)
	case RegKindInt:
		return fmt.Sprintf("int(%d)", r.intVal)
	case RegKindFloat:
		return fmt.Sprintf("float(%g)", r.floatVal)
	case RegKindVec4F:
		return fmt.Sprintf("vec4(%v)", r.vec4)
	case RegKindTextureFormat:
		return fmt.Sprintf("textureFormat(%v)", r.fmtVal)
	case RegKindPrimitiveMode:
		return fmt.Sprintf("primitiveMode(%v)", r.primVal)
	case RegKindBlendFunc:
		return fmt.Sprintf("blendFunc(%v)", r.bfVal)
	case RegKindBlendEquation:
		return fmt.Sprintf("blendEquation(%v)", r.beVal)
	case RegKindCompareFunc:
		return fmt.Sprintf("compareFunc(%v)", r.cmpVal)
	case RegKindCullMode:
		return fmt.Sprintf("cullMode(%v)", r.cullVal)
	default:
		return "regvalue(invalid)"
	}
}
