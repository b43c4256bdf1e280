package tracefile

import (
	"fmt"
	"math"

	"github.com/cg1sim/cg1sim/types"
)

// writeRegValue serializes a types.RegValue as its Kind byte followed
// by a kind-specific fixed payload.
func writeRegValue(w *Writer, v types.RegValue) error {
	if err := w.writeByte(byte(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case types.RegKindBool:
		b, _ := v.Bool()
		var z byte
		if b {
			z = 1
		}
		return w.writeByte(z)
	case types.RegKindUint:
		u, _ := v.Uint()
		return w.writeU64(u)
	case types.RegKindInt:
		i, _ := v.Int()
		return w.writeU64(uint64(i))
	case types.RegKindFloat:
		f, _ := v.Float()
		return w.writeU64(floatBits(f))
	case types.RegKindVec4F:
		vec, _ := v.Vec4()
		for _, lane := range vec {
			if err := w.writeU32(floatBits32(lane)); err != nil {
				return err
			}
		}
		return nil
	case types.RegKindTextureFormat:
		f, _ := v.TextureFormat()
		return w.writeByte(byte(f))
	case types.RegKindPrimitiveMode:
		p, _ := v.PrimitiveMode()
		return w.writeByte(byte(p))
	case types.RegKindBlendFunc:
		bf, _ := v.BlendFunc()
		return w.writeByte(byte(bf))
	case types.RegKindBlendEquation:
		be, _ := v.BlendEquation()
		return w.writeByte(byte(be))
	case types.RegKindCompareFunc:
		cf, _ := v.CompareFunc()
		return w.writeByte(byte(cf))
	case types.RegKindCullMode:
		cm, _ := v.CullMode()
		return w.writeByte(byte(cm))
	default:
		return fmt.Errorf("tracefile: unknown register value kind %d", v.Kind)
	}
}

func readRegValue(r *Reader) (types.RegValue, error) {
	kindByte, err := r.r.ReadByte()
	if err != nil {
		return types.RegValue{}, err
	}
	switch types.RegKind(kindByte) {
	case types.RegKindBool:
		b, err := r.r.ReadByte()
		if err != nil {
			return types.RegValue{}, err
		}
		return types.BoolValue(b != 0), nil
	case types.RegKindUint:
		u, err := r.readU64()
		if err != nil {
			return types.RegValue{}, err
		}
		return types.UintValue(u), nil
	case types.RegKindInt:
		u, err := r.readU64()
		if err != nil {
			return types.RegValue{}, err
		}
		return types.IntValue(int64(u)), nil
	case types.RegKindFloat:
		u, err := r.readU64()
		if err != nil {
			return types.RegValue{}, err
		}
		return types.FloatValue(floatFromBits(u)), nil
	case types.RegKindVec4F:
		var vec [4]float32
		for i := range vec {
			u, err := r.readU32()
			if err != nil {
				return types.RegValue{}, err
			}
			vec[i] = floatFromBits32(u)
		}
		return types.Vec4Value(vec), nil
	case types.RegKindTextureFormat:
		b, err := readByteVal(r)
		if err != nil {
			return types.RegValue{}, err
		}
		return types.TextureFormatValue(types.TextureFormat(b)), nil
	case types.RegKindPrimitiveMode:
		b, err := readByteVal(r)
		if err != nil {
			return types.RegValue{}, err
		}
		return types.PrimitiveModeValue(types.PrimitiveMode(b)), nil
	case types.RegKindBlendFunc:
		b, err := readByteVal(r)
		if err != nil {
			return types.RegValue{}, err
		}
		return types.BlendFuncValue(types.BlendFunc(b)), nil
	case types.RegKindBlendEquation:
		b, err := readByteVal(r)
		if err != nil {
			return types.RegValue{}, err
		}
		return types.BlendEquationValue(types.BlendEquation(b)), nil
	case types.RegKindCompareFunc:
		b, err := readByteVal(r)
		if err != nil {
			return types.RegValue{}, err
		}
		return types.CompareFuncValue(types.CompareFunc(b)), nil
	case types.RegKindCullMode:
		b, err := readByteVal(r)
		if err != nil {
			return types.RegValue{}, err
		}
		return types.CullModeValue(types.CullMode(b)), nil
	default:
		return types.RegValue{}, fmt.Errorf("tracefile: unknown register value kind %d", kindByte)
	}
}

func readByteVal(r *Reader) (byte, error) {
	return r.r.ReadByte()
}

func floatBits(f float64) uint64       { return math.Float64bits(f) }
func floatFromBits(u uint64) float64   { return math.Float64frombits(u) }
func floatBits32(f float32) uint32     { return math.Float32bits(f) }
func floatFromBits32(u uint32) float32 { return math.Float32frombits(u) }
