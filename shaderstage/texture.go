package shaderstage

import (
	"github.com/cg1sim/cg1sim/geom"
	"github.com/cg1sim/cg1sim/types"
)

// WrapMode selects how out-of-[0,1) texture coordinates are mapped back
// into the bound image, mirroring the tiling behavior the filter
// pipeline's source exercises (a bound image repeated across an N×M
// tiling grid).
type WrapMode uint8

const (
	WrapRepeat WrapMode = iota
	WrapClamp
)

// TextureUnit binds one image to the texture filter pipeline (spec.md's
// texture-sampling addition, grounded in the filter-operation queue the
// functional core's texture unit drives). Data is tightly packed and
// row-major, Format.BytesPerPixel() bytes per texel; texel decodes the
// four bytes at a texel's offset as 8-bit RGBA whatever the Format, so
// only RGBA8888 data decodes to its true color.
type TextureUnit struct {
	Width, Height int
	TileX, TileY  int // tiling repeat counts across the bound image
	Format        types.TextureFormat
	Filter        types.TextureFilter
	WrapS, WrapT  WrapMode
	Data          []byte // Width*Height*Format.BytesPerPixel(), row-major
}

func (t *TextureUnit) texel(x, y int) geom.Attribute {
	bpp := t.Format.BytesPerPixel()
	x = wrapIndex(x, t.Width, t.WrapS)
	y = wrapIndex(y, t.Height, t.WrapT)
	off := (y*t.Width + x) * bpp
	if off < 0 || off+4 > len(t.Data) {
		return geom.Attribute{}
	}
	return geom.Attribute{
		float32(t.Data[off]) / 255,
		float32(t.Data[off+1]) / 255,
		float32(t.Data[off+2]) / 255,
		float32(t.Data[off+3]) / 255,
	}
}

func wrapIndex(i, n int, mode WrapMode) int {
	if n <= 0 {
		return 0
	}
	switch mode {
	case WrapClamp:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	default: // WrapRepeat
		m := i % n
		if m < 0 {
			m += n
		}
		return m
	}
}

// Sample fetches the texel (or bilinearly-filtered blend of four
// texels) at normalized coordinate (u, v), repeated TileX/TileY times
// across the bound image before wrapping — the "100x100 RGBA8888
// texture... with 4x4 tiling" scenario this unit exists to reproduce.
func (t *TextureUnit) Sample(u, v float64) geom.Attribute {
	if t.Width <= 0 || t.Height <= 0 {
		return geom.Attribute{}
	}
	tx := t.TileX
	if tx < 1 {
		tx = 1
	}
	ty := t.TileY
	if ty < 1 {
		ty = 1
	}
	fx := u*float64(tx)*float64(t.Width) - 0.5
	fy := v*float64(ty)*float64(t.Height) - 0.5

	switch t.Filter {
	case types.TextureFilterLinear:
		x0 := int(floor(fx))
		y0 := int(floor(fy))
		tx := fx - floor(fx)
		ty := fy - floor(fy)
		c00 := t.texel(x0, y0)
		c10 := t.texel(x0+1, y0)
		c01 := t.texel(x0, y0+1)
		c11 := t.texel(x0+1, y0+1)
		return bilerp(c00, c10, c01, c11, float32(tx), float32(ty))
	default: // TextureFilterNearest
		x := int(floor(fx + 0.5))
		y := int(floor(fy + 0.5))
		return t.texel(x, y)
	}
}

func floor(v float64) float64 {
	i := float64(int64(v))
	if v < 0 && i != v {
		return i - 1
	}
	return i
}

func bilerp(c00, c10, c01, c11 geom.Attribute, tx, ty float32) geom.Attribute {
	var out geom.Attribute
	for i := range out {
		top := c00[i] + (c10[i]-c00[i])*tx
		bot := c01[i] + (c11[i]-c01[i])*tx
		out[i] = top + (bot-top)*ty
	}
	return out
}
