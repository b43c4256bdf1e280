package geom

// MaxVertexAttributes bounds the fixed-size attribute array every vertex
// carries (spec.md §3, design constant `MAX_VERTEX_ATTRIBUTES`).
const MaxVertexAttributes = 16

// PositionAttribute is the attribute slot holding clip-space position on
// input and (x_raster, y_raster, z/zmax, 1.0) after interpolation
// overwrites it (spec.md §4.7).
const PositionAttribute = 0

// FaceAttribute is the attribute slot whose fourth lane the interpolator
// overwrites with the triangle's signed area (spec.md §4.7).
const FaceAttribute = 1

// Attribute is a 4-lane floating-point vector: one vertex attribute slot
// (position, color, texcoord, or a shader-defined varying).
type Attribute [4]float32

// Vertex carries a fixed-size array of attributes plus the streamer index
// it was assigned, used to detect degenerate triangles in primitive
// assembly (spec.md §4.3: "any two indices equal").
type Vertex struct {
	Index      uint32
	Attributes [MaxVertexAttributes]Attribute
}

// Get returns attribute slot i, or the zero Attribute if i is out of range.
func (v *Vertex) Get(i int) Attribute {
	if i < 0 || i >= MaxVertexAttributes {
		return Attribute{}
	}
	return v.Attributes[i]
}

// Set stores val into attribute slot i. Out-of-range i is a no-op: every
// caller in this pipeline indexes with a compile-time constant or a value
// already bounds-checked against MaxVertexAttributes.
func (v *Vertex) Set(i int, val Attribute) {
	if i < 0 || i >= MaxVertexAttributes {
		return
	}
	v.Attributes[i] = val
}
