package ir

// TypeLayout describes the byte size and alignment of a type.
type TypeLayout struct {
	Size      uint32
	Alignment uint32
}

// Layouter computes and caches the memory layout of every type in a
// module. Layouts are computed once, in arena order, so a type's layout
// can rely on the layouts of the types it references.
//
// Opaque types (images, samplers) get a zero size and an alignment of 1;
// runtime-sized arrays report the stride of one element.
type Layouter struct {
	layouts []TypeLayout
}

// NewLayouter computes layouts for the given type arena. Array element
// counts are resolved through the constant arena.
func NewLayouter(types []Type, constants []Constant) *Layouter {
	l := &Layouter{layouts: make([]TypeLayout, len(types))}
	for i := range types {
		l.layouts[i] = l.compute(types[i].Inner, constants)
	}
	return l
}

// Lookup returns the layout of a type. Handles obtained from the same
// type arena never fail; an out-of-range handle reports a zero layout.
func (l *Layouter) Lookup(handle TypeHandle) TypeLayout {
	if int(handle) >= len(l.layouts) {
		return TypeLayout{Size: 0, Alignment: 1}
	}
	return l.layouts[handle]
}

func (l *Layouter) compute(inner TypeInner, constants []Constant) TypeLayout {
	switch t := inner.(type) {
	case ScalarType:
		w := uint32(t.Width)
		return TypeLayout{Size: w, Alignment: max32(w, 1)}

	case AtomicType:
		w := uint32(t.Scalar.Width)
		return TypeLayout{Size: w, Alignment: max32(w, 1)}

	case VectorType:
		return vectorLayout(t)

	case MatrixType:
		// Column-major: a matrix lays out as Columns column vectors,
		// each aligned to the column vector's alignment.
		col := vectorLayout(VectorType{Size: t.Rows, Scalar: t.Scalar})
		stride := alignUp(col.Size, col.Alignment)
		return TypeLayout{Size: stride * uint32(t.Columns), Alignment: col.Alignment}

	case ArrayType:
		// Earlier handles only, so the base layout is already computed.
		base := l.Lookup(t.Base)
		if t.Size.Constant == nil {
			return TypeLayout{Size: t.Stride, Alignment: base.Alignment}
		}
		count, ok := ArraySizeValue(constants, *t.Size.Constant)
		if !ok {
			count = 1
		}
		return TypeLayout{Size: t.Stride * count, Alignment: base.Alignment}

	case StructType:
		align := uint32(1)
		for _, member := range t.Members {
			if ma := l.Lookup(member.Type).Alignment; ma > align {
				align = ma
			}
		}
		return TypeLayout{Size: t.Span, Alignment: align}

	case PointerType, ValuePointerType:
		return TypeLayout{Size: 4, Alignment: 4}

	default: // images, samplers
		return TypeLayout{Size: 0, Alignment: 1}
	}
}

func vectorLayout(t VectorType) TypeLayout {
	w := uint32(t.Scalar.Width)
	size := uint32(t.Size) * w
	// vec2 aligns to two scalars, vec3 and vec4 to four.
	align := 2 * w
	if t.Size > Vec2 {
		align = 4 * w
	}
	return TypeLayout{Size: size, Alignment: max32(align, 1)}
}

// alignUp returns offset rounded up to the given power-of-two alignment.
func alignUp(offset, alignment uint32) uint32 {
	if alignment == 0 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
