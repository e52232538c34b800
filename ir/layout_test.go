package ir

import "testing"

func TestScalarAndVectorLayout(t *testing.T) {
	f32 := ScalarType{Kind: ScalarFloat, Width: 4}
	cases := []struct {
		name  string
		inner TypeInner
		want  TypeLayout
	}{
		{"f32", f32, TypeLayout{Size: 4, Alignment: 4}},
		{"bool", ScalarType{Kind: ScalarBool, Width: 1}, TypeLayout{Size: 1, Alignment: 1}},
		{"vec2f", VectorType{Size: Vec2, Scalar: f32}, TypeLayout{Size: 8, Alignment: 8}},
		{"vec3f", VectorType{Size: Vec3, Scalar: f32}, TypeLayout{Size: 12, Alignment: 16}},
		{"vec4f", VectorType{Size: Vec4, Scalar: f32}, TypeLayout{Size: 16, Alignment: 16}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLayouter([]Type{{Name: tc.name, Inner: tc.inner}}, nil)
			if got := l.Lookup(0); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestMatrixLayout(t *testing.T) {
	// Column-major: two vec3 columns, each padded to vec4 alignment.
	l := NewLayouter([]Type{{
		Name: "mat2x3f",
		Inner: MatrixType{
			Columns: Vec2,
			Rows:    Vec3,
			Scalar:  ScalarType{Kind: ScalarFloat, Width: 4},
		},
	}}, nil)

	want := TypeLayout{Size: 32, Alignment: 16}
	if got := l.Lookup(0); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestArrayLayout(t *testing.T) {
	n := ConstantHandle(0)
	types := []Type{
		{Name: "f32", Inner: ScalarType{Kind: ScalarFloat, Width: 4}},
		{Name: "sized", Inner: ArrayType{Base: 0, Size: ArraySize{Constant: &n}, Stride: 4}},
		{Name: "runtime", Inner: ArrayType{Base: 0, Size: ArraySize{}, Stride: 4}},
	}
	constants := []Constant{
		{Name: "n", Inner: ScalarConstant{Width: 4, Value: UintValue(6)}},
	}
	l := NewLayouter(types, constants)

	if got, want := l.Lookup(1), (TypeLayout{Size: 24, Alignment: 4}); got != want {
		t.Errorf("sized array: got %+v, want %+v", got, want)
	}
	// A runtime-sized array reports one element's stride.
	if got, want := l.Lookup(2), (TypeLayout{Size: 4, Alignment: 4}); got != want {
		t.Errorf("runtime array: got %+v, want %+v", got, want)
	}
}

func TestStructLayout(t *testing.T) {
	types := []Type{
		{Name: "f32", Inner: ScalarType{Kind: ScalarFloat, Width: 4}},
		{Name: "vec4f", Inner: VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}}},
		{Name: "s", Inner: StructType{
			Members: []StructMember{
				{Name: "pos", Type: 1, Offset: 0},
				{Name: "w", Type: 0, Offset: 16},
			},
			Span: 32,
		}},
	}
	l := NewLayouter(types, nil)

	want := TypeLayout{Size: 32, Alignment: 16}
	if got := l.Lookup(2); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestOpaqueTypesHaveNoLayout(t *testing.T) {
	l := NewLayouter([]Type{
		{Name: "tex", Inner: ImageType{Dim: Dim2D}},
		{Name: "samp", Inner: SamplerType{}},
	}, nil)

	for h := TypeHandle(0); h < 2; h++ {
		if got, want := l.Lookup(h), (TypeLayout{Size: 0, Alignment: 1}); got != want {
			t.Errorf("type %d: got %+v, want %+v", h, got, want)
		}
	}
}

func TestLookupOutOfRange(t *testing.T) {
	l := NewLayouter(nil, nil)
	if got, want := l.Lookup(3), (TypeLayout{Size: 0, Alignment: 1}); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
