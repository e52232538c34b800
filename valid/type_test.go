package valid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/shaderir/ir"
)

func typeModule(types ...ir.Type) *ir.Module {
	return &ir.Module{Types: types}
}

func f32Type() ir.Type {
	return ir.Type{Name: "f32", Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}
}

func TestScalarWidths(t *testing.T) {
	cases := []struct {
		name  string
		inner ir.TypeInner
		ok    bool
	}{
		{"f32", ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}, true},
		{"f64", ir.ScalarType{Kind: ir.ScalarFloat, Width: 8}, true},
		{"f16", ir.ScalarType{Kind: ir.ScalarFloat, Width: 2}, false},
		{"bool", ir.ScalarType{Kind: ir.ScalarBool, Width: 1}, true},
		{"bool4", ir.ScalarType{Kind: ir.ScalarBool, Width: 4}, false},
		{"i0", ir.ScalarType{Kind: ir.ScalarSint, Width: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(FlagAll).Validate(typeModule(ir.Type{Name: tc.name, Inner: tc.inner}))
			if tc.ok {
				require.NoError(t, err)
				return
			}
			var width *InvalidWidthError
			require.ErrorAs(t, err, &width)
		})
	}
}

func TestMatrixRequiresFloat(t *testing.T) {
	module := typeModule(ir.Type{
		Name: "mat3x3i",
		Inner: ir.MatrixType{
			Columns: ir.Vec3,
			Rows:    ir.Vec3,
			Scalar:  ir.ScalarType{Kind: ir.ScalarSint, Width: 4},
		},
	})

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrMatrixScalar)

	var entity *EntityError
	require.ErrorAs(t, err, &entity)
	assert.Equal(t, EntityType, entity.Entity)
	assert.Equal(t, "mat3x3i", entity.Name)
}

func TestAtomicRequiresInteger(t *testing.T) {
	module := typeModule(ir.Type{
		Name:  "atomic_f32",
		Inner: ir.AtomicType{Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
	})

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrAtomicScalar)
}

func TestForwardTypeReference(t *testing.T) {
	module := typeModule(ir.Type{
		Name:  "arr",
		Inner: ir.ArrayType{Base: 5, Size: ir.ArraySize{}, Stride: 4},
	})

	_, err := New(FlagAll).Validate(module)
	var forward *ForwardTypeReferenceError
	require.ErrorAs(t, err, &forward)
	assert.Equal(t, ir.TypeHandle(5), forward.Handle)
}

func TestArrayStrideTooSmall(t *testing.T) {
	module := typeModule(
		ir.Type{Name: "vec4f", Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
		ir.Type{Name: "arr", Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{}, Stride: 8}},
	)

	_, err := New(FlagAll).Validate(module)
	var disalign *Disalignment
	require.ErrorAs(t, err, &disalign)
	assert.Equal(t, DisalignArrayStride, disalign.Kind)
	assert.Equal(t, uint32(8), disalign.Value)
}

func TestArrayZeroSize(t *testing.T) {
	module := typeModule(
		f32Type(),
		ir.Type{Name: "arr", Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{Constant: constPtr(0)}, Stride: 4}},
	)
	module.Constants = []ir.Constant{
		{Name: "n", Inner: ir.ScalarConstant{Width: 4, Value: ir.UintValue(0)}},
	}

	_, err := New(FlagAll).Validate(module)
	var size *InvalidArraySizeError
	require.ErrorAs(t, err, &size)
	assert.Equal(t, ir.ConstantHandle(0), size.Handle)
}

func TestStructMemberOffsetAlignment(t *testing.T) {
	module := typeModule(
		f32Type(),
		ir.Type{Name: "s", Inner: ir.StructType{
			Members: []ir.StructMember{{Name: "x", Type: 0, Offset: 2}},
			Span:    8,
		}},
	)

	_, err := New(FlagAll).Validate(module)
	var disalign *Disalignment
	require.ErrorAs(t, err, &disalign)
	assert.Equal(t, DisalignMemberOffset, disalign.Kind)
	assert.Equal(t, 0, disalign.Member)
}

func TestStructSpanAlignment(t *testing.T) {
	module := typeModule(
		f32Type(),
		ir.Type{Name: "s", Inner: ir.StructType{
			Members: []ir.StructMember{{Name: "x", Type: 0, Offset: 0}},
			Span:    6,
		}},
	)

	_, err := New(FlagAll).Validate(module)
	var disalign *Disalignment
	require.ErrorAs(t, err, &disalign)
	assert.Equal(t, DisalignStructSpan, disalign.Kind)
}

func TestStructMemberOutOfBounds(t *testing.T) {
	module := typeModule(
		ir.Type{Name: "vec4f", Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
		ir.Type{Name: "s", Inner: ir.StructType{
			Members: []ir.StructMember{{Name: "v", Type: 0, Offset: 0}},
			Span:    8,
		}},
	)

	_, err := New(FlagAll).Validate(module)
	var bounds *MemberOutOfBoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, uint32(16), bounds.Size)
	assert.Equal(t, uint32(8), bounds.Span)
}

func TestRuntimeSizedMemberMustBeLast(t *testing.T) {
	module := typeModule(
		f32Type(),
		ir.Type{Name: "arr", Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{}, Stride: 4}},
		ir.Type{Name: "s", Inner: ir.StructType{
			Members: []ir.StructMember{
				{Name: "data", Type: 1, Offset: 0},
				{Name: "len", Type: 0, Offset: 4},
			},
			Span: 8,
		}},
	)

	_, err := New(FlagAll).Validate(module)
	var unsized *UnsizedMemberError
	require.ErrorAs(t, err, &unsized)
	assert.Equal(t, 0, unsized.Member)
}

func TestPointerBaseNeedsData(t *testing.T) {
	module := typeModule(
		ir.Type{Name: "sampler", Inner: ir.SamplerType{}},
		ir.Type{Name: "ptr", Inner: ir.PointerType{Base: 0, Space: ir.SpaceFunction}},
	)

	_, err := New(FlagAll).Validate(module)
	var base *InvalidBaseError
	require.ErrorAs(t, err, &base)
	assert.Equal(t, ir.TypeHandle(0), base.Handle)
	assert.Equal(t, TypeFlagData, base.Missing)
}
