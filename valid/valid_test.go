package valid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/shaderir/ir"
)

func bindingPtr(b ir.Binding) *ir.Binding { return &b }

func exprPtr(h ir.ExpressionHandle) *ir.ExpressionHandle { return &h }

func constPtr(h ir.ConstantHandle) *ir.ConstantHandle { return &h }

// minimalVertexModule returns a module with one vertex entry point that
// returns a zero position.
func minimalVertexModule() *ir.Module {
	return &ir.Module{
		Types: []ir.Type{
			{Name: "f32", Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Name: "vec4f", Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
		},
		Functions: []ir.Function{
			{
				Name: "vs_main",
				Result: &ir.FunctionResult{
					Type:    1,
					Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinPosition}),
				},
				Expressions: []ir.Expression{
					{Kind: ir.ExprZeroValue{Type: 1}},
				},
				Body: ir.Block{
					{Kind: ir.StmtReturn{Value: exprPtr(0)}},
				},
			},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "main", Stage: ir.StageVertex, Function: 0},
		},
	}
}

func TestValidateMinimalModule(t *testing.T) {
	info, err := New(FlagAll).Validate(minimalVertexModule())
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Len(t, info.Functions, 1)
	assert.Nil(t, info.Functions[0].Uniformity.NonUniformResult)
}

func TestValidateNilModule(t *testing.T) {
	_, err := New(FlagAll).Validate(nil)
	require.ErrorIs(t, err, ErrCorrupted)
}

func TestValidatorReuse(t *testing.T) {
	v := New(FlagAll)

	_, err := v.Validate(minimalVertexModule())
	require.NoError(t, err)

	bad := minimalVertexModule()
	bad.Types[1].Inner = ir.VectorType{
		Size:   ir.VectorSize(5),
		Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4},
	}
	_, err = v.Validate(bad)
	require.Error(t, err)
	var dim *InvalidDimensionError
	assert.ErrorAs(t, err, &dim)

	// A failed run must not leak state into the next one.
	_, err = v.Validate(minimalVertexModule())
	require.NoError(t, err)
}

func TestEntryPointConflict(t *testing.T) {
	module := minimalVertexModule()
	module.EntryPoints = append(module.EntryPoints, module.EntryPoints[0])

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrEntryPointConflict)

	var entity *EntityError
	require.ErrorAs(t, err, &entity)
	assert.Equal(t, EntityEntryPoint, entity.Entity)
	assert.Equal(t, "main", entity.Name)
	assert.Equal(t, ir.StageVertex, entity.Stage)
}

func TestEntryPointSameNameDifferentStage(t *testing.T) {
	module := minimalVertexModule()
	module.Functions = append(module.Functions, ir.Function{
		Name: "cs_main",
		Body: ir.Block{},
	})
	module.EntryPoints = append(module.EntryPoints, ir.EntryPoint{
		Name:      "main",
		Stage:     ir.StageCompute,
		Function:  1,
		Workgroup: [3]uint32{64, 1, 1},
	})

	_, err := New(FlagAll).Validate(module)
	require.NoError(t, err)
}

func TestConstantScalarWidth(t *testing.T) {
	module := minimalVertexModule()
	module.Constants = []ir.Constant{
		{Name: "bad", Inner: ir.ScalarConstant{Width: 2, Value: ir.FloatValue(1)}},
	}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrConstantType)

	var entity *EntityError
	require.ErrorAs(t, err, &entity)
	assert.Equal(t, EntityConstant, entity.Entity)
	assert.Equal(t, "bad", entity.Name)
}

func TestConstantValueMustFitWidth(t *testing.T) {
	cases := []struct {
		name  string
		inner ir.ScalarConstant
		ok    bool
	}{
		{"u32 small", ir.ScalarConstant{Width: 4, Value: ir.UintValue(7)}, true},
		{"u32 overflow", ir.ScalarConstant{Width: 4, Value: ir.UintValue(1 << 40)}, false},
		{"u64 large", ir.ScalarConstant{Width: 8, Value: ir.UintValue(1 << 40)}, true},
		{"i32 underflow", ir.ScalarConstant{Width: 4, Value: ir.SintValue(math.MinInt64)}, false},
		{"f32 in range", ir.ScalarConstant{Width: 4, Value: ir.FloatValue(1.5)}, true},
		{"f32 overflow", ir.ScalarConstant{Width: 4, Value: ir.FloatValue(1e308)}, false},
		{"f64 large", ir.ScalarConstant{Width: 8, Value: ir.FloatValue(1e308)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			module := minimalVertexModule()
			module.Constants = []ir.Constant{{Name: "c", Inner: tc.inner}}

			_, err := New(FlagAll).Validate(module)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConstantType)
		})
	}
}

func TestConstantUnresolvedSize(t *testing.T) {
	module := minimalVertexModule()
	module.Types = append(module.Types, ir.Type{
		Name:  "arr",
		Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{Constant: constPtr(1)}, Stride: 4},
	})
	// The composite comes before the constant holding its array size.
	module.Constants = []ir.Constant{
		{Name: "c", Inner: ir.CompositeConstant{Type: 2}},
		{Name: "n", Inner: ir.ScalarConstant{Width: 4, Value: ir.UintValue(4)}},
	}

	_, err := New(FlagAll).Validate(module)
	var unresolved *UnresolvedSizeError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, ir.ConstantHandle(1), unresolved.Handle)
}

func TestConstantUnresolvedComponent(t *testing.T) {
	module := minimalVertexModule()
	module.Types = append(module.Types, ir.Type{
		Name:  "arr",
		Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{Constant: constPtr(0)}, Stride: 4},
	})
	module.Constants = []ir.Constant{
		{Name: "n", Inner: ir.ScalarConstant{Width: 4, Value: ir.UintValue(1)}},
		{Name: "c", Inner: ir.CompositeConstant{Type: 2, Components: []ir.ConstantHandle{2}}},
	}

	_, err := New(FlagAll).Validate(module)
	var unresolved *UnresolvedComponentError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, ir.ConstantHandle(2), unresolved.Handle)
}

// floatIndexModule holds an Access whose index is a float, which only
// the expression pass rejects.
func floatIndexModule() *ir.Module {
	module := minimalVertexModule()
	fn := &module.Functions[0]
	fn.LocalVars = []ir.LocalVariable{{Name: "v", Type: 1}}
	fn.Expressions = []ir.Expression{
		{Kind: ir.ExprZeroValue{Type: 1}},
		{Kind: ir.ExprLocalVariable{Variable: 0}},
		{Kind: ir.Literal{Value: ir.LiteralF32(0.5)}},
		{Kind: ir.ExprAccess{Base: 1, Index: 2}},
	}
	fn.Body = ir.Block{
		{Kind: ir.StmtEmit{Range: ir.Range{Start: 3, End: 4}}},
		{Kind: ir.StmtReturn{Value: exprPtr(0)}},
	}
	return module
}

func TestFlagsGateExpressionChecks(t *testing.T) {
	_, err := New(FlagExpressions).Validate(floatIndexModule())
	require.ErrorIs(t, err, ErrIndexType)

	var entity *EntityError
	require.ErrorAs(t, err, &entity)
	assert.Equal(t, EntityFunction, entity.Entity)

	// Disabling the expression pass must not change any other outcome.
	_, err = New(FlagBlocks | FlagControlFlowUniformity).Validate(floatIndexModule())
	require.NoError(t, err)

	_, err = New(0).Validate(floatIndexModule())
	require.NoError(t, err)
}
