package valid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/shaderir/ir"
)

func TestMissingVertexPosition(t *testing.T) {
	module := minimalVertexModule()
	module.Functions[0].Result.Binding = bindingPtr(ir.LocationBinding{Location: 0})

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrMissingVertexPosition)
}

func TestZeroWorkgroupSize(t *testing.T) {
	module := computeModule(ir.Function{Name: "cs_main"})
	module.EntryPoints[0].Workgroup = [3]uint32{64, 0, 1}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrZeroWorkgroupSize)
}

func TestWorkgroupSizeOnVertexStage(t *testing.T) {
	module := minimalVertexModule()
	module.EntryPoints[0].Workgroup = [3]uint32{1, 1, 1}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrUnexpectedWorkgroupSize)
}

func TestEarlyDepthTestOnVertexStage(t *testing.T) {
	module := minimalVertexModule()
	module.EntryPoints[0].EarlyDepthTest = true

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrUnexpectedEarlyDepthTest)
}

func TestUniformVariableRequiresBinding(t *testing.T) {
	module := minimalVertexModule()
	module.GlobalVariables = []ir.GlobalVariable{
		{Name: "params", Space: ir.SpaceUniform, Type: 0},
	}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrGlobalMissingBinding)

	var entity *EntityError
	require.ErrorAs(t, err, &entity)
	assert.Equal(t, EntityGlobalVariable, entity.Entity)
	assert.Equal(t, "params", entity.Name)
}

func TestPrivateVariableRejectsBinding(t *testing.T) {
	module := minimalVertexModule()
	module.GlobalVariables = []ir.GlobalVariable{
		{
			Name:    "scratch",
			Space:   ir.SpacePrivate,
			Binding: &ir.ResourceBinding{Group: 0, Binding: 0},
			Type:    0,
		},
	}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrGlobalUnexpectedBinding)
}

func TestUniformVariableMustBeSized(t *testing.T) {
	module := minimalVertexModule()
	module.Types = append(module.Types, ir.Type{
		Name:  "arr",
		Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{}, Stride: 4},
	})
	module.GlobalVariables = []ir.GlobalVariable{
		{
			Name:    "data",
			Space:   ir.SpaceUniform,
			Binding: &ir.ResourceBinding{Group: 0, Binding: 0},
			Type:    2,
		},
	}

	_, err := New(FlagAll).Validate(module)
	var typeErr *GlobalTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, TypeFlagSized, typeErr.Missing)
}

func TestHandleVariableMustBeResource(t *testing.T) {
	module := minimalVertexModule()
	module.GlobalVariables = []ir.GlobalVariable{
		{
			Name:    "tex",
			Space:   ir.SpaceHandle,
			Binding: &ir.ResourceBinding{Group: 0, Binding: 0},
			Type:    0,
		},
	}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrGlobalHandleType)
}

func TestFunctionSpaceGlobalRejected(t *testing.T) {
	module := minimalVertexModule()
	module.GlobalVariables = []ir.GlobalVariable{
		{Name: "v", Space: ir.SpaceFunction, Type: 0},
	}

	_, err := New(FlagAll).Validate(module)
	var space *InvalidGlobalSpaceError
	require.ErrorAs(t, err, &space)
	assert.Equal(t, ir.SpaceFunction, space.Space)
}

func TestInitializerOnlyOnPrivate(t *testing.T) {
	module := minimalVertexModule()
	module.Constants = []ir.Constant{
		{Name: "zero", Inner: ir.ScalarConstant{Width: 4, Value: ir.FloatValue(0)}},
	}
	module.GlobalVariables = []ir.GlobalVariable{
		{Name: "counter", Space: ir.SpaceWorkGroup, Type: 0, Init: constPtr(0)},
	}
	module.EntryPoints[0].Stage = ir.StageCompute
	module.EntryPoints[0].Workgroup = [3]uint32{1, 1, 1}
	module.Functions[0].Result = nil
	module.Functions[0].Body = ir.Block{}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrGlobalForbiddenInit)
}

func TestInitializerTypeMismatch(t *testing.T) {
	module := minimalVertexModule()
	module.Constants = []ir.Constant{
		{Name: "one", Inner: ir.ScalarConstant{Width: 4, Value: ir.UintValue(1)}},
	}
	// A u32 constant initializing an f32 variable.
	module.GlobalVariables = []ir.GlobalVariable{
		{Name: "scale", Space: ir.SpacePrivate, Type: 0, Init: constPtr(0)},
	}

	_, err := New(FlagAll).Validate(module)
	var unresolved *UnresolvedInitError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, ir.ConstantHandle(0), unresolved.Handle)
}

// fragmentModule wraps a fragment entry point around the given inputs.
func fragmentModule(types []ir.Type, args []ir.FunctionArgument) *ir.Module {
	return &ir.Module{
		Types: types,
		Functions: []ir.Function{
			{Name: "fs_main", Arguments: args, Body: ir.Block{}},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "main", Stage: ir.StageFragment, Function: 0},
		},
	}
}

func TestLocationCollision(t *testing.T) {
	f32 := ir.Type{Name: "f32", Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}
	module := fragmentModule(
		[]ir.Type{f32},
		[]ir.FunctionArgument{
			{Name: "a", Type: 0, Binding: bindingPtr(ir.LocationBinding{Location: 3})},
			{Name: "b", Type: 0, Binding: bindingPtr(ir.LocationBinding{Location: 3})},
		},
	)

	_, err := New(FlagAll).Validate(module)
	var collision *LocationCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, uint32(3), collision.Location)

	var arg *ArgumentError
	require.ErrorAs(t, err, &arg)
	assert.Equal(t, 1, arg.Index)
}

func TestInputAndOutputLocationsAreSeparate(t *testing.T) {
	module := &ir.Module{
		Types: []ir.Type{
			{Name: "f32", Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
			{Name: "vec4f", Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
			{Name: "VertexOutput", Inner: ir.StructType{
				Members: []ir.StructMember{
					{Name: "position", Type: 1, Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinPosition}), Offset: 0},
					{Name: "fade", Type: 0, Binding: bindingPtr(ir.LocationBinding{Location: 0}), Offset: 16},
				},
				Span: 32,
			}},
		},
		Functions: []ir.Function{
			{
				Name: "vs_main",
				Arguments: []ir.FunctionArgument{
					// Location 0 as an input and as an output at once.
					{Name: "fade", Type: 0, Binding: bindingPtr(ir.LocationBinding{Location: 0})},
				},
				Result: &ir.FunctionResult{Type: 2},
				Expressions: []ir.Expression{
					{Kind: ir.ExprZeroValue{Type: 2}},
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

	_, err := New(FlagAll).Validate(module)
	require.NoError(t, err)
}

func TestIntegerVaryingRequiresFlat(t *testing.T) {
	u32 := ir.Type{Name: "u32", Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}}

	module := fragmentModule(
		[]ir.Type{u32},
		[]ir.FunctionArgument{
			{Name: "id", Type: 0, Binding: bindingPtr(ir.LocationBinding{Location: 0})},
		},
	)
	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrFlatInterpolation)

	module = fragmentModule(
		[]ir.Type{u32},
		[]ir.FunctionArgument{
			{Name: "id", Type: 0, Binding: bindingPtr(ir.LocationBinding{
				Location:      0,
				Interpolation: &ir.Interpolation{Kind: ir.InterpolationFlat},
			})},
		},
	)
	_, err = New(FlagAll).Validate(module)
	require.NoError(t, err)
}

func TestBoolVaryingRejected(t *testing.T) {
	module := fragmentModule(
		[]ir.Type{{Name: "bool", Inner: ir.ScalarType{Kind: ir.ScalarBool, Width: 1}}},
		[]ir.FunctionArgument{
			{Name: "flag", Type: 0, Binding: bindingPtr(ir.LocationBinding{Location: 0})},
		},
	)

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrVaryingType)
}

func TestBuiltinStageMismatch(t *testing.T) {
	module := minimalVertexModule()
	module.Functions[0].Result.Binding = bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinFragDepth})

	_, err := New(FlagAll).Validate(module)
	var builtin *InvalidBuiltInError
	require.ErrorAs(t, err, &builtin)
	assert.Equal(t, ir.BuiltinFragDepth, builtin.Builtin)
	assert.Equal(t, ir.StageVertex, builtin.Stage)
	assert.True(t, builtin.Output)

	var result *ResultError
	require.ErrorAs(t, err, &result)
}

func TestBuiltinTypeMismatch(t *testing.T) {
	module := minimalVertexModule()
	fn := &module.Functions[0]
	// Position bound to a bare f32.
	fn.Result.Type = 0
	fn.Expressions[0] = ir.Expression{Kind: ir.ExprZeroValue{Type: 0}}

	_, err := New(FlagAll).Validate(module)
	require.ErrorIs(t, err, ErrBuiltinType)
}

func resourceCollisionModule(storeBoth bool) *ir.Module {
	body := ir.Block{
		{Kind: ir.StmtStore{Pointer: 0, Value: 2}},
	}
	if storeBoth {
		body = append(body, ir.Statement{Kind: ir.StmtStore{Pointer: 1, Value: 2}})
	}
	return &ir.Module{
		Types: []ir.Type{
			{Name: "f32", Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "a", Space: ir.SpaceStorage, Binding: &ir.ResourceBinding{Group: 1, Binding: 2}, Type: 0},
			{Name: "b", Space: ir.SpaceStorage, Binding: &ir.ResourceBinding{Group: 1, Binding: 2}, Type: 0},
		},
		Functions: []ir.Function{
			{
				Name: "cs_main",
				Expressions: []ir.Expression{
					{Kind: ir.ExprGlobalVariable{Variable: 0}},
					{Kind: ir.ExprGlobalVariable{Variable: 1}},
					{Kind: ir.Literal{Value: ir.LiteralF32(1)}},
				},
				Body: body,
			},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "main", Stage: ir.StageCompute, Function: 0, Workgroup: [3]uint32{1, 1, 1}},
		},
	}
}

func TestResourceCollision(t *testing.T) {
	_, err := New(FlagAll).Validate(resourceCollisionModule(true))
	var collision *ResourceCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, uint32(1), collision.Group)
	assert.Equal(t, uint32(2), collision.Binding)
	assert.Equal(t, "b", collision.Variable)
}

func TestUnusedResourceDoesNotCollide(t *testing.T) {
	_, err := New(FlagAll).Validate(resourceCollisionModule(false))
	require.NoError(t, err)
}
