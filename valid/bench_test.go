package valid

import (
	"testing"

	"github.com/gogpu/shaderir/ir"
)

// benchModule builds a compute shader that loads, scales and stores a
// storage buffer element, exercising every pass.
func benchModule() *ir.Module {
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	return &ir.Module{
		Types: []ir.Type{
			{Name: "f32", Inner: f32},
			{Name: "u32", Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
			{Name: "data", Inner: ir.ArrayType{Base: 0, Size: ir.ArraySize{}, Stride: 4}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{
				Name:    "buf",
				Space:   ir.SpaceStorage,
				Binding: &ir.ResourceBinding{Group: 0, Binding: 0},
				Type:    2,
			},
		},
		Functions: []ir.Function{
			{
				Name: "cs_main",
				Arguments: []ir.FunctionArgument{{
					Name:    "idx",
					Type:    1,
					Binding: bindingPtr(ir.BuiltinBinding{Builtin: ir.BuiltinLocalInvocationIndex}),
				}},
				Expressions: []ir.Expression{
					{Kind: ir.Literal{Value: ir.LiteralF32(2)}},
					{Kind: ir.ExprGlobalVariable{Variable: 0}},
					{Kind: ir.ExprFunctionArgument{Index: 0}},
					{Kind: ir.ExprAccess{Base: 1, Index: 2}},
					{Kind: ir.ExprLoad{Pointer: 3}},
					{Kind: ir.ExprBinary{Op: ir.BinaryMultiply, Left: 4, Right: 0}},
				},
				Body: ir.Block{
					{Kind: ir.StmtEmit{Range: ir.Range{Start: 3, End: 6}}},
					{Kind: ir.StmtStore{Pointer: 3, Value: 5}},
				},
			},
		},
		EntryPoints: []ir.EntryPoint{
			{Name: "main", Stage: ir.StageCompute, Function: 0, Workgroup: [3]uint32{64, 1, 1}},
		},
	}
}

func BenchmarkValidate(b *testing.B) {
	module := benchModule()
	v := New(FlagAll)
	if _, err := v.Validate(module); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.Validate(module); err != nil {
			b.Fatal(err)
		}
	}
}
