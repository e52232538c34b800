package valid

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/gogpu/shaderir/ir"
)

// ErrGlobalMissingBinding reports a resource variable without a binding
// address.
var ErrGlobalMissingBinding = errors.New("the address space requires a resource binding")

// ErrGlobalUnexpectedBinding reports a binding on a non-resource
// variable.
var ErrGlobalUnexpectedBinding = errors.New("the address space does not take a resource binding")

// InvalidGlobalSpaceError reports a global variable in an address space
// that has no module-scope meaning.
type InvalidGlobalSpaceError struct {
	Space ir.AddressSpace
}

// Error implements the error interface.
func (e *InvalidGlobalSpaceError) Error() string {
	return fmt.Sprintf("address space %d is not valid for a global variable", e.Space)
}

// GlobalTypeError reports a global variable whose type lacks the
// capabilities its address space demands.
type GlobalTypeError struct {
	Missing TypeFlags
}

// Error implements the error interface.
func (e *GlobalTypeError) Error() string {
	return fmt.Sprintf("the type lacks the required %v capability", e.Missing)
}

// ErrGlobalHandleType reports a handle-space variable that is not an
// image or sampler.
var ErrGlobalHandleType = errors.New("handle space variables must be images or samplers")

// ErrGlobalForbiddenInit reports an initializer in an address space that
// does not allow one.
var ErrGlobalForbiddenInit = errors.New("only private variables take an initializer")

// UnresolvedInitError reports an initializer constant that can not be
// resolved or does not match the variable type.
type UnresolvedInitError struct {
	Handle ir.ConstantHandle
}

// Error implements the error interface.
func (e *UnresolvedInitError) Error() string {
	return fmt.Sprintf("the initializer handle [%d] can not be resolved for this variable", e.Handle)
}

// validateGlobalVariable checks one module-scope variable against the
// rules of its address space. The type pass has already populated the
// capability flags.
func (v *Validator) validateGlobalVariable(gv *ir.GlobalVariable, module *ir.Module) error {
	if int(gv.Type) >= len(module.Types) {
		return &ForwardTypeReferenceError{Handle: gv.Type}
	}
	flags := v.types[gv.Type].Flags

	var required TypeFlags
	needsBinding := false
	switch gv.Space {
	case ir.SpaceUniform:
		required = TypeFlagData | TypeFlagSized | TypeFlagHostShareable
		needsBinding = true
	case ir.SpaceStorage:
		required = TypeFlagData | TypeFlagHostShareable
		needsBinding = true
	case ir.SpaceHandle:
		needsBinding = true
		switch module.Types[gv.Type].Inner.(type) {
		case ir.ImageType, ir.SamplerType:
		default:
			return ErrGlobalHandleType
		}
	case ir.SpacePrivate, ir.SpaceWorkGroup:
		required = TypeFlagData | TypeFlagSized
	case ir.SpacePushConstant:
		required = TypeFlagData | TypeFlagSized | TypeFlagHostShareable
	default:
		return &InvalidGlobalSpaceError{Space: gv.Space}
	}

	if needsBinding && gv.Binding == nil {
		return ErrGlobalMissingBinding
	}
	if !needsBinding && gv.Binding != nil {
		return ErrGlobalUnexpectedBinding
	}
	if !flags.Contains(required) {
		return &GlobalTypeError{Missing: required &^ flags}
	}

	if gv.Init != nil {
		if gv.Space != ir.SpacePrivate {
			return ErrGlobalForbiddenInit
		}
		if int(*gv.Init) >= len(module.Constants) {
			return &UnresolvedInitError{Handle: *gv.Init}
		}
		var initType ir.TypeResolution
		switch inner := module.Constants[*gv.Init].Inner.(type) {
		case ir.ScalarConstant:
			initType = ir.TypeResolution{Value: ir.ScalarType{Kind: inner.Value.Kind(), Width: inner.Width}}
		case ir.CompositeConstant:
			h := inner.Type
			initType = ir.TypeResolution{Handle: &h}
		default:
			return &UnresolvedInitError{Handle: *gv.Init}
		}
		h := gv.Type
		if !resolutionsMatch(module.Types, initType, ir.TypeResolution{Handle: &h}) {
			return &UnresolvedInitError{Handle: *gv.Init}
		}
	}

	return nil
}

// ErrEntryPointConflict reports two entry points sharing a stage and
// name.
var ErrEntryPointConflict = errors.New("the stage and name are used by another entry point")

// ErrZeroWorkgroupSize reports a compute entry point with a zero
// workgroup dimension.
var ErrZeroWorkgroupSize = errors.New("the workgroup size must be non-zero in every dimension")

// ErrUnexpectedWorkgroupSize reports a workgroup size on a non-compute
// entry point.
var ErrUnexpectedWorkgroupSize = errors.New("only compute entry points take a workgroup size")

// ErrUnexpectedEarlyDepthTest reports early depth test outside the
// fragment stage.
var ErrUnexpectedEarlyDepthTest = errors.New("early depth test is only valid for fragment entry points")

// ErrMissingVertexPosition reports a vertex entry point that never
// produces the position built-in.
var ErrMissingVertexPosition = errors.New("the vertex stage must emit the position built-in")

// ResourceCollisionError reports two used resources bound to the same
// group and binding.
type ResourceCollisionError struct {
	Group    uint32
	Binding  uint32
	Variable string
}

// Error implements the error interface.
func (e *ResourceCollisionError) Error() string {
	return fmt.Sprintf("resource %q collides at group %d, binding %d", e.Variable, e.Group, e.Binding)
}

// NonUniformControlFlowError reports an operation requiring uniform
// control flow reached under possible divergence.
type NonUniformControlFlowError struct {
	Violation UniformityViolation
}

// Error implements the error interface.
func (e *NonUniformControlFlowError) Error() string {
	return fmt.Sprintf("%s requires uniform control flow, but it is reached under %v",
		e.Violation.Operation, e.Violation.Disruptor)
}

// ArgumentError attributes a failure to one entry point argument.
type ArgumentError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %d is invalid: %v", e.Index, e.Err)
}

// Unwrap returns the nested cause.
func (e *ArgumentError) Unwrap() error { return e.Err }

// ResultError attributes a failure to the entry point result.
type ResultError struct {
	Err error
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return fmt.Sprintf("the result is invalid: %v", e.Err)
}

// Unwrap returns the nested cause.
func (e *ResultError) Unwrap() error { return e.Err }

// ErrVaryingMissingBinding reports an interface value without a binding.
var ErrVaryingMissingBinding = errors.New("the value is missing an interface binding")

// LocationCollisionError reports two interface values sharing a
// location.
type LocationCollisionError struct {
	Location uint32
}

// Error implements the error interface.
func (e *LocationCollisionError) Error() string {
	return fmt.Sprintf("location %d is used more than once", e.Location)
}

// ErrVaryingType reports a type that can not cross the entry point
// interface at a location.
var ErrVaryingType = errors.New("the type is not valid for an interface location")

// ErrFlatInterpolation reports an integer varying without flat
// interpolation.
var ErrFlatInterpolation = errors.New("integer interface values require flat interpolation")

// InvalidBuiltInError reports a built-in value used in the wrong stage
// or direction.
type InvalidBuiltInError struct {
	Builtin ir.BuiltinValue
	Stage   ir.ShaderStage
	Output  bool
}

// Error implements the error interface.
func (e *InvalidBuiltInError) Error() string {
	direction := "input"
	if e.Output {
		direction = "output"
	}
	return fmt.Sprintf("built-in %d is not valid as a %s %s", e.Builtin, e.Stage, direction)
}

// ErrBuiltinType reports a built-in bound to a value of the wrong type.
var ErrBuiltinType = errors.New("the built-in value has the wrong type")

func builtinAllowed(b ir.BuiltinValue, stage ir.ShaderStage, output bool) bool {
	switch b {
	case ir.BuiltinPosition:
		return (stage == ir.StageVertex && output) || (stage == ir.StageFragment && !output)
	case ir.BuiltinVertexIndex, ir.BuiltinInstanceIndex:
		return stage == ir.StageVertex && !output
	case ir.BuiltinFrontFacing, ir.BuiltinSampleIndex:
		return stage == ir.StageFragment && !output
	case ir.BuiltinSampleMask:
		return stage == ir.StageFragment
	case ir.BuiltinFragDepth:
		return stage == ir.StageFragment && output
	case ir.BuiltinLocalInvocationID, ir.BuiltinLocalInvocationIndex,
		ir.BuiltinGlobalInvocationID, ir.BuiltinWorkGroupID, ir.BuiltinNumWorkGroups:
		return stage == ir.StageCompute && !output
	default:
		return false
	}
}

func builtinTypeValid(b ir.BuiltinValue, inner ir.TypeInner) bool {
	u32 := ir.ScalarType{Kind: ir.ScalarUint, Width: 4}
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	switch b {
	case ir.BuiltinPosition:
		return innersEqual(inner, ir.VectorType{Size: ir.Vec4, Scalar: f32})
	case ir.BuiltinFragDepth:
		return innersEqual(inner, f32)
	case ir.BuiltinFrontFacing:
		return innersEqual(inner, ir.ScalarType{Kind: ir.ScalarBool, Width: 1})
	case ir.BuiltinVertexIndex, ir.BuiltinInstanceIndex, ir.BuiltinSampleIndex,
		ir.BuiltinSampleMask, ir.BuiltinLocalInvocationIndex:
		return innersEqual(inner, u32)
	default:
		return innersEqual(inner, ir.VectorType{Size: ir.Vec3, Scalar: u32})
	}
}

// varyingChecker walks one side of an entry point interface. Location
// occupancy is tracked in the validator's shared bitset; inputs and
// outputs live in separate location spaces, so the mask is cleared
// between the two walks.
type varyingChecker struct {
	v           *Validator
	module      *ir.Module
	stage       ir.ShaderStage
	output      bool
	hasPosition bool
}

func (c *varyingChecker) validate(ty ir.TypeHandle, binding *ir.Binding) error {
	if int(ty) >= len(c.module.Types) {
		return &ForwardTypeReferenceError{Handle: ty}
	}
	inner := c.module.Types[ty].Inner

	if binding == nil {
		st, ok := inner.(ir.StructType)
		if !ok {
			return ErrVaryingMissingBinding
		}
		for i := range st.Members {
			member := &st.Members[i]
			if member.Binding == nil {
				return ErrVaryingMissingBinding
			}
			if err := c.validate(member.Type, member.Binding); err != nil {
				return err
			}
		}
		return nil
	}

	switch b := (*binding).(type) {
	case ir.BuiltinBinding:
		if !builtinAllowed(b.Builtin, c.stage, c.output) {
			return &InvalidBuiltInError{Builtin: b.Builtin, Stage: c.stage, Output: c.output}
		}
		if !builtinTypeValid(b.Builtin, inner) {
			return ErrBuiltinType
		}
		if b.Builtin == ir.BuiltinPosition && c.output {
			c.hasPosition = true
		}

	case ir.LocationBinding:
		if c.v.locationMask.Test(uint(b.Location)) {
			return &LocationCollisionError{Location: b.Location}
		}
		c.v.locationMask.Set(uint(b.Location))

		scalar, ok := scalarOf(inner)
		if !ok || scalar.Kind == ir.ScalarBool {
			return ErrVaryingType
		}
		if !c.v.types[ty].Flags.Contains(TypeFlagInterface) {
			return ErrVaryingType
		}
		// Integers can not be interpolated across a primitive.
		crossesStages := (c.stage == ir.StageVertex && c.output) ||
			(c.stage == ir.StageFragment && !c.output)
		if crossesStages && scalar.Kind != ir.ScalarFloat {
			if b.Interpolation == nil || b.Interpolation.Kind != ir.InterpolationFlat {
				return ErrFlatInterpolation
			}
		}

	default:
		return fmt.Errorf("%w: unknown binding kind %T", ErrCorrupted, b)
	}
	return nil
}

// validateEntryPoint checks the stage rules, the interface varyings and
// the resource bindings of one entry point, and reports uniformity
// violations when that pass is enabled.
func (v *Validator) validateEntryPoint(ep *ir.EntryPoint, module *ir.Module, info *ModuleInfo) error {
	if ep.Stage == ir.StageCompute {
		if ep.Workgroup[0] == 0 || ep.Workgroup[1] == 0 || ep.Workgroup[2] == 0 {
			return ErrZeroWorkgroupSize
		}
	} else if ep.Workgroup != [3]uint32{} {
		return ErrUnexpectedWorkgroupSize
	}
	if ep.EarlyDepthTest && ep.Stage != ir.StageFragment {
		return ErrUnexpectedEarlyDepthTest
	}

	if int(ep.Function) >= len(module.Functions) {
		return &ForwardCallError{Function: ep.Function}
	}
	fn := &module.Functions[ep.Function]
	fnInfo := &info.Functions[ep.Function]

	checker := varyingChecker{v: v, module: module, stage: ep.Stage}
	v.locationMask.ClearAll()
	for i := range fn.Arguments {
		if err := checker.validate(fn.Arguments[i].Type, fn.Arguments[i].Binding); err != nil {
			return &ArgumentError{Index: i, Err: err}
		}
	}
	// Output locations are a separate space from input locations.
	v.locationMask.ClearAll()
	checker.output = true
	if fn.Result != nil {
		if err := checker.validate(fn.Result.Type, fn.Result.Binding); err != nil {
			return &ResultError{Err: err}
		}
	}
	if ep.Stage == ir.StageVertex && !checker.hasPosition {
		return ErrMissingVertexPosition
	}

	for _, mask := range v.bindGroupMasks {
		mask.ClearAll()
	}
	for g := range module.GlobalVariables {
		gv := &module.GlobalVariables[g]
		if gv.Binding == nil || fnInfo.GlobalUses[g] == 0 {
			continue
		}
		for int(gv.Binding.Group) >= len(v.bindGroupMasks) {
			v.bindGroupMasks = append(v.bindGroupMasks, bitset.New(32))
		}
		mask := v.bindGroupMasks[gv.Binding.Group]
		if mask.Test(uint(gv.Binding.Binding)) {
			return &ResourceCollisionError{
				Group:    gv.Binding.Group,
				Binding:  gv.Binding.Binding,
				Variable: gv.Name,
			}
		}
		mask.Set(uint(gv.Binding.Binding))
	}

	if v.flags&FlagControlFlowUniformity != 0 && len(fnInfo.Violations) > 0 {
		return &NonUniformControlFlowError{Violation: fnInfo.Violations[0]}
	}

	return nil
}
