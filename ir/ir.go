package ir

// Module represents a complete shader program in IR form.
// It is immutable for the duration of validation.
type Module struct {
	// Types holds all type definitions, in insertion order.
	Types []Type

	// Constants holds module-scope constants, in insertion order.
	Constants []Constant

	// GlobalVariables holds module-scope variables, in insertion order.
	GlobalVariables []GlobalVariable

	// Functions holds all function definitions, in insertion order.
	Functions []Function

	// EntryPoints holds shader entry points. Unlike the arenas above,
	// this list is unordered; entries are identified by (stage, name).
	EntryPoints []EntryPoint
}

// Handle types for referencing IR objects. A handle is an index into the
// owning arena; a handle held by entity A pointing at entity B satisfies
// index(B) < index(A).
type (
	TypeHandle           uint32
	ConstantHandle       uint32
	GlobalVariableHandle uint32
	FunctionHandle       uint32
	ExpressionHandle     uint32
)

// ShaderStage represents a pipeline stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageFragment
	StageCompute
)

// String returns the WGSL attribute spelling of the stage.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// EntryPoint represents an externally invocable, stage-tagged function.
type EntryPoint struct {
	Name           string
	Stage          ShaderStage
	Function       FunctionHandle
	Workgroup      [3]uint32 // compute only
	EarlyDepthTest bool      // fragment only
}

// Type represents a type definition.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner is the tagged variant over type kinds.
type TypeInner interface {
	typeInner()
}

// ScalarKind represents scalar type kinds.
type ScalarKind uint8

const (
	ScalarSint ScalarKind = iota
	ScalarUint
	ScalarFloat
	ScalarBool
)

// ScalarType represents scalar types.
type ScalarType struct {
	Kind  ScalarKind
	Width uint8 // in bytes
}

func (ScalarType) typeInner() {}

// VectorSize represents vector sizes.
type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

// VectorType represents vector types.
type VectorType struct {
	Size   VectorSize
	Scalar ScalarType
}

func (VectorType) typeInner() {}

// MatrixType represents matrix types. The scalar must be a float kind.
type MatrixType struct {
	Columns VectorSize
	Rows    VectorSize
	Scalar  ScalarType
}

func (MatrixType) typeInner() {}

// AtomicType represents atomic scalar types.
type AtomicType struct {
	Scalar ScalarType
}

func (AtomicType) typeInner() {}

// ArraySize represents an array size: either a handle to a constant
// holding the element count, or nil for runtime-sized arrays.
type ArraySize struct {
	Constant *ConstantHandle
}

// ArrayType represents array types.
type ArrayType struct {
	Base   TypeHandle
	Size   ArraySize
	Stride uint32
}

func (ArrayType) typeInner() {}

// StructMember represents a struct member.
type StructMember struct {
	Name    string
	Type    TypeHandle
	Binding *Binding // @builtin(position), @location(0), etc.
	Offset  uint32
}

// StructType represents struct types.
type StructType struct {
	Members []StructMember
	Span    uint32 // declared size in bytes
}

func (StructType) typeInner() {}

// AddressSpace represents memory address spaces.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceWorkGroup
	SpaceUniform
	SpaceStorage
	SpacePushConstant
	SpaceHandle
)

// PointerType represents a pointer to a type in the arena.
type PointerType struct {
	Base  TypeHandle
	Space AddressSpace
}

func (PointerType) typeInner() {}

// ValuePointerType represents a pointer to a scalar or vector that is
// not backed by an arena type. Size nil means the pointee is a scalar.
type ValuePointerType struct {
	Size  *VectorSize
	Kind  ScalarKind
	Width uint8
	Space AddressSpace
}

func (ValuePointerType) typeInner() {}

// ImageDimension represents image dimensions.
type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
)

// ImageClass represents image classification.
type ImageClass uint8

const (
	ImageClassSampled ImageClass = iota
	ImageClassDepth
	ImageClassStorage
)

// ImageType represents image/texture types.
type ImageType struct {
	Dim          ImageDimension
	Arrayed      bool
	Class        ImageClass
	Multisampled bool
}

func (ImageType) typeInner() {}

// SamplerType represents sampler types.
type SamplerType struct {
	Comparison bool
}

func (SamplerType) typeInner() {}

// IsSized reports whether a value of the given type has a size known at
// pipeline creation time. Runtime-sized arrays, images and samplers do
// not: their size is unknown or not meaningful at this level.
func IsSized(inner TypeInner) bool {
	switch t := inner.(type) {
	case ScalarType, VectorType, MatrixType, AtomicType,
		PointerType, ValuePointerType, StructType:
		return true
	case ArrayType:
		return t.Size.Constant != nil
	default:
		return false
	}
}

// Constant represents a module-scope constant.
type Constant struct {
	Name  string
	Inner ConstantInner
}

// ConstantInner is the tagged variant over constant kinds.
type ConstantInner interface {
	constantInner()
}

// ScalarConstant represents a scalar constant with an explicit byte width.
type ScalarConstant struct {
	Width uint8
	Value ScalarValue
}

func (ScalarConstant) constantInner() {}

// CompositeConstant represents a composite constant: a typed, ordered
// list of component constants.
type CompositeConstant struct {
	Type       TypeHandle
	Components []ConstantHandle
}

func (CompositeConstant) constantInner() {}

// ScalarValue represents the stored value of a scalar constant.
type ScalarValue interface {
	// Kind reports the scalar kind the value naturally has.
	Kind() ScalarKind
}

// SintValue is a signed integer constant value.
type SintValue int64

// Kind implements ScalarValue.
func (SintValue) Kind() ScalarKind { return ScalarSint }

// UintValue is an unsigned integer constant value.
type UintValue uint64

// Kind implements ScalarValue.
func (UintValue) Kind() ScalarKind { return ScalarUint }

// FloatValue is a floating point constant value.
type FloatValue float64

// Kind implements ScalarValue.
func (FloatValue) Kind() ScalarKind { return ScalarFloat }

// BoolValue is a boolean constant value.
type BoolValue bool

// Kind implements ScalarValue.
func (BoolValue) Kind() ScalarKind { return ScalarBool }

// ArraySizeValue resolves an array-size constant to its element count.
// It returns false when the handle is out of range, the constant is not
// a positive integer scalar, or the count does not fit in uint32.
func ArraySizeValue(constants []Constant, handle ConstantHandle) (uint32, bool) {
	if int(handle) >= len(constants) {
		return 0, false
	}
	scalar, ok := constants[handle].Inner.(ScalarConstant)
	if !ok {
		return 0, false
	}
	switch v := scalar.Value.(type) {
	case SintValue:
		if v <= 0 || v > 0xffffffff {
			return 0, false
		}
		return uint32(v), true
	case UintValue:
		if v == 0 || v > 0xffffffff {
			return 0, false
		}
		return uint32(v), true
	default:
		return 0, false
	}
}

// ResourceBinding represents a resource binding address.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

// GlobalVariable represents a module-scope variable.
type GlobalVariable struct {
	Name    string
	Space   AddressSpace
	Binding *ResourceBinding
	Type    TypeHandle
	Init    *ConstantHandle
}

// FunctionArgument represents a function argument.
type FunctionArgument struct {
	Name    string
	Type    TypeHandle
	Binding *Binding
}

// FunctionResult represents a function return type.
type FunctionResult struct {
	Type    TypeHandle
	Binding *Binding
}

// LocalVariable represents a function-local variable.
type LocalVariable struct {
	Name string
	Type TypeHandle
	Init *ExpressionHandle
}

// Function represents a function definition. Expressions form their own
// append-only arena local to the function; an expression may only refer
// to expressions with lower handles.
type Function struct {
	Name        string
	Arguments   []FunctionArgument
	Result      *FunctionResult
	LocalVars   []LocalVariable
	Expressions []Expression
	Body        Block
}

// Binding represents an entry point interface binding.
type Binding interface {
	binding()
}

// BuiltinValue represents built-in inter-stage values.
type BuiltinValue uint8

const (
	BuiltinPosition BuiltinValue = iota
	BuiltinVertexIndex
	BuiltinInstanceIndex
	BuiltinFrontFacing
	BuiltinFragDepth
	BuiltinSampleIndex
	BuiltinSampleMask
	BuiltinLocalInvocationID
	BuiltinLocalInvocationIndex
	BuiltinGlobalInvocationID
	BuiltinWorkGroupID
	BuiltinNumWorkGroups
)

// BuiltinBinding binds a value to a built-in.
type BuiltinBinding struct {
	Builtin BuiltinValue
}

func (BuiltinBinding) binding() {}

// LocationBinding binds a value to a numbered varying location.
type LocationBinding struct {
	Location      uint32
	Interpolation *Interpolation
}

func (LocationBinding) binding() {}

// InterpolationKind represents interpolation kinds.
type InterpolationKind uint8

const (
	InterpolationFlat InterpolationKind = iota
	InterpolationLinear
	InterpolationPerspective
)

// InterpolationSampling represents interpolation sampling.
type InterpolationSampling uint8

const (
	SamplingCenter InterpolationSampling = iota
	SamplingCentroid
	SamplingSample
)

// Interpolation represents interpolation settings on a location binding.
type Interpolation struct {
	Kind     InterpolationKind
	Sampling InterpolationSampling
}

// TypeResolution represents the resolved type of an expression. It either
// references a type in the module's type arena (Handle) or carries an
// inline computed type (Value).
type TypeResolution struct {
	Handle *TypeHandle
	Value  TypeInner
}

// Inner returns the TypeInner behind the resolution.
func (r TypeResolution) Inner(types []Type) TypeInner {
	if r.Handle != nil {
		if int(*r.Handle) >= len(types) {
			return nil
		}
		return types[*r.Handle].Inner
	}
	return r.Value
}
