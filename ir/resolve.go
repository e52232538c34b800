package ir

import "fmt"

// Resolver memoizes expression type resolution over one function's
// arena. Expressions reference their operands by handle and may share
// them, so resolving through a shared Resolver keeps the cost of a full
// function linear in the arena size.
type Resolver struct {
	module *Module
	fn     *Function
	cache  []TypeResolution
}

// NewResolver returns a resolver for the given function.
func NewResolver(module *Module, fn *Function) *Resolver {
	return &Resolver{
		module: module,
		fn:     fn,
		cache:  make([]TypeResolution, len(fn.Expressions)),
	}
}

// ResolveExpressionType resolves the value type of an expression in a
// function. Returns a TypeResolution that either references a module
// type or contains an inline type. To resolve many expressions of one
// function, share a Resolver instead.
func ResolveExpressionType(module *Module, fn *Function, handle ExpressionHandle) (TypeResolution, error) {
	return NewResolver(module, fn).Resolve(handle)
}

// Resolve resolves the value type of one expression, reusing cached
// operand resolutions.
func (r *Resolver) Resolve(handle ExpressionHandle) (TypeResolution, error) {
	if int(handle) >= len(r.fn.Expressions) {
		return TypeResolution{}, fmt.Errorf("expression handle %d out of range (max %d)", handle, len(r.fn.Expressions))
	}
	if c := r.cache[handle]; c.Handle != nil || c.Value != nil {
		return c, nil
	}
	res, err := r.resolve(handle)
	if err != nil {
		return TypeResolution{}, err
	}
	r.cache[handle] = res
	return res, nil
}

//nolint:gocyclo,cyclop,funlen // Type resolution requires handling all expression kinds
func (r *Resolver) resolve(handle ExpressionHandle) (TypeResolution, error) {
	expr := r.fn.Expressions[handle]

	switch kind := expr.Kind.(type) {
	case Literal:
		return resolveLiteralType(kind)
	case ExprConstant:
		return resolveConstantType(r.module, kind)
	case ExprZeroValue:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprCompose:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprAccess:
		return r.resolveAccessType(kind)
	case ExprAccessIndex:
		return r.resolveAccessIndexType(kind)
	case ExprSplat:
		return r.resolveSplatType(kind)
	case ExprSwizzle:
		return r.resolveSwizzleType(kind)
	case ExprFunctionArgument:
		if int(kind.Index) >= len(r.fn.Arguments) {
			return TypeResolution{}, fmt.Errorf("function argument index %d out of range", kind.Index)
		}
		h := r.fn.Arguments[kind.Index].Type
		return TypeResolution{Handle: &h}, nil
	case ExprGlobalVariable:
		if int(kind.Variable) >= len(r.module.GlobalVariables) {
			return TypeResolution{}, fmt.Errorf("global variable %d out of range", kind.Variable)
		}
		gv := &r.module.GlobalVariables[kind.Variable]
		if gv.Space == SpaceHandle {
			h := gv.Type
			return TypeResolution{Handle: &h}, nil
		}
		return TypeResolution{Value: PointerType{Base: gv.Type, Space: gv.Space}}, nil
	case ExprLocalVariable:
		if int(kind.Variable) >= len(r.fn.LocalVars) {
			return TypeResolution{}, fmt.Errorf("local variable %d out of range", kind.Variable)
		}
		return TypeResolution{Value: PointerType{
			Base:  r.fn.LocalVars[kind.Variable].Type,
			Space: SpaceFunction,
		}}, nil
	case ExprLoad:
		return r.resolveLoadType(kind)
	case ExprImageSample:
		return r.resolveImageSampleType(kind)
	case ExprImageLoad:
		return r.resolveImageLoadType(kind)
	case ExprImageQuery:
		return resolveImageQueryType(kind)
	case ExprUnary:
		return r.Resolve(kind.Expr)
	case ExprBinary:
		return r.resolveBinaryType(kind)
	case ExprSelect:
		return r.Resolve(kind.Accept)
	case ExprDerivative:
		return r.Resolve(kind.Expr)
	case ExprRelational:
		return r.resolveRelationalType(kind)
	case ExprMath:
		return r.resolveMathType(kind)
	case ExprAs:
		return r.resolveAsType(kind)
	case ExprCallResult:
		if int(kind.Function) >= len(r.module.Functions) {
			return TypeResolution{}, fmt.Errorf("function %d out of range", kind.Function)
		}
		result := r.module.Functions[kind.Function].Result
		if result == nil {
			return TypeResolution{}, fmt.Errorf("function %q has no return type", r.module.Functions[kind.Function].Name)
		}
		h := result.Type
		return TypeResolution{Handle: &h}, nil
	case ExprAtomicResult:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprWorkGroupUniformLoadResult:
		h := kind.Type
		return TypeResolution{Handle: &h}, nil
	case ExprArrayLength:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unsupported expression kind: %T", kind)
	}
}

func resolveLiteralType(lit Literal) (TypeResolution, error) {
	switch v := lit.Value.(type) {
	case LiteralF64:
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 8}}, nil
	case LiteralF32:
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil
	case LiteralU32:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil
	case LiteralI32:
		return TypeResolution{Value: ScalarType{Kind: ScalarSint, Width: 4}}, nil
	case LiteralU64:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 8}}, nil
	case LiteralI64:
		return TypeResolution{Value: ScalarType{Kind: ScalarSint, Width: 8}}, nil
	case LiteralBool:
		return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown literal type: %T", v)
	}
}

func resolveConstantType(module *Module, expr ExprConstant) (TypeResolution, error) {
	if int(expr.Constant) >= len(module.Constants) {
		return TypeResolution{}, fmt.Errorf("constant %d out of range", expr.Constant)
	}
	switch inner := module.Constants[expr.Constant].Inner.(type) {
	case ScalarConstant:
		return TypeResolution{Value: ScalarType{Kind: inner.Value.Kind(), Width: inner.Width}}, nil
	case CompositeConstant:
		h := inner.Type
		return TypeResolution{Handle: &h}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown constant kind: %T", inner)
	}
}

// Deref splits a possibly-pointer type into the pointee and the address
// space the pointee lives in. For plain value types the space is nil and
// the type comes back unchanged.
func Deref(types []Type, inner TypeInner) (TypeInner, *AddressSpace, error) {
	switch t := inner.(type) {
	case PointerType:
		if int(t.Base) >= len(types) {
			return nil, nil, fmt.Errorf("pointer base type %d out of range", t.Base)
		}
		space := t.Space
		return types[t.Base].Inner, &space, nil
	case ValuePointerType:
		space := t.Space
		if t.Size != nil {
			return VectorType{Size: *t.Size, Scalar: ScalarType{Kind: t.Kind, Width: t.Width}}, &space, nil
		}
		return ScalarType{Kind: t.Kind, Width: t.Width}, &space, nil
	default:
		return inner, nil, nil
	}
}

// resolveBase resolves the type of an operand expression and returns the
// TypeInner behind it, dereferencing one pointer level when deref is set.
func (r *Resolver) resolveBase(operand ExpressionHandle, deref bool) (TypeInner, error) {
	res, err := r.Resolve(operand)
	if err != nil {
		return nil, err
	}
	inner := res.Inner(r.module.Types)
	if inner == nil {
		return nil, fmt.Errorf("type handle %d out of range", *res.Handle)
	}
	if !deref {
		return inner, nil
	}
	pointee, _, err := Deref(r.module.Types, inner)
	return pointee, err
}

// Indexing a pointer yields a pointer to the element in the same address
// space; indexing a value yields the element value.

func (r *Resolver) resolveAccessType(expr ExprAccess) (TypeResolution, error) {
	res, err := r.Resolve(expr.Base)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("access base: %w", err)
	}
	inner := res.Inner(r.module.Types)
	if inner == nil {
		return TypeResolution{}, fmt.Errorf("access base: type handle %d out of range", *res.Handle)
	}
	pointee, space, err := Deref(r.module.Types, inner)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("access base: %w", err)
	}

	switch t := pointee.(type) {
	case ArrayType:
		if space != nil {
			return TypeResolution{Value: PointerType{Base: t.Base, Space: *space}}, nil
		}
		h := t.Base
		return TypeResolution{Handle: &h}, nil
	case VectorType:
		if space != nil {
			return TypeResolution{Value: ValuePointerType{
				Kind:  t.Scalar.Kind,
				Width: t.Scalar.Width,
				Space: *space,
			}}, nil
		}
		return TypeResolution{Value: t.Scalar}, nil
	case MatrixType:
		// Matrix access returns a column vector.
		if space != nil {
			size := t.Rows
			return TypeResolution{Value: ValuePointerType{
				Size:  &size,
				Kind:  t.Scalar.Kind,
				Width: t.Scalar.Width,
				Space: *space,
			}}, nil
		}
		return TypeResolution{Value: VectorType{Size: t.Rows, Scalar: t.Scalar}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("cannot index into type %T", t)
	}
}

func (r *Resolver) resolveAccessIndexType(expr ExprAccessIndex) (TypeResolution, error) {
	res, err := r.Resolve(expr.Base)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("access index base: %w", err)
	}
	inner := res.Inner(r.module.Types)
	if inner == nil {
		return TypeResolution{}, fmt.Errorf("access index base: type handle %d out of range", *res.Handle)
	}
	pointee, space, err := Deref(r.module.Types, inner)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("access index base: %w", err)
	}

	switch t := pointee.(type) {
	case ArrayType:
		if space != nil {
			return TypeResolution{Value: PointerType{Base: t.Base, Space: *space}}, nil
		}
		h := t.Base
		return TypeResolution{Handle: &h}, nil
	case VectorType:
		if space != nil {
			return TypeResolution{Value: ValuePointerType{
				Kind:  t.Scalar.Kind,
				Width: t.Scalar.Width,
				Space: *space,
			}}, nil
		}
		return TypeResolution{Value: t.Scalar}, nil
	case MatrixType:
		if space != nil {
			size := t.Rows
			return TypeResolution{Value: ValuePointerType{
				Size:  &size,
				Kind:  t.Scalar.Kind,
				Width: t.Scalar.Width,
				Space: *space,
			}}, nil
		}
		return TypeResolution{Value: VectorType{Size: t.Rows, Scalar: t.Scalar}}, nil
	case StructType:
		if int(expr.Index) >= len(t.Members) {
			return TypeResolution{}, fmt.Errorf("struct member index %d out of range", expr.Index)
		}
		if space != nil {
			return TypeResolution{Value: PointerType{Base: t.Members[expr.Index].Type, Space: *space}}, nil
		}
		h := t.Members[expr.Index].Type
		return TypeResolution{Handle: &h}, nil
	default:
		return TypeResolution{}, fmt.Errorf("cannot index into type %T", t)
	}
}

func (r *Resolver) resolveSplatType(expr ExprSplat) (TypeResolution, error) {
	inner, err := r.resolveBase(expr.Value, false)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("splat value: %w", err)
	}
	scalar, ok := inner.(ScalarType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("splat value must be scalar, got %T", inner)
	}
	return TypeResolution{Value: VectorType{Size: expr.Size, Scalar: scalar}}, nil
}

func (r *Resolver) resolveSwizzleType(expr ExprSwizzle) (TypeResolution, error) {
	inner, err := r.resolveBase(expr.Vector, false)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("swizzle vector: %w", err)
	}
	vec, ok := inner.(VectorType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("swizzle base must be vector, got %T", inner)
	}
	return TypeResolution{Value: VectorType{Size: expr.Size, Scalar: vec.Scalar}}, nil
}

func (r *Resolver) resolveLoadType(expr ExprLoad) (TypeResolution, error) {
	res, err := r.Resolve(expr.Pointer)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("load pointer: %w", err)
	}
	inner := res.Inner(r.module.Types)

	switch t := inner.(type) {
	case PointerType:
		h := t.Base
		return TypeResolution{Handle: &h}, nil
	case ValuePointerType:
		if t.Size != nil {
			return TypeResolution{Value: VectorType{Size: *t.Size, Scalar: ScalarType{Kind: t.Kind, Width: t.Width}}}, nil
		}
		return TypeResolution{Value: ScalarType{Kind: t.Kind, Width: t.Width}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("load requires pointer type, got %T", inner)
	}
}

func (r *Resolver) resolveImageSampleType(expr ExprImageSample) (TypeResolution, error) {
	inner, err := r.resolveBase(expr.Image, false)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("image sample image: %w", err)
	}
	img, ok := inner.(ImageType)
	if !ok {
		return TypeResolution{}, fmt.Errorf("image sample requires image type, got %T", inner)
	}

	if img.Class == ImageClassDepth {
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil
	}
	return TypeResolution{Value: VectorType{
		Size:   Vec4,
		Scalar: ScalarType{Kind: ScalarFloat, Width: 4},
	}}, nil
}

func (r *Resolver) resolveImageLoadType(expr ExprImageLoad) (TypeResolution, error) {
	inner, err := r.resolveBase(expr.Image, false)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("image load image: %w", err)
	}
	if _, ok := inner.(ImageType); !ok {
		return TypeResolution{}, fmt.Errorf("image load requires image type, got %T", inner)
	}
	return TypeResolution{Value: VectorType{
		Size:   Vec4,
		Scalar: ScalarType{Kind: ScalarFloat, Width: 4},
	}}, nil
}

func resolveImageQueryType(expr ExprImageQuery) (TypeResolution, error) {
	switch expr.Query.(type) {
	case ImageQuerySize:
		return TypeResolution{Value: VectorType{
			Size:   Vec3,
			Scalar: ScalarType{Kind: ScalarUint, Width: 4},
		}}, nil
	case ImageQueryNumLevels, ImageQueryNumLayers, ImageQueryNumSamples:
		return TypeResolution{Value: ScalarType{Kind: ScalarUint, Width: 4}}, nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown image query type: %T", expr.Query)
	}
}

func (r *Resolver) resolveBinaryType(expr ExprBinary) (TypeResolution, error) {
	leftType, err := r.Resolve(expr.Left)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("binary left: %w", err)
	}

	switch expr.Op {
	case BinaryEqual, BinaryNotEqual, BinaryLess, BinaryLessEqual, BinaryGreater, BinaryGreaterEqual:
		if vec, ok := leftType.Inner(r.module.Types).(VectorType); ok {
			return TypeResolution{Value: VectorType{
				Size:   vec.Size,
				Scalar: ScalarType{Kind: ScalarBool, Width: 1},
			}}, nil
		}
		return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil

	case BinaryLogicalAnd, BinaryLogicalOr:
		return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil

	case BinaryMultiply:
		rightType, rightErr := r.Resolve(expr.Right)
		if rightErr != nil {
			return TypeResolution{}, fmt.Errorf("binary right: %w", rightErr)
		}
		return resolveMulResultType(r.module, leftType, rightType), nil

	default:
		// Arithmetic and bitwise operators broadcast a scalar operand to
		// the other side's vector size.
		rightType, rightErr := r.Resolve(expr.Right)
		if rightErr == nil {
			_, leftIsScalar := leftType.Inner(r.module.Types).(ScalarType)
			_, rightIsVec := rightType.Inner(r.module.Types).(VectorType)
			if leftIsScalar && rightIsVec {
				return rightType, nil
			}
		}
		return leftType, nil
	}
}

// resolveMulResultType determines the result type of a multiplication:
// scalar*vec→vec, scalar*mat→mat, mat*vec→vec(rows), vec*mat→vec(cols).
func resolveMulResultType(module *Module, left, right TypeResolution) TypeResolution {
	leftInner := left.Inner(module.Types)
	rightInner := right.Inner(module.Types)

	_, leftIsScalar := leftInner.(ScalarType)
	_, rightIsScalar := rightInner.(ScalarType)
	_, leftIsVec := leftInner.(VectorType)
	_, rightIsVec := rightInner.(VectorType)
	leftMat, leftIsMat := leftInner.(MatrixType)
	rightMat, rightIsMat := rightInner.(MatrixType)

	switch {
	case leftIsScalar && (rightIsVec || rightIsMat):
		return right
	case (leftIsVec || leftIsMat) && rightIsScalar:
		return left
	case leftIsMat && rightIsVec:
		return TypeResolution{Value: VectorType{Size: leftMat.Rows, Scalar: leftMat.Scalar}}
	case leftIsVec && rightIsMat:
		return TypeResolution{Value: VectorType{Size: rightMat.Columns, Scalar: rightMat.Scalar}}
	default:
		return left
	}
}

func (r *Resolver) resolveRelationalType(expr ExprRelational) (TypeResolution, error) {
	inner, err := r.resolveBase(expr.Argument, false)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("relational argument: %w", err)
	}

	if vec, ok := inner.(VectorType); ok {
		switch expr.Fun {
		case RelationalIsNan, RelationalIsInf:
			return TypeResolution{Value: VectorType{
				Size:   vec.Size,
				Scalar: ScalarType{Kind: ScalarBool, Width: 1},
			}}, nil
		}
	}
	// all/any collapse to a single bool, as does any scalar argument.
	return TypeResolution{Value: ScalarType{Kind: ScalarBool, Width: 1}}, nil
}

func (r *Resolver) resolveMathType(expr ExprMath) (TypeResolution, error) {
	argType, err := r.Resolve(expr.Arg)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("math argument: %w", err)
	}

	switch expr.Fun {
	case MathDot:
		if vec, ok := argType.Inner(r.module.Types).(VectorType); ok {
			return TypeResolution{Value: vec.Scalar}, nil
		}
		return argType, nil

	case MathLength, MathDistance, MathDeterminant:
		return TypeResolution{Value: ScalarType{Kind: ScalarFloat, Width: 4}}, nil

	case MathTranspose:
		if mat, ok := argType.Inner(r.module.Types).(MatrixType); ok {
			return TypeResolution{Value: MatrixType{Columns: mat.Rows, Rows: mat.Columns, Scalar: mat.Scalar}}, nil
		}
		return argType, nil

	default:
		// Most math functions preserve the argument type.
		return argType, nil
	}
}

func (r *Resolver) resolveAsType(expr ExprAs) (TypeResolution, error) {
	exprType, err := r.Resolve(expr.Expr)
	if err != nil {
		return TypeResolution{}, fmt.Errorf("as expr: %w", err)
	}

	if expr.Convert != nil {
		targetScalar := ScalarType{Kind: expr.Kind, Width: *expr.Convert}
		if vec, ok := exprType.Inner(r.module.Types).(VectorType); ok {
			return TypeResolution{Value: VectorType{Size: vec.Size, Scalar: targetScalar}}, nil
		}
		return TypeResolution{Value: targetScalar}, nil
	}

	// Bitcast preserves the type structure.
	return exprType, nil
}
