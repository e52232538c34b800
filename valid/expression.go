package valid

import (
	"errors"
	"fmt"

	"github.com/gogpu/shaderir/ir"
)

// ExpressionError attributes a failure to one expression of a function.
type ExpressionError struct {
	Handle ir.ExpressionHandle
	Err    error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression [%d] is invalid: %v", e.Handle, e.Err)
}

// Unwrap returns the nested cause.
func (e *ExpressionError) Unwrap() error { return e.Err }

// ErrIndexType reports an Access index that is not an integer scalar.
var ErrIndexType = errors.New("the index must be an integer scalar")

// IndexOutOfBoundsError reports a constant index past the composite's
// bounds.
type IndexOutOfBoundsError struct {
	Index uint32
	Limit uint32
}

// Error implements the error interface.
func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d is out of bounds (limit %d)", e.Index, e.Limit)
}

// ErrSelectCondition reports a Select condition that is not a boolean
// scalar.
var ErrSelectCondition = errors.New("the select condition must be a boolean scalar")

// ErrSelectMismatch reports Select branches of different types.
var ErrSelectMismatch = errors.New("the select branches have different types")

// InvalidUnaryError reports a unary operator applied to an operand of
// the wrong class.
type InvalidUnaryError struct {
	Op ir.UnaryOperator
}

// Error implements the error interface.
func (e *InvalidUnaryError) Error() string {
	return fmt.Sprintf("unary operator %d can not be applied to this operand", e.Op)
}

// InvalidBinaryError reports a binary operator applied to operands of
// the wrong class.
type InvalidBinaryError struct {
	Op ir.BinaryOperator
}

// Error implements the error interface.
func (e *InvalidBinaryError) Error() string {
	return fmt.Sprintf("binary operator %d can not be applied to these operands", e.Op)
}

// InvalidCastWidthError reports a conversion to an illegal byte width.
type InvalidCastWidthError struct {
	Kind  ir.ScalarKind
	Width uint8
}

// Error implements the error interface.
func (e *InvalidCastWidthError) Error() string {
	return fmt.Sprintf("can not convert to scalar kind %d with width %d", e.Kind, e.Width)
}

// ErrArrayLengthTarget reports an ArrayLength operand that is not a
// pointer to a runtime-sized array.
var ErrArrayLengthTarget = errors.New("array length requires a pointer to a runtime-sized array")

// ErrSamplerType reports an ImageSample sampler operand that is not a
// sampler.
var ErrSamplerType = errors.New("the sampler operand is not a sampler")

// ErrDepthComparison reports a depth reference sampled without a
// comparison sampler.
var ErrDepthComparison = errors.New("a depth reference requires a comparison sampler")

// ErrImageClass reports an image operation on an image of the wrong
// class.
var ErrImageClass = errors.New("the image class does not support this operation")

// ErrDerivativeType reports a derivative of a non-float operand.
var ErrDerivativeType = errors.New("derivatives require a float operand")

// ComposeError reports a Compose with the wrong component list.
type ComposeError struct {
	Component int
	Err       error
}

// Error implements the error interface.
func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose component %d: %v", e.Component, e.Err)
}

// Unwrap returns the nested cause.
func (e *ComposeError) Unwrap() error { return e.Err }

// ErrComposeCount reports a Compose component count that does not match
// the composite type.
var ErrComposeCount = errors.New("the component count does not match the type")

// ErrComposeType reports a Compose component of the wrong type.
var ErrComposeType = errors.New("the component type does not match the type")

// scalarOf extracts the scalar behind a scalar or vector type.
func scalarOf(inner ir.TypeInner) (ir.ScalarType, bool) {
	switch t := inner.(type) {
	case ir.ScalarType:
		return t, true
	case ir.VectorType:
		return t.Scalar, true
	default:
		return ir.ScalarType{}, false
	}
}

func isIntegerScalar(inner ir.TypeInner) bool {
	s, ok := inner.(ir.ScalarType)
	return ok && (s.Kind == ir.ScalarSint || s.Kind == ir.ScalarUint)
}

func isBoolScalar(inner ir.TypeInner) bool {
	s, ok := inner.(ir.ScalarType)
	return ok && s.Kind == ir.ScalarBool
}

// innersEqual compares two resolved type inners structurally. Arrays and
// structs only compare equal through the same arena handle, which
// resolutionsMatch handles first.
func innersEqual(a, b ir.TypeInner) bool {
	switch x := a.(type) {
	case ir.ScalarType:
		y, ok := b.(ir.ScalarType)
		return ok && x == y
	case ir.VectorType:
		y, ok := b.(ir.VectorType)
		return ok && x == y
	case ir.MatrixType:
		y, ok := b.(ir.MatrixType)
		return ok && x == y
	case ir.AtomicType:
		y, ok := b.(ir.AtomicType)
		return ok && x == y
	case ir.PointerType:
		y, ok := b.(ir.PointerType)
		return ok && x == y
	case ir.ValuePointerType:
		y, ok := b.(ir.ValuePointerType)
		if !ok || x.Kind != y.Kind || x.Width != y.Width || x.Space != y.Space {
			return false
		}
		if (x.Size == nil) != (y.Size == nil) {
			return false
		}
		return x.Size == nil || *x.Size == *y.Size
	case ir.ImageType:
		y, ok := b.(ir.ImageType)
		return ok && x == y
	case ir.SamplerType:
		y, ok := b.(ir.SamplerType)
		return ok && x == y
	default:
		return false
	}
}

// resolutionsMatch reports whether two type resolutions describe the
// same type.
func resolutionsMatch(types []ir.Type, a, b ir.TypeResolution) bool {
	if a.Handle != nil && b.Handle != nil && *a.Handle == *b.Handle {
		return true
	}
	return innersEqual(a.Inner(types), b.Inner(types))
}

// exprInner resolves the value type of an operand, without dereferencing
// pointers.
func (v *Validator) exprInner(module *ir.Module, info *FunctionInfo, handle ir.ExpressionHandle) ir.TypeInner {
	return info.Expressions[handle].Type.Inner(module.Types)
}

// validateExpression checks the operand constraints of one expression.
// The operand handles and types were already established by analysis;
// this pass checks the rules the type resolver is agnostic about.
//
//nolint:gocognit,gocyclo,cyclop,funlen // one arm per expression kind
func (v *Validator) validateExpression(
	handle ir.ExpressionHandle,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
) error {
	switch e := fn.Expressions[handle].Kind.(type) {
	case ir.ExprAccess:
		if !isIntegerScalar(v.exprInner(module, info, e.Index)) {
			return ErrIndexType
		}

	case ir.ExprAccessIndex:
		base, _, err := ir.Deref(module.Types, v.exprInner(module, info, e.Base))
		if err != nil {
			return err
		}
		switch t := base.(type) {
		case ir.VectorType:
			if e.Index >= uint32(t.Size) {
				return &IndexOutOfBoundsError{Index: e.Index, Limit: uint32(t.Size)}
			}
		case ir.MatrixType:
			if e.Index >= uint32(t.Columns) {
				return &IndexOutOfBoundsError{Index: e.Index, Limit: uint32(t.Columns)}
			}
		}

	case ir.ExprSwizzle:
		src, ok := v.exprInner(module, info, e.Vector).(ir.VectorType)
		if !ok {
			return ErrIndexType
		}
		for i := 0; i < int(e.Size); i++ {
			if uint8(e.Pattern[i]) >= uint8(src.Size) {
				return &IndexOutOfBoundsError{Index: uint32(e.Pattern[i]), Limit: uint32(src.Size)}
			}
		}

	case ir.ExprCompose:
		return v.validateCompose(e, module, info)

	case ir.ExprSelect:
		if !isBoolScalar(v.exprInner(module, info, e.Condition)) {
			return ErrSelectCondition
		}
		accept := info.Expressions[e.Accept].Type
		reject := info.Expressions[e.Reject].Type
		if !resolutionsMatch(module.Types, accept, reject) {
			return ErrSelectMismatch
		}

	case ir.ExprUnary:
		s, ok := scalarOf(v.exprInner(module, info, e.Expr))
		if !ok {
			return &InvalidUnaryError{Op: e.Op}
		}
		valid := false
		switch e.Op {
		case ir.UnaryNegate:
			valid = s.Kind == ir.ScalarFloat || s.Kind == ir.ScalarSint
		case ir.UnaryLogicalNot:
			valid = s.Kind == ir.ScalarBool
		case ir.UnaryBitwiseNot:
			valid = s.Kind == ir.ScalarSint || s.Kind == ir.ScalarUint
		}
		if !valid {
			return &InvalidUnaryError{Op: e.Op}
		}

	case ir.ExprBinary:
		if err := v.validateBinary(e, module, info); err != nil {
			return err
		}

	case ir.ExprDerivative:
		s, ok := scalarOf(v.exprInner(module, info, e.Expr))
		if !ok || s.Kind != ir.ScalarFloat {
			return ErrDerivativeType
		}

	case ir.ExprAs:
		if e.Convert != nil {
			width := *e.Convert
			ok := false
			if e.Kind == ir.ScalarBool {
				ok = width == 1
			} else {
				ok = width == 4 || width == 8
			}
			if !ok {
				return &InvalidCastWidthError{Kind: e.Kind, Width: width}
			}
		}

	case ir.ExprImageSample:
		sampler, ok := v.exprInner(module, info, e.Sampler).(ir.SamplerType)
		if !ok {
			return ErrSamplerType
		}
		img, ok := v.exprInner(module, info, e.Image).(ir.ImageType)
		if !ok || img.Class == ir.ImageClassStorage {
			return ErrImageClass
		}
		if e.DepthRef != nil && !sampler.Comparison {
			return ErrDepthComparison
		}

	case ir.ExprImageLoad:
		img, ok := v.exprInner(module, info, e.Image).(ir.ImageType)
		if !ok {
			return ErrImageClass
		}
		if e.Sample != nil && !img.Multisampled {
			return ErrImageClass
		}

	case ir.ExprArrayLength:
		ptr, ok := v.exprInner(module, info, e.Array).(ir.PointerType)
		if !ok {
			return ErrArrayLengthTarget
		}
		arr, ok := module.Types[ptr.Base].Inner.(ir.ArrayType)
		if !ok || arr.Size.Constant != nil {
			return ErrArrayLengthTarget
		}
	}

	return nil
}

func (v *Validator) validateCompose(e ir.ExprCompose, module *ir.Module, info *FunctionInfo) error {
	if int(e.Type) >= len(module.Types) {
		return &ForwardTypeReferenceError{Handle: e.Type}
	}
	switch t := module.Types[e.Type].Inner.(type) {
	case ir.StructType:
		if len(e.Components) != len(t.Members) {
			return ErrComposeCount
		}
		for i, comp := range e.Components {
			h := t.Members[i].Type
			want := ir.TypeResolution{Handle: &h}
			if !resolutionsMatch(module.Types, info.Expressions[comp].Type, want) {
				return &ComposeError{Component: i, Err: ErrComposeType}
			}
		}

	case ir.ArrayType:
		if t.Size.Constant == nil {
			return ErrComposeCount
		}
		count, ok := ir.ArraySizeValue(module.Constants, *t.Size.Constant)
		if !ok || int(count) != len(e.Components) {
			return ErrComposeCount
		}
		for i, comp := range e.Components {
			h := t.Base
			want := ir.TypeResolution{Handle: &h}
			if !resolutionsMatch(module.Types, info.Expressions[comp].Type, want) {
				return &ComposeError{Component: i, Err: ErrComposeType}
			}
		}

	case ir.VectorType:
		// Components may be scalars or shorter vectors of the same
		// scalar; their component counts must add up.
		total := uint32(0)
		for i, comp := range e.Components {
			switch c := v.exprInner(module, info, comp).(type) {
			case ir.ScalarType:
				if c != t.Scalar {
					return &ComposeError{Component: i, Err: ErrComposeType}
				}
				total++
			case ir.VectorType:
				if c.Scalar != t.Scalar {
					return &ComposeError{Component: i, Err: ErrComposeType}
				}
				total += uint32(c.Size)
			default:
				return &ComposeError{Component: i, Err: ErrComposeType}
			}
		}
		if total != uint32(t.Size) {
			return ErrComposeCount
		}

	case ir.MatrixType:
		if len(e.Components) != int(t.Columns) {
			return ErrComposeCount
		}
		column := ir.VectorType{Size: t.Rows, Scalar: t.Scalar}
		for i, comp := range e.Components {
			if !innersEqual(v.exprInner(module, info, comp), column) {
				return &ComposeError{Component: i, Err: ErrComposeType}
			}
		}

	default:
		return ErrComposeType
	}
	return nil
}

func (v *Validator) validateBinary(e ir.ExprBinary, module *ir.Module, info *FunctionInfo) error {
	left, leftOk := scalarOf(v.exprInner(module, info, e.Left))
	right, rightOk := scalarOf(v.exprInner(module, info, e.Right))

	switch e.Op {
	case ir.BinaryLogicalAnd, ir.BinaryLogicalOr:
		if !isBoolScalar(v.exprInner(module, info, e.Left)) ||
			!isBoolScalar(v.exprInner(module, info, e.Right)) {
			return &InvalidBinaryError{Op: e.Op}
		}

	case ir.BinaryAnd, ir.BinaryExclusiveOr, ir.BinaryInclusiveOr:
		// Bitwise ops also serve as component-wise logic on booleans.
		if !leftOk || left.Kind == ir.ScalarFloat || left.Kind != right.Kind {
			return &InvalidBinaryError{Op: e.Op}
		}

	case ir.BinaryShiftLeft, ir.BinaryShiftRight:
		if !leftOk || (left.Kind != ir.ScalarSint && left.Kind != ir.ScalarUint) {
			return &InvalidBinaryError{Op: e.Op}
		}
		if !rightOk || right.Kind != ir.ScalarUint {
			return &InvalidBinaryError{Op: e.Op}
		}

	case ir.BinaryEqual, ir.BinaryNotEqual, ir.BinaryLess, ir.BinaryLessEqual,
		ir.BinaryGreater, ir.BinaryGreaterEqual:
		if !leftOk || !rightOk || left != right {
			return &InvalidBinaryError{Op: e.Op}
		}

	case ir.BinaryModulo:
		if !leftOk || !rightOk || left.Kind == ir.ScalarBool || left.Kind != right.Kind {
			return &InvalidBinaryError{Op: e.Op}
		}

	default:
		// Add, Subtract, Divide, Multiply. Multiply additionally accepts
		// the matrix forms, which the scalar extraction can not see.
		if e.Op == ir.BinaryMultiply {
			leftInner := v.exprInner(module, info, e.Left)
			rightInner := v.exprInner(module, info, e.Right)
			_, leftMat := leftInner.(ir.MatrixType)
			_, rightMat := rightInner.(ir.MatrixType)
			if leftMat || rightMat {
				return nil
			}
		}
		if !leftOk || !rightOk || left.Kind == ir.ScalarBool || left.Kind != right.Kind {
			return &InvalidBinaryError{Op: e.Op}
		}
	}
	return nil
}
