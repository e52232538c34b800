package valid

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/shaderir/ir"
)

// ErrConstantType reports a constant whose declared type does not match
// its value: a scalar width disagreeing with the value kind, a value
// that does not fit the declared width, or a composite declared with a
// runtime-sized array type.
var ErrConstantType = errors.New("the type doesn't match the constant")

// UnresolvedComponentError reports a composite component handle that is
// not defined before the constant referencing it.
type UnresolvedComponentError struct {
	Handle ir.ConstantHandle
}

// Error implements the error interface.
func (e *UnresolvedComponentError) Error() string {
	return fmt.Sprintf("the component handle [%d] can not be resolved", e.Handle)
}

// UnresolvedSizeError reports an array size handle that is not defined
// before the constant whose type uses it.
type UnresolvedSizeError struct {
	Handle ir.ConstantHandle
}

// Error implements the error interface.
func (e *UnresolvedSizeError) Error() string {
	return fmt.Sprintf("the array size handle [%d] can not be resolved", e.Handle)
}

// scalarWidthValid reports whether the declared width is legal for the
// value's kind, and for 4-byte widths, whether the stored 64-bit value
// fits.
func scalarWidthValid(value ir.ScalarValue, width uint8) bool {
	switch v := value.(type) {
	case ir.BoolValue:
		return width == 1
	case ir.SintValue:
		return width == 8 || (width == 4 && v >= math.MinInt32 && v <= math.MaxInt32)
	case ir.UintValue:
		return width == 8 || (width == 4 && v <= math.MaxUint32)
	case ir.FloatValue:
		return width == 8 || (width == 4 && math.Abs(float64(v)) <= math.MaxFloat32)
	default:
		return false
	}
}

// validateConstant checks one constant. Constants are validated in
// arena order; earlier entries are already known valid, so only the
// no-forward-reference discipline and local shape need checking.
func validateConstant(handle ir.ConstantHandle, constants []ir.Constant, types []ir.Type) error {
	switch inner := constants[handle].Inner.(type) {
	case ir.ScalarConstant:
		if !scalarWidthValid(inner.Value, inner.Width) {
			return ErrConstantType
		}

	case ir.CompositeConstant:
		if int(inner.Type) >= len(types) {
			return ErrConstantType
		}
		if array, ok := types[inner.Type].Inner.(ir.ArrayType); ok {
			if array.Size.Constant == nil {
				// A constant can not have an unbounded size.
				return ErrConstantType
			}
			if *array.Size.Constant >= handle {
				return &UnresolvedSizeError{Handle: *array.Size.Constant}
			}
		}
		for _, comp := range inner.Components {
			if comp >= handle {
				return &UnresolvedComponentError{Handle: comp}
			}
		}

	default:
		return fmt.Errorf("%w: unknown constant kind %T", ErrCorrupted, inner)
	}
	return nil
}
