package valid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/shaderir/ir"
)

// TypeFlags are derived capability flags of a type, computed once per
// type and cached for every later pass.
type TypeFlags uint8

const (
	// TypeFlagData marks types that can be stored in a variable.
	TypeFlagData TypeFlags = 1 << iota
	// TypeFlagSized marks types whose size is known at pipeline
	// creation time.
	TypeFlagSized
	// TypeFlagHostShareable marks types that may back a uniform or
	// storage buffer.
	TypeFlagHostShareable
	// TypeFlagInterface marks types that may cross an entry point
	// interface boundary.
	TypeFlagInterface
)

// Contains reports whether all the given bits are set.
func (f TypeFlags) Contains(bits TypeFlags) bool { return f&bits == bits }

// String returns the flag names, pipe-separated.
func (f TypeFlags) String() string {
	var names []string
	if f&TypeFlagData != 0 {
		names = append(names, "DATA")
	}
	if f&TypeFlagSized != 0 {
		names = append(names, "SIZED")
	}
	if f&TypeFlagHostShareable != 0 {
		names = append(names, "HOST_SHAREABLE")
	}
	if f&TypeFlagInterface != 0 {
		names = append(names, "INTERFACE")
	}
	if len(names) == 0 {
		return "(empty)"
	}
	return strings.Join(names, "|")
}

// TypeInfo caches the derived facts about one type: capability flags and
// memory layout. It is computed by the type pass and never recomputed.
type TypeInfo struct {
	Flags  TypeFlags
	Layout ir.TypeLayout
}

// DisalignmentKind discriminates layout rule violations.
type DisalignmentKind uint8

const (
	// DisalignArrayStride: the array stride is smaller than the element
	// size or not a multiple of the element alignment.
	DisalignArrayStride DisalignmentKind = iota
	// DisalignMemberOffset: a struct member offset is not a multiple of
	// the member type's alignment.
	DisalignMemberOffset
	// DisalignStructSpan: the struct span is not a multiple of the
	// struct's alignment.
	DisalignStructSpan
)

// Disalignment reports a composite type whose declared layout violates
// the alignment rules of its memory space.
type Disalignment struct {
	Kind      DisalignmentKind
	Member    int // member index, for DisalignMemberOffset
	Value     uint32
	Alignment uint32
}

// Error implements the error interface.
func (e *Disalignment) Error() string {
	switch e.Kind {
	case DisalignArrayStride:
		return fmt.Sprintf("array stride %d does not fit the element layout (alignment %d)", e.Value, e.Alignment)
	case DisalignMemberOffset:
		return fmt.Sprintf("member %d offset %d is not a multiple of its alignment %d", e.Member, e.Value, e.Alignment)
	case DisalignStructSpan:
		return fmt.Sprintf("struct span %d is not a multiple of its alignment %d", e.Value, e.Alignment)
	default:
		return "unknown disalignment"
	}
}

// InvalidWidthError reports a scalar width that is illegal for its kind.
type InvalidWidthError struct {
	Kind  ir.ScalarKind
	Width uint8
}

// Error implements the error interface.
func (e *InvalidWidthError) Error() string {
	return fmt.Sprintf("width %d is invalid for scalar kind %d", e.Width, e.Kind)
}

// ForwardTypeReferenceError reports a type referencing another type that
// is not defined earlier in the arena.
type ForwardTypeReferenceError struct {
	Handle ir.TypeHandle
}

// Error implements the error interface.
func (e *ForwardTypeReferenceError) Error() string {
	return fmt.Sprintf("the base type handle [%d] can not be resolved", e.Handle)
}

// InvalidArraySizeError reports an array size constant that does not
// resolve to a positive integer count.
type InvalidArraySizeError struct {
	Handle ir.ConstantHandle
}

// Error implements the error interface.
func (e *InvalidArraySizeError) Error() string {
	return fmt.Sprintf("array size constant [%d] is not a positive integer", e.Handle)
}

// InvalidDimensionError reports a vector or matrix dimension outside
// {2, 3, 4}.
type InvalidDimensionError struct {
	Dimension uint8
}

// Error implements the error interface.
func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("dimension must be 2, 3 or 4, got %d", e.Dimension)
}

// InvalidBaseError reports a composite whose base or member type lacks a
// required capability.
type InvalidBaseError struct {
	Handle  ir.TypeHandle
	Missing TypeFlags
}

// Error implements the error interface.
func (e *InvalidBaseError) Error() string {
	return fmt.Sprintf("base type [%d] lacks the required %v capability", e.Handle, e.Missing)
}

// UnsizedMemberError reports a runtime-sized struct member in a
// non-final position.
type UnsizedMemberError struct {
	Member int
}

// Error implements the error interface.
func (e *UnsizedMemberError) Error() string {
	return fmt.Sprintf("member %d is runtime-sized but is not the last member", e.Member)
}

// MemberOutOfBoundsError reports a struct member extending past the
// declared span.
type MemberOutOfBoundsError struct {
	Member       int
	Offset, Size uint32
	Span         uint32
}

// Error implements the error interface.
func (e *MemberOutOfBoundsError) Error() string {
	return fmt.Sprintf("member %d at offset %d with size %d exceeds the struct span %d", e.Member, e.Offset, e.Size, e.Span)
}

// ErrMatrixScalar reports a matrix over a non-float scalar.
var ErrMatrixScalar = errors.New("matrix elements must be a float kind")

// ErrAtomicScalar reports an atomic over a non-integer scalar.
var ErrAtomicScalar = errors.New("atomic elements must be an integer kind")

func checkScalarWidth(scalar ir.ScalarType) error {
	ok := false
	switch scalar.Kind {
	case ir.ScalarBool:
		ok = scalar.Width == 1
	default:
		ok = scalar.Width == 4 || scalar.Width == 8
	}
	if !ok {
		return &InvalidWidthError{Kind: scalar.Kind, Width: scalar.Width}
	}
	return nil
}

func validDimension(size ir.VectorSize) bool {
	return size == ir.Vec2 || size == ir.Vec3 || size == ir.Vec4
}

func scalarFlags(kind ir.ScalarKind) TypeFlags {
	flags := TypeFlagData | TypeFlagSized | TypeFlagInterface
	if kind != ir.ScalarBool {
		// Booleans have no host-shareable representation.
		flags |= TypeFlagHostShareable
	}
	return flags
}

// validateType checks one type definition and computes its TypeInfo.
// Types are processed in arena order, so the info of every referenced
// type is already cached in v.types.
//
//nolint:gocognit,gocyclo,cyclop,funlen // one arm per type variant
func (v *Validator) validateType(handle ir.TypeHandle, module *ir.Module, layouter *ir.Layouter) (TypeInfo, error) {
	info := TypeInfo{Layout: layouter.Lookup(handle)}

	switch t := module.Types[handle].Inner.(type) {
	case ir.ScalarType:
		if err := checkScalarWidth(t); err != nil {
			return info, err
		}
		info.Flags = scalarFlags(t.Kind)

	case ir.VectorType:
		if !validDimension(t.Size) {
			return info, &InvalidDimensionError{Dimension: uint8(t.Size)}
		}
		if err := checkScalarWidth(t.Scalar); err != nil {
			return info, err
		}
		info.Flags = scalarFlags(t.Scalar.Kind)

	case ir.MatrixType:
		if !validDimension(t.Columns) {
			return info, &InvalidDimensionError{Dimension: uint8(t.Columns)}
		}
		if !validDimension(t.Rows) {
			return info, &InvalidDimensionError{Dimension: uint8(t.Rows)}
		}
		if t.Scalar.Kind != ir.ScalarFloat {
			return info, ErrMatrixScalar
		}
		if err := checkScalarWidth(t.Scalar); err != nil {
			return info, err
		}
		info.Flags = TypeFlagData | TypeFlagSized | TypeFlagHostShareable | TypeFlagInterface

	case ir.AtomicType:
		if t.Scalar.Kind != ir.ScalarSint && t.Scalar.Kind != ir.ScalarUint {
			return info, ErrAtomicScalar
		}
		if err := checkScalarWidth(t.Scalar); err != nil {
			return info, err
		}
		info.Flags = TypeFlagData | TypeFlagSized | TypeFlagHostShareable

	case ir.PointerType:
		if t.Base >= handle {
			return info, &ForwardTypeReferenceError{Handle: t.Base}
		}
		if !v.types[t.Base].Flags.Contains(TypeFlagData) {
			return info, &InvalidBaseError{Handle: t.Base, Missing: TypeFlagData}
		}
		info.Flags = TypeFlagData | TypeFlagSized

	case ir.ValuePointerType:
		if t.Size != nil && !validDimension(*t.Size) {
			return info, &InvalidDimensionError{Dimension: uint8(*t.Size)}
		}
		if err := checkScalarWidth(ir.ScalarType{Kind: t.Kind, Width: t.Width}); err != nil {
			return info, err
		}
		info.Flags = TypeFlagData | TypeFlagSized

	case ir.ArrayType:
		if t.Base >= handle {
			return info, &ForwardTypeReferenceError{Handle: t.Base}
		}
		base := v.types[t.Base]
		if !base.Flags.Contains(TypeFlagData | TypeFlagSized) {
			return info, &InvalidBaseError{Handle: t.Base, Missing: (TypeFlagData | TypeFlagSized) &^ base.Flags}
		}
		if t.Stride < base.Layout.Size ||
			(base.Layout.Alignment != 0 && t.Stride%base.Layout.Alignment != 0) {
			return info, &Disalignment{
				Kind:      DisalignArrayStride,
				Value:     t.Stride,
				Alignment: base.Layout.Alignment,
			}
		}
		info.Flags = TypeFlagData | (base.Flags & TypeFlagHostShareable)
		if t.Size.Constant != nil {
			if _, ok := ir.ArraySizeValue(module.Constants, *t.Size.Constant); !ok {
				return info, &InvalidArraySizeError{Handle: *t.Size.Constant}
			}
			info.Flags |= TypeFlagSized
		}

	case ir.StructType:
		info.Flags = TypeFlagData | TypeFlagSized | TypeFlagHostShareable | TypeFlagInterface
		for i, member := range t.Members {
			if member.Type >= handle {
				return info, &ForwardTypeReferenceError{Handle: member.Type}
			}
			mi := v.types[member.Type]
			if !mi.Flags.Contains(TypeFlagData) {
				return info, &InvalidBaseError{Handle: member.Type, Missing: TypeFlagData}
			}
			if !mi.Flags.Contains(TypeFlagSized) {
				if i+1 != len(t.Members) {
					return info, &UnsizedMemberError{Member: i}
				}
				info.Flags &^= TypeFlagSized
			}
			if mi.Layout.Alignment != 0 && member.Offset%mi.Layout.Alignment != 0 {
				return info, &Disalignment{
					Kind:      DisalignMemberOffset,
					Member:    i,
					Value:     member.Offset,
					Alignment: mi.Layout.Alignment,
				}
			}
			if mi.Flags.Contains(TypeFlagSized) && member.Offset+mi.Layout.Size > t.Span {
				return info, &MemberOutOfBoundsError{
					Member: i,
					Offset: member.Offset,
					Size:   mi.Layout.Size,
					Span:   t.Span,
				}
			}
			info.Flags &= mi.Flags | ^(TypeFlagHostShareable | TypeFlagInterface)
		}
		if info.Layout.Alignment != 0 && t.Span%info.Layout.Alignment != 0 {
			return info, &Disalignment{
				Kind:      DisalignStructSpan,
				Value:     t.Span,
				Alignment: info.Layout.Alignment,
			}
		}

	case ir.ImageType, ir.SamplerType:
		// Opaque handle types carry no data capabilities.
		info.Flags = 0

	default:
		return info, fmt.Errorf("%w: unknown type kind %T", ErrCorrupted, t)
	}

	return info, nil
}
