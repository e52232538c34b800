package valid

import (
	"errors"
	"fmt"

	"github.com/gogpu/shaderir/ir"
)

// LocalVariableError attributes a failure to one local variable.
type LocalVariableError struct {
	Index int
	Err   error
}

// Error implements the error interface.
func (e *LocalVariableError) Error() string {
	return fmt.Sprintf("local variable %d is invalid: %v", e.Index, e.Err)
}

// Unwrap returns the nested cause.
func (e *LocalVariableError) Unwrap() error { return e.Err }

// ErrLocalType reports a local variable of a type that can not live in a
// variable.
var ErrLocalType = errors.New("the local variable type must be sized data")

// ExpressionVisibilityError reports a statement operand that is not in
// scope at its point of use.
type ExpressionVisibilityError struct {
	Handle ir.ExpressionHandle
}

// Error implements the error interface.
func (e *ExpressionVisibilityError) Error() string {
	return fmt.Sprintf("expression [%d] is not in scope", e.Handle)
}

// ErrEmitAlreadyInScope reports an emit of an expression that is already
// visible.
var ErrEmitAlreadyInScope = errors.New("the emitted expression is already in scope")

// ErrEmitResult reports an emit of an expression that only its statement
// may introduce.
var ErrEmitResult = errors.New("the expression is introduced by its statement, not by emit")

// ForbiddenInContinuingError reports a statement kind that may not
// appear inside a continuing block.
type ForbiddenInContinuingError struct {
	Op string
}

// Error implements the error interface.
func (e *ForbiddenInContinuingError) Error() string {
	return fmt.Sprintf("%s is forbidden inside the continuing block", e.Op)
}

// ErrBreakOutsideLoop reports a break with no enclosing loop or switch.
var ErrBreakOutsideLoop = errors.New("break used outside of a loop or switch")

// ErrContinueOutsideLoop reports a continue with no enclosing loop.
var ErrContinueOutsideLoop = errors.New("continue used outside of a loop")

// ErrIfCondition reports a branch condition that is not a boolean
// scalar.
var ErrIfCondition = errors.New("the condition must be a boolean scalar")

// ErrSwitchSelector reports a switch selector that is not a 32-bit
// integer scalar.
var ErrSwitchSelector = errors.New("the switch selector must be a 32-bit integer scalar")

// ErrSwitchCaseKind reports a case value whose signedness disagrees with
// the selector.
var ErrSwitchCaseKind = errors.New("the case value kind does not match the selector")

// DuplicateSwitchCaseError reports two cases triggered by the same
// value.
type DuplicateSwitchCaseError struct {
	Value int64
}

// Error implements the error interface.
func (e *DuplicateSwitchCaseError) Error() string {
	return fmt.Sprintf("case value %d appears more than once", e.Value)
}

// ErrSwitchDefault reports a switch without exactly one default case.
var ErrSwitchDefault = errors.New("a switch requires exactly one default case")

// ErrSwitchTrailingFallThrough reports a fall-through on the last case.
var ErrSwitchTrailingFallThrough = errors.New("the last switch case can not fall through")

// ErrReturnValue reports a return value that disagrees with the function
// result.
var ErrReturnValue = errors.New("the return value does not match the function result")

// ErrStoreTarget reports a store through a non-pointer.
var ErrStoreTarget = errors.New("store requires a pointer target")

// ErrStoreType reports a stored value that does not match the pointee.
var ErrStoreType = errors.New("the stored value does not match the pointer target")

// ErrAtomicPointer reports an atomic operation on a pointer that does
// not lead to an atomic type.
var ErrAtomicPointer = errors.New("atomics require a pointer to an atomic type")

// ErrAtomicResult reports an atomic Result that is not an atomic result
// expression of the right type.
var ErrAtomicResult = errors.New("the atomic result expression does not match the operation")

// ErrWorkGroupLoadPointer reports a workgroup uniform load through a
// pointer outside the workgroup address space.
var ErrWorkGroupLoadPointer = errors.New("workgroupUniformLoad requires a pointer in the workgroup address space")

// ErrWorkGroupLoadResult reports a Result that is not a workgroup
// uniform load result expression.
var ErrWorkGroupLoadResult = errors.New("the result expression does not belong to this workgroupUniformLoad")

// CallArgumentCountError reports a call with the wrong number of
// arguments.
type CallArgumentCountError struct {
	Want, Got int
}

// Error implements the error interface.
func (e *CallArgumentCountError) Error() string {
	return fmt.Sprintf("the call passes %d arguments, the callee takes %d", e.Got, e.Want)
}

// CallArgumentTypeError reports a call argument of the wrong type.
type CallArgumentTypeError struct {
	Index int
}

// Error implements the error interface.
func (e *CallArgumentTypeError) Error() string {
	return fmt.Sprintf("call argument %d has the wrong type", e.Index)
}

// ErrCallResult reports a call Result that does not correspond to the
// callee.
var ErrCallResult = errors.New("the call result expression does not correspond to the callee")

// blockContext carries the structural position of a block within the
// function body.
type blockContext struct {
	loopDepth    int
	switchDepth  int
	inContinuing bool
}

// validateFunction checks one function: its locals, arguments, result,
// expressions and body. Which classes of checks run is controlled by the
// validator flags.
func (v *Validator) validateFunction(
	handle ir.FunctionHandle,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
) error {
	for i := range fn.Arguments {
		if int(fn.Arguments[i].Type) >= len(module.Types) {
			return &ForwardTypeReferenceError{Handle: fn.Arguments[i].Type}
		}
	}
	if fn.Result != nil && int(fn.Result.Type) >= len(module.Types) {
		return &ForwardTypeReferenceError{Handle: fn.Result.Type}
	}

	for i := range fn.LocalVars {
		lv := &fn.LocalVars[i]
		if int(lv.Type) >= len(module.Types) {
			return &LocalVariableError{Index: i, Err: &ForwardTypeReferenceError{Handle: lv.Type}}
		}
		if !v.types[lv.Type].Flags.Contains(TypeFlagData | TypeFlagSized) {
			return &LocalVariableError{Index: i, Err: ErrLocalType}
		}
		if lv.Init != nil {
			if int(*lv.Init) >= len(fn.Expressions) {
				return &LocalVariableError{Index: i, Err: &ExpressionVisibilityError{Handle: *lv.Init}}
			}
			h := lv.Type
			want := ir.TypeResolution{Handle: &h}
			if !resolutionsMatch(module.Types, info.Expressions[*lv.Init].Type, want) {
				return &LocalVariableError{Index: i, Err: ErrLocalType}
			}
		}
	}

	if v.flags&FlagExpressions != 0 {
		for i := range fn.Expressions {
			if err := v.validateExpression(ir.ExpressionHandle(i), fn, module, info); err != nil {
				return &ExpressionError{Handle: ir.ExpressionHandle(i), Err: err}
			}
		}
	}

	if v.flags&FlagBlocks != 0 {
		v.validExprList = v.validExprList[:0]
		v.validExprSet.ClearAll()
		// Arguments, variables and compile-time values are in scope from
		// the start; everything else waits for its emit or statement.
		for i := range fn.Expressions {
			switch fn.Expressions[i].Kind.(type) {
			case ir.Literal, ir.ExprConstant, ir.ExprZeroValue,
				ir.ExprFunctionArgument, ir.ExprGlobalVariable, ir.ExprLocalVariable:
				v.validExprSet.Set(uint(i))
			}
		}
		if err := v.validateBlock(fn.Body, handle, fn, module, info, blockContext{}); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) visible(fn *ir.Function, handle ir.ExpressionHandle) error {
	if int(handle) >= len(fn.Expressions) || !v.validExprSet.Test(uint(handle)) {
		return &ExpressionVisibilityError{Handle: handle}
	}
	return nil
}

func (v *Validator) emitExpression(handle ir.ExpressionHandle) {
	v.validExprSet.Set(uint(handle))
	v.validExprList = append(v.validExprList, handle)
}

// validateNestedBlock validates a child block and rolls its emitted
// expressions back out of scope afterwards.
func (v *Validator) validateNestedBlock(
	block ir.Block,
	handle ir.FunctionHandle,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
	ctx blockContext,
) error {
	mark := len(v.validExprList)
	err := v.validateBlock(block, handle, fn, module, info, ctx)
	for _, h := range v.validExprList[mark:] {
		v.validExprSet.Clear(uint(h))
	}
	v.validExprList = v.validExprList[:mark]
	return err
}

//nolint:gocognit,gocyclo,cyclop,funlen,maintidx // one arm per statement kind
func (v *Validator) validateBlock(
	block ir.Block,
	handle ir.FunctionHandle,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
	ctx blockContext,
) error {
	for i := range block {
		switch s := block[i].Kind.(type) {
		case ir.StmtEmit:
			if s.Range.Start > s.Range.End || int(s.Range.End) > len(fn.Expressions) {
				return fmt.Errorf("%w: emit range [%d, %d) out of bounds", ErrCorrupted, s.Range.Start, s.Range.End)
			}
			for h := s.Range.Start; h < s.Range.End; h++ {
				switch fn.Expressions[h].Kind.(type) {
				case ir.Literal, ir.ExprConstant, ir.ExprZeroValue,
					ir.ExprFunctionArgument, ir.ExprGlobalVariable, ir.ExprLocalVariable:
					return &ExpressionError{Handle: h, Err: ErrEmitAlreadyInScope}
				case ir.ExprCallResult, ir.ExprAtomicResult, ir.ExprWorkGroupUniformLoadResult:
					return &ExpressionError{Handle: h, Err: ErrEmitResult}
				}
				if v.validExprSet.Test(uint(h)) {
					return &ExpressionError{Handle: h, Err: ErrEmitAlreadyInScope}
				}
				v.emitExpression(h)
			}

		case ir.StmtBlock:
			if err := v.validateNestedBlock(s.Block, handle, fn, module, info, ctx); err != nil {
				return err
			}

		case ir.StmtIf:
			if err := v.visible(fn, s.Condition); err != nil {
				return err
			}
			if !isBoolScalar(v.exprInner(module, info, s.Condition)) {
				return ErrIfCondition
			}
			if err := v.validateNestedBlock(s.Accept, handle, fn, module, info, ctx); err != nil {
				return err
			}
			if err := v.validateNestedBlock(s.Reject, handle, fn, module, info, ctx); err != nil {
				return err
			}

		case ir.StmtSwitch:
			if err := v.validateSwitch(s, handle, fn, module, info, ctx); err != nil {
				return err
			}

		case ir.StmtLoop:
			bodyCtx := ctx
			bodyCtx.loopDepth++
			bodyCtx.inContinuing = false
			if err := v.validateNestedBlock(s.Body, handle, fn, module, info, bodyCtx); err != nil {
				return err
			}
			// The break-if condition is evaluated at the end of the
			// continuing block, so it is checked while that block's
			// emissions are still in scope.
			contCtx := ctx
			contCtx.inContinuing = true
			mark := len(v.validExprList)
			err := v.validateBlock(s.Continuing, handle, fn, module, info, contCtx)
			if err == nil && s.BreakIf != nil {
				err = v.visible(fn, *s.BreakIf)
				if err == nil && !isBoolScalar(v.exprInner(module, info, *s.BreakIf)) {
					err = ErrIfCondition
				}
			}
			for _, h := range v.validExprList[mark:] {
				v.validExprSet.Clear(uint(h))
			}
			v.validExprList = v.validExprList[:mark]
			if err != nil {
				return err
			}

		case ir.StmtBreak:
			if ctx.switchDepth == 0 {
				if ctx.inContinuing {
					return &ForbiddenInContinuingError{Op: "break"}
				}
				if ctx.loopDepth == 0 {
					return ErrBreakOutsideLoop
				}
			}

		case ir.StmtContinue:
			if ctx.inContinuing {
				return &ForbiddenInContinuingError{Op: "continue"}
			}
			if ctx.loopDepth == 0 {
				return ErrContinueOutsideLoop
			}

		case ir.StmtReturn:
			if ctx.inContinuing {
				return &ForbiddenInContinuingError{Op: "return"}
			}
			if (s.Value == nil) != (fn.Result == nil) {
				return ErrReturnValue
			}
			if s.Value != nil {
				if err := v.visible(fn, *s.Value); err != nil {
					return err
				}
				h := fn.Result.Type
				want := ir.TypeResolution{Handle: &h}
				if !resolutionsMatch(module.Types, info.Expressions[*s.Value].Type, want) {
					return ErrReturnValue
				}
			}

		case ir.StmtKill:
			if ctx.inContinuing {
				return &ForbiddenInContinuingError{Op: "discard"}
			}

		case ir.StmtBarrier:
			// Scope flags carry no structural constraints.

		case ir.StmtStore:
			if err := v.validateStore(s, fn, module, info); err != nil {
				return err
			}

		case ir.StmtImageStore:
			if err := v.visible(fn, s.Image); err != nil {
				return err
			}
			if err := v.visible(fn, s.Coordinate); err != nil {
				return err
			}
			if s.ArrayIndex != nil {
				if err := v.visible(fn, *s.ArrayIndex); err != nil {
					return err
				}
			}
			if err := v.visible(fn, s.Value); err != nil {
				return err
			}
			img, ok := v.exprInner(module, info, s.Image).(ir.ImageType)
			if !ok || img.Class != ir.ImageClassStorage {
				return ErrImageClass
			}

		case ir.StmtAtomic:
			if err := v.validateAtomic(s, fn, module, info); err != nil {
				return err
			}

		case ir.StmtWorkGroupUniformLoad:
			if err := v.validateWorkGroupLoad(s, fn, module, info); err != nil {
				return err
			}

		case ir.StmtCall:
			if err := v.validateCall(s, handle, fn, module, info); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: unknown statement kind %T", ErrCorrupted, s)
		}
	}
	return nil
}

func (v *Validator) validateSwitch(
	s ir.StmtSwitch,
	handle ir.FunctionHandle,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
	ctx blockContext,
) error {
	if err := v.visible(fn, s.Selector); err != nil {
		return err
	}
	selector, ok := v.exprInner(module, info, s.Selector).(ir.ScalarType)
	if !ok || selector.Width != 4 ||
		(selector.Kind != ir.ScalarSint && selector.Kind != ir.ScalarUint) {
		return ErrSwitchSelector
	}

	// Case values are checked before any body, so the scratch value set
	// is free again when a nested switch runs.
	clear(v.switchValues)
	defaults := 0
	for _, c := range s.Cases {
		var key int64
		switch value := c.Value.(type) {
		case ir.SwitchValueI32:
			if selector.Kind != ir.ScalarSint {
				return ErrSwitchCaseKind
			}
			key = int64(value)
		case ir.SwitchValueU32:
			if selector.Kind != ir.ScalarUint {
				return ErrSwitchCaseKind
			}
			key = int64(value)
		case ir.SwitchValueDefault:
			defaults++
			continue
		default:
			return fmt.Errorf("%w: unknown switch value kind %T", ErrCorrupted, value)
		}
		if _, dup := v.switchValues[key]; dup {
			return &DuplicateSwitchCaseError{Value: key}
		}
		v.switchValues[key] = struct{}{}
	}
	if defaults != 1 {
		return ErrSwitchDefault
	}
	if last := len(s.Cases) - 1; last >= 0 && s.Cases[last].FallThrough {
		return ErrSwitchTrailingFallThrough
	}

	caseCtx := ctx
	caseCtx.switchDepth++
	for i := range s.Cases {
		if err := v.validateNestedBlock(s.Cases[i].Body, handle, fn, module, info, caseCtx); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateStore(s ir.StmtStore, fn *ir.Function, module *ir.Module, info *FunctionInfo) error {
	if err := v.visible(fn, s.Pointer); err != nil {
		return err
	}
	if err := v.visible(fn, s.Value); err != nil {
		return err
	}
	value := info.Expressions[s.Value].Type
	switch p := v.exprInner(module, info, s.Pointer).(type) {
	case ir.PointerType:
		h := p.Base
		want := ir.TypeResolution{Handle: &h}
		if !resolutionsMatch(module.Types, value, want) {
			return ErrStoreType
		}
	case ir.ValuePointerType:
		var pointee ir.TypeInner = ir.ScalarType{Kind: p.Kind, Width: p.Width}
		if p.Size != nil {
			pointee = ir.VectorType{Size: *p.Size, Scalar: ir.ScalarType{Kind: p.Kind, Width: p.Width}}
		}
		if !innersEqual(value.Inner(module.Types), pointee) {
			return ErrStoreType
		}
	default:
		return ErrStoreTarget
	}
	return nil
}

func (v *Validator) validateAtomic(s ir.StmtAtomic, fn *ir.Function, module *ir.Module, info *FunctionInfo) error {
	if err := v.visible(fn, s.Pointer); err != nil {
		return err
	}
	ptr, ok := v.exprInner(module, info, s.Pointer).(ir.PointerType)
	if !ok {
		return ErrAtomicPointer
	}
	atomic, ok := module.Types[ptr.Base].Inner.(ir.AtomicType)
	if !ok {
		return ErrAtomicPointer
	}

	if err := v.visible(fn, s.Value); err != nil {
		return err
	}
	if !innersEqual(v.exprInner(module, info, s.Value), atomic.Scalar) {
		return ErrAtomicPointer
	}
	if exchange, ok := s.Fun.(ir.AtomicExchange); ok && exchange.Compare != nil {
		if err := v.visible(fn, *exchange.Compare); err != nil {
			return err
		}
	}

	if s.Result != nil {
		h := *s.Result
		if int(h) >= len(fn.Expressions) {
			return &ExpressionVisibilityError{Handle: h}
		}
		result, ok := fn.Expressions[h].Kind.(ir.ExprAtomicResult)
		if !ok {
			return ErrAtomicResult
		}
		if int(result.Type) >= len(module.Types) ||
			!innersEqual(module.Types[result.Type].Inner, atomic.Scalar) {
			return ErrAtomicResult
		}
		if v.validExprSet.Test(uint(h)) {
			return ErrAtomicResult
		}
		v.emitExpression(h)
	}
	return nil
}

func (v *Validator) validateWorkGroupLoad(
	s ir.StmtWorkGroupUniformLoad,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
) error {
	if err := v.visible(fn, s.Pointer); err != nil {
		return err
	}
	var base *ir.TypeHandle
	switch p := v.exprInner(module, info, s.Pointer).(type) {
	case ir.PointerType:
		if p.Space != ir.SpaceWorkGroup {
			return ErrWorkGroupLoadPointer
		}
		h := p.Base
		base = &h
	case ir.ValuePointerType:
		if p.Space != ir.SpaceWorkGroup {
			return ErrWorkGroupLoadPointer
		}
	default:
		return ErrWorkGroupLoadPointer
	}

	h := s.Result
	if int(h) >= len(fn.Expressions) {
		return &ExpressionVisibilityError{Handle: h}
	}
	result, ok := fn.Expressions[h].Kind.(ir.ExprWorkGroupUniformLoadResult)
	if !ok {
		return ErrWorkGroupLoadResult
	}
	if base != nil && result.Type != *base {
		return ErrWorkGroupLoadResult
	}
	if v.validExprSet.Test(uint(h)) {
		return ErrWorkGroupLoadResult
	}
	v.emitExpression(h)
	return nil
}

func (v *Validator) validateCall(
	s ir.StmtCall,
	handle ir.FunctionHandle,
	fn *ir.Function,
	module *ir.Module,
	info *FunctionInfo,
) error {
	if s.Function >= handle {
		return &ForwardCallError{Function: s.Function}
	}
	callee := &module.Functions[s.Function]

	if len(s.Arguments) != len(callee.Arguments) {
		return &CallArgumentCountError{Want: len(callee.Arguments), Got: len(s.Arguments)}
	}
	for i, arg := range s.Arguments {
		if err := v.visible(fn, arg); err != nil {
			return err
		}
		h := callee.Arguments[i].Type
		want := ir.TypeResolution{Handle: &h}
		if !resolutionsMatch(module.Types, info.Expressions[arg].Type, want) {
			return &CallArgumentTypeError{Index: i}
		}
	}

	if (s.Result == nil) != (callee.Result == nil) {
		return ErrCallResult
	}
	if s.Result != nil {
		h := *s.Result
		if int(h) >= len(fn.Expressions) {
			return &ExpressionVisibilityError{Handle: h}
		}
		result, ok := fn.Expressions[h].Kind.(ir.ExprCallResult)
		if !ok || result.Function != s.Function {
			return ErrCallResult
		}
		if v.validExprSet.Test(uint(h)) {
			return ErrCallResult
		}
		v.emitExpression(h)
	}
	return nil
}
