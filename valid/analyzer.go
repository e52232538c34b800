package valid

import (
	"fmt"

	"github.com/gogpu/shaderir/ir"
)

// GlobalUse records how a function uses a global variable.
type GlobalUse uint8

const (
	// GlobalUseRead: the variable's contents are observed.
	GlobalUseRead GlobalUse = 1 << iota
	// GlobalUseWrite: the variable's contents are modified.
	GlobalUseWrite
	// GlobalUseQuery: only metadata is queried, like array length.
	GlobalUseQuery
)

// UniformityRequirements records which uniform-control-flow demands an
// expression or function carries.
type UniformityRequirements uint8

const (
	// UniformityWorkGroupBarrier: executes a workgroup-wide barrier.
	UniformityWorkGroupBarrier UniformityRequirements = 1 << iota
	// UniformityDerivative: computes a screen-space derivative.
	UniformityDerivative
	// UniformityImplicitLevel: samples with an implicit level of detail.
	UniformityImplicitLevel
)

// Uniformity describes whether a value is guaranteed to be the same for
// all invocations, and what uniformity its evaluation demands.
type Uniformity struct {
	// NonUniformResult points at the expression that introduces
	// per-invocation divergence, or nil when the value is uniform.
	NonUniformResult *ir.ExpressionHandle
	// Requirements the evaluation places on control flow.
	Requirements UniformityRequirements
}

// ExpressionInfo holds the derived facts about one expression.
type ExpressionInfo struct {
	Uniformity Uniformity
	// RefCount is the number of uses by other expressions.
	RefCount uint32
	// Type is the resolved value type.
	Type ir.TypeResolution
	// AssignableGlobal is the global variable a pointer chain is rooted
	// at, or nil.
	AssignableGlobal *ir.GlobalVariableHandle
}

// DisruptorKind discriminates the causes of possibly-divergent control
// flow.
type DisruptorKind uint8

const (
	// DisruptorExpression: a branch condition varies per invocation.
	DisruptorExpression DisruptorKind = iota
	// DisruptorReturn: some invocations may have returned already.
	DisruptorReturn
	// DisruptorDiscard: some invocations may have been discarded.
	DisruptorDiscard
)

// UniformityDisruptor describes why control flow may have diverged at
// some program point.
type UniformityDisruptor struct {
	Kind DisruptorKind
	// Expression is the diverging condition, for DisruptorExpression.
	Expression *ir.ExpressionHandle
}

// String describes the disruptor for error messages.
func (d UniformityDisruptor) String() string {
	switch d.Kind {
	case DisruptorExpression:
		if d.Expression != nil {
			return fmt.Sprintf("non-uniform expression [%d]", *d.Expression)
		}
		return "non-uniform expression"
	case DisruptorReturn:
		return "possibly returned invocations"
	case DisruptorDiscard:
		return "possibly discarded invocations"
	default:
		return "unknown disruptor"
	}
}

// UniformityViolation records an operation that requires uniform control
// flow being reached under a disruptor. Violations are always recorded
// during analysis; whether they reject the module is decided later, per
// entry point.
type UniformityViolation struct {
	Operation string
	Disruptor UniformityDisruptor
}

// FunctionInfo holds the derived facts about one function.
type FunctionInfo struct {
	// Uniformity of the function's result, plus the aggregated
	// requirements of everything the function executes.
	Uniformity Uniformity
	// MayKill reports whether calling the function may discard the
	// invocation.
	MayKill bool
	// GlobalUses has one entry per module global variable.
	GlobalUses []GlobalUse
	// Expressions has one entry per function expression.
	Expressions []ExpressionInfo
	// Violations found by the uniformity dataflow, in program order.
	Violations []UniformityViolation
}

// ModuleInfo is the result of a successful validation: per-function and
// per-expression derived facts, indexed by the module's handles.
type ModuleInfo struct {
	Functions []FunctionInfo
}

// EntryPoint returns the info of the function behind the entry point at
// the given index.
func (m *ModuleInfo) EntryPoint(module *ir.Module, index int) *FunctionInfo {
	return &m.Functions[module.EntryPoints[index].Function]
}

// ForwardDependencyError reports an expression operand that has not been
// processed yet.
type ForwardDependencyError struct {
	Expression ir.ExpressionHandle
	Depends    ir.ExpressionHandle
}

// Error implements the error interface.
func (e *ForwardDependencyError) Error() string {
	return fmt.Sprintf("expression [%d] depends on [%d], which has not been processed yet", e.Expression, e.Depends)
}

// ForwardCallError reports a call to a function that is not defined
// earlier in the arena.
type ForwardCallError struct {
	Function ir.FunctionHandle
}

// Error implements the error interface.
func (e *ForwardCallError) Error() string {
	return fmt.Sprintf("the function handle [%d] can not be resolved", e.Function)
}

// exitFlags track how control may leave the statements processed so far.
type exitFlags uint8

const (
	exitMayReturn exitFlags = 1 << iota
	exitMayKill
)

// funcUniformity is the result of processing a statement or block.
type funcUniformity struct {
	result Uniformity
	exit   exitFlags
	// brk is the disruptor a conditional break escaped under, consumed
	// by the enclosing loop or switch.
	brk *UniformityDisruptor
}

func (u funcUniformity) or(o funcUniformity) funcUniformity {
	res := u.result
	if res.NonUniformResult == nil {
		res.NonUniformResult = o.result.NonUniformResult
	}
	res.Requirements |= o.result.Requirements
	return funcUniformity{result: res, exit: u.exit | o.exit, brk: disruptorOr(u.brk, o.brk)}
}

// exitDisruptor turns an early-exit possibility into a disruptor for the
// statements that follow.
func (u funcUniformity) exitDisruptor() *UniformityDisruptor {
	switch {
	case u.exit&exitMayReturn != 0:
		return &UniformityDisruptor{Kind: DisruptorReturn}
	case u.exit&exitMayKill != 0:
		return &UniformityDisruptor{Kind: DisruptorDiscard}
	default:
		return nil
	}
}

func disruptorOr(a, b *UniformityDisruptor) *UniformityDisruptor {
	if a != nil {
		return a
	}
	return b
}

// functionAnalyzer runs the dataflow over a single function. Functions
// are analyzed in arena order, so infos of all callable functions are in
// prior.
type functionAnalyzer struct {
	module  *ir.Module
	fn      *ir.Function
	handle  ir.FunctionHandle
	prior   []FunctionInfo
	info    *FunctionInfo
	types   *ir.Resolver
	record  bool
	scratch []ir.ExpressionHandle
}

// analyzeModule computes the derived facts for every function, in arena
// order. A failure is attributed to the function being analyzed.
func analyzeModule(module *ir.Module) (*ModuleInfo, error) {
	info := &ModuleInfo{Functions: make([]FunctionInfo, len(module.Functions))}
	for i := range module.Functions {
		fn := &module.Functions[i]
		fi := FunctionInfo{
			GlobalUses:  make([]GlobalUse, len(module.GlobalVariables)),
			Expressions: make([]ExpressionInfo, len(fn.Expressions)),
		}
		a := &functionAnalyzer{
			module: module,
			fn:     fn,
			handle: ir.FunctionHandle(i),
			prior:  info.Functions[:i],
			info:   &fi,
			types:  ir.NewResolver(module, fn),
			record: true,
		}
		if err := a.run(); err != nil {
			return nil, &EntityError{
				Entity: EntityAnalysis,
				Handle: uint32(i),
				Name:   fn.Name,
				Err:    err,
			}
		}
		info.Functions[i] = fi
	}
	return info, nil
}

func (a *functionAnalyzer) run() error {
	for i := range a.fn.Expressions {
		if err := a.analyzeExpression(ir.ExpressionHandle(i)); err != nil {
			return err
		}
	}
	uniformity, err := a.processBlock(a.fn.Body, nil)
	if err != nil {
		return err
	}
	a.info.Uniformity.NonUniformResult = uniformity.result.NonUniformResult
	return nil
}

// exprOperands appends the operand handles of an expression to buf.
//
//nolint:gocyclo,cyclop // one arm per expression kind
func exprOperands(kind ir.ExpressionKind, buf []ir.ExpressionHandle) []ir.ExpressionHandle {
	opt := func(h *ir.ExpressionHandle) {
		if h != nil {
			buf = append(buf, *h)
		}
	}
	switch e := kind.(type) {
	case ir.ExprCompose:
		buf = append(buf, e.Components...)
	case ir.ExprAccess:
		buf = append(buf, e.Base, e.Index)
	case ir.ExprAccessIndex:
		buf = append(buf, e.Base)
	case ir.ExprSplat:
		buf = append(buf, e.Value)
	case ir.ExprSwizzle:
		buf = append(buf, e.Vector)
	case ir.ExprLoad:
		buf = append(buf, e.Pointer)
	case ir.ExprImageSample:
		buf = append(buf, e.Image, e.Sampler, e.Coordinate)
		opt(e.ArrayIndex)
		opt(e.Offset)
		switch level := e.Level.(type) {
		case ir.SampleLevelExact:
			buf = append(buf, level.Level)
		case ir.SampleLevelBias:
			buf = append(buf, level.Bias)
		case ir.SampleLevelGradient:
			buf = append(buf, level.X, level.Y)
		}
		opt(e.DepthRef)
	case ir.ExprImageLoad:
		buf = append(buf, e.Image, e.Coordinate)
		opt(e.ArrayIndex)
		opt(e.Sample)
		opt(e.Level)
	case ir.ExprImageQuery:
		buf = append(buf, e.Image)
		if size, ok := e.Query.(ir.ImageQuerySize); ok {
			opt(size.Level)
		}
	case ir.ExprUnary:
		buf = append(buf, e.Expr)
	case ir.ExprBinary:
		buf = append(buf, e.Left, e.Right)
	case ir.ExprSelect:
		buf = append(buf, e.Condition, e.Accept, e.Reject)
	case ir.ExprDerivative:
		buf = append(buf, e.Expr)
	case ir.ExprRelational:
		buf = append(buf, e.Argument)
	case ir.ExprMath:
		buf = append(buf, e.Arg)
		opt(e.Arg1)
		opt(e.Arg2)
		opt(e.Arg3)
	case ir.ExprAs:
		buf = append(buf, e.Expr)
	case ir.ExprArrayLength:
		buf = append(buf, e.Array)
	}
	return buf
}

// analyzeExpression checks the no-forward-reference discipline, resolves
// the type, and computes uniformity and global use for one expression.
func (a *functionAnalyzer) analyzeExpression(handle ir.ExpressionHandle) error {
	kind := a.fn.Expressions[handle].Kind

	a.scratch = exprOperands(kind, a.scratch[:0])
	for _, op := range a.scratch {
		if op >= handle {
			return &ForwardDependencyError{Expression: handle, Depends: op}
		}
		a.info.Expressions[op].RefCount++
	}

	// The shared resolver caches operand resolutions, so resolving every
	// expression of the function stays linear even when operands are
	// shared between many expressions.
	resolution, err := a.types.Resolve(handle)
	if err != nil {
		return err
	}

	info := &a.info.Expressions[handle]
	info.Type = resolution

	self := handle
	switch e := kind.(type) {
	case ir.Literal, ir.ExprConstant, ir.ExprZeroValue:
		// Uniform by construction.

	case ir.ExprFunctionArgument, ir.ExprLocalVariable, ir.ExprAtomicResult:
		info.Uniformity.NonUniformResult = &self

	case ir.ExprGlobalVariable:
		g := e.Variable
		info.AssignableGlobal = &g
		switch a.module.GlobalVariables[g].Space {
		case ir.SpaceUniform, ir.SpaceHandle, ir.SpacePushConstant:
			// Same value for every invocation.
		default:
			info.Uniformity.NonUniformResult = &self
		}

	case ir.ExprWorkGroupUniformLoadResult:
		// Uniform by the statement's barrier semantics.

	case ir.ExprCallResult:
		if e.Function >= a.handle {
			return &ForwardCallError{Function: e.Function}
		}
		if a.prior[e.Function].Uniformity.NonUniformResult != nil {
			info.Uniformity.NonUniformResult = &self
		}

	default:
		info.Uniformity = a.foldOperands()
		switch e := kind.(type) {
		case ir.ExprAccess:
			info.AssignableGlobal = a.info.Expressions[e.Base].AssignableGlobal
		case ir.ExprAccessIndex:
			info.AssignableGlobal = a.info.Expressions[e.Base].AssignableGlobal
		case ir.ExprLoad:
			a.addGlobalUse(e.Pointer, GlobalUseRead)
		case ir.ExprImageSample:
			a.addGlobalUse(e.Image, GlobalUseRead)
			a.addGlobalUse(e.Sampler, GlobalUseRead)
			if _, auto := e.Level.(ir.SampleLevelAuto); auto {
				info.Uniformity.Requirements |= UniformityImplicitLevel
			}
		case ir.ExprImageLoad:
			a.addGlobalUse(e.Image, GlobalUseRead)
		case ir.ExprImageQuery:
			a.addGlobalUse(e.Image, GlobalUseQuery)
		case ir.ExprArrayLength:
			a.addGlobalUse(e.Array, GlobalUseQuery)
		case ir.ExprDerivative:
			info.Uniformity.Requirements |= UniformityDerivative
		}
	}

	a.info.Uniformity.Requirements |= info.Uniformity.Requirements
	return nil
}

// foldOperands combines the uniformity of the operands gathered in
// scratch: the first diverging operand decides the result.
func (a *functionAnalyzer) foldOperands() Uniformity {
	var u Uniformity
	for _, op := range a.scratch {
		dep := a.info.Expressions[op].Uniformity
		if u.NonUniformResult == nil {
			u.NonUniformResult = dep.NonUniformResult
		}
	}
	return u
}

func (a *functionAnalyzer) addGlobalUse(operand ir.ExpressionHandle, use GlobalUse) {
	if g := a.info.Expressions[operand].AssignableGlobal; g != nil {
		a.info.GlobalUses[*g] |= use
	}
}

func (a *functionAnalyzer) violate(operation string, disruptor *UniformityDisruptor) {
	if a.record {
		a.info.Violations = append(a.info.Violations, UniformityViolation{
			Operation: operation,
			Disruptor: *disruptor,
		})
	}
}

// exprDisruptor returns a disruptor when the given expression diverges.
func (a *functionAnalyzer) exprDisruptor(handle ir.ExpressionHandle) *UniformityDisruptor {
	if nur := a.info.Expressions[handle].Uniformity.NonUniformResult; nur != nil {
		return &UniformityDisruptor{Kind: DisruptorExpression, Expression: nur}
	}
	return nil
}

// checkHandle guards statement operands before their infos are indexed.
func (a *functionAnalyzer) checkHandle(handle ir.ExpressionHandle) error {
	if int(handle) >= len(a.fn.Expressions) {
		return fmt.Errorf("%w: expression handle [%d] out of bounds", ErrCorrupted, handle)
	}
	return nil
}

// operationName names an operation with uniformity requirements for
// violation reports.
func operationName(kind ir.ExpressionKind) string {
	switch e := kind.(type) {
	case ir.ExprDerivative:
		switch e.Axis {
		case ir.DerivativeX:
			return "dpdx"
		case ir.DerivativeY:
			return "dpdy"
		default:
			return "fwidth"
		}
	case ir.ExprImageSample:
		return "textureSample"
	default:
		return "expression"
	}
}

// processBlock runs the uniformity dataflow over a block. disruptor is
// the reason control flow may already have diverged when the block is
// entered, or nil.
//
//nolint:gocognit,gocyclo,cyclop,funlen // one arm per statement kind
func (a *functionAnalyzer) processBlock(block ir.Block, disruptor *UniformityDisruptor) (funcUniformity, error) {
	var combined funcUniformity

	for i := range block {
		var u funcUniformity

		switch s := block[i].Kind.(type) {
		case ir.StmtEmit:
			if s.Range.Start > s.Range.End || int(s.Range.End) > len(a.fn.Expressions) {
				return combined, fmt.Errorf("%w: emit range [%d, %d) out of bounds", ErrCorrupted, s.Range.Start, s.Range.End)
			}
			if disruptor != nil {
				for h := s.Range.Start; h < s.Range.End; h++ {
					if a.info.Expressions[h].Uniformity.Requirements != 0 {
						a.violate(operationName(a.fn.Expressions[h].Kind), disruptor)
					}
				}
			}

		case ir.StmtBlock:
			inner, err := a.processBlock(s.Block, disruptor)
			if err != nil {
				return combined, err
			}
			u = inner

		case ir.StmtIf:
			if err := a.checkHandle(s.Condition); err != nil {
				return combined, err
			}
			branchDisruptor := disruptorOr(disruptor, a.exprDisruptor(s.Condition))
			accept, err := a.processBlock(s.Accept, branchDisruptor)
			if err != nil {
				return combined, err
			}
			reject, err := a.processBlock(s.Reject, branchDisruptor)
			if err != nil {
				return combined, err
			}
			u = accept.or(reject)

		case ir.StmtSwitch:
			if err := a.checkHandle(s.Selector); err != nil {
				return combined, err
			}
			branchDisruptor := disruptorOr(disruptor, a.exprDisruptor(s.Selector))
			for _, c := range s.Cases {
				caseUniformity, err := a.processBlock(c.Body, branchDisruptor)
				if err != nil {
					return combined, err
				}
				u = u.or(caseUniformity)
			}
			u.brk = nil

		case ir.StmtLoop:
			// The body runs again after its own exits may have diverged
			// invocations, so it is processed twice: a silent pass to
			// discover the loop-level disruptor, then a recording pass
			// under it.
			record := a.record
			a.record = false
			first, err := a.processBlock(s.Body, disruptor)
			a.record = record
			if err != nil {
				return combined, err
			}
			loopDisruptor := disruptorOr(disruptor, disruptorOr(first.exitDisruptor(), first.brk))
			if s.BreakIf != nil {
				if err := a.checkHandle(*s.BreakIf); err != nil {
					return combined, err
				}
				loopDisruptor = disruptorOr(loopDisruptor, a.exprDisruptor(*s.BreakIf))
			}
			body, err := a.processBlock(s.Body, loopDisruptor)
			if err != nil {
				return combined, err
			}
			continuing, err := a.processBlock(s.Continuing, disruptorOr(loopDisruptor, body.exitDisruptor()))
			if err != nil {
				return combined, err
			}
			u = body.or(continuing)
			u.brk = nil

		case ir.StmtBreak:
			// A break reached under divergence leaves some invocations
			// looping; the enclosing loop accounts for it.
			u.brk = disruptor

		case ir.StmtContinue:
			// Handled by the enclosing loop.

		case ir.StmtReturn:
			if s.Value != nil {
				if int(*s.Value) >= len(a.fn.Expressions) {
					return combined, fmt.Errorf("%w: return value [%d] out of bounds", ErrCorrupted, *s.Value)
				}
				u.result = a.info.Expressions[*s.Value].Uniformity
			}
			u.exit = exitMayReturn

		case ir.StmtKill:
			a.info.MayKill = true
			u.exit = exitMayKill

		case ir.StmtBarrier:
			if disruptor != nil {
				if s.Flags&ir.BarrierWorkGroup != 0 {
					a.violate("workgroupBarrier", disruptor)
				} else {
					a.violate("storageBarrier", disruptor)
				}
			}
			a.info.Uniformity.Requirements |= UniformityWorkGroupBarrier

		case ir.StmtStore:
			if err := a.checkHandle(s.Pointer); err != nil {
				return combined, err
			}
			a.addGlobalUse(s.Pointer, GlobalUseWrite)

		case ir.StmtImageStore:
			if err := a.checkHandle(s.Image); err != nil {
				return combined, err
			}
			a.addGlobalUse(s.Image, GlobalUseWrite)

		case ir.StmtAtomic:
			if err := a.checkHandle(s.Pointer); err != nil {
				return combined, err
			}
			a.addGlobalUse(s.Pointer, GlobalUseRead|GlobalUseWrite)

		case ir.StmtWorkGroupUniformLoad:
			if disruptor != nil {
				a.violate("workgroupUniformLoad", disruptor)
			}
			if err := a.checkHandle(s.Pointer); err != nil {
				return combined, err
			}
			a.addGlobalUse(s.Pointer, GlobalUseRead)
			a.info.Uniformity.Requirements |= UniformityWorkGroupBarrier

		case ir.StmtCall:
			if s.Function >= a.handle {
				return combined, &ForwardCallError{Function: s.Function}
			}
			callee := &a.prior[s.Function]
			for g, use := range callee.GlobalUses {
				a.info.GlobalUses[g] |= use
			}
			if a.record {
				a.info.Violations = append(a.info.Violations, callee.Violations...)
			}
			if callee.MayKill {
				a.info.MayKill = true
			}
			a.info.Uniformity.Requirements |= callee.Uniformity.Requirements
			if disruptor != nil && callee.Uniformity.Requirements != 0 {
				a.violate("call to "+a.module.Functions[s.Function].Name, disruptor)
			}

		default:
			return combined, fmt.Errorf("%w: unknown statement kind %T", ErrCorrupted, s)
		}

		disruptor = disruptorOr(disruptor, u.exitDisruptor())
		combined = combined.or(u)
	}

	return combined, nil
}
