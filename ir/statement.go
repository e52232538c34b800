package ir

// Statement represents a statement in the IR.
// Statements have side effects and structured control flow, but do not
// produce values. The function body is a tree of statements referencing
// expressions by handle.
type Statement struct {
	Kind StatementKind
}

// StatementKind represents the different kinds of statements.
type StatementKind interface {
	statementKind()
}

// Block represents a sequence of statements executed in order.
type Block []Statement

// Range represents a half-open range of expression handles for Emit
// statements: [Start, End).
type Range struct {
	Start ExpressionHandle
	End   ExpressionHandle
}

// StmtEmit evaluates a range of expressions, making them visible to all
// statements that follow within the enclosing block.
type StmtEmit struct {
	Range Range
}

func (StmtEmit) statementKind() {}

// StmtBlock contains a nested sequence of statements.
type StmtBlock struct {
	Block Block
}

func (StmtBlock) statementKind() {}

// StmtIf conditionally executes one of two blocks based on the condition
// value. The IR has no phi instructions; values computed in the accept
// or reject block must be stored in a LocalVariable to survive the If.
type StmtIf struct {
	Condition ExpressionHandle // must be a bool expression
	Accept    Block
	Reject    Block
}

func (StmtIf) statementKind() {}

// SwitchValue represents the value that triggers a switch case.
type SwitchValue interface {
	switchValue()
}

// SwitchValueI32 represents a signed 32-bit integer switch value.
type SwitchValueI32 int32

func (SwitchValueI32) switchValue() {}

// SwitchValueU32 represents an unsigned 32-bit integer switch value.
type SwitchValueU32 uint32

func (SwitchValueU32) switchValue() {}

// SwitchValueDefault represents the default case in a switch statement.
type SwitchValueDefault struct{}

func (SwitchValueDefault) switchValue() {}

// SwitchCase represents a case in a switch statement.
type SwitchCase struct {
	Value       SwitchValue
	Body        Block
	FallThrough bool // if true, execution continues to the next case
}

// StmtSwitch conditionally executes one of multiple blocks based on the
// selector value. Each case must have a distinct value, and exactly one
// must be Default.
type StmtSwitch struct {
	Selector ExpressionHandle
	Cases    []SwitchCase
}

func (StmtSwitch) statementKind() {}

// StmtLoop executes a block repeatedly. Each iteration executes Body,
// then Continuing. Break exits the loop; Continue jumps to Continuing.
// BreakIf, if set, is evaluated after Continuing and exits the loop when
// true.
type StmtLoop struct {
	Body       Block
	Continuing Block
	BreakIf    *ExpressionHandle
}

func (StmtLoop) statementKind() {}

// StmtBreak exits the innermost enclosing Loop or Switch statement.
// May not break out of a Loop from within its continuing block.
type StmtBreak struct{}

func (StmtBreak) statementKind() {}

// StmtContinue skips to the continuing block of the innermost enclosing
// Loop. May only appear within the body block of a Loop.
type StmtContinue struct{}

func (StmtContinue) statementKind() {}

// StmtReturn returns from the function, possibly with a value.
// Forbidden within the continuing block of a Loop statement.
type StmtReturn struct {
	Value *ExpressionHandle
}

func (StmtReturn) statementKind() {}

// StmtKill aborts the current shader execution (fragment discard).
// Forbidden within the continuing block of a Loop statement.
type StmtKill struct{}

func (StmtKill) statementKind() {}

// BarrierFlags represents memory barrier scope flags.
type BarrierFlags uint32

const (
	// BarrierStorage orders Storage address space accesses.
	BarrierStorage BarrierFlags = 1 << 0
	// BarrierWorkGroup orders WorkGroup address space accesses.
	BarrierWorkGroup BarrierFlags = 1 << 1
)

// StmtBarrier synchronizes invocations within the workgroup. All
// invocations must reach the barrier through the same control-flow
// path, so it requires uniform control flow.
type StmtBarrier struct {
	Flags BarrierFlags
}

func (StmtBarrier) statementKind() {}

// StmtStore stores a value at an address through a pointer.
type StmtStore struct {
	Pointer ExpressionHandle
	Value   ExpressionHandle
}

func (StmtStore) statementKind() {}

// StmtImageStore stores a texel value to a storage image.
type StmtImageStore struct {
	Image      ExpressionHandle
	Coordinate ExpressionHandle
	ArrayIndex *ExpressionHandle
	Value      ExpressionHandle
}

func (StmtImageStore) statementKind() {}

// AtomicFunction represents atomic operations.
type AtomicFunction interface {
	atomicFunction()
}

// AtomicAdd performs atomic addition.
type AtomicAdd struct{}

func (AtomicAdd) atomicFunction() {}

// AtomicSubtract performs atomic subtraction.
type AtomicSubtract struct{}

func (AtomicSubtract) atomicFunction() {}

// AtomicAnd performs atomic bitwise AND.
type AtomicAnd struct{}

func (AtomicAnd) atomicFunction() {}

// AtomicExclusiveOr performs atomic bitwise XOR.
type AtomicExclusiveOr struct{}

func (AtomicExclusiveOr) atomicFunction() {}

// AtomicInclusiveOr performs atomic bitwise OR.
type AtomicInclusiveOr struct{}

func (AtomicInclusiveOr) atomicFunction() {}

// AtomicMin performs atomic minimum.
type AtomicMin struct{}

func (AtomicMin) atomicFunction() {}

// AtomicMax performs atomic maximum.
type AtomicMax struct{}

func (AtomicMax) atomicFunction() {}

// AtomicExchange performs atomic exchange, or compare-and-exchange when
// Compare is set.
type AtomicExchange struct {
	Compare *ExpressionHandle
}

func (AtomicExchange) atomicFunction() {}

// StmtAtomic performs an atomic operation through a pointer to an
// Atomic type. Result, if set, must be an AtomicResult expression.
type StmtAtomic struct {
	Pointer ExpressionHandle
	Fun     AtomicFunction
	Value   ExpressionHandle
	Result  *ExpressionHandle
}

func (StmtAtomic) statementKind() {}

// StmtWorkGroupUniformLoad loads through a pointer in the WorkGroup
// address space with barrier semantics: all invocations must reach it
// uniformly and receive the same value.
type StmtWorkGroupUniformLoad struct {
	Pointer ExpressionHandle
	Result  ExpressionHandle // WorkGroupUniformLoadResult expression
}

func (StmtWorkGroupUniformLoad) statementKind() {}

// StmtCall calls a function. If Result is set, it must be a CallResult
// expression referencing the callee; the call makes it reachable.
type StmtCall struct {
	Function  FunctionHandle
	Arguments []ExpressionHandle
	Result    *ExpressionHandle
}

func (StmtCall) statementKind() {}
