package valid

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/gogpu/shaderir/ir"
)

// Flags selects which optional validation passes run. Each flag gates
// strictly its own class of checks; disabling one never changes the
// outcome of checks outside its scope.
type Flags uint8

const (
	// FlagExpressions checks the expression graphs of functions.
	FlagExpressions Flags = 0x1
	// FlagBlocks checks statement blocks and control structure.
	FlagBlocks Flags = 0x2
	// FlagControlFlowUniformity checks that barrier and derivative
	// operations are only reached under uniform control flow.
	FlagControlFlowUniformity Flags = 0x4

	// FlagAll enables every check.
	FlagAll = FlagExpressions | FlagBlocks | FlagControlFlowUniformity
)

// ErrCorrupted reports an internal invariant violation that can not be
// attributed to a specific entity.
var ErrCorrupted = errors.New("module is corrupted")

// Entity identifies the kind of top-level module entity a validation
// failure is attributed to.
type Entity uint8

const (
	EntityType Entity = iota
	EntityConstant
	EntityGlobalVariable
	EntityFunction
	EntityEntryPoint
	EntityAnalysis
)

// String returns the entity kind name.
func (e Entity) String() string {
	switch e {
	case EntityType:
		return "type"
	case EntityConstant:
		return "constant"
	case EntityGlobalVariable:
		return "global variable"
	case EntityFunction:
		return "function"
	case EntityEntryPoint:
		return "entry point"
	case EntityAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// EntityError attributes a validation failure to one module entity,
// carrying its handle, display name and the specific nested error.
type EntityError struct {
	Entity Entity
	Handle uint32
	Name   string
	Stage  ir.ShaderStage // entry points only
	Err    error
}

// Error implements the error interface.
func (e *EntityError) Error() string {
	switch e.Entity {
	case EntityEntryPoint:
		return fmt.Sprintf("entry point %q at %s is invalid: %v", e.Name, e.Stage, e.Err)
	case EntityAnalysis:
		return fmt.Sprintf("analysis of function [%d] %q failed: %v", e.Handle, e.Name, e.Err)
	default:
		return fmt.Sprintf("%s [%d] %q is invalid: %v", e.Entity, e.Handle, e.Name, e.Err)
	}
}

// Unwrap returns the nested cause.
func (e *EntityError) Unwrap() error { return e.Err }

// Validator validates IR modules. The zero value is not usable; call
// New. A Validator owns reusable scratch state and is not safe for
// concurrent use.
type Validator struct {
	flags Flags

	// Scratch state, reset at the start of every Validate call.
	types          []TypeInfo
	locationMask   *bitset.BitSet
	bindGroupMasks []*bitset.BitSet
	switchValues   map[int64]struct{}
	validExprList  []ir.ExpressionHandle
	validExprSet   *bitset.BitSet
}

// New constructs a validator with the given flags.
func New(flags Flags) *Validator {
	return &Validator{
		flags:        flags,
		locationMask: bitset.New(32),
		switchValues: make(map[int64]struct{}),
		validExprSet: bitset.New(256),
	}
}

func (v *Validator) reset(typeCount int) {
	if cap(v.types) >= typeCount {
		v.types = v.types[:typeCount]
		clear(v.types)
	} else {
		v.types = make([]TypeInfo, typeCount)
	}
	v.locationMask.ClearAll()
	for _, mask := range v.bindGroupMasks {
		mask.ClearAll()
	}
	clear(v.switchValues)
	v.validExprList = v.validExprList[:0]
	v.validExprSet.ClearAll()
}

type entryPointKey struct {
	stage ir.ShaderStage
	name  string
}

// Validate checks the module and returns its derived facts. Passes run
// in a fixed order — analysis, constants, types, globals, functions,
// entry points — and the first failing entity within a pass aborts the
// run. The input module is never mutated.
func (v *Validator) Validate(module *ir.Module) (*ModuleInfo, error) {
	if module == nil {
		return nil, ErrCorrupted
	}
	v.reset(len(module.Types))

	info, err := analyzeModule(module)
	if err != nil {
		return nil, err
	}

	layouter := ir.NewLayouter(module.Types, module.Constants)

	for i := range module.Constants {
		if err := validateConstant(ir.ConstantHandle(i), module.Constants, module.Types); err != nil {
			return nil, &EntityError{
				Entity: EntityConstant,
				Handle: uint32(i),
				Name:   module.Constants[i].Name,
				Err:    err,
			}
		}
	}

	// Types run strictly before globals: the global variable checker
	// reads the capability flags cached here.
	for i := range module.Types {
		tyInfo, err := v.validateType(ir.TypeHandle(i), module, layouter)
		if err != nil {
			return nil, &EntityError{
				Entity: EntityType,
				Handle: uint32(i),
				Name:   module.Types[i].Name,
				Err:    err,
			}
		}
		v.types[i] = tyInfo
	}

	for i := range module.GlobalVariables {
		if err := v.validateGlobalVariable(&module.GlobalVariables[i], module); err != nil {
			return nil, &EntityError{
				Entity: EntityGlobalVariable,
				Handle: uint32(i),
				Name:   module.GlobalVariables[i].Name,
				Err:    err,
			}
		}
	}

	for i := range module.Functions {
		fn := &module.Functions[i]
		if err := v.validateFunction(ir.FunctionHandle(i), fn, module, &info.Functions[i]); err != nil {
			return nil, &EntityError{
				Entity: EntityFunction,
				Handle: uint32(i),
				Name:   fn.Name,
				Err:    err,
			}
		}
	}

	// The duplicate check is module-wide and runs before any deeper
	// per-entry-point work.
	seen := make(map[entryPointKey]struct{}, len(module.EntryPoints))
	for i, ep := range module.EntryPoints {
		key := entryPointKey{stage: ep.Stage, name: ep.Name}
		if _, dup := seen[key]; dup {
			return nil, &EntityError{
				Entity: EntityEntryPoint,
				Handle: uint32(i),
				Name:   ep.Name,
				Stage:  ep.Stage,
				Err:    ErrEntryPointConflict,
			}
		}
		seen[key] = struct{}{}
	}
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if err := v.validateEntryPoint(ep, module, info); err != nil {
			return nil, &EntityError{
				Entity: EntityEntryPoint,
				Handle: uint32(i),
				Name:   ep.Name,
				Stage:  ep.Stage,
				Err:    err,
			}
		}
	}

	return info, nil
}
