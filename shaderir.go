// Package shaderir provides a typed shader intermediate representation
// and a semantic validator for it.
//
// The ir package defines the module structure: append-only arenas of
// types, constants, global variables and functions, referenced through
// typed index handles. The valid package checks a module against the
// semantic rules of the representation and derives the facts code
// generators need, like per-expression types and control-flow
// uniformity.
//
// Example usage:
//
//	info, err := shaderir.Validate(module)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	epInfo := info.EntryPoint(module, 0)
//
// For finer control over which passes run, use the valid package
// directly:
//
//	v := valid.New(valid.FlagExpressions | valid.FlagBlocks)
//	info, err := v.Validate(module)
package shaderir

import (
	"github.com/gogpu/shaderir/ir"
	"github.com/gogpu/shaderir/valid"
)

// Validate checks an IR module with every validation pass enabled.
//
// Validation checks include:
//   - Handle validity (references only point backwards in each arena)
//   - Type consistency and memory layout rules
//   - Structured control flow rules
//   - Entry point interfaces and binding uniqueness
//   - Control flow uniformity for barriers and derivatives
//
// On success it returns the derived facts about the module.
func Validate(module *ir.Module) (*valid.ModuleInfo, error) {
	return valid.New(valid.FlagAll).Validate(module)
}
