// Package valid checks shader IR modules for correctness.
//
// Validation is a pure, read-only pass over a Module: it either accepts
// the program and returns the derived facts backends need (per-expression
// types, global usage, control-flow uniformity), or rejects it with an
// error attributing the failure to exactly one entity.
//
// A Validator instance owns reusable scratch state and may be reused
// across calls from a single goroutine:
//
//	v := valid.New(valid.FlagAll)
//	info, err := v.Validate(module)
//
// Concurrent callers need one Validator each, or external locking; the
// scratch state carries no meaning between calls.
package valid
