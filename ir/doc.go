// Package ir defines the shader intermediate representation consumed by
// the validator.
//
// # Structure
//
// The IR is organized around a Module type holding ordered, append-only
// arenas of types, constants, global variables and functions, plus the
// list of entry points. Entities reference each other through typed
// index handles. A handle stored by an entity always points at an
// earlier entry in its arena, so every reference graph is a DAG
// consistent with insertion order.
//
// The package also hosts the two engines the validator consumes but does
// not own:
//   - Layouter: per-type byte size and alignment
//   - ResolveExpressionType: value type of an expression node
//
// # References
//
// The IR design follows naga (Rust): https://github.com/gfx-rs/naga
package ir
