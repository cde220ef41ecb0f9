// Package metal implements METAL macros: define-macro, use-macro,
// extend-macro, define-slot and fill-slot.
//
// The METAL pass runs before any TAL directive. Each use-macro element is
// replaced by a copy of the macro it names, with the slots of that macro
// (and of any macro it extends) filled from the call site.
package metal
