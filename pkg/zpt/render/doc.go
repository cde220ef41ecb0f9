// Package render walks a document tree and applies context processors to
// it. A DocumentRenderer runs a fixed sequence of passes over a document
// (macro expansion, TAL directives, cleanup); each pass is an Iterator
// driving one ContextProcessor.
package render
