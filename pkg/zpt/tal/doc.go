// Package tal implements the TAL directive attributes.
//
// Directives on an element run in a fixed order regardless of the order
// the attributes are written in:
//
//	define, condition, repeat, content | replace, attributes, omit-tag
//
// on-error wraps all of them, and also handles errors raised while
// rendering the element's descendants.
package tal
