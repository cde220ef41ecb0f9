// Package tales implements the expression side of ZPT: the per-node
// ExpressionContext with its scope chain, loop state for tal:repeat, and
// a TALES evaluator.
//
// Expression types supported by StandardEvaluator:
//
//	path:    here/user/name | default   (the default type)
//	string:  Hello ${user/name}, you owe $$${amount}
//	not:     not:here/items
//	exists:  exists:here/optional
//	nocall:  nocall:here/callback
//	expr:    expr:len(items) > 3 && !here.hidden
//
// Path traversal never uses reflection to find members. Maps, slices,
// ValueProvider implementations and types registered on an Accessors
// registry can be traversed; anything else is opaque.
package tales
