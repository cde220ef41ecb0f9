package tales

import (
	"fmt"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

// Definitions holds variables defined by tal:define.
type Definitions = Scope[any]

// Repetitions holds the loop state of enclosing tal:repeat directives.
type Repetitions = Scope[*RepetitionInfo]

// ExpressionContext is the per-node state carried through a render.
//
// LocalDefinitions and Repetitions get a fresh layer for each child, so a
// definition made on one node is visible to its descendants only.
// GlobalDefinitions is a single scope shared by every context of a render.
type ExpressionContext struct {
	CurrentNode       *dom.Node
	LocalDefinitions  *Definitions
	GlobalDefinitions *Definitions
	Repetitions       *Repetitions
	IsRootContext     bool

	// Error is set only while an on-error expression is being evaluated.
	Error *ErrorInfo

	// Model is the root object templates read from (the "here" builtin).
	Model any

	// Template is the document being rendered, exposed as "template".
	Template any

	// KeywordOptions are the render-time options exposed as "options".
	KeywordOptions map[string]any
}

// NewRootContext creates the context for the root of a render.
func NewRootContext(node *dom.Node, model any) *ExpressionContext {
	return &ExpressionContext{
		CurrentNode:       node,
		LocalDefinitions:  NewScope[any](nil),
		GlobalDefinitions: NewScope[any](nil),
		Repetitions:       NewScope[*RepetitionInfo](nil),
		IsRootContext:     true,
		Model:             model,
		KeywordOptions:    map[string]any{},
	}
}

// CreateChild creates a context for node whose local definitions and
// repetitions layer over this context's.
func (c *ExpressionContext) CreateChild(node *dom.Node) *ExpressionContext {
	return &ExpressionContext{
		CurrentNode:       node,
		LocalDefinitions:  NewScope(c.LocalDefinitions),
		GlobalDefinitions: c.GlobalDefinitions,
		Repetitions:       NewScope(c.Repetitions),
		Model:             c.Model,
		Template:          c.Template,
		KeywordOptions:    c.KeywordOptions,
	}
}

// CreateChildren creates one child context per node.
func (c *ExpressionContext) CreateChildren(nodes []*dom.Node) []*ExpressionContext {
	out := make([]*ExpressionContext, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.CreateChild(n))
	}
	return out
}

// CreateSibling creates a context for node with the same scope layers as
// this context. It is used when a directive substitutes the current node.
func (c *ExpressionContext) CreateSibling(node *dom.Node) *ExpressionContext {
	cp := *c
	cp.CurrentNode = node
	return &cp
}

// Lookup resolves a variable the way a path root is resolved: local
// definitions first, then global definitions.
func (c *ExpressionContext) Lookup(name string) (any, bool) {
	if v, ok := c.LocalDefinitions.Get(name); ok {
		return v, true
	}
	return c.GlobalDefinitions.Get(name)
}

// ErrorInfo describes the error being handled by tal:on-error. Path
// expressions can read its "type", "value" and "traceback" members.
type ErrorInfo struct {
	Err error
}

// NewErrorInfo wraps err for exposure to expressions.
func NewErrorInfo(err error) *ErrorInfo { return &ErrorInfo{Err: err} }

// Type returns the Go type name of the innermost error.
func (e *ErrorInfo) Type() string {
	inner := e.Err
	for {
		u, ok := inner.(interface{ Unwrap() error })
		if !ok || u.Unwrap() == nil {
			break
		}
		inner = u.Unwrap()
	}
	return fmt.Sprintf("%T", inner)
}

// Value returns the error message.
func (e *ErrorInfo) Value() string { return e.Err.Error() }

// Trace returns the chain of wrapped error messages, outermost first.
func (e *ErrorInfo) Trace() string {
	trace := e.Err.Error()
	for cur := e.Err; ; {
		u, ok := cur.(interface{ Unwrap() error })
		if !ok || u.Unwrap() == nil {
			break
		}
		cur = u.Unwrap()
		trace += "\n  caused by: " + cur.Error()
	}
	return trace
}

func (e *ErrorInfo) GetValue(name string) (any, bool) {
	switch name {
	case "type":
		return e.Type(), true
	case "value":
		return e.Value(), true
	case "traceback", "trace":
		return e.Trace(), true
	default:
		return nil, false
	}
}

func (e *ErrorInfo) String() string { return e.Value() }
