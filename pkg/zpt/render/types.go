package render

import (
	"context"
	"errors"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// Result tells the iterator what to do after a context was processed.
type Result struct {
	// AdditionalContexts are walked after the children of the current
	// node, in order. Directives that splice nodes into the tree use them
	// so the new nodes are still visited.
	AdditionalContexts []*tales.ExpressionContext

	// SkipChildren stops the iterator descending into the current node.
	SkipChildren bool

	// Recover, when set, is offered errors raised while walking
	// AdditionalContexts. Processors use it when the current node has left
	// the tree but its error handling must still cover the nodes that took
	// its place. It follows the ErrorHandler contract.
	Recover func(ctx context.Context, err error) (bool, error)
}

// ContextProcessor processes a single expression context.
type ContextProcessor interface {
	Process(ctx context.Context, ec *tales.ExpressionContext) (Result, error)
}

// ContextProcessorFunc adapts a function to ContextProcessor.
type ContextProcessorFunc func(ctx context.Context, ec *tales.ExpressionContext) (Result, error)

func (f ContextProcessorFunc) Process(ctx context.Context, ec *tales.ExpressionContext) (Result, error) {
	return f(ctx, ec)
}

// ErrorHandler is implemented by processors which can recover from an
// error raised while processing a descendant of ec.
//
// HandleError returns handled=true if the error was dealt with. A non-nil
// error replaces the original error.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error, ec *tales.ExpressionContext) (bool, error)
}

// FatalError is implemented by errors that no error handler may recover
// from.
type FatalError interface {
	error
	Fatal() bool
}

// IsFatal reports whether err must not be handled: a fatal error, or the
// cancellation of the render.
func IsFatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var fatal FatalError
	return errors.As(err, &fatal) && fatal.Fatal()
}
