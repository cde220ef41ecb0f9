package render

import (
	"context"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// Iterator walks a tree of expression contexts depth first, in document
// order, handing every context to a ContextProcessor.
type Iterator struct {
	processor ContextProcessor
	handler   ErrorHandler
	logger    *slog.Logger
}

// NewIterator creates an iterator for p. If p implements ErrorHandler,
// errors from descendants are offered to it once per ancestor.
func NewIterator(p ContextProcessor, logger *slog.Logger) *Iterator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	it := &Iterator{processor: p, logger: logger}
	if h, ok := p.(ErrorHandler); ok {
		it.handler = h
	}
	return it
}

// Walk processes ec and everything beneath it.
func (it *Iterator) Walk(ctx context.Context, ec *tales.ExpressionContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := it.processor.Process(ctx, ec)
	if err != nil {
		return err
	}

	if !result.SkipChildren && ec.CurrentNode != nil {
		node := ec.CurrentNode
		children := append(node.Children[:0:0], node.Children...)
		for _, child := range children {
			// An earlier sibling's directive may have removed this one.
			if child.Parent() != node {
				continue
			}
			err := it.Walk(ctx, ec.CreateChild(child))
			if err == nil {
				continue
			}
			handled, err := it.handle(ctx, err, ec)
			if err != nil {
				return err
			}
			if handled {
				break
			}
		}
	}

	for _, extra := range result.AdditionalContexts {
		err := it.Walk(ctx, extra)
		if err == nil {
			continue
		}
		handled, err := it.recover(ctx, err, result.Recover)
		if err != nil {
			return err
		}
		if handled {
			break
		}
	}
	return nil
}

// recover offers err, raised by an additional context, to fn.
func (it *Iterator) recover(ctx context.Context, err error, fn func(context.Context, error) (bool, error)) (bool, error) {
	if fn == nil || IsFatal(err) {
		return false, err
	}
	handled, handlerErr := fn(ctx, err)
	if handlerErr != nil {
		return false, handlerErr
	}
	if !handled {
		return false, err
	}
	it.logger.Debug("error handled for spliced nodes", "error", err)
	return true, nil
}

// handle offers err, raised beneath ec, to the error handler.
func (it *Iterator) handle(ctx context.Context, err error, ec *tales.ExpressionContext) (bool, error) {
	if it.handler == nil || IsFatal(err) {
		return false, err
	}
	handled, handlerErr := it.handler.HandleError(ctx, err, ec)
	if handlerErr != nil {
		return false, handlerErr
	}
	if !handled {
		return false, err
	}
	it.logger.Debug("error handled by ancestor", "node", ec.CurrentNode.String(), "error", err)
	return true, nil
}
