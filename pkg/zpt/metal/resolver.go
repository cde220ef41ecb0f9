package metal

import (
	"context"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// Resolver evaluates use-macro and extend-macro expressions.
type Resolver struct {
	evaluator tales.Evaluator
	logger    *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(evaluator tales.Evaluator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{evaluator: evaluator, logger: logger}
}

// GetMacro resolves the macro referenced by the first attribute of node
// matching one of specs. It returns nil without error if node has no such
// attribute. The macro returned is a copy which the caller may modify.
func (r *Resolver) GetMacro(ctx context.Context, node *dom.Node, ec *tales.ExpressionContext, specs ...dom.AttributeSpec) (*Macro, error) {
	attr, spec := node.FindFirstAttribute(specs...)
	if attr == nil {
		return nil, nil
	}

	notFound := &MacroNotFoundError{Attribute: "metal:" + spec.Name, Expression: attr.Value, Node: node}
	v, err := r.evaluator.Evaluate(ctx, attr.Value, ec)
	if err != nil {
		notFound.Cause = err
		return nil, notFound
	}
	macro, ok := v.(*Macro)
	if !ok || macro == nil {
		return nil, notFound
	}

	r.logger.Debug("resolved macro", "attribute", spec.Name, "macro", macro.Name, "source", macro.Node.Source.String())
	return macro.Copy(), nil
}
