package tal

import (
	"context"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// Outcome is what a single directive did to the current context.
type Outcome struct {
	render.Result

	// Stop prevents the directives after this one from running. The
	// Result is only used when Stop is set.
	Stop bool
}

// Handler applies one directive to an element.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error)
}

// StructuredMarkup is implemented by values that are inserted as markup
// by content and replace unless the "text" keyword is used.
type StructuredMarkup interface {
	Markup() string
}

// directive holds what every handler needs.
type directive struct {
	specs     Specs
	evaluator tales.Evaluator
	logger    *slog.Logger
}

// stop ends the pipeline without walking the current node's children.
func stop(contexts []*tales.ExpressionContext) Outcome {
	return Outcome{Stop: true, Result: render.Result{SkipChildren: true, AdditionalContexts: contexts}}
}

// position returns the parent of node and the sibling following it.
func position(node *dom.Node) (parent, next *dom.Node) {
	parent = node.Parent()
	if parent == nil {
		return nil, nil
	}
	if i := node.Index(); i+1 < len(parent.Children) {
		next = parent.Children[i+1]
	}
	return parent, next
}

// spliced ends the pipeline after node left the tree and the nodes of
// contexts took its place. A tal:on-error on node keeps covering them.
func (d *directive) spliced(ec *tales.ExpressionContext, node, parent, next *dom.Node, contexts []*tales.ExpressionContext) Outcome {
	out := stop(contexts)
	if parent != nil && len(contexts) > 0 && node.FindAttribute(d.specs.OnError) != nil {
		s := &splice{element: node, parent: parent, next: next, contexts: contexts}
		out.Recover = func(ctx context.Context, err error) (bool, error) {
			return d.recoverSplice(ctx, err, ec, s)
		}
	}
	return out
}

func (d *directive) evaluate(ctx context.Context, name, expression string, ec *tales.ExpressionContext) (any, error) {
	v, err := d.evaluator.Evaluate(ctx, expression, ec)
	if err != nil {
		return nil, &ExpressionEvaluationError{Directive: name, Expression: expression, Node: ec.CurrentNode, Cause: err}
	}
	return v, nil
}

// domValue is the result of a content, replace or on-error expression.
type domValue struct {
	abort bool
	nodes []*dom.Node
}

// evaluateDOMValue evaluates "[text|structure] expression" into the nodes
// it should produce.
func (d *directive) evaluateDOMValue(ctx context.Context, value string, ec *tales.ExpressionContext) (domValue, error) {
	keyword, expression := ParseContent(value)
	v, err := d.evaluator.Evaluate(ctx, expression, ec)
	if err != nil {
		return domValue{}, err
	}
	if tales.IsDefault(v) {
		return domValue{abort: true}, nil
	}

	structure := keyword == "structure"
	if m, ok := v.(StructuredMarkup); ok && keyword != "text" {
		structure = true
		v = m.Markup()
	}
	if v == nil {
		return domValue{}, nil
	}

	node := ec.CurrentNode
	text := tales.FormatValue(v)
	if !structure {
		return domValue{nodes: []*dom.Node{node.CreateTextNode(text)}}, nil
	}
	nodes, err := node.Document().ParseFragment(text, node)
	if err != nil {
		return domValue{}, err
	}
	d.logger.Debug("inserted structure", "node", node.String(), "nodes", len(nodes))
	return domValue{nodes: nodes}, nil
}
