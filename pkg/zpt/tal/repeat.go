package tal

import (
	"context"
	"errors"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// repeatSeparator is inserted between the copies of a repeated element.
const repeatSeparator = "\n"

type repeatHandler struct{ *directive }

func (h *repeatHandler) Name() string { return "repeat" }

func (h *repeatHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	node := ec.CurrentNode
	attr := node.FindAttribute(h.specs.Repeat)
	if attr == nil {
		return Outcome{}, nil
	}

	name, expression, err := ParseRepeat(attr.Value)
	if err != nil {
		return Outcome{}, NewInvalidAttributeSyntaxError(attr.QualifiedName(), attr.Value, err.Error(), node)
	}

	v, err := h.evaluate(ctx, "repeat", expression, ec)
	if err != nil {
		return Outcome{}, err
	}
	if v == nil || tales.IsDefault(v) {
		return Outcome{}, nil
	}

	items, err := tales.Iterate(v)
	if err != nil {
		return Outcome{}, &ExpressionEvaluationError{Directive: "repeat", Expression: expression, Node: node, Cause: err}
	}

	parent := node.Parent()
	if parent == nil {
		return Outcome{}, &ExpressionEvaluationError{Directive: "repeat", Expression: expression, Node: node, Cause: errors.New("repeated element has no parent")}
	}

	contexts := make([]*tales.ExpressionContext, 0, 2*len(items))
	at := node.Index()
	insert := func(n *dom.Node) *tales.ExpressionContext {
		parent.InsertChild(at, n)
		at++
		c := ec.CreateChild(n)
		contexts = append(contexts, c)
		return c
	}

	for i, item := range items {
		if i > 0 {
			insert(node.CreateTextNode(repeatSeparator))
		}
		clone := node.DeepCopy()
		clone.RemoveAttributes(func(a *dom.Attribute) bool { return a.Matches(h.specs.Repeat) })

		c := insert(clone)
		c.Repetitions.Set(name, &tales.RepetitionInfo{
			Name:         name,
			Node:         clone,
			CurrentIndex: i,
			CurrentValue: item,
			Count:        len(items),
		})
		c.LocalDefinitions.Set(name, item)
	}

	node.Remove()
	h.logger.Debug("repeated element", "node", node.String(), "variable", name, "count", len(items))
	return stop(contexts), nil
}
