package tal

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

type contentHandler struct{ *directive }

func (h *contentHandler) Name() string { return "content-or-replace" }

func (h *contentHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	node := ec.CurrentNode
	content := node.FindAttribute(h.specs.Content)
	replace := node.FindAttribute(h.specs.Replace)

	switch {
	case content != nil && replace != nil:
		return Outcome{}, NewInvalidAttributeSyntaxError(content.QualifiedName(), content.Value,
			"cannot be used together with "+replace.QualifiedName(), node)
	case content != nil:
		return h.content(ctx, content, ec)
	case replace != nil:
		return h.replace(ctx, replace, ec)
	default:
		return Outcome{}, nil
	}
}

func (h *contentHandler) content(ctx context.Context, attr *dom.Attribute, ec *tales.ExpressionContext) (Outcome, error) {
	v, err := h.evaluateDOMValue(ctx, attr.Value, ec)
	if err != nil {
		return Outcome{}, &ExpressionEvaluationError{Directive: "content", Expression: attr.Value, Node: ec.CurrentNode, Cause: err}
	}
	if !v.abort {
		ec.CurrentNode.SetChildren(v.nodes)
	}
	return Outcome{}, nil
}

func (h *contentHandler) replace(ctx context.Context, attr *dom.Attribute, ec *tales.ExpressionContext) (Outcome, error) {
	node := ec.CurrentNode
	v, err := h.evaluateDOMValue(ctx, attr.Value, ec)
	if err != nil {
		return Outcome{}, &ExpressionEvaluationError{Directive: "replace", Expression: attr.Value, Node: node, Cause: err}
	}

	parent, next := position(node)
	if v.abort {
		// Keep the content, drop the tag.
		h.carryAttributes(node, node.Children, false)
		children := node.Omit()
		return h.spliced(ec, node, parent, next, ec.CreateChildren(children)), nil
	}

	replacements := v.nodes
	single := len(replacements) == 1
	h.carryAttributes(node, replacements, single)
	node.ReplaceWith(replacements...)
	if single {
		// The remaining directives, and tal:on-error, apply to the single
		// replacement.
		ec.CurrentNode = replacements[0]
		return Outcome{}, nil
	}
	return h.spliced(ec, node, parent, next, ec.CreateChildren(replacements)), nil
}

// carryAttributes copies the directives which still have to run after a
// replace onto the element replacements. tal:on-error goes along when the
// replacement takes over the element's place in the pipeline.
func (h *contentHandler) carryAttributes(from *dom.Node, to []*dom.Node, onError bool) {
	specs := []dom.AttributeSpec{h.specs.Attributes, h.specs.OmitTag}
	if onError {
		specs = append(specs, h.specs.OnError)
	}
	var carried []*dom.Attribute
	for _, spec := range specs {
		if a := from.FindAttribute(spec); a != nil {
			carried = append(carried, a)
		}
	}
	if len(carried) == 0 {
		return
	}
	for _, n := range to {
		if !n.IsElement() {
			continue
		}
		for _, a := range carried {
			n.AddAttribute(a.Copy())
		}
	}
}
