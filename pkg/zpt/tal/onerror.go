package tal

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// onErrorHandler implements tal:on-error. It does nothing while the
// pipeline runs normally; the pipeline calls handle when a later
// directive, or the rendering of a descendant, fails.
type onErrorHandler struct{ *directive }

func (h *onErrorHandler) Name() string { return "on-error" }

func (h *onErrorHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	return Outcome{}, nil
}

// handle replaces the content of the current element with the on-error
// expression's result. It reports false when the element has no on-error
// attribute or the error must not be handled.
func (h *onErrorHandler) handle(ctx context.Context, err error, ec *tales.ExpressionContext) (bool, error) {
	if render.IsFatal(err) {
		return false, nil
	}
	node := ec.CurrentNode
	if node == nil || !node.IsElement() {
		return false, nil
	}
	attr := node.FindAttribute(h.specs.OnError)
	if attr == nil {
		return false, nil
	}

	h.logger.Debug("tal:on-error suppressing error", "node", node.String(), "error", err)

	errCtx := ec.CreateSibling(node)
	errCtx.Error = tales.NewErrorInfo(err)
	v, evalErr := h.evaluateDOMValue(ctx, attr.Value, errCtx)
	if evalErr != nil {
		h.logger.Error("tal:on-error expression failed", "node", node.String(), "error", evalErr, "original_error", err)
		return false, &OnErrorHandlingError{Expression: attr.Value, Original: err, Cause: evalErr}
	}
	if !v.abort {
		node.SetChildren(v.nodes)
	}
	return true, nil
}

// splice records where an element that left the tree used to be, and the
// contexts of the nodes which replaced it.
type splice struct {
	element  *dom.Node
	parent   *dom.Node
	next     *dom.Node
	contexts []*tales.ExpressionContext
}

// recoverSplice handles an error raised beneath the nodes that replaced
// s.element. The on-error result takes the place of those nodes.
func (d *directive) recoverSplice(ctx context.Context, err error, ec *tales.ExpressionContext, s *splice) (bool, error) {
	if render.IsFatal(err) {
		return false, nil
	}
	attr := s.element.FindAttribute(d.specs.OnError)
	if attr == nil {
		return false, nil
	}

	d.logger.Debug("tal:on-error suppressing error", "node", s.element.String(), "error", err)

	errCtx := ec.CreateSibling(s.element)
	errCtx.Error = tales.NewErrorInfo(err)
	v, evalErr := d.evaluateDOMValue(ctx, attr.Value, errCtx)
	if evalErr != nil {
		d.logger.Error("tal:on-error expression failed", "node", s.element.String(), "error", evalErr, "original_error", err)
		return false, &OnErrorHandlingError{Expression: attr.Value, Original: err, Cause: evalErr}
	}
	if v.abort {
		return true, nil
	}

	var attached []*dom.Node
	for _, c := range s.contexts {
		if n := c.CurrentNode; n != nil && n.Parent() == s.parent {
			attached = append(attached, n)
		}
	}
	at := len(s.parent.Children)
	switch {
	case len(attached) > 0:
		at = attached[0].Index()
	case s.next != nil && s.next.Parent() == s.parent:
		at = s.next.Index()
	}
	for _, n := range attached {
		n.Remove()
	}
	for i, n := range v.nodes {
		s.parent.InsertChild(at+i, n)
	}
	return true, nil
}
