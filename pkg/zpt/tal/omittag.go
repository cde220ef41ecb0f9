package tal

import (
	"context"
	"strings"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

type omitTagHandler struct{ *directive }

func (h *omitTagHandler) Name() string { return "omit-tag" }

func (h *omitTagHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	node := ec.CurrentNode
	attr := node.FindAttribute(h.specs.OmitTag)
	if attr == nil {
		return Outcome{}, nil
	}

	if strings.TrimSpace(attr.Value) != "" {
		v, err := h.evaluate(ctx, "omit-tag", attr.Value, ec)
		if err != nil {
			return Outcome{}, err
		}
		if tales.IsDefault(v) || !tales.IsTruthy(v) {
			return Outcome{}, nil
		}
	}

	parent, next := position(node)
	children := node.Omit()
	return h.spliced(ec, node, parent, next, ec.CreateChildren(children)), nil
}
