package tal

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

type conditionHandler struct{ *directive }

func (h *conditionHandler) Name() string { return "condition" }

func (h *conditionHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	attr := ec.CurrentNode.FindAttribute(h.specs.Condition)
	if attr == nil {
		return Outcome{}, nil
	}

	v, err := h.evaluate(ctx, "condition", attr.Value, ec)
	if err != nil {
		return Outcome{}, err
	}
	if tales.IsDefault(v) || tales.IsTruthy(v) {
		return Outcome{}, nil
	}

	ec.CurrentNode.Remove()
	return stop(nil), nil
}
