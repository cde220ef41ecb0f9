package tal

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

type defineHandler struct{ *directive }

func (h *defineHandler) Name() string { return "define" }

func (h *defineHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	node := ec.CurrentNode
	attr := node.FindAttribute(h.specs.Define)
	if attr == nil {
		return Outcome{}, nil
	}

	defs, err := ParseDefinitions(attr.Value)
	if err != nil {
		return Outcome{}, NewInvalidAttributeSyntaxError(attr.QualifiedName(), attr.Value, err.Error(), node)
	}

	for _, def := range defs {
		v, err := h.evaluator.Evaluate(ctx, def.Expression, ec)
		if err != nil {
			return Outcome{}, &DefineEvaluationError{Variable: def.VariableName, Expression: def.Expression, Cause: err}
		}
		if tales.IsDefault(v) {
			continue
		}
		if def.IsGlobal() {
			ec.GlobalDefinitions.Set(def.VariableName, v)
		} else {
			ec.LocalDefinitions.Set(def.VariableName, v)
		}
	}
	return Outcome{}, nil
}
