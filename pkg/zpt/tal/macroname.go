package tal

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// MacroNameVariable is the local variable holding the name of the macro
// an element defines.
const MacroNameVariable = "macroname"

type macroNameRecorder struct {
	spec dom.AttributeSpec
}

func (h *macroNameRecorder) Name() string { return "macro-name" }

func (h *macroNameRecorder) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	if attr := ec.CurrentNode.FindAttribute(h.spec); attr != nil {
		ec.LocalDefinitions.Set(MacroNameVariable, attr.Value)
	}
	return Outcome{}, nil
}
