package metal

import (
	"context"
	"strings"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

var annotationDivider = strings.Repeat("=", 78)

// SourceAnnotator adds comments recording where parts of the output came
// from. It annotates the root element, spliced macros (before and after),
// macro definitions and slot definitions. It must run before the cleanup
// pass removes the METAL attributes it looks for.
type SourceAnnotator struct {
	specs Specs
}

// NewSourceAnnotator creates the processor of the source annotation pass.
func NewSourceAnnotator() *SourceAnnotator {
	return &SourceAnnotator{specs: DefaultSpecs()}
}

func (a *SourceAnnotator) Process(ctx context.Context, ec *tales.ExpressionContext) (render.Result, error) {
	node := ec.CurrentNode
	if node == nil || !node.IsElement() || node.Parent() == nil {
		return render.Result{}, nil
	}

	switch {
	case !node.Parent().IsElement():
		insertComment(node, false, annotation(node.Source.String()))
	case node.Imported:
		insertComment(node, false, annotation(node.Source.String()))
		insertComment(node, true, annotation(node.Source.String()+" (end tag)"))
	case node.FindAttribute(a.specs.DefineMacro) != nil:
		insertComment(node, false, annotation(node.Source.String()))
	case node.FindAttribute(a.specs.DefineSlot) != nil:
		insertComment(node, true, annotation(node.Source.String()))
	}
	return render.Result{}, nil
}

func annotation(info string) string {
	return "\n" + annotationDivider + "\n" + strings.ReplaceAll(info, "--", "- -") + "\n" + annotationDivider + "\n"
}

// insertComment puts a comment next to node, after it when after is set.
func insertComment(node *dom.Node, after bool, text string) {
	parent := node.Parent()
	i := node.Index()
	if after {
		i++
	}
	parent.InsertChild(i, node.Document().CreateComment(text))
}
