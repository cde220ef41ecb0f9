package zpt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/metal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

type loadDepthKey struct{}

// passes returns the render passes in the order they run: METAL, TAL,
// source annotation when enabled, then cleanup.
func (e *Engine) passes(evaluator tales.Evaluator, logger *slog.Logger) []render.Pass {
	passes := []render.Pass{
		{Name: "metal", Processor: metal.NewUsageProcessor(evaluator, e.config.MaxMacroDepth, logger)},
		{Name: "tal", Processor: tal.NewPipeline(evaluator, tal.WithLogger(logger))},
	}
	if e.config.SourceAnnotation {
		passes = append(passes, render.Pass{Name: "annotate", Processor: metal.NewSourceAnnotator()})
	}
	return append(passes, render.Pass{Name: "cleanup", Processor: render.NewCleanupProcessor()})
}

// load implements the "load:" expression type. The value of body, a
// template, document, macro or element, is rendered with the current
// variables and returned as markup.
func (e *Engine) load(ctx context.Context, evaluator tales.Evaluator, body string, ec *tales.ExpressionContext) (any, error) {
	v, err := evaluator.Evaluate(ctx, body, ec)
	if err != nil || v == nil || tales.IsDefault(v) {
		return v, err
	}

	var doc *dom.Document
	switch t := v.(type) {
	case *metal.Template:
		doc = t.Document.Clone()
	case *PreparedDocument:
		doc = t.Document.Clone()
	case *dom.Document:
		doc = t.Clone()
	case *metal.Macro:
		doc = documentFor(t.Node)
	case *dom.Node:
		doc = documentFor(t)
	default:
		return nil, fmt.Errorf("load: cannot render %T", v)
	}

	depth, _ := ctx.Value(loadDepthKey{}).(int)
	if depth >= e.config.MaxMacroDepth {
		return nil, fmt.Errorf("load: nested deeper than %d", e.config.MaxMacroDepth)
	}
	ctx = context.WithValue(ctx, loadDepthKey{}, depth+1)

	template := metal.NewTemplate(doc.Clone())
	factory := func(d *dom.Document) *tales.ExpressionContext {
		child := ec.CreateChild(d.Root)
		child.Template = template
		return child
	}
	logger := e.Logger().With("loaded", body)
	if err := render.NewDocumentRenderer(factory, logger, e.passes(evaluator, logger)...).Render(ctx, doc); err != nil {
		return nil, fmt.Errorf("load %s: %w", body, err)
	}
	return tales.Structure{Value: doc.String()}, nil
}

// documentFor wraps a copy of n in a fragment document of its own.
func documentFor(n *dom.Node) *dom.Document {
	src := n.Document()
	doc := dom.NewDocument(src.Type)
	doc.Fragment = true
	doc.OmitXMLDeclaration = true
	doc.SourceName = src.SourceName
	for k, v := range src.Prefixes {
		doc.Prefixes[k] = v
	}
	c := n.DeepCopy()
	doc.Adopt(c)
	doc.Root.AppendChild(c)
	return doc
}
