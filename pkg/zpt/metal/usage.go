package metal

import (
	"context"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/render"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// UsageProcessor is the processor of the METAL pass. It replaces each
// element carrying use-macro with the expanded macro and lets the walk
// continue into it, so nested macro use is expanded too. extend-macro is
// only followed while expanding a used macro.
//
// A UsageProcessor records the macros it has spliced in and must only be
// used for one render.
type UsageProcessor struct {
	specs    Specs
	resolver *Resolver
	expander *Expander
	maxDepth int
	logger   *slog.Logger

	spliced map[*dom.Node]int
}

// NewUsageProcessor creates the METAL pass processor. maxDepth <= 0 uses
// DefaultMaxDepth.
func NewUsageProcessor(evaluator tales.Evaluator, maxDepth int, logger *slog.Logger) *UsageProcessor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	specs := DefaultSpecs()
	resolver := NewResolver(evaluator, logger)
	return &UsageProcessor{
		specs:    specs,
		resolver: resolver,
		expander: NewExpander(specs, resolver, maxDepth, logger),
		maxDepth: maxDepth,
		logger:   logger,
		spliced:  map[*dom.Node]int{},
	}
}

func (p *UsageProcessor) Process(ctx context.Context, ec *tales.ExpressionContext) (render.Result, error) {
	node := ec.CurrentNode
	if node == nil || !node.IsElement() {
		return render.Result{}, nil
	}

	macro, err := p.resolver.GetMacro(ctx, node, ec, p.specs.UseMacro)
	if err != nil || macro == nil {
		return render.Result{}, err
	}

	depth := p.depthOf(node) + 1
	if depth > p.maxDepth {
		return render.Result{}, &MacroExtensionDepthError{Macro: macro.Name, Limit: p.maxDepth}
	}

	expanded, err := p.expander.Expand(ctx, macro, ec)
	if err != nil {
		return render.Result{}, err
	}

	replacement := expanded.Node
	if doc := node.Document(); doc != nil {
		doc.Adopt(replacement)
	}
	replacement.Imported = true
	node.ReplaceWith(replacement)
	p.spliced[replacement] = depth
	ec.CurrentNode = replacement

	p.logger.Debug("expanded macro", "macro", expanded.Name, "call_site", node.Source.String(), "depth", depth)
	return render.Result{}, nil
}

// depthOf returns how many spliced macros enclose n.
func (p *UsageProcessor) depthOf(n *dom.Node) int {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if d, ok := p.spliced[cur]; ok {
			return d
		}
	}
	return 0
}
