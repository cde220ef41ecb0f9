package metal

import (
	"context"
	"log/slog"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// DefaultMaxDepth bounds extend-macro chains and nested macro use.
const DefaultMaxDepth = 32

// Expander fills a macro's slots from a call site, following its
// extend-macro chain down to the base macro.
type Expander struct {
	specs    Specs
	resolver *Resolver
	finder   *SlotFinder
	filler   *SlotFiller
	maxDepth int
	logger   *slog.Logger
}

// NewExpander creates an expander. maxDepth <= 0 uses DefaultMaxDepth.
func NewExpander(specs Specs, resolver *Resolver, maxDepth int, logger *slog.Logger) *Expander {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Expander{
		specs:    specs,
		resolver: resolver,
		finder:   NewSlotFinder(specs),
		filler:   NewSlotFiller(specs, logger),
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Expand fills macro from the call site ec.CurrentNode and returns the
// macro to splice in: macro itself, or the base of its extension chain.
//
// The call site's fillers fill the slots of macro. At each extension step
// the extending macro's own fillers are added, replacing call-site fillers
// of the same name, and then fill the slots of the extended macro.
func (e *Expander) Expand(ctx context.Context, macro *Macro, ec *tales.ExpressionContext) (*Macro, error) {
	fillers := e.finder.GetSlotFillers(ec.CurrentNode)
	e.filler.FillSlots(fillers, e.finder.GetDefinedSlots(macro.Node), macro.Node)

	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		extended, err := e.resolver.GetMacro(ctx, macro.Node, ec, e.specs.ExtendMacro)
		if err != nil {
			return nil, err
		}
		if extended == nil {
			return macro, nil
		}
		if depth >= e.maxDepth {
			return nil, &MacroExtensionDepthError{Macro: macro.Name, Limit: e.maxDepth}
		}

		e.logger.Debug("macro extends another", "macro", macro.Name, "extended", extended.Name)
		for name, slot := range e.finder.GetSlotFillers(macro.Node) {
			fillers[name] = slot
		}
		e.filler.FillSlots(fillers, e.finder.GetDefinedSlots(extended.Node), extended.Node)
		macro = extended
	}
}
