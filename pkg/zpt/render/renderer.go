package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// Pass is one walk over a document.
type Pass struct {
	Name      string
	Processor ContextProcessor
}

// ContextFactory creates the root expression context for a pass.
type ContextFactory func(doc *dom.Document) *tales.ExpressionContext

// PassError records the pass during which a render failed.
type PassError struct {
	Pass  string
	Cause error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s pass: %v", e.Pass, e.Cause)
}

func (e *PassError) Unwrap() error {
	return e.Cause
}

// DocumentRenderer runs its passes, in order, over a document. The
// document is modified in place.
type DocumentRenderer struct {
	passes     []Pass
	newContext ContextFactory
	logger     *slog.Logger
}

// NewDocumentRenderer creates a renderer. A nil factory uses a root
// context with no model.
func NewDocumentRenderer(factory ContextFactory, logger *slog.Logger, passes ...Pass) *DocumentRenderer {
	if factory == nil {
		factory = func(doc *dom.Document) *tales.ExpressionContext {
			ec := tales.NewRootContext(doc.Root, nil)
			ec.Template = doc
			return ec
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DocumentRenderer{passes: passes, newContext: factory, logger: logger}
}

// Passes returns the names of the passes in the order they run.
func (r *DocumentRenderer) Passes() []string {
	names := make([]string, len(r.passes))
	for i, p := range r.passes {
		names[i] = p.Name
	}
	return names
}

// Render applies every pass to doc.
func (r *DocumentRenderer) Render(ctx context.Context, doc *dom.Document) error {
	for _, pass := range r.passes {
		start := time.Now()
		ec := r.newContext(doc)
		if err := NewIterator(pass.Processor, r.logger).Walk(ctx, ec); err != nil {
			r.logger.Debug("pass failed", "pass", pass.Name, "source", doc.SourceName, "error", err)
			return &PassError{Pass: pass.Name, Cause: err}
		}
		r.logger.Debug("pass complete", "pass", pass.Name, "source", doc.SourceName, "duration", time.Since(start))
	}
	return nil
}
