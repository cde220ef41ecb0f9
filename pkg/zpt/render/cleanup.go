package render

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// CleanupProcessor removes ZPT markup from rendered output: elements in
// the TAL or METAL namespace are replaced by their children, and
// attributes in those namespaces are dropped together with the xmlns
// declarations that introduced them.
type CleanupProcessor struct {
	Namespaces []string
}

// NewCleanupProcessor creates a processor which removes the TAL and METAL
// namespaces.
func NewCleanupProcessor() *CleanupProcessor {
	return &CleanupProcessor{Namespaces: []string{dom.TALNamespace, dom.METALNamespace}}
}

func (p *CleanupProcessor) Process(ctx context.Context, ec *tales.ExpressionContext) (Result, error) {
	node := ec.CurrentNode
	if node == nil || !node.IsElement() {
		return Result{}, nil
	}

	node.RemoveAttributes(p.isZPTAttribute)

	if !p.isZPTElement(node) {
		return Result{}, nil
	}
	children := node.Omit()
	return Result{
		AdditionalContexts: ec.CreateChildren(children),
		SkipChildren:       true,
	}, nil
}

func (p *CleanupProcessor) isZPTElement(n *dom.Node) bool {
	for _, ns := range p.Namespaces {
		if n.InNamespace(ns) {
			return true
		}
	}
	return false
}

func (p *CleanupProcessor) isZPTAttribute(a *dom.Attribute) bool {
	for _, ns := range p.Namespaces {
		if a.InNamespace(ns) || a.IsNamespaceDeclarationFor(ns) {
			return true
		}
	}
	return false
}
