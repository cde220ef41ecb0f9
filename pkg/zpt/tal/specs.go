package tal

import "github.com/benjaminschreck/go-zpt/pkg/zpt/dom"

// Specs identifies the TAL directive attributes.
type Specs struct {
	Define     dom.AttributeSpec
	Condition  dom.AttributeSpec
	Repeat     dom.AttributeSpec
	Content    dom.AttributeSpec
	Replace    dom.AttributeSpec
	Attributes dom.AttributeSpec
	OmitTag    dom.AttributeSpec
	OnError    dom.AttributeSpec
}

// DefaultSpecs returns the attributes in the standard TAL namespace.
func DefaultSpecs() Specs {
	return SpecsFor(dom.TALNamespace)
}

// SpecsFor returns TAL attribute specs in namespace ns.
func SpecsFor(ns string) Specs {
	spec := func(name string) dom.AttributeSpec { return dom.AttributeSpec{Name: name, Namespace: ns} }
	return Specs{
		Define:     spec("define"),
		Condition:  spec("condition"),
		Repeat:     spec("repeat"),
		Content:    spec("content"),
		Replace:    spec("replace"),
		Attributes: spec("attributes"),
		OmitTag:    spec("omit-tag"),
		OnError:    spec("on-error"),
	}
}

// All returns every spec in processing order.
func (s Specs) All() []dom.AttributeSpec {
	return []dom.AttributeSpec{s.Define, s.Condition, s.Repeat, s.Content, s.Replace, s.Attributes, s.OmitTag, s.OnError}
}
