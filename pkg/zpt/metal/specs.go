package metal

import "github.com/benjaminschreck/go-zpt/pkg/zpt/dom"

// Specs identifies the METAL attributes.
type Specs struct {
	DefineMacro dom.AttributeSpec
	ExtendMacro dom.AttributeSpec
	UseMacro    dom.AttributeSpec
	DefineSlot  dom.AttributeSpec
	FillSlot    dom.AttributeSpec
}

// DefaultSpecs returns the attributes in the standard METAL namespace.
func DefaultSpecs() Specs {
	spec := func(name string) dom.AttributeSpec {
		return dom.AttributeSpec{Name: name, Namespace: dom.METALNamespace}
	}
	return Specs{
		DefineMacro: spec("define-macro"),
		ExtendMacro: spec("extend-macro"),
		UseMacro:    spec("use-macro"),
		DefineSlot:  spec("define-slot"),
		FillSlot:    spec("fill-slot"),
	}
}
