package tal

import (
	"context"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

type attributesHandler struct{ *directive }

func (h *attributesHandler) Name() string { return "attributes" }

func (h *attributesHandler) Handle(ctx context.Context, ec *tales.ExpressionContext) (Outcome, error) {
	node := ec.CurrentNode
	attr := node.FindAttribute(h.specs.Attributes)
	if attr == nil {
		return Outcome{}, nil
	}

	defs, err := ParseAttributeDefinitions(attr.Value)
	if err != nil {
		return Outcome{}, NewInvalidAttributeSyntaxError(attr.QualifiedName(), attr.Value, err.Error(), node)
	}

	for _, def := range defs {
		v, err := h.evaluate(ctx, "attributes", def.Expression, ec)
		if err != nil {
			return Outcome{}, err
		}
		if tales.IsDefault(v) {
			continue
		}
		apply(node, def, v)
	}
	return Outcome{}, nil
}

// apply sets, replaces or removes the attribute named by def. nil and
// false remove it; true sets it to its own name.
func apply(node *dom.Node, def AttributeDefinition, v any) {
	namespace := ""
	if def.Prefix != "" {
		namespace, _ = node.LookupNamespace(def.Prefix)
	}
	existing := findDefined(node, def, namespace)

	if v == nil || v == false {
		if existing != nil {
			node.RemoveAttribute(existing)
		}
		return
	}

	value := tales.FormatValue(v)
	if v == true {
		value = def.Name
	}
	if existing != nil {
		existing.Value = value
		return
	}
	node.AddAttribute(&dom.Attribute{Prefix: def.Prefix, Name: def.Name, Namespace: namespace, Value: value})
}

// findDefined finds the attribute def refers to. Attributes with an
// undeclared prefix are matched by prefix.
func findDefined(node *dom.Node, def AttributeDefinition, namespace string) *dom.Attribute {
	for _, a := range node.Attributes {
		if a.Name != def.Name {
			continue
		}
		if namespace != "" && a.Namespace == namespace {
			return a
		}
		if namespace == "" && a.Namespace == "" && a.Prefix == def.Prefix {
			return a
		}
	}
	return nil
}
