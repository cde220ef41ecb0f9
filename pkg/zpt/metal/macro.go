package metal

import (
	"sort"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

// Macro is a named, reusable element.
type Macro struct {
	Name string
	Node *dom.Node
}

// Copy returns the macro with a detached deep copy of its element.
func (m *Macro) Copy() *Macro {
	return &Macro{Name: m.Name, Node: m.Node.DeepCopy()}
}

func (m *Macro) String() string { return "macro " + m.Name }

// Slot is a define-slot or fill-slot element.
type Slot struct {
	Name string
	Node *dom.Node
}

// Template exposes the macros of a document to path expressions:
//
//	template/macros/<name>
type Template struct {
	Document *dom.Document
	spec     dom.AttributeSpec
}

// NewTemplate wraps doc.
func NewTemplate(doc *dom.Document) *Template {
	return &Template{Document: doc, spec: DefaultSpecs().DefineMacro}
}

// Macro returns the first macro named name, in document order.
func (t *Template) Macro(name string) (*Macro, bool) {
	var found *Macro
	t.Document.Root.Walk(func(n *dom.Node) bool {
		if found != nil {
			return false
		}
		if a := n.FindAttribute(t.spec); a != nil && a.Value == name {
			found = &Macro{Name: name, Node: n}
			return false
		}
		return true
	})
	return found, found != nil
}

// MacroNames lists the macros the document defines, sorted.
func (t *Template) MacroNames() []string {
	seen := map[string]struct{}{}
	t.Document.Root.Walk(func(n *dom.Node) bool {
		if a := n.FindAttribute(t.spec); a != nil {
			seen[a.Value] = struct{}{}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Template) GetValue(name string) (any, bool) {
	switch name {
	case "macros":
		return macros{t}, true
	case "name", "source":
		return t.Document.SourceName, true
	default:
		return nil, false
	}
}

// macros is the value of template/macros.
type macros struct{ t *Template }

func (m macros) GetValue(name string) (any, bool) {
	macro, ok := m.t.Macro(name)
	if !ok {
		return nil, false
	}
	return macro, true
}

// Items lets tal:repeat loop over the macro names.
func (m macros) Items() []any {
	names := m.t.MacroNames()
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
