package dom

import (
	"fmt"
	"strings"
)

// NodeType identifies the kind of a Node.
type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	DoctypeNode
	ProcessingInstructionNode
)

func (t NodeType) String() string {
	switch t {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case DoctypeNode:
		return "doctype"
	case ProcessingInstructionNode:
		return "processing-instruction"
	default:
		return "unknown"
	}
}

// Node is a single node in a document tree.
//
// For elements, Prefix/Name/Namespace describe the tag. For text, comment,
// doctype and processing-instruction nodes the content lives in Data.
type Node struct {
	Type       NodeType
	Prefix     string
	Name       string
	Namespace  string
	Data       string
	Attributes []*Attribute
	Children   []*Node

	// Source records where the node came from, for error messages.
	Source SourceInfo

	// Imported is set on the root of a macro spliced in by metal:use-macro.
	Imported bool

	parent *Node
	doc    *Document
}

// SourceInfo locates a node in its source document.
type SourceInfo struct {
	Name string
	Line int
}

func (s SourceInfo) String() string {
	switch {
	case s.Name != "" && s.Line > 0:
		return fmt.Sprintf("%s:%d", s.Name, s.Line)
	case s.Name != "":
		return s.Name
	case s.Line > 0:
		return fmt.Sprintf("line %d", s.Line)
	default:
		return "unknown source"
	}
}

// NewElement creates a detached element owned by doc.
func NewElement(doc *Document, prefix, name, namespace string) *Node {
	return &Node{Type: ElementNode, Prefix: prefix, Name: name, Namespace: namespace, doc: doc}
}

// Parent returns the parent node, or nil for a root or detached node.
func (n *Node) Parent() *Node { return n.parent }

// Document returns the document which owns the node.
func (n *Node) Document() *Document { return n.doc }

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool { return n.Type == ElementNode }

// QualifiedName returns the element name as written in markup.
func (n *Node) QualifiedName() string {
	if n.Prefix == "" {
		return n.Name
	}
	return n.Prefix + ":" + n.Name
}

// InNamespace reports whether the element belongs to the namespace uri.
func (n *Node) InNamespace(uri string) bool {
	return n.Type == ElementNode && uri != "" && n.Namespace == uri
}

// FindAttribute returns the first attribute matching spec, or nil.
func (n *Node) FindAttribute(spec AttributeSpec) *Attribute {
	for _, a := range n.Attributes {
		if a.Matches(spec) {
			return a
		}
	}
	return nil
}

// FindFirstAttribute returns the first attribute matching any of specs,
// together with the spec it matched.
func (n *Node) FindFirstAttribute(specs ...AttributeSpec) (*Attribute, AttributeSpec) {
	for _, spec := range specs {
		if a := n.FindAttribute(spec); a != nil {
			return a, spec
		}
	}
	return nil, AttributeSpec{}
}

// AddAttribute appends a to the attribute list. An existing attribute with
// the same identity is replaced in place.
func (n *Node) AddAttribute(a *Attribute) {
	spec := AttributeSpec{Name: a.Name, Namespace: a.Namespace}
	for i, existing := range n.Attributes {
		if existing.Matches(spec) {
			n.Attributes[i] = a
			return
		}
	}
	n.Attributes = append(n.Attributes, a)
}

// RemoveAttribute removes a from the attribute list.
func (n *Node) RemoveAttribute(a *Attribute) bool {
	for i, existing := range n.Attributes {
		if existing == a {
			n.Attributes = append(n.Attributes[:i], n.Attributes[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAttributes removes every attribute for which drop returns true.
func (n *Node) RemoveAttributes(drop func(*Attribute) bool) int {
	kept := n.Attributes[:0]
	removed := 0
	for _, a := range n.Attributes {
		if drop(a) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(n.Attributes); i++ {
		n.Attributes[i] = nil
	}
	n.Attributes = kept
	return removed
}

// LookupNamespace resolves prefix against xmlns declarations on the node
// and its ancestors, then the owning document's well-known prefixes.
func (n *Node) LookupNamespace(prefix string) (string, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		for _, a := range cur.Attributes {
			if prefix == "" && a.Prefix == "" && a.Name == "xmlns" {
				return a.Value, true
			}
			if prefix != "" && a.Prefix == "xmlns" && a.Name == prefix {
				return a.Value, true
			}
		}
	}
	if n.doc != nil {
		if uri, ok := n.doc.Prefixes[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// Index returns the position of n within its parent's children, or -1.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// AppendChild adopts c as the last child of n.
func (n *Node) AppendChild(c *Node) {
	c.detach()
	c.parent = n
	n.Children = append(n.Children, c)
}

// InsertChild adopts c at position i.
func (n *Node) InsertChild(i int, c *Node) {
	c.detach()
	if i < 0 {
		i = 0
	}
	if i > len(n.Children) {
		i = len(n.Children)
	}
	c.parent = n
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = c
}

// ClearChildren detaches every child of n.
func (n *Node) ClearChildren() {
	for _, c := range n.Children {
		c.parent = nil
	}
	n.Children = nil
}

// SetChildren replaces the children of n with nodes.
func (n *Node) SetChildren(nodes []*Node) {
	n.ClearChildren()
	for _, c := range nodes {
		n.AppendChild(c)
	}
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	n.detach()
}

// IsDetached reports whether the node has no parent.
func (n *Node) IsDetached() bool { return n.parent == nil }

// ReplaceWith puts nodes where n was, in order, and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	parent := n.parent
	if parent == nil {
		return
	}
	idx := n.Index()
	n.detach()
	for i, r := range nodes {
		parent.InsertChild(idx+i, r)
	}
}

// Omit replaces n with its own children and returns them.
func (n *Node) Omit() []*Node {
	children := append([]*Node(nil), n.Children...)
	n.ClearChildren()
	n.ReplaceWith(children...)
	return children
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	p := n.parent
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// DeepCopy returns a detached copy of n and its whole subtree.
func (n *Node) DeepCopy() *Node {
	c := &Node{
		Type:      n.Type,
		Prefix:    n.Prefix,
		Name:      n.Name,
		Namespace: n.Namespace,
		Data:      n.Data,
		Source:    n.Source,
		Imported:  n.Imported,
		doc:       n.doc,
	}
	if len(n.Attributes) > 0 {
		c.Attributes = make([]*Attribute, len(n.Attributes))
		for i, a := range n.Attributes {
			c.Attributes[i] = a.Copy()
		}
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			cc := child.DeepCopy()
			cc.parent = c
			c.Children[i] = cc
		}
	}
	return c
}

// CreateTextNode creates a detached text node owned by the same document.
func (n *Node) CreateTextNode(text string) *Node {
	return &Node{Type: TextNode, Data: text, doc: n.doc}
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the descendants of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range append([]*Node(nil), n.Children...) {
		c.Walk(fn)
	}
}

// Text returns the concatenated text content of n.
func (n *Node) Text() string {
	if n.Type == TextNode {
		return n.Data
	}
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Type == TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// String describes the node for logs and error messages.
func (n *Node) String() string {
	switch n.Type {
	case ElementNode:
		var b strings.Builder
		b.WriteByte('<')
		b.WriteString(n.QualifiedName())
		for _, a := range n.Attributes {
			b.WriteByte(' ')
			b.WriteString(a.String())
		}
		b.WriteByte('>')
		if n.Source != (SourceInfo{}) {
			b.WriteString(" (")
			b.WriteString(n.Source.String())
			b.WriteByte(')')
		}
		return b.String()
	case TextNode:
		text := n.Data
		if len(text) > 32 {
			text = text[:32] + "..."
		}
		return fmt.Sprintf("text(%q)", text)
	default:
		return n.Type.String()
	}
}
