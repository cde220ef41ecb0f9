package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ReadHTML parses an HTML document. Sources without an <html> element are
// parsed as a body fragment so that the output does not gain an implied
// html/head/body wrapper.
func ReadHTML(r io.Reader, sourceName string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", displayName(sourceName), err)
	}

	doc := NewDocument(HTML)
	doc.SourceName = sourceName

	if hasHTMLElement(src) {
		root, err := html.Parse(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", displayName(sourceName), err)
		}
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			doc.Root.AppendChild(fromHTML(doc, c, sourceName))
		}
	} else {
		doc.Fragment = true
		nodes, err := html.ParseFragment(bytes.NewReader(src), bodyContext())
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", displayName(sourceName), err)
		}
		for _, c := range nodes {
			doc.Root.AppendChild(fromHTML(doc, c, sourceName))
		}
	}

	resolveNamespaces(doc.Root, nil)
	return doc, nil
}

func hasHTMLElement(src []byte) bool {
	return bytes.Contains(bytes.ToLower(src), []byte("<html"))
}

func bodyContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

func parseHTMLFragment(doc *Document, markup string, context *Node) ([]*Node, error) {
	ctx := bodyContext()
	if context != nil && context.Type == ElementNode && context.Prefix == "" {
		name := strings.ToLower(context.Name)
		ctx = &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name))}
	}
	parsed, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	nodes := make([]*Node, 0, len(parsed))
	for _, p := range parsed {
		n := fromHTML(doc, p, "")
		resolveNamespaces(n, context)
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// fromHTML converts an x/net/html subtree. Namespaces are resolved
// afterwards, once parent pointers exist.
func fromHTML(doc *Document, h *html.Node, sourceName string) *Node {
	n := &Node{doc: doc, Source: SourceInfo{Name: sourceName}}
	switch h.Type {
	case html.ElementNode:
		n.Type = ElementNode
		n.Prefix, n.Name = splitQualifiedName(h.Data)
		for _, a := range h.Attr {
			attr := &Attribute{Value: a.Val}
			if a.Namespace != "" {
				attr.Prefix, attr.Name = a.Namespace, a.Key
			} else {
				attr.Prefix, attr.Name = splitQualifiedName(a.Key)
			}
			n.Attributes = append(n.Attributes, attr)
		}
	case html.TextNode:
		n.Type = TextNode
		n.Data = h.Data
	case html.CommentNode:
		n.Type = CommentNode
		n.Data = h.Data
	case html.DoctypeNode:
		n.Type = DoctypeNode
		n.Data = h.Data
		for _, a := range h.Attr {
			n.Attributes = append(n.Attributes, &Attribute{Name: a.Key, Value: a.Val})
		}
	case html.DocumentNode:
		n.Type = DocumentNode
	default:
		n.Type = CommentNode
		n.Data = h.Data
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		n.AppendChild(fromHTML(doc, c, sourceName))
	}
	return n
}

// toHTML converts a subtree back into x/net/html nodes for rendering.
func toHTML(n *Node) *html.Node {
	h := &html.Node{}
	switch n.Type {
	case DocumentNode:
		h.Type = html.DocumentNode
	case ElementNode:
		h.Type = html.ElementNode
		h.Data = n.QualifiedName()
		if n.Prefix == "" {
			h.DataAtom = atom.Lookup([]byte(n.Name))
		}
		for _, a := range n.Attributes {
			h.Attr = append(h.Attr, html.Attribute{Key: a.QualifiedName(), Val: a.Value})
		}
	case TextNode:
		h.Type = html.TextNode
		h.Data = n.Data
	case CommentNode:
		h.Type = html.CommentNode
		h.Data = n.Data
	case DoctypeNode:
		h.Type = html.DoctypeNode
		h.Data = n.Data
		for _, a := range n.Attributes {
			h.Attr = append(h.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
	case ProcessingInstructionNode:
		// HTML has no processing instructions; keep them visible as a comment.
		h.Type = html.CommentNode
		h.Data = "?" + n.Name + " " + n.Data + "?"
	}
	for _, c := range n.Children {
		h.AppendChild(toHTML(c))
	}
	return h
}

func writeHTML(w io.Writer, d *Document) error {
	if err := html.Render(w, toHTML(d.Root)); err != nil {
		return fmt.Errorf("rendering %s: %w", displayName(d.SourceName), err)
	}
	return nil
}

// RenderNodeHTML renders a single node and its subtree as HTML.
func RenderNodeHTML(w io.Writer, n *Node) error {
	return html.Render(w, toHTML(n))
}

func displayName(name string) string {
	if name == "" {
		return "document"
	}
	return name
}
