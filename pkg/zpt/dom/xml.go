package dom

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadXML parses an XML document, keeping prefixes as written.
func ReadXML(r io.Reader, sourceName string) (*Document, error) {
	doc := NewDocument(XML)
	doc.SourceName = sourceName

	nodes, err := readXMLNodes(doc, r, sourceName)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		doc.Root.AppendChild(n)
	}
	if doc.DocumentElement() == nil {
		return nil, fmt.Errorf("parsing %s: no root element", displayName(sourceName))
	}
	resolveNamespaces(doc.Root, nil)
	return doc, nil
}

func parseXMLFragment(doc *Document, markup string, context *Node) ([]*Node, error) {
	nodes, err := readXMLNodes(doc, strings.NewReader(markup), "")
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		resolveNamespaces(n, context)
	}
	return nodes, nil
}

// readXMLNodes decodes a sequence of top-level nodes. RawToken is used so
// that prefixes survive; element nesting is checked here instead.
func readXMLNodes(doc *Document, r io.Reader, sourceName string) ([]*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Entity = xml.HTMLEntity

	var (
		top   []*Node
		stack []*Node
	)
	add := func(n *Node) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		stack[len(stack)-1].AppendChild(n)
	}

	for {
		line, _ := dec.InputPos()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", displayName(sourceName), err)
		}
		src := SourceInfo{Name: sourceName, Line: line}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Node{Type: ElementNode, Prefix: t.Name.Space, Name: t.Name.Local, Source: src, doc: doc}
			for _, a := range t.Attr {
				el.Attributes = append(el.Attributes, &Attribute{Prefix: a.Name.Space, Name: a.Name.Local, Value: a.Value})
			}
			add(el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parsing %s: line %d: unexpected end element </%s>", displayName(sourceName), line, qualified(t.Name))
			}
			open := stack[len(stack)-1]
			if open.Prefix != t.Name.Space || open.Name != t.Name.Local {
				return nil, fmt.Errorf("parsing %s: line %d: element <%s> closed by </%s>", displayName(sourceName), line, open.QualifiedName(), qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			add(&Node{Type: TextNode, Data: string(t), Source: src, doc: doc})
		case xml.Comment:
			add(&Node{Type: CommentNode, Data: string(t), Source: src, doc: doc})
		case xml.ProcInst:
			add(&Node{Type: ProcessingInstructionNode, Name: t.Target, Data: string(t.Inst), Source: src, doc: doc})
		case xml.Directive:
			add(&Node{Type: DoctypeNode, Data: string(t), Source: src, doc: doc})
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("parsing %s: unclosed element <%s>", displayName(sourceName), stack[len(stack)-1].QualifiedName())
	}
	return top, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

var (
	xmlTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	xmlAttrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\n", "&#10;", "\t", "&#9;")
)

func writeXML(w io.Writer, d *Document) error {
	var buf bytes.Buffer
	for _, c := range d.Root.Children {
		if d.OmitXMLDeclaration && c.Type == ProcessingInstructionNode && c.Name == "xml" {
			continue
		}
		writeXMLNode(&buf, c)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("writing %s: %w", displayName(d.SourceName), err)
	}
	return nil
}

// RenderNodeXML renders a single node and its subtree as XML.
func RenderNodeXML(w io.Writer, n *Node) error {
	var buf bytes.Buffer
	writeXMLNode(&buf, n)
	_, err := buf.WriteTo(w)
	return err
}

func writeXMLNode(buf *bytes.Buffer, n *Node) {
	switch n.Type {
	case DocumentNode:
		for _, c := range n.Children {
			writeXMLNode(buf, c)
		}
	case ElementNode:
		buf.WriteByte('<')
		buf.WriteString(n.QualifiedName())
		for _, a := range n.Attributes {
			buf.WriteByte(' ')
			buf.WriteString(a.QualifiedName())
			buf.WriteString(`="`)
			xmlAttrEscaper.WriteString(buf, a.Value)
			buf.WriteByte('"')
		}
		if len(n.Children) == 0 {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for _, c := range n.Children {
			writeXMLNode(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.QualifiedName())
		buf.WriteByte('>')
	case TextNode:
		xmlTextEscaper.WriteString(buf, n.Data)
	case CommentNode:
		buf.WriteString("<!--")
		buf.WriteString(n.Data)
		buf.WriteString("-->")
	case DoctypeNode:
		buf.WriteString("<!")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	case ProcessingInstructionNode:
		buf.WriteString("<?")
		buf.WriteString(n.Name)
		if n.Data != "" {
			buf.WriteByte(' ')
			buf.WriteString(n.Data)
		}
		buf.WriteString("?>")
	}
}
