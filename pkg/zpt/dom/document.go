package dom

import (
	"fmt"
	"io"
	"strings"
)

// DocumentType selects the backend used to read and write a document.
type DocumentType int

const (
	HTML DocumentType = iota
	XML
)

func (t DocumentType) String() string {
	switch t {
	case HTML:
		return "html"
	case XML:
		return "xml"
	default:
		return fmt.Sprintf("DocumentType(%d)", int(t))
	}
}

// ParseDocumentType parses "html" or "xml" (case-insensitive).
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html", "htm", "xhtml", "":
		return HTML, nil
	case "xml":
		return XML, nil
	default:
		return HTML, fmt.Errorf("unknown document type %q", s)
	}
}

// DocumentTypeForFile guesses a document type from a file name.
func DocumentTypeForFile(name string) DocumentType {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".xml") {
		return XML
	}
	return HTML
}

// DefaultPrefixes are the prefixes every document understands without an
// xmlns declaration.
func DefaultPrefixes() map[string]string {
	return map[string]string{
		"tal":   TALNamespace,
		"metal": METALNamespace,
		"xml":   XMLNamespace,
		"xmlns": XMLNSNamespace,
	}
}

// Document is a parsed template or rendered output.
type Document struct {
	Type DocumentType
	Root *Node

	// Prefixes maps undeclared prefixes to namespace URIs.
	Prefixes map[string]string

	// SourceName identifies where the document was read from.
	SourceName string

	// Fragment is true for HTML sources that had no <html> element. Such
	// documents are written back without the implied html/head/body.
	Fragment bool

	// OmitXMLDeclaration drops a leading <?xml ...?> when writing XML.
	OmitXMLDeclaration bool
}

// NewDocument creates an empty document of the given type.
func NewDocument(t DocumentType) *Document {
	d := &Document{Type: t, Prefixes: DefaultPrefixes()}
	d.Root = &Node{Type: DocumentNode, doc: d}
	return d
}

// Read parses a document using the backend for t.
func Read(r io.Reader, t DocumentType, sourceName string) (*Document, error) {
	switch t {
	case HTML:
		return ReadHTML(r, sourceName)
	case XML:
		return ReadXML(r, sourceName)
	default:
		return nil, fmt.Errorf("unsupported document type %v", t)
	}
}

// WriteTo serializes the document using the backend for its type.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	var err error
	switch d.Type {
	case HTML:
		err = writeHTML(cw, d)
	case XML:
		err = writeXML(cw, d)
	default:
		err = fmt.Errorf("unsupported document type %v", d.Type)
	}
	return cw.n, err
}

// String renders the document, returning an error description on failure.
func (d *Document) String() string {
	var b strings.Builder
	if _, err := d.WriteTo(&b); err != nil {
		return "<!-- " + err.Error() + " -->"
	}
	return b.String()
}

// DocumentElement returns the first element child of the root.
func (d *Document) DocumentElement() *Node {
	for _, c := range d.Root.Children {
		if c.Type == ElementNode {
			return c
		}
	}
	return nil
}

// Clone returns an independent deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		Type:               d.Type,
		SourceName:         d.SourceName,
		Fragment:           d.Fragment,
		OmitXMLDeclaration: d.OmitXMLDeclaration,
		Prefixes:           make(map[string]string, len(d.Prefixes)),
	}
	for k, v := range d.Prefixes {
		c.Prefixes[k] = v
	}
	c.Root = d.Root.DeepCopy()
	c.Adopt(c.Root)
	return c
}

// Adopt makes d the owner of n and its subtree. Nodes copied from another
// document must be adopted before they are inserted.
func (d *Document) Adopt(n *Node) {
	n.Walk(func(c *Node) bool {
		c.doc = d
		return true
	})
}

// ParseFragment parses markup as a sequence of nodes owned by d. Prefixes
// in the markup resolve against the namespaces in scope at context, which
// may be nil.
func (d *Document) ParseFragment(markup string, context *Node) ([]*Node, error) {
	switch d.Type {
	case HTML:
		return parseHTMLFragment(d, markup, context)
	case XML:
		return parseXMLFragment(d, markup, context)
	default:
		return nil, fmt.Errorf("unsupported document type %v", d.Type)
	}
}

// CreateElement creates a detached element owned by d.
func (d *Document) CreateElement(prefix, name string) *Node {
	n := NewElement(d, prefix, name, "")
	if uri, ok := n.LookupNamespace(prefix); ok && prefix != "" {
		n.Namespace = uri
	}
	return n
}

// CreateTextNode creates a detached text node owned by d.
func (d *Document) CreateTextNode(text string) *Node {
	return &Node{Type: TextNode, Data: text, doc: d}
}

// CreateComment creates a detached comment node owned by d.
func (d *Document) CreateComment(text string) *Node {
	return &Node{Type: CommentNode, Data: text, doc: d}
}

// resolveNamespaces assigns namespace URIs to the prefixed names in the
// subtree rooted at root. Prefixes not declared inside the subtree are
// looked up from outer and then the document's well-known prefixes.
func resolveNamespaces(root *Node, outer *Node) {
	lookup := func(n *Node, prefix string) string {
		for cur := n; cur != nil; cur = cur.parent {
			for _, a := range cur.Attributes {
				if prefix == "" && a.Prefix == "" && a.Name == "xmlns" {
					return a.Value
				}
				if prefix != "" && a.Prefix == "xmlns" && a.Name == prefix {
					return a.Value
				}
			}
		}
		if outer != nil {
			if uri, ok := outer.LookupNamespace(prefix); ok {
				return uri
			}
		}
		if n.doc != nil {
			return n.doc.Prefixes[prefix]
		}
		return ""
	}
	root.Walk(func(n *Node) bool {
		if n.Type != ElementNode {
			return true
		}
		n.Namespace = lookup(n, n.Prefix)
		for _, a := range n.Attributes {
			switch {
			case a.Prefix == "xmlns" || (a.Prefix == "" && a.Name == "xmlns"):
				a.Namespace = XMLNSNamespace
			case a.Prefix == "":
				a.Namespace = ""
			default:
				a.Namespace = lookup(n, a.Prefix)
			}
		}
		return true
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
