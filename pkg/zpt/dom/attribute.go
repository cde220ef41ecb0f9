package dom

import "strings"

// Well-known namespace URIs.
const (
	TALNamespace   = "http://xml.zope.org/namespaces/tal"
	METALNamespace = "http://xml.zope.org/namespaces/metal"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
)

// AttributeSpec is the canonical identity of an attribute: its local name
// and namespace URI, independent of the prefix used in source markup.
type AttributeSpec struct {
	Name      string
	Namespace string
}

func (s AttributeSpec) String() string {
	if s.Namespace == "" {
		return s.Name
	}
	return "{" + s.Namespace + "}" + s.Name
}

// Attribute is a single attribute on an element.
type Attribute struct {
	Prefix    string
	Name      string
	Namespace string
	Value     string
}

// QualifiedName returns the attribute name as written in markup.
func (a *Attribute) QualifiedName() string {
	if a.Prefix == "" {
		return a.Name
	}
	return a.Prefix + ":" + a.Name
}

// Matches reports whether the attribute has the identity described by spec.
func (a *Attribute) Matches(spec AttributeSpec) bool {
	return a.Name == spec.Name && a.Namespace == spec.Namespace
}

// InNamespace reports whether the attribute belongs to the namespace uri.
func (a *Attribute) InNamespace(uri string) bool {
	return uri != "" && a.Namespace == uri
}

// IsNamespaceDeclarationFor reports whether the attribute is an xmlns
// declaration binding some prefix to uri.
func (a *Attribute) IsNamespaceDeclarationFor(uri string) bool {
	if a.Value != uri {
		return false
	}
	return a.Prefix == "xmlns" || (a.Prefix == "" && a.Name == "xmlns")
}

// Copy returns an independent copy of the attribute.
func (a *Attribute) Copy() *Attribute {
	c := *a
	return &c
}

func (a *Attribute) String() string {
	return a.QualifiedName() + `="` + a.Value + `"`
}

// splitQualifiedName splits "p:name" into its prefix and local name.
func splitQualifiedName(qname string) (prefix, local string) {
	if i := strings.IndexByte(qname, ':'); i > 0 && i < len(qname)-1 {
		return qname[:i], qname[i+1:]
	}
	return "", qname
}
