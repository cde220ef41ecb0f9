// Package dom provides the mutable document tree that ZPT templates are
// rendered over.
//
// The tree is deliberately small: a single Node type covers documents,
// elements, text, comments, doctypes and processing instructions. Two
// backends read and write it:
//
//   - html.go: HTML documents and fragments, via golang.org/x/net/html
//   - xml.go: XML documents, via encoding/xml tokens
//
// # Namespaces
//
// Attributes and elements carry both the prefix used in the source markup
// and a resolved namespace URI. Directive lookups always go through an
// AttributeSpec, which compares local name and namespace URI only, so
// `tal:content` and `t:content` (with xmlns:t bound to the TAL namespace)
// are the same directive.
//
// HTML has no namespace declarations in practice, so a Document carries a
// table of well-known prefixes (tal, metal) used whenever a prefix is not
// declared with an xmlns attribute in scope.
//
// # Mutation
//
// Nodes keep a parent pointer. Remove, ReplaceWith and Omit detach nodes
// from their parent immediately; a detached node keeps its own subtree so a
// caller holding it can still inspect it, but it is no longer reachable from
// the document root.
package dom
