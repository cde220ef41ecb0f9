package tal

import (
	"errors"
	"regexp"
	"strings"
)

// Scope names accepted by tal:define.
const (
	LocalScope  = "local"
	GlobalScope = "global"
)

// VariableDefinition is one statement of a tal:define attribute.
type VariableDefinition struct {
	Scope        string
	VariableName string
	Expression   string
}

// IsGlobal reports whether the variable is defined in the global scope.
func (d VariableDefinition) IsGlobal() bool { return d.Scope == GlobalScope }

func (d VariableDefinition) String() string {
	return d.Scope + " " + d.VariableName + " " + d.Expression
}

// AttributeDefinition is one statement of a tal:attributes attribute.
type AttributeDefinition struct {
	Prefix     string
	Name       string
	Expression string
}

// QualifiedName returns the attribute name as written.
func (d AttributeDefinition) QualifiedName() string {
	if d.Prefix == "" {
		return d.Name
	}
	return d.Prefix + ":" + d.Name
}

var (
	errEmptyStatement = errors.New("empty statement")

	defineRegex     = regexp.MustCompile(`(?s)^(?:(local|global) )?([^ ]+) (.+)$`)
	attributesRegex = regexp.MustCompile(`(?s)^(?:([^\s:]+):)?([^\s:]+)\s+(.+)$`)
	repeatRegex     = regexp.MustCompile(`(?s)^([^ ]+)\s+(.+)$`)
	contentRegex    = regexp.MustCompile(`(?s)^(?:(text|structure)\s+)?(.*)$`)
)

// SplitStatements splits a define or attributes value on semicolons. A
// doubled semicolon is a literal semicolon and does not split.
func SplitStatements(value string) []string {
	var (
		statements []string
		start      int
	)
	for i := 0; i < len(value); i++ {
		if value[i] != ';' {
			continue
		}
		if i+1 < len(value) && value[i+1] == ';' {
			i++
			continue
		}
		statements = append(statements, value[start:i])
		start = i + 1
	}
	statements = append(statements, value[start:])

	out := statements[:0]
	for _, s := range statements {
		s = strings.TrimSpace(strings.ReplaceAll(s, ";;", ";"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseDefinitions parses a tal:define value:
//
//	[local|global] name expression [; ...]
func ParseDefinitions(value string) ([]VariableDefinition, error) {
	statements := SplitStatements(value)
	if len(statements) == 0 {
		return nil, errEmptyStatement
	}
	defs := make([]VariableDefinition, 0, len(statements))
	for _, s := range statements {
		m := defineRegex.FindStringSubmatch(s)
		if m == nil {
			return nil, errors.New("expected [local|global] name expression, got " + quote(s))
		}
		scope := m[1]
		if scope == "" {
			scope = LocalScope
		}
		defs = append(defs, VariableDefinition{Scope: scope, VariableName: m[2], Expression: m[3]})
	}
	return defs, nil
}

// ParseAttributeDefinitions parses a tal:attributes value:
//
//	[prefix:]name expression [; ...]
func ParseAttributeDefinitions(value string) ([]AttributeDefinition, error) {
	statements := SplitStatements(value)
	if len(statements) == 0 {
		return nil, errEmptyStatement
	}
	defs := make([]AttributeDefinition, 0, len(statements))
	for _, s := range statements {
		m := attributesRegex.FindStringSubmatch(s)
		if m == nil {
			return nil, errors.New("expected [prefix:]name expression, got " + quote(s))
		}
		defs = append(defs, AttributeDefinition{Prefix: m[1], Name: m[2], Expression: m[3]})
	}
	return defs, nil
}

// ParseRepeat parses a tal:repeat value into the loop variable name and
// the sequence expression.
func ParseRepeat(value string) (name, expression string, err error) {
	m := repeatRegex.FindStringSubmatch(value)
	if m == nil {
		return "", "", errors.New("expected name expression")
	}
	return m[1], m[2], nil
}

// ParseContent parses a content, replace or on-error value into its
// optional "text" or "structure" keyword and the expression.
func ParseContent(value string) (keyword, expression string) {
	m := contentRegex.FindStringSubmatch(value)
	return m[1], m[2]
}

func quote(s string) string {
	return `"` + s + `"`
}
