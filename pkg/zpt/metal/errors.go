package metal

import (
	"errors"
	"fmt"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

// MacroNotFoundError reports a use-macro or extend-macro expression that
// did not produce a macro.
type MacroNotFoundError struct {
	Attribute  string
	Expression string
	Node       *dom.Node
	Cause      error
}

func (e *MacroNotFoundError) Error() string {
	where := ""
	if e.Node != nil {
		where = " at " + e.Node.Source.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("macro not found: %s=%q%s: %v", e.Attribute, e.Expression, where, e.Cause)
	}
	return fmt.Sprintf("macro not found: %s=%q%s", e.Attribute, e.Expression, where)
}

func (e *MacroNotFoundError) Unwrap() error {
	return e.Cause
}

// MacroExtensionDepthError reports a chain of extend-macro or nested
// use-macro references deeper than the configured limit, usually a cycle.
type MacroExtensionDepthError struct {
	Macro string
	Limit int
}

func (e *MacroExtensionDepthError) Error() string {
	return fmt.Sprintf("macro %q exceeds the maximum macro depth of %d", e.Macro, e.Limit)
}

// IsMacroNotFoundError checks if an error is a MacroNotFoundError
func IsMacroNotFoundError(err error) bool {
	var target *MacroNotFoundError
	return errors.As(err, &target)
}

// IsMacroExtensionDepthError checks if an error is a MacroExtensionDepthError
func IsMacroExtensionDepthError(err error) bool {
	var target *MacroExtensionDepthError
	return errors.As(err, &target)
}
