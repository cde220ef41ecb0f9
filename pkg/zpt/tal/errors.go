package tal

import (
	"errors"
	"fmt"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/dom"
)

// InvalidAttributeSyntaxError reports a directive attribute whose value
// does not follow its grammar.
type InvalidAttributeSyntaxError struct {
	Attribute string
	Value     string
	Message   string
	Node      *dom.Node
}

func (e *InvalidAttributeSyntaxError) Error() string {
	msg := fmt.Sprintf("invalid %s value %q: %s", e.Attribute, e.Value, e.Message)
	if e.Node != nil {
		msg += " at " + e.Node.Source.String()
	}
	return msg
}

// NewInvalidAttributeSyntaxError creates a syntax error for attribute.
func NewInvalidAttributeSyntaxError(attribute, value, message string, node *dom.Node) error {
	return &InvalidAttributeSyntaxError{Attribute: attribute, Value: value, Message: message, Node: node}
}

// DefineEvaluationError reports a tal:define whose expression failed.
type DefineEvaluationError struct {
	Variable   string
	Expression string
	Cause      error
}

func (e *DefineEvaluationError) Error() string {
	return fmt.Sprintf("defining %q from %q: %v", e.Variable, e.Expression, e.Cause)
}

func (e *DefineEvaluationError) Unwrap() error {
	return e.Cause
}

// ExpressionEvaluationError reports a directive whose expression failed.
type ExpressionEvaluationError struct {
	Directive  string
	Expression string
	Node       *dom.Node
	Cause      error
}

func (e *ExpressionEvaluationError) Error() string {
	where := ""
	if e.Node != nil {
		where = " at " + e.Node.Source.String()
	}
	return fmt.Sprintf("tal:%s %q%s: %v", e.Directive, e.Expression, where, e.Cause)
}

func (e *ExpressionEvaluationError) Unwrap() error {
	return e.Cause
}

// OnErrorHandlingError reports that a tal:on-error expression failed
// while handling Original. It is never handled by another on-error.
type OnErrorHandlingError struct {
	Expression string
	Original   error
	Cause      error
}

func (e *OnErrorHandlingError) Error() string {
	return fmt.Sprintf("tal:on-error %q failed: %v (while handling: %v)", e.Expression, e.Cause, e.Original)
}

func (e *OnErrorHandlingError) Unwrap() error {
	return e.Cause
}

// Fatal marks the error as unrecoverable.
func (e *OnErrorHandlingError) Fatal() bool { return true }

// IsInvalidAttributeSyntaxError checks if an error is an InvalidAttributeSyntaxError
func IsInvalidAttributeSyntaxError(err error) bool {
	var target *InvalidAttributeSyntaxError
	return errors.As(err, &target)
}

// IsDefineEvaluationError checks if an error is a DefineEvaluationError
func IsDefineEvaluationError(err error) bool {
	var target *DefineEvaluationError
	return errors.As(err, &target)
}

// IsExpressionEvaluationError checks if an error is an ExpressionEvaluationError
func IsExpressionEvaluationError(err error) bool {
	var target *ExpressionEvaluationError
	return errors.As(err, &target)
}

// IsOnErrorHandlingError checks if an error is an OnErrorHandlingError
func IsOnErrorHandlingError(err error) bool {
	var target *OnErrorHandlingError
	return errors.As(err, &target)
}
