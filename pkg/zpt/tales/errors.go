package tales

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError represents an error during expression evaluation
type EvaluationError struct {
	Expression string
	Cause      error
}

func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evaluation error for expression '%s': %v", e.Expression, e.Cause)
	}
	return fmt.Sprintf("evaluation error for expression '%s'", e.Expression)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewEvaluationError creates a new evaluation error
func NewEvaluationError(expression string, cause error) error {
	return &EvaluationError{
		Expression: expression,
		Cause:      cause,
	}
}

// PathError reports a path segment that could not be traversed.
type PathError struct {
	Path    string
	Segment string
	Message string
}

func (e *PathError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("path '%s': cannot traverse '%s': %s", e.Path, e.Segment, e.Message)
	}
	return fmt.Sprintf("path '%s': %s", e.Path, e.Message)
}

// NewPathError creates a new path error
func NewPathError(path, segment, message string) error {
	return &PathError{Path: path, Segment: segment, Message: message}
}

// SyntaxError represents a malformed expression.
type SyntaxError struct {
	Message  string
	Token    string
	Position int
}

func (e *SyntaxError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("syntax error at position %d near '%s': %s", e.Position, e.Token, e.Message)
	}
	return fmt.Sprintf("syntax error at position %d: %s", e.Position, e.Message)
}

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message, token string, position int) error {
	return &SyntaxError{Message: message, Token: token, Position: position}
}

// FunctionError represents an error in a function call
type FunctionError struct {
	Function string
	Args     []any
	Message  string
}

func (e *FunctionError) Error() string {
	argsStr := make([]string, len(e.Args))
	for i, arg := range e.Args {
		argsStr[i] = fmt.Sprintf("%v", arg)
	}
	return fmt.Sprintf("function error in '%s(%s)': %s", e.Function, strings.Join(argsStr, ", "), e.Message)
}

// NewFunctionError creates a new function error
func NewFunctionError(function string, args []any, message string) error {
	return &FunctionError{Function: function, Args: args, Message: message}
}

// RecoverError converts a panic recovery value to an error
func RecoverError(r any) error {
	switch v := r.(type) {
	case error:
		return fmt.Errorf("panic recovered: %w", v)
	case string:
		return fmt.Errorf("panic recovered: %s", v)
	default:
		return fmt.Errorf("panic recovered: %v", v)
	}
}

// IsEvaluationError checks if err is or wraps an evaluation error
func IsEvaluationError(err error) bool {
	var target *EvaluationError
	return errors.As(err, &target)
}

// IsPathError checks if err is or wraps a path error
func IsPathError(err error) bool {
	var target *PathError
	return errors.As(err, &target)
}

// IsSyntaxError checks if err is or wraps a syntax error
func IsSyntaxError(err error) bool {
	var target *SyntaxError
	return errors.As(err, &target)
}
