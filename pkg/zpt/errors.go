package zpt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benjaminschreck/go-zpt/pkg/zpt/metal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tal"
	"github.com/benjaminschreck/go-zpt/pkg/zpt/tales"
)

// DocumentError represents a failure to read, parse or write a document
type DocumentError struct {
	Op    string // "open", "parse", "write", ...
	Path  string
	Cause error
}

func (e *DocumentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s document: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s document %s: %v", e.Op, e.Path, e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(op, path string, cause error) error {
	return &DocumentError{Op: op, Path: path, Cause: cause}
}

// RenderError records which document failed to render.
type RenderError struct {
	Template string
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// MultiError represents multiple errors that occurred during a bulk render
type MultiError struct {
	Errors []error
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("%d errors occurred:\n  - %s", len(e.Errors), strings.Join(messages, "\n  - "))
}

func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// Add appends err if it is not nil
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were added
func (e *MultiError) ErrorOrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IsDocumentError checks if an error is a DocumentError
func IsDocumentError(err error) bool {
	var docErr *DocumentError
	return errors.As(err, &docErr)
}

// IsMacroNotFoundError checks if an error is a metal.MacroNotFoundError
func IsMacroNotFoundError(err error) bool {
	return metal.IsMacroNotFoundError(err)
}

// IsInvalidAttributeSyntaxError checks if an error is a tal.InvalidAttributeSyntaxError
func IsInvalidAttributeSyntaxError(err error) bool {
	return tal.IsInvalidAttributeSyntaxError(err)
}

// IsEvaluationError checks if an error is a tales.EvaluationError
func IsEvaluationError(err error) bool {
	return tales.IsEvaluationError(err)
}
