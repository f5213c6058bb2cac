package velo

import (
	"errors"
	"fmt"
)

// ParseError reports malformed template text. Line is 1-based and
// Context holds a short snippet of the input following the failure
// point, truncated with an ellipsis.
type ParseError struct {
	Message string
	Line    int
	Context string
}

func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("parse error at line %d: %s, near %q", e.Line, e.Message, e.Context)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

// NewParseError creates a parse error with position information.
func NewParseError(message string, line int, context string) error {
	return &ParseError{Message: message, Line: line, Context: context}
}

// EvaluationError reports a failure while evaluating a parsed template:
// an undefined variable, a member that cannot be resolved, a non-integer
// arithmetic operand, division by zero, or a macro argument-count
// mismatch. Line is the line of the node being evaluated.
type EvaluationError struct {
	Message string
	Line    int
	Cause   error
}

func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evaluation error at line %d: %s: %v", e.Line, e.Message, e.Cause)
	}
	return fmt.Sprintf("evaluation error at line %d: %s", e.Line, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewEvaluationError creates an evaluation error at the given line.
func NewEvaluationError(message string, line int, cause error) error {
	return &EvaluationError{Message: message, Line: line, Cause: cause}
}

func evalErrorf(line int, format string, args ...any) error {
	return &EvaluationError{Message: fmt.Sprintf(format, args...), Line: line}
}

// MacroError identifies the macro that was executing when an evaluation
// error occurred. Errors raised inside nested macro bodies carry one
// frame per macro, outermost last.
type MacroError struct {
	Macro string
	Line  int // line of the macro definition
	Cause error
}

func (e *MacroError) Error() string {
	return fmt.Sprintf("in #macro %q (defined at line %d): %v", e.Macro, e.Line, e.Cause)
}

func (e *MacroError) Unwrap() error {
	return e.Cause
}

// IsParseError reports whether any error in err's chain is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsEvaluationError reports whether any error in err's chain is an
// *EvaluationError.
func IsEvaluationError(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}

// AsParseError returns the *ParseError in err's chain, if any.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	ok := errors.As(err, &pe)
	return pe, ok
}

// AsEvaluationError returns the *EvaluationError in err's chain, if any.
func AsEvaluationError(err error) (*EvaluationError, bool) {
	var ee *EvaluationError
	ok := errors.As(err, &ee)
	return ee, ok
}
