// Package diag holds the compile diagnostics shared by every pipeline stage.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a compile error
type Kind string

const (
	KindEncoding         Kind = "encoding_error"
	KindLex              Kind = "lex_error"
	KindParse            Kind = "parse_error"
	KindCycle            Kind = "cycle_error"
	KindNoSuperBlock     Kind = "no_super_block_error"
	KindUnknownBinding   Kind = "unknown_binding_error"
	KindReassignment     Kind = "reassignment_error"
	KindMacroArity       Kind = "macro_arity_error"
	KindUnknownArgument  Kind = "unknown_argument_error"
	KindUnknownFilter    Kind = "unknown_filter_error"
	KindFilterType       Kind = "filter_type_error"
	KindTemplateNotFound Kind = "template_not_found_error"
	KindBlockNotFound    Kind = "block_not_found_error"
	KindConfig           Kind = "config_error"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrEncoding         = errors.New("invalid template encoding")
	ErrLex              = errors.New("unterminated construct")
	ErrParse            = errors.New("syntax error")
	ErrCycle            = errors.New("cycle detected")
	ErrNoSuperBlock     = errors.New("no parent block for super()")
	ErrUnknownBinding   = errors.New("unknown binding")
	ErrReassignment     = errors.New("binding reassigned")
	ErrMacroArity       = errors.New("macro arity mismatch")
	ErrUnknownArgument  = errors.New("unknown macro argument")
	ErrUnknownFilter    = errors.New("unknown filter")
	ErrFilterType       = errors.New("filter type mismatch")
	ErrTemplateNotFound = errors.New("template not found")
	ErrBlockNotFound    = errors.New("block not found")
	ErrConfig           = errors.New("invalid configuration")
)

var sentinels = map[Kind]error{
	KindEncoding:         ErrEncoding,
	KindLex:              ErrLex,
	KindParse:            ErrParse,
	KindCycle:            ErrCycle,
	KindNoSuperBlock:     ErrNoSuperBlock,
	KindUnknownBinding:   ErrUnknownBinding,
	KindReassignment:     ErrReassignment,
	KindMacroArity:       ErrMacroArity,
	KindUnknownArgument:  ErrUnknownArgument,
	KindUnknownFilter:    ErrUnknownFilter,
	KindFilterType:       ErrFilterType,
	KindTemplateNotFound: ErrTemplateNotFound,
	KindBlockNotFound:    ErrBlockNotFound,
	KindConfig:           ErrConfig,
}

// Error is a located compile error
type Error struct {
	Kind     Kind
	Message  string
	Template string
	Span     Span
	// Name is the offending identifier (binding, filter, macro, argument or
	// template name) when the error is about one.
	Name  string
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if loc := e.location(); loc != "" {
		b.WriteString(" at ")
		b.WriteString(loc)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) location() string {
	switch {
	case e.Template != "" && e.Span.Line > 0:
		return fmt.Sprintf("%s:%d:%d", e.Template, e.Span.Line, e.Span.Column)
	case e.Span.Line > 0:
		return fmt.Sprintf("line %d, column %d", e.Span.Line, e.Span.Column)
	default:
		return e.Template
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New creates a located error
func New(kind Kind, span Span, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// Named creates a located error about a specific identifier
func Named(kind Kind, name string, span Span, format string, args ...any) *Error {
	err := New(kind, span, format, args...)
	err.Name = name
	return err
}

// WithTemplate attaches the template name to err if it is an *Error that
// does not carry one yet. Other errors are returned unchanged.
func WithTemplate(err error, template string) error {
	var de *Error
	if errors.As(err, &de) && de.Template == "" {
		de.Template = template
	}
	return err
}

// KindOf returns the kind of err, or "" when err is not a diagnostic.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
