// Package errors provides the closed set of error variants raised by the
// reader core. Variants carry structured context; user-facing wording is
// produced at the presentation boundary.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a book, reference or search miss
	ErrNotFound = errors.New("not found")
	// ErrStartOfCorpus indicates a backwards step from the first chapter
	ErrStartOfCorpus = errors.New("start of corpus")
	// ErrEndOfCorpus indicates a forward step past the last chapter
	ErrEndOfCorpus = errors.New("end of corpus")
	// ErrExternal indicates a failed call to an external capability
	ErrExternal = errors.New("external capability failed")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports a lookup that produced no result. Query echoes the
// caller's original input.
type NotFoundError struct {
	Resource string // "book", "chapter", "reference"
	Query    string
	Err      error
}

func (e *NotFoundError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("%s not found: %q", e.Resource, e.Query)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Edge names a corpus boundary.
type Edge int

const (
	// Start is the first chapter of the first book.
	Start Edge = iota
	// End is the last chapter of the last book.
	End
)

func (e Edge) String() string {
	if e == Start {
		return "start"
	}
	return "end"
}

// BoundaryError is raised when a step would leave the corpus. Book and
// Chapter identify the coordinate the step was attempted from.
type BoundaryError struct {
	Edge    Edge
	Book    string
	Chapter int
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("%s of corpus reached at %s %d", e.Edge, e.Book, e.Chapter)
}

func (e *BoundaryError) Unwrap() error {
	if e.Edge == Start {
		return ErrStartOfCorpus
	}
	return ErrEndOfCorpus
}

// ExternalError wraps a failure of an external collaborator (illustration
// generation, search fallback, speech, persistence).
type ExternalError struct {
	Capability string // "illustration", "locator", "speech", "storage"
	Op         string
	Err        error
}

func (e *ExternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Capability, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Capability, e.Op)
}

func (e *ExternalError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrExternal, e.Err}
	}
	return []error{ErrExternal}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ParseError represents a corpus decoding error
type ParseError struct {
	Format  string // "JSON", "OSIS"
	Path    string // File path, if applicable
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, query string) *NotFoundError {
	return &NotFoundError{Resource: resource, Query: query}
}

// NewBoundary creates a BoundaryError
func NewBoundary(edge Edge, book string, chapter int) *BoundaryError {
	return &BoundaryError{Edge: edge, Book: book, Chapter: chapter}
}

// NewExternal creates an ExternalError
func NewExternal(capability, op string, err error) *ExternalError {
	return &ExternalError{Capability: capability, Op: op, Err: err}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{Format: format, Path: path, Message: message}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsBoundary reports whether err is a start or end of corpus error.
func IsBoundary(err error) bool {
	return errors.Is(err, ErrStartOfCorpus) || errors.Is(err, ErrEndOfCorpus)
}
