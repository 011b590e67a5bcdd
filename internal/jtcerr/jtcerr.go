// Package jtcerr defines the closed set of error kinds the translator can
// fail with. Every fatal condition in the pipeline is reported through one
// of these, never a bare error, so the CLI can map failures to the exit
// codes the external interface promises.
package jtcerr

import (
	"fmt"
	"strings"
)

// Kind is the closed set of fatal error categories.
type Kind int

const (
	// MalformedInput is structural class-file damage discovered during Ingest.
	MalformedInput Kind = iota
	// LinkError is a missing class/member, a supertype cycle, or an illegal
	// final-method override discovered during Resolve.
	LinkError
	// VerifyError is a stack-underflow, unbalanced monitor, or unreconcilable
	// join discovered during Lower.
	VerifyError
	// Unsupported marks a bytecode construct the translator does not model.
	Unsupported
	// IOError is a failure at a filesystem boundary.
	IOError
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "MalformedInput"
	case LinkError:
		return "LinkError"
	case VerifyError:
		return "VerifyError"
	case Unsupported:
		return "Unsupported"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// ExitCode maps a Kind to the CLI exit code the external interface promises.
func (k Kind) ExitCode() int {
	switch k {
	case MalformedInput, LinkError:
		return 2
	case VerifyError, Unsupported:
		return 3
	case IOError:
		return 2
	default:
		return 1
	}
}

// Error is a positioned, kinded failure.
type Error struct {
	Kind    Kind
	Class   string
	Member  string
	Offset  int // byte offset; -1 if not applicable
	Cause   error
	Message string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Class != "" {
		fmt.Fprintf(&b, " in %s", e.Class)
	}
	if e.Member != "" {
		fmt.Fprintf(&b, ".%s", e.Member)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no positional context beyond a class name.
func New(kind Kind, class, message string) *Error {
	return &Error{Kind: kind, Class: class, Offset: -1, Message: message}
}

// Wrap builds an Error wrapping cause, with no positional context.
func Wrap(kind Kind, class string, cause error) *Error {
	return &Error{Kind: kind, Class: class, Offset: -1, Cause: cause}
}

// AtOffset builds an Error positioned at a byte offset within a class/member.
func AtOffset(kind Kind, class, member string, offset int, cause error) *Error {
	return &Error{Kind: kind, Class: class, Member: member, Offset: offset, Cause: cause}
}

// Multi aggregates independent errors of the same kind so that all
// occurrences can be reported in one pass before aborting (spec: LinkError
// must report every occurrence before the build aborts).
type Multi struct {
	Kind   Kind
	Errors []*Error
}

func (m *Multi) Error() string {
	if len(m.Errors) == 0 {
		return m.Kind.String() + ": no errors"
	}
	lines := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		lines[i] = e.Error()
	}
	return fmt.Sprintf("%s (%d occurrence(s)):\n%s", m.Kind, len(m.Errors), strings.Join(lines, "\n"))
}

func (m *Multi) Unwrap() []error {
	errs := make([]error, len(m.Errors))
	for i, e := range m.Errors {
		errs[i] = e
	}
	return errs
}

// NewMulti collects a non-empty slice of *Error into a *Multi, or returns
// nil if errs is empty.
func NewMulti(kind Kind, errs []*Error) error {
	if len(errs) == 0 {
		return nil
	}
	return &Multi{Kind: kind, Errors: errs}
}

// ExitCodeFor maps any error returned by the pipeline to the CLI exit code
// spec.md §6 promises: a *Error or *Multi maps through its Kind, a config
// or flag-validation error (a plain error reaching the CLI boundary) is
// exit code 1, and nil is exit code 0.
func ExitCodeFor(err error) int {
	switch e := err.(type) {
	case nil:
		return 0
	case *Error:
		return e.Kind.ExitCode()
	case *Multi:
		return e.Kind.ExitCode()
	default:
		return 1
	}
}
