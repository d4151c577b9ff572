package binder

import (
	"errors"
	"fmt"
)

// ErrorKind is a machine-readable binding failure category.
type ErrorKind string

const (
	KindInvalidArgumentShape ErrorKind = "invalid_argument_shape"
	KindIndexOutOfRange      ErrorKind = "index_out_of_range"
	KindNoApplicableOverload ErrorKind = "no_applicable_overload"
	KindAmbiguousOverload    ErrorKind = "ambiguous_overload"
	KindInaccessibleMember   ErrorKind = "inaccessible_member"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidArgumentShape = &Error{Kind: KindInvalidArgumentShape}
	ErrIndexOutOfRange      = &Error{Kind: KindIndexOutOfRange}
	ErrNoApplicableOverload = &Error{Kind: KindNoApplicableOverload}
	ErrAmbiguousOverload    = &Error{Kind: KindAmbiguousOverload}
	ErrInaccessibleMember   = &Error{Kind: KindInaccessibleMember}
)

// Error is the structured failure of descriptor construction or binding.
type Error struct {
	Kind    ErrorKind
	Message string
	// Operation is the resolver-facing name of the operation, e.g. "Invoke".
	Operation string
	// Candidates is the number of candidate members considered.
	Candidates int
	// Context is the calling context of the failed call site.
	Context Scope
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (operation %s, %d candidates, context %s)",
		e.Kind, e.Message, e.Operation, e.Candidates, e.Context)
}

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Recoverable reports whether a caller-supplied default result may replace
// this failure. Only binding-time failures are recoverable.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindNoApplicableOverload, KindAmbiguousOverload, KindInaccessibleMember:
		return true
	}
	return false
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	out := *e
	out.Details = details
	return &out
}

// BindFailure builds a binding-time error for a call site.
func BindFailure(kind ErrorKind, site CallSite, candidates int, format string, args ...any) *Error {
	e := &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Candidates: candidates,
	}
	if site != nil {
		e.Operation = site.Name()
		e.Context = site.CallingContext()
	}
	return e
}

// KindOf returns the kind of a binder error anywhere in err's chain,
// or the empty kind.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func newShapeError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgumentShape, Message: fmt.Sprintf(format, args...)}
}
