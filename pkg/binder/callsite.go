package binder

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/funvibe/dynbind/internal/config"
)

// CallSite is the narrow view of a call-site descriptor that resolution
// engines and interop strategies consume.
type CallSite interface {
	// Name is the member name candidates are looked up by.
	Name() string
	Flags() CallFlags
	CallingContext() Scope
	IsStaticCall() bool
	TypeArguments() []reflect.Type
	// ArgumentCount includes slot 0, the target.
	ArgumentCount() int
	Argument(index int) (ArgumentInfo, error)
}

// CallInfo summarizes the declared arguments of a call site. The target
// slot is not counted.
type CallInfo struct {
	ArgumentCount int
	// ArgumentNames lists the names of the named arguments in call order.
	ArgumentNames []string
}

// InvokeCallSite describes a delegate-like dynamic call `target(args...)`.
// It is immutable once constructed and safe to share between goroutines
// and between executions of the same call site.
type InvokeCallSite struct {
	flags   CallFlags
	context Scope
	args    []ArgumentInfo
	info    CallInfo
	key     string
}

var _ CallSite = (*InvokeCallSite)(nil)

// NewInvokeCallSite builds the descriptor of an invoke call site. args[0]
// describes the target itself and is mandatory.
func NewInvokeCallSite(flags CallFlags, context Scope, args []ArgumentInfo) (*InvokeCallSite, error) {
	if len(args) == 0 {
		return nil, newShapeError("call site needs at least the target argument")
	}
	stored := make([]ArgumentInfo, len(args))
	for i, a := range args {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		stored[i] = a
	}

	// slot 0 is the target, even for static calls where it is a type
	info := CallInfo{ArgumentCount: len(stored) - 1}
	for _, a := range stored[1:] {
		if a.IsNamed() {
			info.ArgumentNames = append(info.ArgumentNames, a.Name())
		}
	}

	site := &InvokeCallSite{
		flags:   flags,
		context: context,
		args:    stored,
		info:    info,
	}
	site.key = shapeKey(flags, context, stored)
	return site, nil
}

func (s *InvokeCallSite) Name() string                  { return config.InvokeOperationName }
func (s *InvokeCallSite) Flags() CallFlags              { return s.flags }
func (s *InvokeCallSite) CallingContext() Scope         { return s.context }
func (s *InvokeCallSite) TypeArguments() []reflect.Type { return []reflect.Type{} }
func (s *InvokeCallSite) ArgumentCount() int            { return len(s.args) }
func (s *InvokeCallSite) ResultDiscarded() bool         { return s.flags.Has(ResultDiscarded) }

// IsStaticCall reports whether the target slot is a type reference.
func (s *InvokeCallSite) IsStaticCall() bool {
	return len(s.args) > 0 && s.args[0].IsStaticType()
}

func (s *InvokeCallSite) Argument(index int) (ArgumentInfo, error) {
	if index < 0 || index >= len(s.args) {
		return ArgumentInfo{}, &Error{
			Kind:    KindIndexOutOfRange,
			Message: fmt.Sprintf("argument index %d out of range [0, %d)", index, len(s.args)),
		}
	}
	return s.args[index], nil
}

// Arguments returns a copy of all argument descriptors, target first.
func (s *InvokeCallSite) Arguments() []ArgumentInfo {
	out := make([]ArgumentInfo, len(s.args))
	copy(out, s.args)
	return out
}

func (s *InvokeCallSite) CallInfo() CallInfo {
	info := s.info
	info.ArgumentNames = append([]string(nil), s.info.ArgumentNames...)
	return info
}

// Key is the canonical shape of the call site. Two descriptors with equal
// keys are interchangeable.
func (s *InvokeCallSite) Key() string { return s.key }

func (s *InvokeCallSite) String() string {
	return fmt.Sprintf("%s%s", s.Name(), s.key)
}

func shapeKey(flags CallFlags, context Scope, args []ArgumentInfo) string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strconv.Itoa(int(flags)))
	sb.WriteString(";")
	sb.WriteString(strconv.Quote(context.PkgPath))
	for _, a := range args {
		sb.WriteString(";")
		sb.WriteString(strconv.Itoa(int(a.flags)))
		if a.IsNamed() {
			sb.WriteString(":")
			sb.WriteString(strconv.Quote(a.name))
		}
	}
	sb.WriteString("]")
	return sb.String()
}
