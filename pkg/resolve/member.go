package resolve

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/dynbind/internal/config"
)

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// Member is one candidate operation: a Go function plus the metadata Go
// itself does not keep at run time (parameter names, visibility).
//
// Configure a Member before registering it; registered members must not
// be changed.
type Member struct {
	name   string
	fn     reflect.Value
	params []string
	pkg    string
}

// Func wraps a Go function as a member named "Invoke". It panics if fn is
// not a function.
func Func(fn any) *Member {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		panic(fmt.Sprintf("resolve: Func needs a non-nil function, got %T", fn))
	}
	return &Member{name: config.InvokeOperationName, fn: v}
}

// Named sets the parameter names used to bind named arguments. Receiver and
// a leading context.Context parameter are not named.
func (m *Member) Named(params ...string) *Member {
	m.params = params
	return m
}

// Internal restricts the member to call sites whose Scope is pkgPath.
func (m *Member) Internal(pkgPath string) *Member {
	m.pkg = pkgPath
	return m
}

// As renames the member.
func (m *Member) As(name string) *Member {
	m.name = name
	return m
}

func (m *Member) Name() string { return m.name }

// PkgPath is the package a member is internal to, empty for public members.
func (m *Member) PkgPath() string { return m.pkg }

// Type is the Go function type of the member.
func (m *Member) Type() reflect.Type { return m.fn.Type() }

func (m *Member) String() string {
	var sb strings.Builder
	sb.WriteString(m.name)
	sb.WriteString(strings.TrimPrefix(m.fn.Type().String(), "func"))
	if m.pkg != "" {
		sb.WriteString(" [internal to ")
		sb.WriteString(m.pkg)
		sb.WriteString("]")
	}
	return sb.String()
}

// signature splits the member's parameters into what the call site
// supplies. receiver is set for members registered on a type.
type signature struct {
	receiver   bool
	context    bool
	params     []reflect.Type
	names      []string
	isVariadic bool
}

func (m *Member) signature(receiver bool) (signature, error) {
	t := m.fn.Type()
	sig := signature{receiver: receiver, isVariadic: t.IsVariadic()}
	i := 0
	if receiver {
		if t.NumIn() == 0 {
			return sig, fmt.Errorf("member %s has no receiver parameter", m)
		}
		i = 1
	}
	if i < t.NumIn() && t.In(i) == contextType {
		sig.context = true
		i++
	}
	for ; i < t.NumIn(); i++ {
		sig.params = append(sig.params, t.In(i))
	}
	if len(m.params) > 0 && len(m.params) != len(sig.params) {
		return sig, fmt.Errorf("member %s names %d parameters but declares %d", m, len(m.params), len(sig.params))
	}
	sig.names = m.params
	return sig, nil
}

// OverloadSet is a callable value with several candidate functions, the
// dynamic counterpart of an overloaded method group.
type OverloadSet struct {
	members []*Member
}

// Overloads groups members into one callable value. It panics if a member
// has inconsistent parameter names.
func Overloads(members ...*Member) *OverloadSet {
	for _, m := range members {
		if _, err := m.signature(false); err != nil {
			panic("resolve: " + err.Error())
		}
	}
	return &OverloadSet{members: append([]*Member(nil), members...)}
}

// Members returns the members of the set.
func (o *OverloadSet) Members() []*Member {
	return append([]*Member(nil), o.members...)
}

func (o *OverloadSet) String() string {
	names := make([]string, len(o.members))
	for i, m := range o.members {
		names[i] = m.String()
	}
	return "overloads{" + strings.Join(names, "; ") + "}"
}
