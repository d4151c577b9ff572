package resolve

import (
	"reflect"

	"github.com/funvibe/dynbind/pkg/binder"
)

// candidate is a member paired with the receiver it would be called on.
type candidate struct {
	member *Member
	recv   reflect.Value
	sig    signature
}

func (c candidate) accessibleFrom(s binder.Scope) bool {
	return s.CanAccess(c.member.pkg)
}

// candidates collects every member named name that target offers.
func (e *Engine) candidates(site binder.CallSite, target any, name string) ([]candidate, error) {
	if site.IsStaticCall() {
		t, ok := target.(reflect.Type)
		if !ok {
			return nil, binder.BindFailure(binder.KindNoApplicableOverload, site, 0,
				"static call target must be a reflect.Type, got %T", target)
		}
		return e.staticCandidates(t, name), nil
	}

	if target == nil {
		return nil, binder.BindFailure(binder.KindNoApplicableOverload, site, 0, "cannot invoke nil")
	}
	var out []candidate
	rv := reflect.ValueOf(target)

	if set, ok := target.(*OverloadSet); ok {
		for _, m := range set.members {
			if m.name != name {
				continue
			}
			sig, _ := m.signature(false)
			out = append(out, candidate{member: m, sig: sig})
		}
		return out, nil
	}

	// a function value is invoked directly, like a delegate
	if rv.Kind() == reflect.Func && !rv.IsNil() && name == e.operation {
		m := &Member{name: name, fn: rv}
		sig, _ := m.signature(false)
		out = append(out, candidate{member: m, sig: sig})
	}

	out = append(out, e.instanceCandidates(rv, name)...)

	// an exported method with the operation name
	if method := rv.MethodByName(name); method.IsValid() && !e.hasRegistered(rv, name) {
		m := &Member{name: name, fn: method}
		sig, _ := m.signature(false)
		out = append(out, candidate{member: m, sig: sig})
	}
	return out, nil
}

func (e *Engine) staticCandidates(t reflect.Type, name string) []candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []candidate
	for _, m := range e.static[t] {
		if m.name != name {
			continue
		}
		sig, _ := m.signature(false)
		out = append(out, candidate{member: m, sig: sig})
	}
	return out
}

// instanceCandidates returns members registered for the dynamic type of
// rv and, for pointers, for the pointed-to type.
func (e *Engine) instanceCandidates(rv reflect.Value, name string) []candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []candidate
	add := func(recv reflect.Value) {
		for _, m := range e.members[recv.Type()] {
			if m.name != name {
				continue
			}
			sig, _ := m.signature(true)
			out = append(out, candidate{member: m, recv: recv, sig: sig})
		}
	}
	add(rv)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		add(rv.Elem())
	}
	return out
}

// hasRegistered reports whether members were registered under name for
// the dynamic type of rv or, for pointers, the pointed-to type. Such
// members shadow a reflected method of the same name.
func (e *Engine) hasRegistered(rv reflect.Value, name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	registered := func(t reflect.Type) bool {
		for _, m := range e.members[t] {
			if m.name == name {
				return true
			}
		}
		return false
	}
	if registered(rv.Type()) {
		return true
	}
	return rv.Kind() == reflect.Pointer && !rv.IsNil() && registered(rv.Elem().Type())
}
