package resolve

import (
	"reflect"
	"strings"

	"github.com/funvibe/dynbind/pkg/binder"
)

// binding is one applicable way of calling a candidate with the arguments.
type binding struct {
	cand     candidate
	expanded bool
	// slot[i] is the parameter argument i fills. In expanded form the
	// value len(fixed parameters) stands for the variadic tail.
	slot  []int
	ranks []rank
	types []reflect.Type
}

// bindings returns the applicable forms of c: normal form, and for
// variadic members also expanded form.
func bindings(c candidate, infos []binder.ArgumentInfo, args []any) []*binding {
	var out []*binding
	if b := tryForm(c, infos, args, false); b != nil {
		out = append(out, b)
	}
	if c.sig.isVariadic {
		if b := tryForm(c, infos, args, true); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func tryForm(c candidate, infos []binder.ArgumentInfo, args []any, expanded bool) *binding {
	params := c.sig.params
	fixed := len(params)
	var tail reflect.Type
	if expanded {
		fixed--
		tail = params[fixed].Elem()
	}

	slot, ok := mapArguments(infos, c.sig.names, fixed, expanded)
	if !ok {
		return nil
	}

	b := &binding{
		cand:     c,
		expanded: expanded,
		slot:     slot,
		ranks:    make([]rank, len(args)),
		types:    make([]reflect.Type, len(args)),
	}
	for i, v := range args {
		p := tail
		if slot[i] < fixed {
			p = params[slot[i]]
		}
		r, ok := classify(v, infos[i], p)
		if !ok {
			return nil
		}
		b.ranks[i] = r
		b.types[i] = p
	}
	return b
}

// mapArguments assigns arguments to parameter slots. Positional arguments
// fill slots in order; named arguments fill the slot of the same name. A
// named argument followed by a positional one must be in its own position.
// With tail set, surplus positional arguments go to the variadic tail.
func mapArguments(infos []binder.ArgumentInfo, names []string, slots int, tail bool) ([]int, bool) {
	lastPositional := -1
	for i, info := range infos {
		if !info.IsNamed() {
			lastPositional = i
		}
	}

	filled := make([]bool, slots)
	slot := make([]int, len(infos))
	for i, info := range infos {
		if info.IsNamed() {
			p := indexOf(names, info.Name())
			if p < 0 || p >= slots || filled[p] {
				return nil, false
			}
			if i < lastPositional && p != i {
				return nil, false
			}
			filled[p] = true
			slot[i] = p
			continue
		}
		if i < slots {
			if filled[i] {
				return nil, false
			}
			filled[i] = true
			slot[i] = i
			continue
		}
		if !tail {
			return nil, false
		}
		slot[i] = slots
	}
	for _, f := range filled {
		if !f {
			return nil, false
		}
	}
	return slot, true
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func (b *binding) String() string {
	s := b.cand.member.String()
	if b.expanded {
		s += " (expanded)"
	}
	return s
}

func argumentTypes(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = reflect.TypeOf(a).String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
