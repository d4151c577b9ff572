package resolve

import (
	"context"
	"reflect"

	"github.com/funvibe/dynbind/pkg/binder"
)

// Plan is the BoundResult of the reflective engine: a chosen member and the
// marshalled arguments to call it with.
type Plan struct {
	member   *Member
	fn       reflect.Value
	recv     reflect.Value
	context  bool
	in       []reflect.Value
	spread   bool
	outs     []reflect.Value
	discard  bool
	expanded bool
}

var _ binder.BoundResult = (*Plan)(nil)

func newPlan(b *binding, infos []binder.ArgumentInfo, args []any, discard bool) *Plan {
	sig := b.cand.sig
	p := &Plan{
		member:   b.cand.member,
		fn:       b.cand.member.fn,
		recv:     b.cand.recv,
		context:  sig.context,
		discard:  discard,
		expanded: b.expanded,
		spread:   sig.isVariadic && !b.expanded,
	}

	fixed := len(sig.params)
	if b.expanded {
		fixed--
	}
	in := make([]reflect.Value, fixed)
	for i, v := range args {
		val := convert(v, b.ranks[i], b.types[i])
		if infos[i].Mode() == binder.Out {
			p.outs = append(p.outs, val)
		}
		if b.slot[i] < fixed {
			in[b.slot[i]] = val
		} else {
			in = append(in, val)
		}
	}
	p.in = in
	return p
}

// Invoke calls the member. ctx is passed to members whose first parameter
// is a context.Context.
func (p *Plan) Invoke(ctx context.Context) (any, error) {
	for _, o := range p.outs {
		o.Elem().Set(reflect.Zero(o.Elem().Type()))
	}

	in := make([]reflect.Value, 0, len(p.in)+2)
	if p.recv.IsValid() {
		in = append(in, p.recv)
	}
	if p.context {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append(in, reflect.ValueOf(ctx))
	}
	in = append(in, p.in...)

	var out []reflect.Value
	if p.spread {
		out = p.fn.CallSlice(in)
	} else {
		out = p.fn.Call(in)
	}
	return binder.Results(out, p.discard)
}

// ResultDiscarded reports whether the return value is elided.
func (p *Plan) ResultDiscarded() bool { return p.discard }

// Member is the member the plan calls.
func (p *Plan) Member() *Member { return p.member }

// Expanded reports whether a variadic member is called in expanded form.
func (p *Plan) Expanded() bool { return p.expanded }

func (p *Plan) String() string {
	s := p.member.String()
	if p.expanded {
		s += " (expanded)"
	}
	if p.discard {
		s += " [result discarded]"
	}
	return s
}
