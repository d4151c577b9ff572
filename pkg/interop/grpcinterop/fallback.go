package grpcinterop

import (
	"log/slog"

	"github.com/jhump/protoreflect/dynamic"

	"github.com/funvibe/dynbind/pkg/binder"
)

// Fallback binds invokes of *Method targets. Its failures are
// authoritative: the resolution engine never sees a *Method.
type Fallback struct {
	logger *slog.Logger
}

var _ binder.InteropFallback = (*Fallback)(nil)

func NewFallback() *Fallback {
	return &Fallback{}
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func (f *Fallback) WithLogger(logger *slog.Logger) *Fallback {
	f.logger = logger
	return f
}

func (f *Fallback) log() *slog.Logger {
	if f.logger == nil {
		return slog.Default()
	}
	return f.logger
}

// TryBind implements binder.InteropFallback.
//
// The request is built from the arguments: none gives an empty request, a
// single positional map[string]any or message is the whole request, and
// named arguments set the request fields of the same name.
func (f *Fallback) TryBind(site binder.CallSite, target any, args []any) (binder.BoundResult, bool, error) {
	m, ok := target.(*Method)
	if !ok {
		return nil, false, nil
	}
	fail := func(format string, a ...any) (binder.BoundResult, bool, error) {
		err := binder.BindFailure(binder.KindNoApplicableOverload, site, 1, format, a...).
			WithDetail("method", m.String())
		f.log().Debug("grpc interop rejected call", slog.String("method", m.String()), slog.Any("error", err))
		return nil, true, err
	}

	switch {
	case m == nil || m.Desc == nil || m.Conn == nil:
		return fail("grpc method is not bound to a connection")
	case site.IsStaticCall():
		return fail("grpc methods cannot be called statically")
	case m.Streaming():
		return fail("streaming method %s is not supported", m.FullPath())
	}

	infos := make([]binder.ArgumentInfo, len(args))
	named := 0
	for i := range args {
		info, err := site.Argument(i + 1)
		if err != nil {
			return nil, true, err
		}
		if info.Mode() != binder.ByValue {
			return fail("argument %d is passed %s; grpc arguments are passed by value", i+1, info.Mode())
		}
		if info.IsNamed() {
			named++
		}
		infos[i] = info
	}

	in := m.Desc.GetInputType()
	var req *dynamic.Message
	switch {
	case len(args) == 0:
		req = dynamic.NewMessage(in)
	case named == 0:
		if len(args) != 1 {
			return fail("%s takes one request, got %d positional arguments", m.FullPath(), len(args))
		}
		msg, err := toMessage(args[0], in)
		if err != nil {
			return fail("%s: %v", m.FullPath(), err)
		}
		req = msg
	case named == len(args):
		req = dynamic.NewMessage(in)
		seen := make(map[string]bool, len(args))
		for i, info := range infos {
			name := info.Name()
			if seen[name] {
				return fail("field %q is set twice", name)
			}
			seen[name] = true
			fd := in.FindFieldByName(name)
			if fd == nil {
				return fail("message %s has no field %q", in.GetFullyQualifiedName(), name)
			}
			if err := setField(req, fd, args[i]); err != nil {
				return fail("%s: %v", m.FullPath(), err)
			}
		}
	default:
		return fail("%s takes either one positional request or named fields, not both", m.FullPath())
	}

	f.log().Debug("grpc interop bound call",
		slog.String("method", m.FullPath()),
		slog.Int("arguments", len(args)),
	)
	return &Plan{method: m, req: req, discard: site.Flags().Has(binder.ResultDiscarded)}, true, nil
}
