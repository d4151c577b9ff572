package grpcinterop

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/dynbind/pkg/binder"
)

// Service serves a proto service from Go handlers. Each unary call invokes
// the handler registered for its method through a Binder, with the request
// as a single map[string]any argument. A handler returns the response as a
// map[string]any or a message, optionally followed by an error.
type Service struct {
	binder   *binder.Binder
	desc     *desc.ServiceDescriptor
	handlers map[string]any
	site     *binder.InvokeCallSite
}

// NewService prepares sd to be served. handlers maps method names to
// invoke targets: functions, overload sets or values with an Invoke method.
func NewService(b *binder.Binder, sd *desc.ServiceDescriptor, handlers map[string]any) (*Service, error) {
	for name := range handlers {
		md := sd.FindMethodByName(name)
		if md == nil {
			return nil, fmt.Errorf("service %s has no method %s", sd.GetFullyQualifiedName(), name)
		}
		if md.IsClientStreaming() || md.IsServerStreaming() {
			return nil, fmt.Errorf("method %s: streaming is not supported", md.GetFullyQualifiedName())
		}
	}
	site, err := binder.NewInvokeCallSite(0, binder.Scope{}, []binder.ArgumentInfo{binder.Positional(), binder.Positional()})
	if err != nil {
		return nil, err
	}
	return &Service{binder: b, desc: sd, handlers: handlers, site: site}, nil
}

// Register adds the service to s. Methods without a handler answer
// Unimplemented.
func (svc *Service) Register(s *grpc.Server) {
	sd := &grpc.ServiceDesc{
		ServiceName: svc.desc.GetFullyQualifiedName(),
		HandlerType: (*any)(nil),
		Metadata:    svc.desc.GetFile().GetName(),
	}
	for _, method := range svc.desc.GetMethods() {
		if method.IsClientStreaming() || method.IsServerStreaming() {
			continue
		}
		md := method
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				h := srv.(*Service)
				in := dynamic.NewMessage(md.GetInputType())
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return h.handle(ctx, md, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + sd.ServiceName + "/" + md.GetName()}
				return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
					return h.handle(ctx, md, req.(*dynamic.Message))
				})
			},
		})
	}
	s.RegisterService(sd, svc)
}

func (svc *Service) handle(ctx context.Context, md *desc.MethodDescriptor, in *dynamic.Message) (any, error) {
	handler, ok := svc.handlers[md.GetName()]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", md.GetName())
	}

	result, err := svc.binder.Invoke(ctx, svc.site, handler, messageToMap(in))
	if err != nil {
		if binder.KindOf(err) != "" {
			return nil, status.Errorf(codes.Unimplemented, "method %s: %v", md.GetName(), err)
		}
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		return nil, status.Error(codes.Unknown, err.Error())
	}

	out, err := toMessage(result, md.GetOutputType())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "method %s: bad response: %v", md.GetName(), err)
	}
	return out, nil
}
