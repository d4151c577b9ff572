package grpcinterop

import (
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Method is a remote method used as an invoke target.
type Method struct {
	Conn grpc.ClientConnInterface
	Desc *desc.MethodDescriptor
}

// Bind looks up path in the registry and pairs it with conn.
func (r *Registry) Bind(conn grpc.ClientConnInterface, path string) (*Method, error) {
	md, err := r.Method(path)
	if err != nil {
		return nil, err
	}
	return &Method{Conn: conn, Desc: md}, nil
}

// FullPath is the method path as sent on the wire, "/package.Service/Method".
func (m *Method) FullPath() string {
	return "/" + m.Desc.GetService().GetFullyQualifiedName() + "/" + m.Desc.GetName()
}

// Streaming reports whether either side of the method streams.
func (m *Method) Streaming() bool {
	return m.Desc.IsClientStreaming() || m.Desc.IsServerStreaming()
}

func (m *Method) String() string {
	if m == nil || m.Desc == nil {
		return "grpc method(unbound)"
	}
	return fmt.Sprintf("grpc method %s(%s) returns %s", m.FullPath(),
		m.Desc.GetInputType().GetFullyQualifiedName(), m.Desc.GetOutputType().GetFullyQualifiedName())
}

// Dial opens a plaintext client connection to target.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return conn, nil
}
