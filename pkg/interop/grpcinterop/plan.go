package grpcinterop

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"

	"github.com/funvibe/dynbind/pkg/binder"
)

// Plan is a bound unary call: a method and a ready request message.
type Plan struct {
	method  *Method
	req     *dynamic.Message
	discard bool
}

var _ binder.BoundResult = (*Plan)(nil)

// Invoke performs the call and returns the response as a map keyed by
// field name, or nil when the result is discarded.
func (p *Plan) Invoke(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp := dynamic.NewMessage(p.method.Desc.GetOutputType())
	if err := p.method.Conn.Invoke(ctx, p.method.FullPath(), p.req, resp); err != nil {
		return nil, fmt.Errorf("rpc %s failed: %w", p.method.FullPath(), err)
	}
	if p.discard {
		return nil, nil
	}
	return messageToMap(resp), nil
}

// ResultDiscarded reports whether the response is dropped.
func (p *Plan) ResultDiscarded() bool { return p.discard }

// Request returns the request as a map keyed by field name.
func (p *Plan) Request() map[string]any { return messageToMap(p.req) }

func (p *Plan) String() string {
	return p.method.FullPath()
}
