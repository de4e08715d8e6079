// Package kit holds the small transport-agnostic building blocks shared by
// streamprobe services: the Endpoint abstraction and MCP tool registration.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Every operation exposed
// over MCP (or any future transport) is an Endpoint; transports adapt their
// wire format to this signature.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first middleware is the
// outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
