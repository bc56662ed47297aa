// Package transport defines the invocation pipeline abstraction: a Handler
// performs one attempt against a remote LLM provider, and Middleware wraps
// handlers with cross-cutting behavior. The actual HTTP/SDK call lives
// outside this core; callers inject it as the innermost Handler.
package transport

import "context"

// Handler performs a single attempt of an LLM invocation.
// Implementations must honor context cancellation.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided, with the first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
