// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	holder := requestcontext.Holder(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithHolder(ctx, holder)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
package requestcontext

import (
	"context"
)

// Context key types (unexported for encapsulation).
type (
	holderKey    struct{}
	requestIDKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyHolder    = holderKey{}
	ContextKeyRequestID = requestIDKey{}
)

// Holder retrieves the authenticated holder address from the context.
// Returns the empty string if not set. Ledger operations still take the
// holder as an explicit parameter; this only carries the authenticated
// subject between middleware and handlers.
func Holder(ctx context.Context) string {
	if holder, ok := ctx.Value(ContextKeyHolder).(string); ok {
		return holder
	}
	return ""
}

// WithHolder injects a holder address into the context.
func WithHolder(ctx context.Context, holder string) context.Context {
	return context.WithValue(ctx, ContextKeyHolder, holder)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
