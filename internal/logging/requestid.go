package logging

import (
	"context"

	"github.com/google/uuid"
)

// ctxKeyRequestID keys the request ID on a request context.
type ctxKeyRequestID struct{}

// GinRequestIDKey is the Gin context key under which the request ID is
// stored for handlers that want to echo it.
const GinRequestIDKey = "request_id"

// NewRequestID returns a short correlation ID for one tracked request.
// Eight hex characters keep the log columns aligned and are unique
// enough within a single process lifetime.
func NewRequestID() string {
	return uuid.NewString()[:8]
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestIDFrom returns the request ID attached by WithRequestID, or the
// empty string when the request is untracked.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}
