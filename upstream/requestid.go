package upstream

import "context"

// RequestIDHeader carries the caller's request id to the backend.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID attaches id to ctx; the client forwards it on every call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
