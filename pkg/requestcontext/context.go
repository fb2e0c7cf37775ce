// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and stores read them. Keeping the
// package free of net/http lets the attendance engine run identically under
// the HTTP transport and under tests that inject values directly.
//
// Usage in services (read values):
//
//	sess, ok := requestcontext.Session(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithSession(ctx, sess)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// OwnerSession identifies the caller for the duration of one request. A zero
// OwnerID means no session was established yet; the remote backend creates an
// anonymous one on demand.
type OwnerSession struct {
	OwnerID     string
	Anonymous   bool
	DisplayName string
	Email       string
	Phone       string
}

// Context key types (unexported for encapsulation).
type (
	sessionKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithSession attaches the caller's session to the context.
func WithSession(ctx context.Context, sess OwnerSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// Session returns the caller's session and whether one was attached.
func Session(ctx context.Context) (OwnerSession, bool) {
	sess, ok := ctx.Value(sessionKey{}).(OwnerSession)
	return sess, ok
}

// WithRequestID attaches a request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation id, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTime pins the request time, letting tests control "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
