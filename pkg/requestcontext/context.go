// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	actor := requestcontext.ActorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "sahara/pkg/domain"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyActorRole   = actorRoleKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Actor
// -----------------------------------------------------------------------------

// ActorID retrieves the authenticated actor. Returns the nil ID if not set.
func ActorID(ctx context.Context) id.ActorID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(id.ActorID); ok {
		return actorID
	}
	return id.ActorID{}
}

// WithActorID injects the authenticated actor into the context.
func WithActorID(ctx context.Context, actorID id.ActorID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// ActorRole retrieves the role claim of the authenticated actor.
func ActorRole(ctx context.Context) string {
	if role, ok := ctx.Value(ContextKeyActorRole).(string); ok {
		return role
	}
	return ""
}

// WithActorRole injects the actor's role claim.
func WithActorRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time. Unlock times and claim deadlines are evaluated
// against this value, so tests move the clock by re-injecting it.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
