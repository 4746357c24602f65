package testutil

import (
	"context"
	"net/http"
	"time"

	id "sahara/pkg/domain"
	"sahara/pkg/requestcontext"
)

// WithActor adds an actor to the request context, simulating the auth middleware.
// If actorID is not a valid UUID, the request is returned unchanged.
func WithActor(req *http.Request, actorID string, role string) *http.Request {
	parsed, err := id.ParseActorID(actorID)
	if err != nil {
		return req
	}
	ctx := requestcontext.WithActorID(req.Context(), parsed)
	ctx = requestcontext.WithActorRole(ctx, role)
	return req.WithContext(ctx)
}

// WithTime pins request time, simulating the request-time middleware.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// ActorContext builds a service-level context with an actor and a fixed time.
func ActorContext(actor id.ActorID, now time.Time) context.Context {
	ctx := requestcontext.WithActorID(context.Background(), actor)
	return requestcontext.WithTime(ctx, now)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
