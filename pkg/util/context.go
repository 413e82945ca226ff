package util

import (
	"context"
)

type key string

const (
	requestIDKey = key("x-request-id")
	actorIDKey   = key("actor-id")
)

// WithRequestID returns a context with request id.
// A new request id is generated if id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = generateRequestID()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// EnsureRequestID returns ctx unchanged when it already carries a request id,
// otherwise a child context with a fresh one.
func EnsureRequestID(ctx context.Context) context.Context {
	if GetRequestID(ctx) != "" {
		return ctx
	}
	return WithRequestID(ctx, "")
}

// GetRequestID returns request id from context
// will return empty string if not present
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithActorID returns a context with the id of the user acting on the engine.
func WithActorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorIDKey, id)
}

// GetActorID returns actor id from context
// will return empty string if not present
func GetActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorIDKey).(string)
	return id
}
