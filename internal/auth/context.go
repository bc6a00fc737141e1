// ABOUTME: Identity context for tracking the calling user through request handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating identity via context

package auth

import (
	"context"
)

// Identity is the resolved caller of a request.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Source Source
}

// Source records how an identity was established.
type Source string

const (
	SourceToken  Source = "token"
	SourceHeader Source = "header"
	SourceDev    Source = "dev"
)

// identityFor builds the echo identity for a bare user id.
func identityFor(userID string, source Source) *Identity {
	return &Identity{
		UserID: userID,
		Email:  userID + "@example.com",
		Name:   userID,
		Source: source,
	}
}

// identityContextKey is the key type for storing Identity in context.Context.
type identityContextKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// MustFromContext retrieves the Identity from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Identity {
	id := FromContext(ctx)
	if id == nil {
		panic("auth: Identity not found in context")
	}
	return id
}
