// Package domain provides core business types and context helpers for Mercato.
//
// Context helpers centralize request-scoped identity access so every layer
// answers "who is the caller" the same way.
package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// userContextKey stores user information in context.
	userContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// User represents the authenticated caller stored in context.
// This is a minimal struct for context storage; authentication itself is an
// external collaborator, only identity facts are consumed here.
type User struct {
	ID    uuid.UUID
	Email string
	Role  string // "customer", "admin"
}

// NewContextWithUser returns a new context with the user attached.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the user from context.
// Returns nil if no user is present.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// RequireUser retrieves the authenticated user, or ErrUnauthenticated when
// the caller has no resolvable identity.
func RequireUser(ctx context.Context) (*User, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == uuid.Nil || user.Email == "" {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// NewContextWithRequestID returns a new context carrying the request ID.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// uuidString renders a pgtype.UUID in canonical form, or "" when invalid.
func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	b := id.Bytes
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// UUIDString renders a pgtype.UUID in canonical form, or "" when invalid.
func UUIDString(id pgtype.UUID) string {
	return uuidString(id)
}
