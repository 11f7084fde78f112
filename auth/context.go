package auth

import (
	"context"
)

const (
	userIDKey privateKey = "user_id"
)

type privateKey string

// SetUserID returns a copy of ctx carrying the id of the authenticated user.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the id of the authenticated user, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if temp := ctx.Value(userIDKey); temp != nil {
		if id, ok := temp.(string); ok {
			return id
		}
	}
	return ""
}
