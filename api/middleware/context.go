package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
)

type contextKey string

const (
	ctxUsername  contextKey = "username"
	ctxSessionID contextKey = "session_id"
)

// UsernameFromContext returns the verified username, or the anonymous sentinel.
func UsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return auth.AnonymousUsername
	}
	if v, ok := ctx.Value(ctxUsername).(string); ok && v != "" {
		return v
	}
	return auth.AnonymousUsername
}

func SessionIDFromContext(ctx context.Context) bag.SessionID {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(bag.SessionID); ok {
		return v
	}
	return ""
}

// WithUsername injects the verified username into the context.
func WithUsername(ctx context.Context, username string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUsername, username)
}

// WithSessionID injects the session handle into the context for downstream handlers.
func WithSessionID(ctx context.Context, session bag.SessionID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, session)
}
