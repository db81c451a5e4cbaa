package middleware

import "context"

type contextKey struct{ name string }

var (
	userIDKey      = contextKey{"user_id"}
	orgIDKey       = contextKey{"org_id"}
	bearerTokenKey = contextKey{"bearer_token"}
)

// WithIdentity returns a context with user_id and org_id set. Handlers read
// these via GetUserID and GetOrgID.
func WithIdentity(ctx context.Context, userID, orgID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, orgIDKey, orgID)
	return ctx
}

// WithBearerToken returns a context carrying the raw bearer token so handlers
// can resolve the caller's own session without re-parsing the header.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetOrgID returns the org_id from context and true if set; otherwise "", false.
func GetOrgID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(orgIDKey).(string)
	return v, ok
}

// GetBearerToken returns the raw bearer token from context and true if set.
func GetBearerToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerTokenKey).(string)
	return v, ok
}
