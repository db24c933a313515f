package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// AuthContextKey is the key for storing AuthContext in the gin and request contexts
	AuthContextKey ContextKey = "authContext"
)

// AuthContext represents the authenticated user of a request.
// It is injected by Middleware from the bearer token claims.
type AuthContext struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (ac *AuthContext) IsAdmin() bool {
	return ac != nil && ac.Role == RoleAdmin
}

// WithAuthContext returns a copy of ctx carrying authCtx.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// FromContext extracts the AuthContext from a request context.
// Returns nil if the request carried no valid token.
func FromContext(ctx context.Context) *AuthContext {
	authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// GetAuthContext extracts the AuthContext from a gin context.
//
// Usage in handlers:
//
//	authCtx := auth.GetAuthContext(c)
//	if authCtx == nil {
//	    // Handle unauthorized request
//	}
func GetAuthContext(c *gin.Context) *AuthContext {
	value, ok := c.Get(string(AuthContextKey))
	if !ok {
		return FromContext(c.Request.Context())
	}
	authCtx, _ := value.(*AuthContext)
	return authCtx
}
