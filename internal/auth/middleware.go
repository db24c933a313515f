package auth

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware extracts the bearer token and injects the AuthContext.
// Requests without a valid token proceed without one; RequireAuth decides
// whether that is acceptable.
func Middleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		tokenStr, err := ExtractBearer(header)
		if err == nil {
			var authCtx *AuthContext
			authCtx, err = tokens.Parse(tokenStr)
			if err == nil {
				c.Set(string(AuthContextKey), authCtx)
				c.Request = c.Request.WithContext(WithAuthContext(c.Request.Context(), authCtx))
				c.Next()
				return
			}
		}

		slog.Warn("failed to authenticate request",
			"error", err,
			"auth_header_length", len(header),
		)
		c.Next()
	}
}

// RequireAuth rejects requests without an AuthContext with 401 and a redirect
// hint pointing at the sign-in page.
func RequireAuth(signInURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetAuthContext(c) == nil {
			slog.Warn("authentication required but not provided",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "unauthorized",
				"redirect": signInURL,
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetAuthContext(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
