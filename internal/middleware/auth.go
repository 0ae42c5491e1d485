package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/auth"
	"github.com/mindmap-dev/mindmap/internal/models"
	"github.com/mindmap-dev/mindmap/internal/types"
)

// TokenCookie is the cookie login sets next to the token in the body.
const TokenCookie = "token"

type AuthenticatedUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"username"`
	Email string `json:"email"`
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type UserFinder interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// AuthMiddleware accepts a session token from the Authorization header or,
// failing that, from the token cookie.
func AuthMiddleware(tokens TokenVerifier, users UserFinder) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, ok := extractToken(ctx)

		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}

		claims, err := tokens.Verify(tokenString)

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := users.FindUser(ctx.Request.Context(), claims.UserID)

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}

		ctx.Set(types.ContextUserKey, AuthenticatedUser{
			ID:    user.ID,
			Name:  user.Username,
			Email: user.Email,
		})
		ctx.Next()
	}
}

func extractToken(ctx *gin.Context) (string, bool) {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)

		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}

		return strings.TrimSpace(parts[1]), true
	}

	cookie, err := ctx.Cookie(TokenCookie)

	if err != nil || cookie == "" {
		return "", false
	}

	return cookie, true
}
