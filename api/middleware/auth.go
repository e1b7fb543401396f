package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/certificate-processor/internal/auth"
	"github.com/feichai0017/certificate-processor/internal/models"
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

// ContextUserKey is the gin context key storing the acting user.
const ContextUserKey = "currentUser"

// UserLookup loads the stored account behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// JWT requires a valid bearer token. When users is set the account is
// reloaded so that deactivated users and renamed users take effect.
func JWT(verifier *auth.Verifier, users UserLookup, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization header")
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		user := claims.User()

		if users != nil {
			stored, err := users.GetByID(c.Request.Context(), user.ID)
			switch {
			case errors.Is(err, models.ErrNotFound):
				abortUnauthorized(c, "unknown user")
				return
			case err != nil:
				log.Error("Failed to load user", logger.Int64("userId", user.ID), logger.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal error",
					"message": "could not load user",
				})
				return
			case !stored.IsActive:
				abortUnauthorized(c, "user is disabled")
				return
			}
			user = *stored
		}

		c.Set(ContextUserKey, user)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

// CurrentUser returns the user set by JWT.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// RequireRole rejects users whose role is not listed.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "operation not permitted",
		})
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
