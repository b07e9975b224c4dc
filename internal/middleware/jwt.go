package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/logging"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/utils"
)

const userKey = "user"

type TokenParser interface {
	Parse(token string) (userID string, err error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": msg})
}

// tokenFrom reads the `token` header, then `Authorization: Bearer`. Browsers cannot
// set headers on a WebSocket handshake, so upgrades may pass ?token= instead.
func tokenFrom(c *gin.Context) string {
	if t := strings.TrimSpace(c.GetHeader("token")); t != "" {
		return t
	}
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

// Authenticate resolves the caller from the request token and stores the user on the context.
func Authenticate(tokens TokenParser, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "Not Authorized - Please login")
			return
		}

		userID, err := tokens.Parse(raw)
		switch {
		case errors.Is(err, utils.ErrTokenExpired):
			abort(c, http.StatusUnauthorized, "Token expired - Please login again")
			return
		case err != nil:
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "User not found")
				return
			}
			logging.FromContext(c.Request.Context()).Error("auth user lookup failed", "user_id", userID, "error", err)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireUser guards routes open to any signed-in user.
func RequireUser(tokens TokenParser, users UserFinder) gin.HandlerFunc {
	return Authenticate(tokens, users)
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func UserID(c *gin.Context) string {
	if u, ok := CurrentUser(c); ok {
		return u.ID
	}
	return ""
}
