package middleware

import (
	"context"
	"net/http"

	"crimewatch/internal/models"
	"crimewatch/internal/repository"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

// UserLoader resolves the user stored in the session.
type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// AuthRequired redirects anonymous requests to the login page.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoadUser retrieves user from session and sets to context. A session that
// points at a deleted user is cleared; other lookup errors leave it alone and
// the request continues anonymously.
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserKey).(uint)
		if ok {
			user, err := users.GetUser(c.Request.Context(), userID)
			switch {
			case err == nil:
				c.Set(CheckUserKey, user)
			case repository.IsNotFound(err):
				session.Delete(SessionUserKey)
				session.Save()
			default:
				_ = c.Error(err)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
