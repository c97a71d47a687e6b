package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/internal/service"
	"github.com/frontdesk/guestlog/pkg/errors"
)

const sessionCookie = "guestlog_session"

// Context keys set by RequireSession.
const (
	ctxUser    = "currentUser"
	ctxSession = "currentSession"
)

// SecurityHeaders sets the standard response headers on every request
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "same-origin")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// RequireSession resolves the session cookie to a live account and puts both
// on the request context. The account row is re-read on every request, so
// deactivation takes effect immediately. While force_password_change is set,
// only the password change and logout routes are reachable.
func RequireSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			respondError(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, session, err := authService.Authenticate(token)
		if err != nil {
			clearSessionCookie(c)
			respondError(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if user.ForcePasswordChange && !forceChangeExempt(c.FullPath()) {
			respondError(c, errors.ErrPasswordChangeRequired)
			c.Abort()
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxSession, session)
		c.Next()
	}
}

func forceChangeExempt(path string) bool {
	return path == "/api/password/change" || path == "/logout"
}

// RequireManager rejects non-manager accounts with 403. Layered after
// RequireSession.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || user.Role != models.RoleManager {
			respondError(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	value, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

func currentSession(c *gin.Context) *models.Session {
	value, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}

func setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	setSessionCookie(c, "", -1)
}
