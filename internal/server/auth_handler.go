package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/internal/service"
	"github.com/frontdesk/guestlog/pkg/errors"
)

type AuthHandler struct {
	authService     *service.AuthService
	sessionDuration time.Duration
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *service.AuthService, sessionDuration time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		sessionDuration: sessionDuration,
	}
}

// Setup creates the first manager account. Open only while the database
// holds zero accounts.
func (h *AuthHandler) Setup(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Invalid request body", http.StatusBadRequest))
		return
	}

	user, err := h.authService.Bootstrap(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Login accepts form-encoded or JSON credentials. Success issues a fresh
// session cookie and redirects; every failure shape returns the same body.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, errors.ErrInvalidCredentials)
		return
	}

	priorToken, _ := c.Cookie(sessionCookie)

	_, session, err := h.authService.Login(
		c.Request.Context(),
		&req,
		c.ClientIP(),
		c.Request.UserAgent(),
		priorToken,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	setSessionCookie(c, session.Token, int(h.sessionDuration.Seconds()))

	// A forced password change is signaled by the session middleware on the
	// next request, not here.
	c.Redirect(http.StatusFound, "/api/records")
}

// Logout deletes the session row and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil {
		h.authService.Logout(token)
	}
	clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ChangePassword performs a self-service password change
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, errors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Invalid request body", http.StatusBadRequest))
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), user.ID, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
