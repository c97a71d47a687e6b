package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/internal/service"
	"github.com/frontdesk/guestlog/pkg/errors"
)

// UserHandler serves the manager-only account administration routes.
type UserHandler struct {
	authService *service.AuthService
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService *service.AuthService) *UserHandler {
	return &UserHandler{
		authService: authService,
	}
}

// List returns all staff accounts
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.authService.ListAccounts()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Create adds a staff account
func (h *UserHandler) Create(c *gin.Context) {
	manager := currentUser(c)

	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Invalid request body", http.StatusBadRequest))
		return
	}

	user, err := h.authService.CreateAccount(c.Request.Context(), &req, &manager.ID)
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

// Deactivate soft-disables an account. The target's live sessions die on
// their next request.
func (h *UserHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

// Reactivate re-enables a previously deactivated account
func (h *UserHandler) Reactivate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	manager := currentUser(c)

	targetID, err := userID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if !active && targetID == manager.ID {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Cannot deactivate your own account", http.StatusBadRequest))
		return
	}

	if err := h.authService.SetAccountActive(c.Request.Context(), manager.ID, targetID, active); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account updated"})
}

// ResetPassword replaces an account's password and forces a change on the
// target's next login.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	manager := currentUser(c)

	targetID, err := userID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Invalid request body", http.StatusBadRequest))
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), manager.ID, targetID, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset"})
}

func userID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.NewAppError(errors.ErrInvalidInput, "Invalid account id", http.StatusBadRequest)
	}
	return id, nil
}
