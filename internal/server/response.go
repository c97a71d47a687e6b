package server

import (
	stderrors "errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk/guestlog/pkg/errors"
)

// respondError maps service errors onto HTTP responses. AppError carries its
// own status and user-facing message; sentinels map to fixed generic bodies.
// Anything unrecognized is logged and returned as a bare 500.
func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message})
		return
	}

	switch {
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
	case stderrors.Is(err, errors.ErrUnableToProcess):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to process request"})
	case stderrors.Is(err, errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case stderrors.Is(err, errors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case stderrors.Is(err, errors.ErrPasswordChangeRequired):
		c.JSON(http.StatusForbidden, gin.H{"error": "Password change required"})
	case stderrors.Is(err, errors.ErrRateLimitExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
	case stderrors.Is(err, errors.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case stderrors.Is(err, errors.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
	case stderrors.Is(err, errors.ErrDuplicateUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
	case stderrors.Is(err, errors.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters with an uppercase letter, a lowercase letter and a number"})
	case stderrors.Is(err, errors.ErrInvalidUsername):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 3-20 letters, numbers or underscores"})
	case stderrors.Is(err, errors.ErrSetupComplete):
		c.JSON(http.StatusForbidden, gin.H{"error": "Setup already completed"})
	case stderrors.Is(err, errors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
	default:
		log.Printf("unhandled request error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
