package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/frontdesk/guestlog/internal/audit"
	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/internal/ratelimit"
	"github.com/frontdesk/guestlog/internal/repository"
	"github.com/frontdesk/guestlog/internal/security"
	"github.com/frontdesk/guestlog/pkg/errors"
	"github.com/frontdesk/guestlog/pkg/validator"
)

const (
	maxFailedLoginAttempts = 5
	accountLockDuration    = 30 * time.Minute
)

type AuthService struct {
	userRepo        *repository.UserRepository
	lockoutRepo     *repository.LockoutRepository
	sessionRepo     *repository.SessionRepository
	hasher          *security.PasswordHasher
	validator       *validator.Validator
	rateLimiter     *ratelimit.RateLimiter
	auditLogger     *audit.Logger
	sessionDuration time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo *repository.UserRepository,
	lockoutRepo *repository.LockoutRepository,
	sessionRepo *repository.SessionRepository,
	rateLimiter *ratelimit.RateLimiter,
	auditLogger *audit.Logger,
	sessionDuration time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		lockoutRepo:     lockoutRepo,
		sessionRepo:     sessionRepo,
		hasher:          security.NewPasswordHasher(),
		validator:       validator.New(),
		rateLimiter:     rateLimiter,
		auditLogger:     auditLogger,
		sessionDuration: sessionDuration,
	}
}

// Login authenticates a staff member. Every failure path - unknown
// username, inactive account, active lockout, wrong password - returns
// ErrInvalidCredentials so the caller cannot tell them apart.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, ipAddress, userAgent, priorToken string) (*models.User, *models.Session, error) {
	username := s.validator.SanitizeString(req.Username)

	// Rate limiting per username
	if err := s.rateLimiter.CheckLimit(fmt.Sprintf("login:%s", username)); err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			Action:    "LOGIN_RATE_LIMITED",
			Resource:  "auth",
			IPAddress: ipAddress,
			Success:   false,
			Metadata:  username,
		})
		return nil, nil, err
	}

	// Lockout check happens before any credential work. An expired lock is
	// lazily reset here; there is no background sweep.
	lockout, err := s.lockoutRepo.Get(username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check lockout state: %w", err)
	}
	if lockout != nil && lockout.LockedUntil != nil {
		if lockout.Locked(time.Now()) {
			s.auditLogger.Log(&audit.Event{
				Level:     audit.LevelWarning,
				Action:    "LOGIN_LOCKED",
				Resource:  "auth",
				IPAddress: ipAddress,
				Success:   false,
				Metadata:  username,
			})
			return nil, nil, errors.ErrInvalidCredentials
		}
		if err := s.lockoutRepo.Reset(username); err != nil {
			return nil, nil, fmt.Errorf("failed to reset expired lockout: %w", err)
		}
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		// Burn one hash comparison so latency does not reveal whether the
		// account exists.
		s.hasher.VerifyDummy(req.Password)
		s.recordLoginFailure(username, ipAddress)
		return nil, nil, errors.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.hasher.VerifyDummy(req.Password)
		s.recordLoginFailure(username, ipAddress)
		return nil, nil, errors.ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelError,
			UserID:    &user.ID,
			Action:    "LOGIN_VERIFY_ERROR",
			Resource:  "auth",
			IPAddress: ipAddress,
			Success:   false,
			ErrorMsg:  err.Error(),
		})
		return nil, nil, fmt.Errorf("authentication failed: %w", err)
	}

	if !valid {
		s.recordLoginFailure(username, ipAddress)
		return nil, nil, errors.ErrInvalidCredentials
	}

	// Success: clear the counter, stamp last_login, regenerate the session
	// token (session fixation defense).
	if err := s.lockoutRepo.Reset(username); err != nil {
		return nil, nil, fmt.Errorf("failed to reset lockout state: %w", err)
	}

	if err := s.userRepo.UpdateLastLogin(user.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to update last login: %w", err)
	}

	if priorToken != "" {
		s.sessionRepo.DeleteByToken(priorToken)
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &models.Session{
		UserID:    user.ID,
		Token:     token,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(s.sessionDuration),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.auditLogger.Log(&audit.Event{
		Level:     audit.LevelInfo,
		UserID:    &user.ID,
		Action:    "LOGIN_SUCCESS",
		Resource:  "auth",
		IPAddress: ipAddress,
		Success:   true,
	})

	return user, session, nil
}

// recordLoginFailure bumps the persisted counter and audits the outcome
func (s *AuthService) recordLoginFailure(username, ipAddress string) {
	if err := s.lockoutRepo.RecordFailure(username, maxFailedLoginAttempts, accountLockDuration); err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelError,
			Action:   "LOCKOUT_WRITE_FAILED",
			Resource: "auth",
			Success:  false,
			ErrorMsg: err.Error(),
		})
	}

	s.auditLogger.Log(&audit.Event{
		Level:     audit.LevelWarning,
		Action:    audit.ActionLoginFailed,
		Resource:  "auth",
		IPAddress: ipAddress,
		Success:   false,
		Metadata:  username,
	})
}

// Authenticate resolves a session token to a live account. The account row
// is re-read on every call; deactivation and role changes take effect on
// the next request, and a dead account's session is cleared here.
func (s *AuthService) Authenticate(token string) (*models.User, *models.Session, error) {
	session, err := s.sessionRepo.GetByToken(token)
	if err != nil {
		return nil, nil, errors.ErrUnauthorized
	}

	if session.Expired(time.Now()) {
		s.sessionRepo.DeleteByToken(token)
		return nil, nil, errors.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(session.UserID)
	if err != nil || !user.IsActive {
		s.sessionRepo.DeleteByToken(token)
		return nil, nil, errors.ErrUnauthorized
	}

	return user, session, nil
}

// Logout removes the session row
func (s *AuthService) Logout(token string) {
	if token == "" {
		return
	}
	s.sessionRepo.DeleteByToken(token)
}

// SetupRequired reports whether the bootstrap setup step is still open
func (s *AuthService) SetupRequired() (bool, error) {
	count, err := s.userRepo.Count()
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Bootstrap creates the first account. Only available while no accounts
// exist; the created account is always a manager.
func (s *AuthService) Bootstrap(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	required, err := s.SetupRequired()
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, errors.ErrSetupComplete
	}

	req.Role = models.RoleManager
	return s.CreateAccount(ctx, req, nil)
}

// CreateAccount creates a staff account. createdBy is the acting manager's
// id, nil during bootstrap.
func (s *AuthService) CreateAccount(ctx context.Context, req *models.CreateUserRequest, createdBy *int) (*models.User, error) {
	req.Username = s.validator.SanitizeString(req.Username)

	if err := s.validator.ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if !models.ValidRole(req.Role) {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid role", 400)
	}
	if err := s.validator.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByUsername(req.Username); err == nil {
		return nil, errors.ErrDuplicateUsername
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Role:         req.Role,
		PasswordHash: passwordHash,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   createdBy,
		Action:   "ACCOUNT_CREATED",
		Resource: "users",
		Success:  true,
		Metadata: user.Username,
	})

	return user, nil
}

// ChangePassword performs a self-service change and clears the forced-change
// flag
func (s *AuthService) ChangePassword(ctx context.Context, userID int, req *models.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return errors.ErrUnauthorized
	}

	valid, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil || !valid {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   &userID,
			Action:   "PASSWORD_CHANGE_DENIED",
			Resource: "users",
			Success:  false,
		})
		return errors.ErrInvalidCredentials
	}

	if err := s.validator.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(userID, hash, false); err != nil {
		return err
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   "PASSWORD_CHANGED",
		Resource: "users",
		Success:  true,
	})

	return nil
}

// ResetPassword replaces a target account's password and forces a change on
// next login. Manager-gated at the route layer.
func (s *AuthService) ResetPassword(ctx context.Context, actingManagerID, targetID int, newPassword string) error {
	if err := s.validator.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(targetID, hash, true); err != nil {
		return err
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &actingManagerID,
		Action:   "PASSWORD_RESET",
		Resource: "users",
		Success:  true,
		Metadata: fmt.Sprintf("target=%d", targetID),
	})

	return nil
}

// SetAccountActive deactivates or reactivates an account (soft only)
func (s *AuthService) SetAccountActive(ctx context.Context, actingManagerID, targetID int, active bool) error {
	if err := s.userRepo.SetActive(targetID, active); err != nil {
		return err
	}

	action := "ACCOUNT_DEACTIVATED"
	if active {
		action = "ACCOUNT_REACTIVATED"
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &actingManagerID,
		Action:   action,
		Resource: "users",
		Success:  true,
		Metadata: fmt.Sprintf("target=%d", targetID),
	})

	return nil
}

// ListAccounts returns every account
func (s *AuthService) ListAccounts() ([]*models.User, error) {
	return s.userRepo.List()
}

// generateSessionToken generates a secure random session token
func generateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
