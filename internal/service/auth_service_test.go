package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/pkg/errors"
)

const testPassword = "Sunrise7desk"

func bootstrapManager(t *testing.T, env *testEnv, username string) *models.User {
	t.Helper()
	user, err := env.auth.Bootstrap(context.Background(), &models.CreateUserRequest{
		Username: username,
		Password: testPassword,
	})
	require.NoError(t, err)
	return user
}

func login(t *testing.T, env *testEnv, username, password string) (*models.User, *models.Session, error) {
	t.Helper()
	return env.auth.Login(context.Background(), &models.LoginRequest{
		Username: username,
		Password: password,
	}, "10.0.0.1", "test-agent", "")
}

func TestBootstrapAndLogin(t *testing.T) {
	env := newTestEnv(t)

	required, err := env.auth.SetupRequired()
	require.NoError(t, err)
	require.True(t, required)

	created := bootstrapManager(t, env, "manager1")
	require.Equal(t, models.RoleManager, created.Role)

	user, session, err := login(t, env, "manager1", testPassword)
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.NotEmpty(t, session.Token)
	require.True(t, session.ExpiresAt.After(time.Now()))
}

func TestBootstrapIsOneShot(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	_, err := env.auth.Bootstrap(context.Background(), &models.CreateUserRequest{
		Username: "manager2",
		Password: testPassword,
	})
	require.ErrorIs(t, err, errors.ErrSetupComplete)
}

func TestBootstrapForcesManagerRole(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.auth.Bootstrap(context.Background(), &models.CreateUserRequest{
		Username: "firstuser",
		Password: testPassword,
		Role:     models.RoleFrontDesk,
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleManager, user.Role)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	manager := bootstrapManager(t, env, "manager1")

	_, _, unknownErr := login(t, env, "nosuchuser", testPassword)
	require.ErrorIs(t, unknownErr, errors.ErrInvalidCredentials)

	_, _, wrongErr := login(t, env, "manager1", "Wrong7password")
	require.ErrorIs(t, wrongErr, errors.ErrInvalidCredentials)

	require.NoError(t, env.auth.SetAccountActive(context.Background(), manager.ID, manager.ID, false))
	_, _, inactiveErr := login(t, env, "manager1", testPassword)
	require.ErrorIs(t, inactiveErr, errors.ErrInvalidCredentials)

	require.Equal(t, unknownErr.Error(), wrongErr.Error())
	require.Equal(t, wrongErr.Error(), inactiveErr.Error())
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	for i := 0; i < maxFailedLoginAttempts; i++ {
		_, _, err := login(t, env, "manager1", "Wrong7password")
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	}

	// Correct credentials are now rejected with the same generic error
	_, _, err := login(t, env, "manager1", testPassword)
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestExpiredLockoutResetsLazily(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	for i := 0; i < maxFailedLoginAttempts; i++ {
		login(t, env, "manager1", "Wrong7password")
	}

	// Age the lock past its window
	_, err := env.db.Exec(
		`UPDATE login_attempts SET locked_until = ? WHERE username = ?`,
		time.Now().Add(-time.Minute), "manager1",
	)
	require.NoError(t, err)

	_, _, err = login(t, env, "manager1", testPassword)
	require.NoError(t, err)
}

func TestSuccessfulLoginClearsCounter(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	for i := 0; i < maxFailedLoginAttempts-1; i++ {
		login(t, env, "manager1", "Wrong7password")
	}

	_, _, err := login(t, env, "manager1", testPassword)
	require.NoError(t, err)

	// The counter restarted from zero, so one more failure does not lock
	login(t, env, "manager1", "Wrong7password")
	_, _, err = login(t, env, "manager1", testPassword)
	require.NoError(t, err)
}

func TestAuthenticateRejectsDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	manager := bootstrapManager(t, env, "manager1")

	_, session, err := login(t, env, "manager1", testPassword)
	require.NoError(t, err)

	_, _, err = env.auth.Authenticate(session.Token)
	require.NoError(t, err)

	require.NoError(t, env.auth.SetAccountActive(context.Background(), manager.ID, manager.ID, false))

	_, _, err = env.auth.Authenticate(session.Token)
	require.ErrorIs(t, err, errors.ErrUnauthorized)

	// The dead session row was removed, so reactivation does not revive it
	require.NoError(t, env.auth.SetAccountActive(context.Background(), manager.ID, manager.ID, true))
	_, _, err = env.auth.Authenticate(session.Token)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	_, session, err := login(t, env, "manager1", testPassword)
	require.NoError(t, err)

	_, err = env.db.Exec(
		`UPDATE sessions SET expires_at = ? WHERE session_token = ?`,
		time.Now().Add(-time.Minute), session.Token,
	)
	require.NoError(t, err)

	_, _, err = env.auth.Authenticate(session.Token)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	_, session, err := login(t, env, "manager1", testPassword)
	require.NoError(t, err)

	env.auth.Logout(session.Token)

	_, _, err = env.auth.Authenticate(session.Token)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestLoginRegeneratesSessionToken(t *testing.T) {
	env := newTestEnv(t)
	bootstrapManager(t, env, "manager1")

	_, first, err := login(t, env, "manager1", testPassword)
	require.NoError(t, err)

	_, second, err := env.auth.Login(context.Background(), &models.LoginRequest{
		Username: "manager1",
		Password: testPassword,
	}, "10.0.0.1", "test-agent", first.Token)
	require.NoError(t, err)

	require.NotEqual(t, first.Token, second.Token)

	// The prior session died with the re-login
	_, _, err = env.auth.Authenticate(first.Token)
	require.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestCreateAccountValidation(t *testing.T) {
	env := newTestEnv(t)
	manager := bootstrapManager(t, env, "manager1")
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.CreateUserRequest
	}{
		{"short username", models.CreateUserRequest{Username: "ab", Password: testPassword, Role: models.RoleFrontDesk}},
		{"bad role", models.CreateUserRequest{Username: "frontdesk1", Password: testPassword, Role: "owner"}},
		{"weak password", models.CreateUserRequest{Username: "frontdesk1", Password: "short", Role: models.RoleFrontDesk}},
		{"duplicate username", models.CreateUserRequest{Username: "manager1", Password: testPassword, Role: models.RoleFrontDesk}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.CreateAccount(ctx, &tt.req, &manager.ID)
			require.Error(t, err)
		})
	}

	user, err := env.auth.CreateAccount(ctx, &models.CreateUserRequest{
		Username: "frontdesk1",
		Password: testPassword,
		Role:     models.RoleFrontDesk,
	}, &manager.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleFrontDesk, user.Role)
}

func TestPasswordResetForcesChange(t *testing.T) {
	env := newTestEnv(t)
	manager := bootstrapManager(t, env, "manager1")
	ctx := context.Background()

	staff, err := env.auth.CreateAccount(ctx, &models.CreateUserRequest{
		Username: "frontdesk1",
		Password: testPassword,
		Role:     models.RoleFrontDesk,
	}, &manager.ID)
	require.NoError(t, err)

	require.NoError(t, env.auth.ResetPassword(ctx, manager.ID, staff.ID, "Newpass7word"))

	user, _, err := login(t, env, "frontdesk1", "Newpass7word")
	require.NoError(t, err)
	require.True(t, user.ForcePasswordChange)

	// Self-service change requires the current password and clears the flag
	err = env.auth.ChangePassword(ctx, staff.ID, &models.ChangePasswordRequest{
		CurrentPassword: "Wrong7password",
		NewPassword:     "Another7pass",
	})
	require.ErrorIs(t, err, errors.ErrInvalidCredentials)

	require.NoError(t, env.auth.ChangePassword(ctx, staff.ID, &models.ChangePasswordRequest{
		CurrentPassword: "Newpass7word",
		NewPassword:     "Another7pass",
	}))

	user, _, err = login(t, env, "frontdesk1", "Another7pass")
	require.NoError(t, err)
	require.False(t, user.ForcePasswordChange)
}
