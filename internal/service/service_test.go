package service

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frontdesk/guestlog/internal/audit"
	"github.com/frontdesk/guestlog/internal/database"
	"github.com/frontdesk/guestlog/internal/ratelimit"
	"github.com/frontdesk/guestlog/internal/repository"
)

// testEnv wires the full service stack against a throwaway database.
type testEnv struct {
	db         *sql.DB
	auth       *AuthService
	records    *RecordService
	override   *OverrideService
	userRepo   *repository.UserRepository
	recordRepo *repository.RecordRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()

	db, err := sql.Open("sqlite3", filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))

	auditLogger, err := audit.NewLogger(db, filepath.Join(dir, "audit.log"), false)
	require.NoError(t, err)
	t.Cleanup(func() { auditLogger.Close() })

	// Generous limits so tests never trip the bucket by accident
	rateLimiter := ratelimit.NewRateLimiter(1000, 1000)

	userRepo := repository.NewUserRepository(db)
	lockoutRepo := repository.NewLockoutRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	override := NewOverrideService(userRepo)

	return &testEnv{
		db:         db,
		auth:       NewAuthService(userRepo, lockoutRepo, sessionRepo, rateLimiter, auditLogger, 12*time.Hour),
		records:    NewRecordService(recordRepo, override, rateLimiter, auditLogger),
		override:   override,
		userRepo:   userRepo,
		recordRepo: recordRepo,
	}
}
