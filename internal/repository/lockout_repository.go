package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/frontdesk/guestlog/internal/models"
)

// LockoutRepository persists per-username failed-login counters. Rows are
// created lazily on the first failure; an expired lock found at check time
// is reset in place rather than swept by a background job.
type LockoutRepository struct {
	db *sql.DB
}

// NewLockoutRepository creates a new lockout repository
func NewLockoutRepository(db *sql.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the lockout state for a username, or nil when no failures
// have been recorded yet.
func (r *LockoutRepository) Get(username string) (*models.LockoutState, error) {
	query := `
        SELECT username, attempt_count, locked_until, last_attempt
        FROM login_attempts
        WHERE username = ?
    `

	state := &models.LockoutState{}
	err := r.db.QueryRow(query, username).Scan(
		&state.Username,
		&state.AttemptCount,
		&state.LockedUntil,
		&state.LastAttempt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lockout state: %w", err)
	}

	return state, nil
}

// RecordFailure increments the attempt counter, creating the row on first
// failure, and sets locked_until once the counter reaches threshold. The
// read-increment-write is best effort; successive failures still trip the
// threshold under concurrency.
func (r *LockoutRepository) RecordFailure(username string, threshold int, lockDuration time.Duration) error {
	now := time.Now()

	upsert := `
        INSERT INTO login_attempts (username, attempt_count, last_attempt)
        VALUES (?, 1, ?)
        ON CONFLICT(username) DO UPDATE SET
            attempt_count = attempt_count + 1,
            last_attempt = excluded.last_attempt
    `
	if _, err := r.db.Exec(upsert, username, now); err != nil {
		return fmt.Errorf("failed to record failed attempt: %w", err)
	}

	lock := `
        UPDATE login_attempts
        SET locked_until = ?
        WHERE username = ? AND attempt_count >= ? AND locked_until IS NULL
    `
	if _, err := r.db.Exec(lock, now.Add(lockDuration), username, threshold); err != nil {
		return fmt.Errorf("failed to set lockout: %w", err)
	}

	return nil
}

// Reset clears the counter and any lock for the username
func (r *LockoutRepository) Reset(username string) error {
	query := `
        UPDATE login_attempts
        SET attempt_count = 0, locked_until = NULL
        WHERE username = ?
    `
	if _, err := r.db.Exec(query, username); err != nil {
		return fmt.Errorf("failed to reset lockout state: %w", err)
	}
	return nil
}
