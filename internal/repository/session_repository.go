package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/pkg/errors"
)

type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session row
func (r *SessionRepository) Create(session *models.Session) error {
	query := `
        INSERT INTO sessions (user_id, session_token, ip_address, user_agent, created_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	now := time.Now()
	result, err := r.db.Exec(query,
		session.UserID,
		session.Token,
		session.IPAddress,
		session.UserAgent,
		now,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get session ID: %w", err)
	}

	session.ID = int(id)
	session.CreatedAt = now

	return nil
}

// GetByToken retrieves a session by its token
func (r *SessionRepository) GetByToken(token string) (*models.Session, error) {
	query := `
        SELECT id, user_id, session_token, ip_address, user_agent, created_at, expires_at
        FROM sessions
        WHERE session_token = ?
    `

	session := &models.Session{}
	err := r.db.QueryRow(query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteByToken removes one session (logout, or regeneration on login)
func (r *SessionRepository) DeleteByToken(token string) error {
	if _, err := r.db.Exec(`DELETE FROM sessions WHERE session_token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired prunes sessions past their expiry
func (r *SessionRepository) DeleteExpired() error {
	if _, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}
