package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/pkg/errors"
)

type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, role, is_active, force_password_change, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.ForcePasswordChange,
		&user.CreatedAt,
		&user.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// Create creates a new staff account
func (r *UserRepository) Create(user *models.User) error {
	query := `
        INSERT INTO users (username, password_hash, role, is_active, force_password_change, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	now := time.Now()
	result, err := r.db.Exec(query,
		user.Username,
		user.PasswordHash,
		user.Role,
		true,
		user.ForcePasswordChange,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}

	user.ID = int(id)
	user.IsActive = true
	user.CreatedAt = now

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRow(query, id))
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(r.db.QueryRow(query, username))
}

// List returns all accounts, active or not
func (r *UserRepository) List() ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Count returns the total number of accounts. Used by the bootstrap setup
// gate, which only opens when no accounts exist.
func (r *UserRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ActiveManagerHashes returns the password hashes of every currently active
// manager account. The override capability check verifies the submitted
// secret against each of these, independent of the acting identity.
func (r *UserRepository) ActiveManagerHashes() ([]string, error) {
	query := `
        SELECT password_hash FROM users
        WHERE role = ? AND is_active = 1
    `

	rows, err := r.db.Query(query, models.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("failed to query manager hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan manager hash: %w", err)
		}
		hashes = append(hashes, hash)
	}

	return hashes, rows.Err()
}

// UpdateLastLogin updates user's last login time
func (r *UserRepository) UpdateLastLogin(userID int) error {
	query := `UPDATE users SET last_login = ? WHERE id = ?`
	if _, err := r.db.Exec(query, time.Now(), userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash and sets the forced-change flag
func (r *UserRepository) UpdatePassword(userID int, passwordHash string, forceChange bool) error {
	query := `
        UPDATE users
        SET password_hash = ?, force_password_change = ?
        WHERE id = ?
    `

	result, err := r.db.Exec(query, passwordHash, forceChange, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return requireRowsAffected(result)
}

// SetActive flips the account's active flag (soft deactivate / reactivate;
// accounts are never hard-deleted)
func (r *UserRepository) SetActive(userID int, active bool) error {
	query := `UPDATE users SET is_active = ? WHERE id = ?`

	result, err := r.db.Exec(query, active, userID)
	if err != nil {
		return fmt.Errorf("failed to update active flag: %w", err)
	}

	return requireRowsAffected(result)
}

func requireRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return errors.ErrAccountNotFound
	}
	return nil
}
