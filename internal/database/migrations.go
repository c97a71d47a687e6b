package database

import (
	"database/sql"
	"fmt"
)

// Migrate runs database migrations
func Migrate(db *sql.DB) error {
	// Staff accounts. Roles mirror the front-desk shifts; accounts are
	// deactivated, never deleted.
	usersSchema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        role TEXT NOT NULL CHECK(role IN ('manager', 'front_desk', 'night_audit')),
        is_active BOOLEAN DEFAULT 1,
        force_password_change BOOLEAN DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        last_login DATETIME
    );

    CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
    CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
    CREATE INDEX IF NOT EXISTS idx_users_active ON users(is_active);
    `

	if _, err := db.Exec(usersSchema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// Per-username lockout counters, persisted so state survives restarts
	// and multi-process deployments.
	lockoutSchema := `
    CREATE TABLE IF NOT EXISTS login_attempts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT NOT NULL,
        attempt_count INTEGER DEFAULT 0,
        locked_until DATETIME,
        last_attempt DATETIME DEFAULT CURRENT_TIMESTAMP,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE UNIQUE INDEX IF NOT EXISTS idx_login_attempts_username ON login_attempts(username);
    `

	if _, err := db.Exec(lockoutSchema); err != nil {
		return fmt.Errorf("failed to create login_attempts table: %w", err)
	}

	sessionsSchema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        session_token TEXT UNIQUE NOT NULL,
        ip_address TEXT,
        user_agent TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        expires_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(session_token);
    CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
    `

	if _, err := db.Exec(sessionsSchema); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	// Ban records. Date columns hold ISO YYYY-MM-DD text; expiry scans
	// compare them lexicographically.
	recordsSchema := `
    CREATE TABLE IF NOT EXISTS records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        guest_name TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'active',
        ban_type TEXT NOT NULL,
        reasons TEXT NOT NULL,
        reason_detail TEXT,
        date_added TEXT NOT NULL,
        incident_date TEXT,
        expiration_type TEXT,
        expiration_date TEXT,
        lifted_date TEXT,
        lifted_type TEXT,
        lifted_reason TEXT,
        lifted_initials TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_records_guest_name ON records(guest_name);
    CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
    `

	if _, err := db.Exec(recordsSchema); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	timelineSchema := `
    CREATE TABLE IF NOT EXISTS timeline_entries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        record_id INTEGER NOT NULL,
        entry_date TEXT NOT NULL,
        staff_initials TEXT,
        note TEXT NOT NULL,
        is_system BOOLEAN DEFAULT 0,
        FOREIGN KEY (record_id) REFERENCES records(id)
    );

    CREATE INDEX IF NOT EXISTS idx_timeline_record ON timeline_entries(record_id);
    `

	if _, err := db.Exec(timelineSchema); err != nil {
		return fmt.Errorf("failed to create timeline_entries table: %w", err)
	}

	// Failed override attempts, write-only forensic log.
	attemptsSchema := `
    CREATE TABLE IF NOT EXISTS password_attempts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        record_id INTEGER,
        attempt_date DATETIME NOT NULL,
        ip_address TEXT,
        FOREIGN KEY (record_id) REFERENCES records(id)
    );

    CREATE INDEX IF NOT EXISTS idx_password_attempts_record ON password_attempts(record_id);
    `

	if _, err := db.Exec(attemptsSchema); err != nil {
		return fmt.Errorf("failed to create password_attempts table: %w", err)
	}

	return nil
}
