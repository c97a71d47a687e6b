package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frontdesk/guestlog/internal/database"
	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/pkg/errors"
)

type RecordRepository struct {
	db *sql.DB
	tx *database.TransactionManager
}

// NewRecordRepository creates a new ban record repository
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{
		db: db,
		tx: database.NewTransactionManager(db),
	}
}

const recordColumns = `id, guest_name, status, ban_type, reasons, reason_detail, date_added,
               incident_date, expiration_type, expiration_date,
               lifted_date, lifted_type, lifted_reason, lifted_initials`

func scanRecord(row interface{ Scan(...any) error }) (*models.BanRecord, error) {
	record := &models.BanRecord{}
	var reasonsJSON string
	var reasonDetail, incidentDate, expirationType, expirationDate sql.NullString
	var liftedDate, liftedType, liftedReason, liftedInitials sql.NullString

	err := row.Scan(
		&record.ID,
		&record.GuestName,
		&record.Status,
		&record.BanType,
		&reasonsJSON,
		&reasonDetail,
		&record.DateAdded,
		&incidentDate,
		&expirationType,
		&expirationDate,
		&liftedDate,
		&liftedType,
		&liftedReason,
		&liftedInitials,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	if err := json.Unmarshal([]byte(reasonsJSON), &record.Reasons); err != nil {
		// Legacy rows stored a single plain-text reason
		record.Reasons = []string{reasonsJSON}
	}

	record.ReasonDetail = reasonDetail.String
	record.IncidentDate = incidentDate.String
	record.ExpirationType = models.ExpirationType(expirationType.String)
	record.ExpirationDate = expirationDate.String
	record.LiftedDate = liftedDate.String
	record.LiftedType = models.LiftType(liftedType.String)
	record.LiftedReason = liftedReason.String
	record.LiftedInitials = liftedInitials.String

	return record, nil
}

// Create inserts a new record and its initial system timeline entry as one
// atomic unit; if the timeline write fails the record insert is rolled back.
func (r *RecordRepository) Create(ctx context.Context, record *models.BanRecord, staffInitials, initialNote string) error {
	reasonsJSON, err := json.Marshal(record.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	return r.tx.Execute(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
            INSERT INTO records
            (guest_name, status, ban_type, reasons, reason_detail, date_added, incident_date,
             expiration_type, expiration_date)
            VALUES (?, 'active', ?, ?, ?, ?, ?, ?, ?)
        `,
			record.GuestName,
			record.BanType,
			string(reasonsJSON),
			nullable(record.ReasonDetail),
			record.DateAdded,
			nullable(record.IncidentDate),
			nullable(string(record.ExpirationType)),
			nullable(record.ExpirationDate),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get record ID: %w", err)
		}
		record.ID = int(id)
		record.Status = models.StatusActive

		_, err = tx.Exec(`
            INSERT INTO timeline_entries (record_id, entry_date, staff_initials, note, is_system)
            VALUES (?, ?, ?, ?, 1)
        `, record.ID, record.DateAdded, staffInitials, initialNote)
		if err != nil {
			return fmt.Errorf("failed to insert initial timeline entry: %w", err)
		}

		return nil
	})
}

// GetByID retrieves a record without its timeline
func (r *RecordRepository) GetByID(id int) (*models.BanRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`
	return scanRecord(r.db.QueryRow(query, id))
}

// List retrieves records with filters and a whitelisted sort order
func (r *RecordRepository) List(filters models.RecordListFilters) ([]*models.BanRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE 1=1`
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	if filters.BanType != "" {
		query += " AND ban_type = ?"
		args = append(args, filters.BanType)
	}

	if filters.Search != "" {
		query += " AND guest_name LIKE ?"
		args = append(args, "%"+filters.Search+"%")
	}

	allowedSorts := map[string]string{
		"name":     "LOWER(guest_name)",
		"date":     "date_added",
		"status":   "status",
		"ban_type": "ban_type",
	}

	orderBy := "date_added DESC"
	if col, ok := allowedSorts[filters.Sort]; ok {
		dir := strings.ToUpper(filters.Dir)
		if dir == "ASC" || dir == "DESC" {
			orderBy = col + " " + dir
		}
	}
	query += " ORDER BY " + orderBy

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*models.BanRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// GetTimeline returns a record's timeline newest-first, ties broken by
// insertion order
func (r *RecordRepository) GetTimeline(recordID int) ([]*models.TimelineEntry, error) {
	query := `
        SELECT id, record_id, entry_date, staff_initials, note, is_system
        FROM timeline_entries
        WHERE record_id = ?
        ORDER BY entry_date DESC, id DESC
    `

	rows, err := r.db.Query(query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var entries []*models.TimelineEntry
	for rows.Next() {
		entry := &models.TimelineEntry{}
		var initials sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.RecordID,
			&entry.EntryDate,
			&initials,
			&entry.Note,
			&entry.IsSystem,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		entry.StaffInitials = initials.String
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// AddTimelineEntry appends one entry to a record's timeline
func (r *RecordRepository) AddTimelineEntry(entry *models.TimelineEntry) error {
	query := `
        INSERT INTO timeline_entries (record_id, entry_date, staff_initials, note, is_system)
        VALUES (?, ?, ?, ?, ?)
    `

	result, err := r.db.Exec(query,
		entry.RecordID,
		entry.EntryDate,
		nullable(entry.StaffInitials),
		entry.Note,
		entry.IsSystem,
	)
	if err != nil {
		return fmt.Errorf("failed to insert timeline entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get entry ID: %w", err)
	}
	entry.ID = int(id)

	return nil
}

// ExpireDue flips active temporary date-based bans whose expiration date has
// passed to expired, appending a system timeline entry per record. The scan
// excludes already-expired records, so re-running it is a no-op.
func (r *RecordRepository) ExpireDue(ctx context.Context, today string, note string) (int, error) {
	expired := 0

	err := r.tx.Execute(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`
            SELECT id FROM records
            WHERE status = 'active'
            AND ban_type = 'temporary'
            AND expiration_type = 'date'
            AND expiration_date <= ?
        `, today)
		if err != nil {
			return fmt.Errorf("failed to scan for due bans: %w", err)
		}

		var ids []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan due ban id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := tx.Exec(`UPDATE records SET status = 'expired' WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to expire record %d: %w", id, err)
			}
			if _, err := tx.Exec(`
                INSERT INTO timeline_entries (record_id, entry_date, note, is_system)
                VALUES (?, ?, ?, 1)
            `, id, today, note); err != nil {
				return fmt.Errorf("failed to append expiry entry for record %d: %w", id, err)
			}
		}

		expired = len(ids)
		return nil
	})

	return expired, err
}

// Lift marks a record lifted and appends the system timeline entry in the
// same transaction
func (r *RecordRepository) Lift(ctx context.Context, recordID int, liftedDate string, liftType models.LiftType, reason, initials, note string) error {
	return r.tx.Execute(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
            UPDATE records
            SET status = 'lifted',
                lifted_date = ?,
                lifted_type = ?,
                lifted_reason = ?,
                lifted_initials = ?
            WHERE id = ? AND status != 'lifted'
        `, liftedDate, liftType, reason, initials, recordID)
		if err != nil {
			return fmt.Errorf("failed to lift record: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			return errors.ErrAlreadyLifted
		}

		if _, err := tx.Exec(`
            INSERT INTO timeline_entries (record_id, entry_date, staff_initials, note, is_system)
            VALUES (?, ?, ?, ?, 1)
        `, recordID, liftedDate, initials, note); err != nil {
			return fmt.Errorf("failed to append lift entry: %w", err)
		}

		return nil
	})
}

// LogFailedAttempt records a rejected override secret: one forensic row plus
// a hidden system timeline entry, atomically. Callers treat this as
// best-effort and discard the error.
func (r *RecordRepository) LogFailedAttempt(ctx context.Context, recordID int, ipAddress, note string) error {
	return r.tx.Execute(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
            INSERT INTO password_attempts (record_id, attempt_date, ip_address)
            VALUES (?, ?, ?)
        `, recordID, time.Now(), ipAddress); err != nil {
			return fmt.Errorf("failed to insert failed attempt: %w", err)
		}

		if _, err := tx.Exec(`
            INSERT INTO timeline_entries (record_id, entry_date, note, is_system)
            VALUES (?, ?, ?, 1)
        `, recordID, time.Now().Format("2006-01-02"), note); err != nil {
			return fmt.Errorf("failed to insert hidden entry: %w", err)
		}

		return nil
	})
}

// CountFailedAttempts returns the number of forensic rows for a record.
// Internal review only; never exposed through the API.
func (r *RecordRepository) CountFailedAttempts(recordID int) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM password_attempts WHERE record_id = ?`, recordID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
