package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frontdesk/guestlog/internal/audit"
	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/internal/ratelimit"
	"github.com/frontdesk/guestlog/internal/repository"
	"github.com/frontdesk/guestlog/pkg/errors"
	"github.com/frontdesk/guestlog/pkg/validator"
)

// Timeline notes written by lifecycle transitions. The wording matches the
// entries already present in production data.
const (
	noteAutoExpired   = "Ban auto-expired based on expiration date"
	noteFailedAttempt = "Failed lift attempt logged"
)

// RecordService owns the ban record state machine: active on creation,
// expired by the lazy sweep, lifted (terminal) through the manager override.
type RecordService struct {
	recordRepo  *repository.RecordRepository
	override    *OverrideService
	validator   *validator.Validator
	rateLimiter *ratelimit.RateLimiter
	auditLogger *audit.Logger
}

// NewRecordService creates a new record service
func NewRecordService(
	recordRepo *repository.RecordRepository,
	override *OverrideService,
	rateLimiter *ratelimit.RateLimiter,
	auditLogger *audit.Logger,
) *RecordService {
	return &RecordService{
		recordRepo:  recordRepo,
		override:    override,
		validator:   validator.New(),
		rateLimiter: rateLimiter,
		auditLogger: auditLogger,
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// Create validates and persists a new ban record. The record and its first
// timeline entry are written in one transaction.
func (s *RecordService) Create(ctx context.Context, userID int, req *models.CreateRecordRequest) (*models.BanRecord, error) {
	guestName := s.validator.Truncate(s.validator.SanitizeString(req.GuestName), validator.MaxGuestNameLength)
	initials := s.validator.Truncate(s.validator.SanitizeString(req.StaffInitials), validator.MaxInitialsLength)
	detail := s.validator.Truncate(s.validator.SanitizeString(req.ReasonDetail), validator.MaxReasonDetailLength)

	if guestName == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Guest name is required", 400)
	}
	if req.BanType != models.BanTemporary && req.BanType != models.BanPermanent {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Invalid ban type", 400)
	}
	if len(req.Reasons) == 0 || len(req.Reasons) > models.MaxReasons {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "At least one reason is required (max 10)", 400)
	}
	if initials == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Staff initials are required", 400)
	}

	// Off-list reasons are dropped silently, never stored
	validReasons := models.FilterReasons(req.Reasons)
	if len(validReasons) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "At least one valid reason is required", 400)
	}

	if req.BanType == models.BanTemporary && req.ExpirationType == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Expiration type required for temporary bans", 400)
	}
	if req.ExpirationType == models.ExpirationDate {
		if req.ExpirationDate == "" {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "Expiration date required", 400)
		}
		if err := s.validator.ValidateDate(req.ExpirationDate); err != nil {
			return nil, err
		}
	}
	if req.IncidentDate != "" {
		if err := s.validator.ValidateDate(req.IncidentDate); err != nil {
			return nil, err
		}
	}

	record := &models.BanRecord{
		GuestName:      guestName,
		Status:         models.StatusActive,
		BanType:        req.BanType,
		Reasons:        validReasons,
		ReasonDetail:   detail,
		DateAdded:      today(),
		IncidentDate:   req.IncidentDate,
		ExpirationType: req.ExpirationType,
		ExpirationDate: req.ExpirationDate,
	}

	banLabel := strings.ToUpper(string(req.BanType[:1])) + string(req.BanType[1:])
	initialNote := fmt.Sprintf("Record created. %s ban added.", banLabel)

	if err := s.recordRepo.Create(ctx, record, initials, initialNote); err != nil {
		return nil, err
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   "RECORD_CREATED",
		Resource: "records",
		Success:  true,
		Metadata: fmt.Sprintf("record=%d", record.ID),
	})

	return record, nil
}

// sweep expires due temporary bans. Runs before every read of ban data;
// idempotent, so concurrent requests may race through it safely.
func (s *RecordService) sweep(ctx context.Context) {
	expired, err := s.recordRepo.ExpireDue(ctx, today(), noteAutoExpired)
	if err != nil {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelError,
			Action:   "EXPIRY_SWEEP_FAILED",
			Resource: "records",
			Success:  false,
			ErrorMsg: err.Error(),
		})
		return
	}

	if expired > 0 {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelInfo,
			Action:   "RECORDS_EXPIRED",
			Resource: "records",
			Success:  true,
			Metadata: fmt.Sprintf("count=%d", expired),
		})
	}
}

// List returns records matching the filters, sweeping due expirations first
func (s *RecordService) List(ctx context.Context, filters models.RecordListFilters) ([]*models.BanRecord, error) {
	s.sweep(ctx)
	return s.recordRepo.List(filters)
}

// Get returns one record with its timeline newest-first
func (s *RecordService) Get(ctx context.Context, id int) (*models.BanRecord, error) {
	s.sweep(ctx)

	record, err := s.recordRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	timeline, err := s.recordRepo.GetTimeline(id)
	if err != nil {
		return nil, err
	}
	record.Timeline = timeline

	return record, nil
}

// AddNote appends a staff-authored timeline entry. Lifted records are
// terminal and reject further notes.
func (s *RecordService) AddNote(ctx context.Context, userID, recordID int, req *models.AddNoteRequest) (*models.TimelineEntry, error) {
	record, err := s.recordRepo.GetByID(recordID)
	if err != nil {
		return nil, err
	}

	if record.Status == models.StatusLifted {
		return nil, errors.NewAppError(errors.ErrRecordLifted, "Cannot add notes to lifted records", 400)
	}

	initials := s.validator.Truncate(s.validator.SanitizeString(req.StaffInitials), validator.MaxInitialsLength)
	note := s.validator.Truncate(s.validator.SanitizeString(req.Note), validator.MaxNoteLength)

	if initials == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Staff initials required", 400)
	}
	if note == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Note is required", 400)
	}

	entry := &models.TimelineEntry{
		RecordID:      recordID,
		EntryDate:     today(),
		StaffInitials: initials,
		Note:          note,
		IsSystem:      false,
	}
	if err := s.recordRepo.AddTimelineEntry(entry); err != nil {
		return nil, err
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   "NOTE_ADDED",
		Resource: "records",
		Success:  true,
		Metadata: fmt.Sprintf("record=%d", recordID),
	})

	return entry, nil
}

// Lift moves a record to the terminal lifted state. Requires the manager
// override secret; a wrong secret silently logs a forensic row and a hidden
// timeline entry, then fails with the same generic error a missing record
// produces.
func (s *RecordService) Lift(ctx context.Context, userID, recordID int, req *models.LiftRequest, ipAddress string) error {
	if err := s.rateLimiter.CheckLimit(fmt.Sprintf("lift:%s", ipAddress)); err != nil {
		return err
	}

	record, err := s.recordRepo.GetByID(recordID)
	if err != nil {
		// Indistinguishable from a bad secret; there is no record to
		// attach forensics to.
		return errors.ErrUnableToProcess
	}

	if record.Status == models.StatusLifted {
		return errors.NewAppError(errors.ErrAlreadyLifted, "Record already lifted", 400)
	}

	matched, err := s.override.VerifySecret(req.Password)
	if err != nil {
		return fmt.Errorf("failed to verify override secret: %w", err)
	}

	if !matched {
		// Best-effort forensics; a storage failure here must not change
		// the response.
		if logErr := s.recordRepo.LogFailedAttempt(ctx, recordID, ipAddress, noteFailedAttempt); logErr != nil {
			s.auditLogger.Log(&audit.Event{
				Level:    audit.LevelError,
				Action:   "ATTEMPT_LOG_FAILED",
				Resource: "records",
				Success:  false,
				ErrorMsg: logErr.Error(),
			})
		}

		s.auditLogger.Log(&audit.Event{
			Level:     audit.LevelWarning,
			UserID:    &userID,
			Action:    audit.ActionLiftDenied,
			Resource:  "records",
			IPAddress: ipAddress,
			Success:   false,
			Metadata:  fmt.Sprintf("record=%d", recordID),
		})

		return errors.ErrUnableToProcess
	}

	liftReason := s.validator.Truncate(s.validator.SanitizeString(req.LiftReason), validator.MaxLiftReasonLength)
	initials := s.validator.Truncate(s.validator.SanitizeString(req.Initials), validator.MaxInitialsLength)

	if !models.ValidLiftType(req.LiftType) {
		return errors.NewAppError(errors.ErrInvalidInput, "Invalid removal type", 400)
	}
	if liftReason == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "Removal reason is required", 400)
	}
	if initials == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "Manager initials are required", 400)
	}

	note := fmt.Sprintf("Ban lifted. Type: %s. Reason: %s", req.LiftType.DisplayName(), liftReason)
	if err := s.recordRepo.Lift(ctx, recordID, today(), req.LiftType, liftReason, initials, note); err != nil {
		return err
	}

	s.auditLogger.Log(&audit.Event{
		Level:     audit.LevelInfo,
		UserID:    &userID,
		Action:    "BAN_LIFTED",
		Resource:  "records",
		IPAddress: ipAddress,
		Success:   true,
		Metadata:  fmt.Sprintf("record=%d type=%s", recordID, req.LiftType),
	})

	return nil
}
