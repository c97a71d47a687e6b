package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/pkg/errors"
)

func isoDaysFromNow(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func createRecord(t *testing.T, env *testEnv, req models.CreateRecordRequest) *models.BanRecord {
	t.Helper()
	if req.GuestName == "" {
		req.GuestName = "John Smith"
	}
	if req.BanType == "" {
		req.BanType = models.BanPermanent
	}
	if req.Reasons == nil {
		req.Reasons = []string{"Scammer"}
	}
	if req.StaffInitials == "" {
		req.StaffInitials = "AB"
	}

	record, err := env.records.Create(context.Background(), 1, &req)
	require.NoError(t, err)
	return record
}

func TestCreateRecordWritesInitialTimelineEntry(t *testing.T) {
	env := newTestEnv(t)

	record := createRecord(t, env, models.CreateRecordRequest{
		BanType: models.BanTemporary,
		Reasons: []string{"Drug use", "Animals"},

		ExpirationType: models.ExpirationResolved,
	})
	require.NotZero(t, record.ID)
	require.Equal(t, models.StatusActive, record.Status)

	got, err := env.records.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Drug use", "Animals"}, got.Reasons)

	require.Len(t, got.Timeline, 1)
	entry := got.Timeline[0]
	require.Equal(t, "Record created. Temporary ban added.", entry.Note)
	require.Equal(t, "AB", entry.StaffInitials)
	require.True(t, entry.IsSystem)
}

func TestCreateRecordDropsOffListReasons(t *testing.T) {
	env := newTestEnv(t)

	record := createRecord(t, env, models.CreateRecordRequest{
		Reasons: []string{"Scammer", "Invented reason", "Another invented one"},
	})

	got, err := env.records.Get(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Scammer"}, got.Reasons)
}

func TestCreateRecordValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := models.CreateRecordRequest{
		GuestName:     "John Smith",
		BanType:       models.BanPermanent,
		Reasons:       []string{"Scammer"},
		StaffInitials: "AB",
	}

	tests := []struct {
		name   string
		modify func(*models.CreateRecordRequest)
	}{
		{"missing guest name", func(r *models.CreateRecordRequest) { r.GuestName = "   " }},
		{"bad ban type", func(r *models.CreateRecordRequest) { r.BanType = "lifetime" }},
		{"no reasons", func(r *models.CreateRecordRequest) { r.Reasons = nil }},
		{"too many reasons", func(r *models.CreateRecordRequest) {
			r.Reasons = make([]string, models.MaxReasons+1)
		}},
		{"all reasons off-list", func(r *models.CreateRecordRequest) { r.Reasons = []string{"Fake"} }},
		{"missing initials", func(r *models.CreateRecordRequest) { r.StaffInitials = "" }},
		{"temporary without expiration type", func(r *models.CreateRecordRequest) {
			r.BanType = models.BanTemporary
		}},
		{"date expiry without date", func(r *models.CreateRecordRequest) {
			r.BanType = models.BanTemporary
			r.ExpirationType = models.ExpirationDate
		}},
		{"malformed expiration date", func(r *models.CreateRecordRequest) {
			r.BanType = models.BanTemporary
			r.ExpirationType = models.ExpirationDate
			r.ExpirationDate = "next week"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.modify(&req)
			_, err := env.records.Create(ctx, 1, &req)
			require.Error(t, err)
		})
	}
}

func TestSweepExpiresDueBansOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	due := createRecord(t, env, models.CreateRecordRequest{
		BanType:        models.BanTemporary,
		ExpirationType: models.ExpirationDate,
		ExpirationDate: isoDaysFromNow(-1),
	})
	notDue := createRecord(t, env, models.CreateRecordRequest{
		GuestName:      "Jane Doe",
		BanType:        models.BanTemporary,
		ExpirationType: models.ExpirationDate,
		ExpirationDate: isoDaysFromNow(30),
	})

	// Any read sweeps. Read twice; the sweep must not double-fire.
	for i := 0; i < 2; i++ {
		_, err := env.records.List(ctx, models.RecordListFilters{})
		require.NoError(t, err)
	}

	got, err := env.records.Get(ctx, due.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, got.Status)
	require.Len(t, got.Timeline, 2)
	require.Equal(t, "Ban auto-expired based on expiration date", got.Timeline[0].Note)
	require.True(t, got.Timeline[0].IsSystem)

	untouched, err := env.records.Get(ctx, notDue.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, untouched.Status)
	require.Len(t, untouched.Timeline, 1)
}

func TestSweepExpiresBanDueToday(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record := createRecord(t, env, models.CreateRecordRequest{
		BanType:        models.BanTemporary,
		ExpirationType: models.ExpirationDate,
		ExpirationDate: isoDaysFromNow(0),
	})

	got, err := env.records.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, got.Status)
}

func TestLiftWithValidSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	err := env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   testPassword,
		LiftType:   models.LiftManagerOverride,
		LiftReason: "Guest apologized in writing",
		Initials:   "MG",
	}, "10.0.0.1")
	require.NoError(t, err)

	got, err := env.records.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusLifted, got.Status)
	require.Equal(t, models.LiftManagerOverride, got.LiftedType)
	require.Equal(t, "Guest apologized in writing", got.LiftedReason)
	require.Equal(t, "MG", got.LiftedInitials)

	require.Len(t, got.Timeline, 2)
	require.Equal(t, "Ban lifted. Type: Manager Override. Reason: Guest apologized in writing", got.Timeline[0].Note)
	require.True(t, got.Timeline[0].IsSystem)
}

func TestLiftAcceptsAnyActiveManagerSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := bootstrapManager(t, env, "manager1")

	_, err := env.auth.CreateAccount(ctx, &models.CreateUserRequest{
		Username: "manager2",
		Password: "Second7secret",
		Role:     models.RoleManager,
	}, &manager.ID)
	require.NoError(t, err)

	record := createRecord(t, env, models.CreateRecordRequest{})

	err = env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   "Second7secret",
		LiftType:   models.LiftIssueResolved,
		LiftReason: "Payment dispute settled",
		Initials:   "MG",
	}, "10.0.0.1")
	require.NoError(t, err)
}

func TestLiftRejectsDeactivatedManagerSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := bootstrapManager(t, env, "manager1")

	second, err := env.auth.CreateAccount(ctx, &models.CreateUserRequest{
		Username: "manager2",
		Password: "Second7secret",
		Role:     models.RoleManager,
	}, &manager.ID)
	require.NoError(t, err)
	require.NoError(t, env.auth.SetAccountActive(ctx, manager.ID, second.ID, false))

	record := createRecord(t, env, models.CreateRecordRequest{})

	err = env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   "Second7secret",
		LiftType:   models.LiftIssueResolved,
		LiftReason: "Settled",
		Initials:   "MG",
	}, "10.0.0.1")
	require.ErrorIs(t, err, errors.ErrUnableToProcess)
}

func TestLiftWrongSecretLogsForensics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	err := env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   "Wrong7secret",
		LiftType:   models.LiftManagerOverride,
		LiftReason: "Attempted",
		Initials:   "XX",
	}, "203.0.113.9")
	require.ErrorIs(t, err, errors.ErrUnableToProcess)

	// Record untouched
	got, err := env.records.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)

	// One forensic row and one hidden timeline entry
	count, err := env.recordRepo.CountFailedAttempts(record.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.Len(t, got.Timeline, 2)
	require.Equal(t, "Failed lift attempt logged", got.Timeline[0].Note)
	require.True(t, got.Timeline[0].IsSystem)
	require.Empty(t, got.Timeline[0].StaffInitials)
}

func TestLiftMissingRecordIsOpaque(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	missingErr := env.records.Lift(ctx, 1, 9999, &models.LiftRequest{
		Password:   "Wrong7secret",
		LiftType:   models.LiftManagerOverride,
		LiftReason: "Attempted",
		Initials:   "XX",
	}, "10.0.0.1")
	require.ErrorIs(t, missingErr, errors.ErrUnableToProcess)

	record := createRecord(t, env, models.CreateRecordRequest{})
	wrongErr := env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   "Wrong7secret",
		LiftType:   models.LiftManagerOverride,
		LiftReason: "Attempted",
		Initials:   "XX",
	}, "10.0.0.1")

	// Missing record and bad secret produce identical errors
	require.Equal(t, missingErr.Error(), wrongErr.Error())

	// No forensic rows exist for the id that was never a record
	count, err := env.recordRepo.CountFailedAttempts(9999)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestLiftIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	lift := func() error {
		return env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
			Password:   testPassword,
			LiftType:   models.LiftErrorEntry,
			LiftReason: "Entered against the wrong guest",
			Initials:   "MG",
		}, "10.0.0.1")
	}

	require.NoError(t, lift())
	require.ErrorIs(t, lift(), errors.ErrAlreadyLifted)
}

func TestLiftValidatesFieldsAfterSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	tests := []struct {
		name string
		req  models.LiftRequest
	}{
		{"bad lift type", models.LiftRequest{Password: testPassword, LiftType: "pardon", LiftReason: "x", Initials: "MG"}},
		{"missing reason", models.LiftRequest{Password: testPassword, LiftType: models.LiftManagerOverride, Initials: "MG"}},
		{"missing initials", models.LiftRequest{Password: testPassword, LiftType: models.LiftManagerOverride, LiftReason: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.records.Lift(ctx, 1, record.ID, &tt.req, "10.0.0.1")
			require.Error(t, err)
			require.NotErrorIs(t, err, errors.ErrUnableToProcess)
		})
	}

	// Field rejections leave no forensic trace; only bad secrets do
	count, err := env.recordRepo.CountFailedAttempts(record.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestExpiredBanCanStillBeLifted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{
		BanType:        models.BanTemporary,
		ExpirationType: models.ExpirationDate,
		ExpirationDate: isoDaysFromNow(-1),
	})

	// Sweep flips it to expired
	got, err := env.records.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusExpired, got.Status)

	err = env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   testPassword,
		LiftType:   models.LiftErrorEntry,
		LiftReason: "Entered in error",
		Initials:   "MG",
	}, "10.0.0.1")
	require.NoError(t, err)

	got, err = env.records.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusLifted, got.Status)

	// Creation, expiry, lift: the full history remains
	require.Len(t, got.Timeline, 3)
}

// breakTimelineWrites installs a trigger that aborts every insert into
// timeline_entries, simulating a failing audit write mid-transaction.
func breakTimelineWrites(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.db.Exec(`
        CREATE TRIGGER timeline_outage BEFORE INSERT ON timeline_entries
        BEGIN
            SELECT RAISE(ABORT, 'timeline unavailable');
        END
    `)
	require.NoError(t, err)
	t.Cleanup(func() {
		env.db.Exec(`DROP TRIGGER IF EXISTS timeline_outage`)
	})
}

func TestCreateRollsBackWhenTimelineWriteFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	breakTimelineWrites(t, env)

	_, err := env.records.Create(ctx, 1, &models.CreateRecordRequest{
		GuestName:     "John Smith",
		BanType:       models.BanPermanent,
		Reasons:       []string{"Scammer"},
		StaffInitials: "AB",
	})
	require.Error(t, err)

	// No record row survives the failed audit write
	var count int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count))
	require.Zero(t, count)
}

func TestLiftRollsBackWhenTimelineWriteFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	breakTimelineWrites(t, env)

	err := env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   testPassword,
		LiftType:   models.LiftManagerOverride,
		LiftReason: "Cleared after review",
		Initials:   "MG",
	}, "10.0.0.1")
	require.Error(t, err)

	// The status flip was rolled back with the entry
	got, err := env.recordRepo.GetByID(record.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)
	require.Empty(t, got.LiftedDate)
}

func TestFailedAttemptRollbackStaysSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	breakTimelineWrites(t, env)

	// The forensic write fails internally; the caller still sees only the
	// generic rejection.
	err := env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   "Wrong7secret",
		LiftType:   models.LiftManagerOverride,
		LiftReason: "Attempted",
		Initials:   "XX",
	}, "203.0.113.9")
	require.ErrorIs(t, err, errors.ErrUnableToProcess)

	// The attempt row rolled back together with its hidden entry
	count, err := env.recordRepo.CountFailedAttempts(record.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAddNote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record := createRecord(t, env, models.CreateRecordRequest{})

	entry, err := env.records.AddNote(ctx, 1, record.ID, &models.AddNoteRequest{
		StaffInitials: "CD",
		Note:          "Guest called to dispute the ban",
	})
	require.NoError(t, err)
	require.False(t, entry.IsSystem)

	got, err := env.records.Get(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, got.Timeline, 2)
	require.Equal(t, "Guest called to dispute the ban", got.Timeline[0].Note)
	require.Equal(t, "CD", got.Timeline[0].StaffInitials)
}

func TestAddNoteRejectedOnLiftedRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bootstrapManager(t, env, "manager1")

	record := createRecord(t, env, models.CreateRecordRequest{})

	require.NoError(t, env.records.Lift(ctx, 1, record.ID, &models.LiftRequest{
		Password:   testPassword,
		LiftType:   models.LiftIssueResolved,
		LiftReason: "Resolved",
		Initials:   "MG",
	}, "10.0.0.1"))

	_, err := env.records.AddNote(ctx, 1, record.ID, &models.AddNoteRequest{
		StaffInitials: "CD",
		Note:          "Should not land",
	})
	require.ErrorIs(t, err, errors.ErrRecordLifted)
}

func TestListFiltersAndSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	createRecord(t, env, models.CreateRecordRequest{GuestName: "Alice Adams"})
	createRecord(t, env, models.CreateRecordRequest{
		GuestName:      "Bob Brown",
		BanType:        models.BanTemporary,
		ExpirationType: models.ExpirationResolved,
	})

	all, err := env.records.List(ctx, models.RecordListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	temporary, err := env.records.List(ctx, models.RecordListFilters{BanType: models.BanTemporary})
	require.NoError(t, err)
	require.Len(t, temporary, 1)
	require.Equal(t, "Bob Brown", temporary[0].GuestName)

	named, err := env.records.List(ctx, models.RecordListFilters{Search: "adams"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	require.Equal(t, "Alice Adams", named[0].GuestName)

	sorted, err := env.records.List(ctx, models.RecordListFilters{Sort: "name", Dir: "asc"})
	require.NoError(t, err)
	require.Equal(t, "Alice Adams", sorted[0].GuestName)
}
