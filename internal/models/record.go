package models

import "time"

type BanStatus string

const (
	StatusActive  BanStatus = "active"
	StatusExpired BanStatus = "expired"
	StatusLifted  BanStatus = "lifted"
)

type BanType string

const (
	BanTemporary BanType = "temporary"
	BanPermanent BanType = "permanent"
)

type ExpirationType string

const (
	ExpirationDate          ExpirationType = "date"
	ExpirationResolved      ExpirationType = "resolved"
	ExpirationManagerReview ExpirationType = "manager_review"
)

type LiftType string

const (
	LiftManagerOverride LiftType = "manager_override"
	LiftIssueResolved   LiftType = "issue_resolved"
	LiftErrorEntry      LiftType = "error_entry"
)

// DisplayName returns the human-readable label recorded in timeline notes.
func (t LiftType) DisplayName() string {
	switch t {
	case LiftManagerOverride:
		return "Manager Override"
	case LiftIssueResolved:
		return "Issue Resolved"
	case LiftErrorEntry:
		return "Error Entry"
	}
	return string(t)
}

// ValidLiftType reports whether t is a known lift type.
func ValidLiftType(t LiftType) bool {
	switch t {
	case LiftManagerOverride, LiftIssueResolved, LiftErrorEntry:
		return true
	}
	return false
}

// MaxReasons caps how many reasons a single record may carry.
const MaxReasons = 10

// BanReasons is the fixed allow-list of restriction reasons. Values outside
// this list are dropped before storage, never persisted. The strings match
// the data already in production, spelling included.
var BanReasons = []string{
	"Noise complaints multiple incidents",
	"Smoking in non smoking room",
	"Damage under review",
	"Housekeeping safety concern",
	"Aggressive or abusive behavior toward staff",
	"Policy violation warning issued",
	"Third party booking dispute",
	"Chargeback or payment dispute pending",
	"Local police involvement without arrest",
	"Welfare check initiated",
	"Ruined linnen",
	"Scammer",
	"Animals",
	"Drug use",
	"Former employee on bad terms",
	"Stole property",
}

var banReasonSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(BanReasons))
	for _, r := range BanReasons {
		set[r] = struct{}{}
	}
	return set
}()

// FilterReasons returns only the reasons present on the allow-list,
// preserving submission order and dropping duplicates.
func FilterReasons(reasons []string) []string {
	var valid []string
	seen := make(map[string]struct{}, len(reasons))
	for _, r := range reasons {
		if _, ok := banReasonSet[r]; !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		valid = append(valid, r)
	}
	return valid
}

// BanRecord is the persisted guest-restriction entity. Date fields hold ISO
// YYYY-MM-DD strings so expiry comparisons stay lexicographic, matching the
// existing schema.
type BanRecord struct {
	ID             int            `json:"id"`
	GuestName      string         `json:"guest_name"`
	Status         BanStatus      `json:"status"`
	BanType        BanType        `json:"ban_type"`
	Reasons        []string       `json:"reasons"`
	ReasonDetail   string         `json:"reason_detail,omitempty"`
	DateAdded      string         `json:"date_added"`
	IncidentDate   string         `json:"incident_date,omitempty"`
	ExpirationType ExpirationType `json:"expiration_type,omitempty"`
	ExpirationDate string         `json:"expiration_date,omitempty"`
	LiftedDate     string         `json:"lifted_date,omitempty"`
	LiftedType     LiftType       `json:"lifted_type,omitempty"`
	LiftedReason   string         `json:"lifted_reason,omitempty"`
	LiftedInitials string         `json:"lifted_initials,omitempty"`

	Timeline []*TimelineEntry `json:"timeline,omitempty"`
}

// TimelineEntry is one immutable audit line attached to a ban record.
// System entries narrate lifecycle transitions; staff entries are free text.
type TimelineEntry struct {
	ID            int    `json:"id"`
	RecordID      int    `json:"record_id"`
	EntryDate     string `json:"entry_date"`
	StaffInitials string `json:"staff_initials,omitempty"`
	Note          string `json:"note"`
	IsSystem      bool   `json:"is_system"`
}

// FailedAttempt is a write-only forensic row recording a rejected override
// secret. Never surfaced to end users.
type FailedAttempt struct {
	ID          int       `json:"id"`
	RecordID    int       `json:"record_id"`
	AttemptDate time.Time `json:"attempt_date"`
	IPAddress   string    `json:"ip_address"`
}

type CreateRecordRequest struct {
	GuestName      string         `json:"guest_name"`
	BanType        BanType        `json:"ban_type"`
	Reasons        []string       `json:"reasons"`
	ReasonDetail   string         `json:"reason_detail"`
	StaffInitials  string         `json:"staff_initials"`
	IncidentDate   string         `json:"incident_date"`
	ExpirationType ExpirationType `json:"expiration_type"`
	ExpirationDate string         `json:"expiration_date"`
}

type AddNoteRequest struct {
	StaffInitials string `json:"staff_initials"`
	Note          string `json:"note"`
}

type LiftRequest struct {
	Password   string   `json:"password"`
	LiftType   LiftType `json:"lift_type"`
	LiftReason string   `json:"lift_reason"`
	Initials   string   `json:"initials"`
}

type RecordListFilters struct {
	Status  BanStatus
	BanType BanType
	Search  string
	Sort    string
	Dir     string
}
